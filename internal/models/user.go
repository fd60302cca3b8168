package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	Username  string         `json:"username" gorm:"unique;not null"`
	Password  string         `json:"-" gorm:"not null"`
}

// SessionToken is a server-side row backing an issued token. Tokens are
// signed JWTs, but a token is only valid while its row exists, so logout
// actually revokes.
type SessionToken struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	UserID    uint   `gorm:"not null;index"`
	Username  string `gorm:"not null"`
	Token     string `gorm:"unique;not null"`
}
