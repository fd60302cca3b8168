package auth

import (
	"time"

	"physics-practice/internal/models"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) CreateUser(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *Repository) CreateSession(session *models.SessionToken) error {
	return r.db.Create(session).Error
}

func (r *Repository) GetSession(token string) (*models.SessionToken, error) {
	var session models.SessionToken
	if err := r.db.Where("token = ?", token).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *Repository) DeleteSession(token string) error {
	return r.db.Where("token = ?", token).Delete(&models.SessionToken{}).Error
}

func (r *Repository) DeleteSessionsBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&models.SessionToken{})
	return result.RowsAffected, result.Error
}
