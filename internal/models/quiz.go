package models

import (
	"time"

	"gorm.io/gorm"
)

// Question is a single multiple-choice item sampled from the bank or
// generated by the AI. Immutable once handed to a quiz session.
type Question struct {
	Unit        string `json:"unit"`
	Topic       string `json:"topic"`
	Text        string `json:"question"`
	OptionA     string `json:"option_a"`
	OptionB     string `json:"option_b"`
	OptionC     string `json:"option_c"`
	OptionD     string `json:"option_d"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

// AnsweredQuestion records one submitted answer. Append-only: created when
// the answer is scored and never mutated afterwards.
type AnsweredQuestion struct {
	Question    string  `json:"question"`
	Topic       string  `json:"topic"`
	UserAnswer  string  `json:"user_answer"`
	Answer      string  `json:"answer"`
	Correct     bool    `json:"correct"`
	Explanation string  `json:"explanation"`
	TimeSpent   float64 `json:"time_spent"`
}

// QuizRecord is the durable per-answer row written for historical
// analytics. Writes are fire-and-forget from the quiz flow.
type QuizRecord struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	UserID        uint           `json:"user_id" gorm:"not null;index"`
	Username      string         `json:"username" gorm:"not null"`
	Unit          string         `json:"unit" gorm:"not null"`
	Topic         string         `json:"topic" gorm:"not null"`
	QuestionText  string         `json:"question_text" gorm:"not null"`
	UserAnswer    string         `json:"user_answer"`
	CorrectAnswer string         `json:"correct_answer"`
	IsCorrect     bool           `json:"is_correct"`
	TimeSpent     float64        `json:"time_spent"`
}

// TopicStat is a per-unit/topic aggregate over a user's quiz records.
type TopicStat struct {
	Unit    string `json:"unit"`
	Topic   string `json:"topic"`
	Total   int64  `json:"total"`
	Correct int64  `json:"correct"`
}
