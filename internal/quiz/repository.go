package quiz

import (
	"log"

	"physics-practice/internal/models"

	"gorm.io/gorm"
)

// Repository is the gorm-backed record store. Each write is its own
// transaction so concurrent sessions never share connection state.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveRecord(record *models.QuizRecord) error {
	err := r.db.Create(record).Error
	if err != nil {
		log.Printf("Error saving quiz record: %v", err)
		return err
	}
	return nil
}

func (r *Repository) UserStats(userID uint) ([]models.TopicStat, error) {
	var stats []models.TopicStat

	err := r.db.Raw(`
        SELECT unit, topic,
               COUNT(*) as total,
               SUM(CASE WHEN is_correct THEN 1 ELSE 0 END) as correct
        FROM quiz_records
        WHERE user_id = ? AND deleted_at IS NULL
        GROUP BY unit, topic
        ORDER BY unit, topic
    `, userID).Scan(&stats).Error

	if err != nil {
		log.Printf("Error getting stats for user %d: %v", userID, err)
		return nil, err
	}
	return stats, nil
}
