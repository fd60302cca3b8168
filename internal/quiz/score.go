package quiz

import (
	"strings"

	"physics-practice/internal/models"
)

// ValidChoice reports whether a submitted label is one of A-D after
// normalization.
func ValidChoice(label string) bool {
	switch normalizeChoice(label) {
	case "A", "B", "C", "D":
		return true
	}
	return false
}

func normalizeChoice(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

// Score determines correctness for one submitted answer. Labels compare
// case-insensitively against the stored correct label.
func Score(q models.Question, chosenLabel string, elapsedSeconds float64) models.AnsweredQuestion {
	chosen := normalizeChoice(chosenLabel)
	return models.AnsweredQuestion{
		Question:    q.Text,
		Topic:       q.Topic,
		UserAnswer:  chosen,
		Answer:      q.Answer,
		Correct:     chosen == strings.ToUpper(q.Answer),
		Explanation: q.Explanation,
		TimeSpent:   elapsedSeconds,
	}
}
