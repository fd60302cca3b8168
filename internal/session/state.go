// Package session serializes the restorable slice of a quiz session into a
// compact URL-safe string, so a stateless page reload can pick up where the
// user left off.
package session

import (
	"math"

	"physics-practice/internal/models"
)

// Page states a client can be restored into.
const (
	PageHome      = "home"
	PageQuizSetup = "quiz_setup"
	PageQuiz      = "quiz"
	PageResult    = "result"
)

const (
	maxQuestionLen    = 100
	maxExplanationLen = 200
)

// StoredAnswer is the abbreviated form of an answered question. Short keys
// and clipped text keep the encoded blob small enough for a query string.
type StoredAnswer struct {
	Question    string  `json:"q"`
	Topic       string  `json:"t"`
	UserAnswer  string  `json:"ua"`
	Answer      string  `json:"a"`
	Correct     int     `json:"c"`
	Explanation string  `json:"e"`
	TimeSpent   float64 `json:"ts"`
}

// State is the subset of a quiz session that survives a page reload.
type State struct {
	Version     int            `json:"v"`
	Page        string         `json:"p"`
	Unit        string         `json:"u,omitempty"`
	Answers     []StoredAnswer `json:"ans,omitempty"`
	WrongTopics []string       `json:"wt,omitempty"`
	StartTime   float64        `json:"st,omitempty"`
}

// Default is the state a client falls back to whenever restore fails.
func Default() State {
	return State{Version: Version, Page: PageHome}
}

func validPage(p string) bool {
	switch p {
	case PageHome, PageQuizSetup, PageQuiz, PageResult:
		return true
	}
	return false
}

// Abbreviate converts full answers to their stored form. Clipping is
// idempotent: re-encoding an already clipped answer changes nothing.
func Abbreviate(answers []models.AnsweredQuestion) []StoredAnswer {
	stored := make([]StoredAnswer, 0, len(answers))
	for _, a := range answers {
		correct := 0
		if a.Correct {
			correct = 1
		}
		stored = append(stored, StoredAnswer{
			Question:    clip(a.Question, maxQuestionLen),
			Topic:       a.Topic,
			UserAnswer:  a.UserAnswer,
			Answer:      a.Answer,
			Correct:     correct,
			Explanation: clip(a.Explanation, maxExplanationLen),
			TimeSpent:   math.Round(a.TimeSpent*10) / 10,
		})
	}
	return stored
}

// Expand converts stored answers back to the full shape.
func Expand(stored []StoredAnswer) []models.AnsweredQuestion {
	answers := make([]models.AnsweredQuestion, 0, len(stored))
	for _, s := range stored {
		answers = append(answers, models.AnsweredQuestion{
			Question:    s.Question,
			Topic:       s.Topic,
			UserAnswer:  s.UserAnswer,
			Answer:      s.Answer,
			Correct:     s.Correct == 1,
			Explanation: s.Explanation,
			TimeSpent:   s.TimeSpent,
		})
	}
	return answers
}

// clip limits s to n characters, not bytes, so multi-byte text is never
// cut mid-rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
