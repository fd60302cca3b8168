package report

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"physics-practice/internal/models"
)

// TextCompleter is the slice of the LLM client the report generator needs.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// questionDetail is the per-question summary embedded in the AI prompt.
// Question text is clipped so the prompt stays bounded.
type questionDetail struct {
	Question      string  `json:"question"`
	Topic         string  `json:"topic"`
	YourAnswer    string  `json:"your_answer"`
	CorrectAnswer string  `json:"correct_answer"`
	IsCorrect     bool    `json:"is_correct"`
	Explanation   string  `json:"explanation"`
	TimeSpent     float64 `json:"time_spent"`
}

// Remote asks the LLM for the analysis and returns its text verbatim. The
// response is presentation-only content, so no structural validation.
func Remote(ctx context.Context, completer TextCompleter, answers []models.AnsweredQuestion, unitName string) (string, error) {
	correct := 0
	totalTime := 0.0
	for _, a := range answers {
		if a.Correct {
			correct++
		}
		totalTime += a.TimeSpent
	}
	total := len(answers)

	avgTime := 0.0
	percent := 0
	if total > 0 {
		avgTime = totalTime / float64(total)
		percent = 100 * correct / total
	}

	details := make([]questionDetail, 0, len(answers))
	for _, a := range answers {
		details = append(details, questionDetail{
			Question:      clip(a.Question, 100),
			Topic:         a.Topic,
			YourAnswer:    a.UserAnswer,
			CorrectAnswer: a.Answer,
			IsCorrect:     a.Correct,
			Explanation:   a.Explanation,
			TimeSpent:     math.Round(a.TimeSpent*10) / 10,
		})
	}

	detailJSON, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`You are an IGCSE Physics tutor. Create a detailed analysis report for a student who just completed a quiz on "%s".

Quiz Results:
- Score: %d/%d (%d%%)
- Total time: %.1fs (average %.1fs per question)

Questions:
%s

Please provide a comprehensive analysis with:
1. Score summary
2. Time analysis (which questions were slow/fast)
3. Detailed wrong answer analysis with Learning Objectives
4. Weak topics identification
5. Study recommendations
6. Motivational closing

Use clear headings and be encouraging for a teenage student.`,
		unitName, correct, total, percent, totalTime, avgTime, detailJSON)

	return completer.Complete(ctx, prompt)
}
