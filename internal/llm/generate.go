package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"physics-practice/internal/models"
)

// GenerateQuestions asks the model for n fresh multiple-choice questions on
// a unit. The response must be a JSON array; a markdown fence around it is
// tolerated. Any failure surfaces as ErrGenerationFailed; there is no local
// fallback for content generation.
func (c *Client) GenerateQuestions(ctx context.Context, unit string, topics []string, n int) ([]models.Question, error) {
	if len(topics) > 5 {
		topics = topics[:5]
	}
	var topicList strings.Builder
	for _, t := range topics {
		fmt.Fprintf(&topicList, "- %s\n", t)
	}

	prompt := fmt.Sprintf(`You are an IGCSE Physics examiner. Generate %d multiple-choice questions for "%s".

Topics:
%s
Requirements:
- 4 options (A-D), one correct
- Include explanation
- Return valid JSON array with keys: question, option_a, option_b, option_c, option_d, answer, explanation, topic`, n, unit, topicList.String())

	questions, err := c.completeQuestions(ctx, prompt)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Unit = unit
	}
	return questions, nil
}

// GenerateRemedial asks for extra practice questions targeted at the topics
// a student got wrong.
func (c *Client) GenerateRemedial(ctx context.Context, wrongTopics []string, n int) ([]models.Question, error) {
	if len(wrongTopics) > 3 {
		wrongTopics = wrongTopics[:3]
	}
	prompt := fmt.Sprintf(`Generate %d IGCSE Physics questions on: %s.

Return JSON with: question, option_a, option_b, option_c, option_d, answer, explanation, topic`,
		n, strings.Join(wrongTopics, ", "))

	return c.completeQuestions(ctx, prompt)
}

func (c *Client) completeQuestions(ctx context.Context, prompt string) ([]models.Question, error) {
	response, err := c.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	var questions []models.Question
	if err := json.Unmarshal([]byte(stripFences(response)), &questions); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON in response: %v", ErrGenerationFailed, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: response contained no questions", ErrGenerationFailed)
	}
	return questions, nil
}

// stripFences removes a surrounding ```json or ``` markdown fence, which
// chat models often wrap around structured output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```json"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = rest
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
