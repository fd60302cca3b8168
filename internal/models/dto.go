package models

// QuestionDTO is what an active quiz returns to the client. The correct
// answer and explanation are withheld until the question is scored.
type QuestionDTO struct {
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Unit    string `json:"unit"`
	Topic   string `json:"topic"`
	Text    string `json:"question"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
}

func (q Question) ToDTO(index, total int) QuestionDTO {
	return QuestionDTO{
		Index:   index,
		Total:   total,
		Unit:    q.Unit,
		Topic:   q.Topic,
		Text:    q.Text,
		OptionA: q.OptionA,
		OptionB: q.OptionB,
		OptionC: q.OptionC,
		OptionD: q.OptionD,
	}
}

// AnswerFeedback is returned after a submission: full detail plus whether
// the quiz is now complete.
type AnswerFeedback struct {
	Result   AnsweredQuestion `json:"result"`
	Index    int              `json:"index"`
	Total    int              `json:"total"`
	Complete bool             `json:"complete"`
}
