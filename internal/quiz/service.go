package quiz

import (
	"errors"
	"log"
	"sync"
	"time"

	"physics-practice/internal/models"
	"physics-practice/internal/session"
)

var (
	// ErrNoQuestions means nothing in the bank matches the requested
	// unit/topic filter. Surfaced to the user as a corrective message.
	ErrNoQuestions = errors.New("no questions available for the selected topics")
	// ErrNoSession means the token has no active quiz.
	ErrNoSession = errors.New("no active quiz session")
	// ErrQuizComplete means the quiz already finished.
	ErrQuizComplete = errors.New("quiz is already complete")
	// ErrInvalidChoice means the submitted label is not one of A-D.
	ErrInvalidChoice = errors.New("answer must be one of A, B, C or D")
)

// QuestionSource supplies questions for a unit/topic filter.
type QuestionSource interface {
	Units() []string
	Topics(unit string) []string
	Sample(unit string, n int, topics []string) []models.Question
	SampleByTopics(topics []string, n int) []models.Question
}

// RecordStore persists per-answer records for historical analytics. Writes
// are fire-and-forget from the quiz flow.
type RecordStore interface {
	SaveRecord(record *models.QuizRecord) error
	UserStats(userID uint) ([]models.TopicStat, error)
}

// Notifier pushes progress events to a user's open sockets.
type Notifier interface {
	SendToUser(token, event string, data interface{})
}

// Service runs the quiz state machine: start, submit, end, restore.
type Service struct {
	source   QuestionSource
	records  RecordStore
	notifier Notifier
	now      func() time.Time

	mu       sync.Mutex
	sessions *registry
}

func NewService(source QuestionSource, records RecordStore, notifier Notifier) *Service {
	return &Service{
		source:   source,
		records:  records,
		notifier: notifier,
		now:      time.Now,
		sessions: newRegistry(),
	}
}

func (s *Service) Units() []string {
	return s.source.Units()
}

func (s *Service) Topics(unit string) []string {
	return s.source.Topics(unit)
}

// Start samples questions and opens a fresh session for the token,
// replacing any previous one.
func (s *Service) Start(token string, userID uint, username, unit string, topics []string, count int) (models.QuestionDTO, error) {
	questions := s.source.Sample(unit, count, topics)
	if len(questions) == 0 {
		return models.QuestionDTO{}, ErrNoQuestions
	}
	return s.startWith(token, userID, username, unit, questions)
}

// StartGenerated opens a session over AI-generated questions.
func (s *Service) StartGenerated(token string, userID uint, username, unit string, questions []models.Question) (models.QuestionDTO, error) {
	if len(questions) == 0 {
		return models.QuestionDTO{}, ErrNoQuestions
	}
	return s.startWith(token, userID, username, unit, questions)
}

// RemedialBasis reads, under the session lock, what a remedial round is
// built from: the owner's identity, the unit and the deduped wrong topics.
func (s *Service) RemedialBasis(token string) (userID uint, username, unit string, topics []string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, found := s.sessions.get(token)
	if !found {
		return 0, "", "", nil, false
	}
	return sess.UserID, sess.Username, sess.Unit, sess.UniqueWrongTopics(), true
}

// StartRemedial opens a session over bank questions drawn from the topics
// the user previously got wrong.
func (s *Service) StartRemedial(token string, count int) (models.QuestionDTO, error) {
	userID, username, unit, topics, ok := s.RemedialBasis(token)
	if !ok {
		return models.QuestionDTO{}, ErrNoSession
	}
	if len(topics) == 0 {
		return models.QuestionDTO{}, ErrNoQuestions
	}
	questions := s.source.SampleByTopics(topics, count)
	if len(questions) == 0 {
		return models.QuestionDTO{}, ErrNoQuestions
	}
	return s.startWith(token, userID, username, unit, questions)
}

func (s *Service) startWith(token string, userID uint, username, unit string, questions []models.Question) (models.QuestionDTO, error) {
	now := s.now()
	sess := &Session{
		Token:             token,
		UserID:            userID,
		Username:          username,
		Unit:              unit,
		Questions:         questions,
		StartedAt:         now,
		QuestionStartedAt: now,
	}
	s.sessions.put(sess)
	log.Printf("Started quiz for user %d: unit %q, %d questions", userID, unit, len(questions))
	return questions[0].ToDTO(0, len(questions)), nil
}

// Current returns the question the session is waiting on.
func (s *Service) Current(token string) (models.QuestionDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.get(token)
	if !ok {
		return models.QuestionDTO{}, ErrNoSession
	}
	if sess.Complete() {
		return models.QuestionDTO{}, ErrQuizComplete
	}
	return sess.Questions[sess.Current].ToDTO(sess.Current, len(sess.Questions)), nil
}

// Submit scores the current question against the chosen label, appends the
// result, advances the session and resets the per-question timer. The
// durable record write happens after the state change and must not block
// quiz progression: failures are logged and swallowed.
func (s *Service) Submit(token, chosenLabel string) (models.AnswerFeedback, error) {
	s.mu.Lock()
	sess, ok := s.sessions.get(token)
	if !ok {
		s.mu.Unlock()
		return models.AnswerFeedback{}, ErrNoSession
	}
	if sess.Complete() {
		s.mu.Unlock()
		return models.AnswerFeedback{}, ErrQuizComplete
	}
	if !ValidChoice(chosenLabel) {
		s.mu.Unlock()
		return models.AnswerFeedback{}, ErrInvalidChoice
	}

	now := s.now()
	question := sess.Questions[sess.Current]
	elapsed := now.Sub(sess.QuestionStartedAt).Seconds()

	answered := Score(question, chosenLabel, elapsed)
	sess.Answers = append(sess.Answers, answered)
	if !answered.Correct {
		// Multiset: duplicates retained until remediation dedupes.
		sess.WrongTopics = append(sess.WrongTopics, question.Topic)
	}
	sess.Current++
	sess.QuestionStartedAt = now

	feedback := models.AnswerFeedback{
		Result:   answered,
		Index:    sess.Current,
		Total:    len(sess.Questions),
		Complete: sess.Complete(),
	}
	record := &models.QuizRecord{
		UserID:        sess.UserID,
		Username:      sess.Username,
		Unit:          sess.Unit,
		Topic:         question.Topic,
		QuestionText:  question.Text,
		UserAnswer:    answered.UserAnswer,
		CorrectAnswer: question.Answer,
		IsCorrect:     answered.Correct,
		TimeSpent:     elapsed,
	}
	s.mu.Unlock()

	if s.records != nil {
		if err := s.records.SaveRecord(record); err != nil {
			log.Printf("Error saving quiz record for user %d: %v", record.UserID, err)
		}
	}
	s.notify(token, "progress", feedback)
	if feedback.Complete {
		s.notify(token, "quiz_complete", map[string]interface{}{"total": feedback.Total})
	}
	return feedback, nil
}

// End finishes the quiz early; answered questions stay scored.
func (s *Service) End(token string) error {
	s.mu.Lock()
	sess, ok := s.sessions.get(token)
	if !ok {
		s.mu.Unlock()
		return ErrNoSession
	}
	sess.EndedEarly = true
	s.mu.Unlock()

	s.notify(token, "quiz_complete", map[string]interface{}{"total": len(sess.Questions)})
	return nil
}

// Result summarizes a session for the result page.
type Result struct {
	Unit        string                    `json:"unit"`
	Answers     []models.AnsweredQuestion `json:"answers"`
	Correct     int                       `json:"correct"`
	Total       int                       `json:"total"`
	TotalTime   float64                   `json:"total_time"`
	WrongTopics []string                  `json:"wrong_topics"`
}

func (s *Service) Result(token string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.get(token)
	if !ok || len(sess.Answers) == 0 {
		return Result{}, ErrNoSession
	}

	correct := 0
	totalTime := 0.0
	for _, a := range sess.Answers {
		if a.Correct {
			correct++
		}
		totalTime += a.TimeSpent
	}
	answers := make([]models.AnsweredQuestion, len(sess.Answers))
	copy(answers, sess.Answers)

	return Result{
		Unit:        sess.Unit,
		Answers:     answers,
		Correct:     correct,
		Total:       len(answers),
		TotalTime:   totalTime,
		WrongTopics: sess.UniqueWrongTopics(),
	}, nil
}

// Session returns the live session for a token.
func (s *Service) Session(token string) (*Session, bool) {
	return s.sessions.get(token)
}

// Evict drops the session, typically on logout.
func (s *Service) Evict(token string) {
	s.sessions.delete(token)
}

// Stats returns historical per-unit/topic aggregates from the record store.
func (s *Service) Stats(userID uint) ([]models.TopicStat, error) {
	if s.records == nil {
		return nil, nil
	}
	return s.records.UserStats(userID)
}

// Snapshot captures the restorable state of a session for URL embedding.
// Without a session the snapshot is the default home state.
func (s *Service) Snapshot(token string) session.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.get(token)
	if !ok {
		return session.Default()
	}

	page := session.PageQuiz
	if sess.Complete() {
		page = session.PageResult
	}
	return session.State{
		Version:     session.Version,
		Page:        page,
		Unit:        sess.Unit,
		Answers:     session.Abbreviate(sess.Answers),
		WrongTopics: append([]string(nil), sess.WrongTopics...),
		StartTime:   float64(sess.StartedAt.Unix()),
	}
}

// Restore rebuilds a result-page session from a decoded state. The token
// must already be validated; restored sessions carry answers but no live
// questions, so they are complete by construction.
func (s *Service) Restore(token string, userID uint, username string, state session.State) session.State {
	if state.Page != session.PageResult || len(state.Answers) == 0 {
		return state
	}

	started := s.now()
	if state.StartTime > 0 {
		started = time.Unix(int64(state.StartTime), 0)
	}
	answers := session.Expand(state.Answers)
	sess := &Session{
		Token:       token,
		UserID:      userID,
		Username:    username,
		Unit:        state.Unit,
		Current:     len(answers),
		Answers:     answers,
		WrongTopics: append([]string(nil), state.WrongTopics...),
		StartedAt:   started,
		EndedEarly:  true,
	}
	s.sessions.put(sess)
	log.Printf("Restored result session for user %d: unit %q, %d answers", userID, state.Unit, len(answers))
	return state
}

func (s *Service) notify(token, event string, data interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendToUser(token, event, data)
}
