package quiz

import (
	"sync"
	"time"

	"physics-practice/internal/models"
)

// Session is one user's quiz run, owned by that user's session token.
// Invariant while active: Current == len(Answers).
type Session struct {
	Token             string
	UserID            uint
	Username          string
	Unit              string
	Questions         []models.Question
	Current           int
	Answers           []models.AnsweredQuestion
	WrongTopics       []string
	StartedAt         time.Time
	QuestionStartedAt time.Time
	EndedEarly        bool
}

// Complete reports whether the quiz is finished, either by answering every
// question or by ending early.
func (s *Session) Complete() bool {
	return s.EndedEarly || s.Current >= len(s.Questions)
}

// UniqueWrongTopics dedupes the wrong-topic multiset, keeping first-seen
// order. The multiset itself retains duplicates for the report histogram.
func (s *Session) UniqueWrongTopics() []string {
	seen := make(map[string]bool)
	var topics []string
	for _, t := range s.WrongTopics {
		if !seen[t] {
			seen[t] = true
			topics = append(topics, t)
		}
	}
	return topics
}

// registry maps session tokens to live quiz sessions. Sessions are created
// on quiz start, replaced by the next quiz start and evicted on logout.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Session)}
}

func (r *registry) get(token string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[token]
	return s, ok
}

func (r *registry) put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Token] = s
}

func (r *registry) delete(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
}
