package quiz

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"physics-practice/internal/llm"
	"physics-practice/internal/report"
	"physics-practice/internal/session"

	"github.com/gorilla/mux"
)

// SnapshotCache keeps the latest encoded session state per token, so a
// client reconnecting without URL parameters can still resume.
type SnapshotCache interface {
	SetSnapshot(token, encoded string) error
	GetSnapshot(token string) (string, error)
}

type Handler struct {
	service   *Service
	generator *report.Generator
	ai        *llm.Client
	snapshots SnapshotCache
}

func NewHandler(service *Service, generator *report.Generator, ai *llm.Client, snapshots SnapshotCache) *Handler {
	return &Handler{service: service, generator: generator, ai: ai, snapshots: snapshots}
}

func requestIdentity(r *http.Request) (uint, string, string, bool) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		return 0, "", "", false
	}
	username, _ := r.Context().Value("username").(string)
	token, _ := r.Context().Value("token").(string)
	return userID, username, token, true
}

func (h *Handler) GetUnits(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{"units": h.service.Units()})
}

func (h *Handler) GetTopics(w http.ResponseWriter, r *http.Request) {
	unit := mux.Vars(r)["unit"]
	topics := h.service.Topics(unit)
	if len(topics) == 0 {
		http.Error(w, "Unit not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"unit": unit, "topics": topics})
}

type startRequest struct {
	Unit   string   `json:"unit"`
	Topics []string `json:"topics"`
	Count  int      `json:"count"`
}

func (h *Handler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	userID, username, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Count <= 0 {
		req.Count = 10
	}

	question, err := h.service.Start(token, userID, username, req.Unit, req.Topics, req.Count)
	if err != nil {
		h.writeQuizError(w, err)
		return
	}
	h.generator.Invalidate(token)
	json.NewEncoder(w).Encode(question)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	_, _, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	feedback, err := h.service.Submit(token, req.Answer)
	if err != nil {
		h.writeQuizError(w, err)
		return
	}
	json.NewEncoder(w).Encode(feedback)
}

func (h *Handler) CurrentQuestion(w http.ResponseWriter, r *http.Request) {
	_, _, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	question, err := h.service.Current(token)
	if err != nil {
		h.writeQuizError(w, err)
		return
	}
	json.NewEncoder(w).Encode(question)
}

func (h *Handler) EndQuiz(w http.ResponseWriter, r *http.Request) {
	_, _, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.End(token); err != nil {
		h.writeQuizError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "quiz ended"})
}

func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	_, _, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.service.Result(token)
	if err != nil {
		h.writeQuizError(w, err)
		return
	}
	json.NewEncoder(w).Encode(result)
}

type remedialRequest struct {
	Count int `json:"count"`
}

func (h *Handler) StartRemedial(w http.ResponseWriter, r *http.Request) {
	_, _, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req remedialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Count <= 0 {
		req.Count = 10
	}

	// Prefer AI-authored remedial questions when a client is configured;
	// on any generation failure fall back to resampling the bank.
	if h.ai != nil {
		if userID, username, unit, topics, ok := h.service.RemedialBasis(token); ok && len(topics) > 0 {
			generated, genErr := h.ai.GenerateRemedial(r.Context(), topics, req.Count)
			if genErr == nil {
				question, err := h.service.StartGenerated(token, userID, username, unit, generated)
				if err == nil {
					h.generator.Invalidate(token)
					json.NewEncoder(w).Encode(question)
					return
				}
				genErr = err
			}
			log.Printf("AI remedial generation failed for %q, using question bank: %v", unit, genErr)
		}
	}

	question, err := h.service.StartRemedial(token, req.Count)
	if err != nil {
		h.writeQuizError(w, err)
		return
	}
	h.generator.Invalidate(token)
	json.NewEncoder(w).Encode(question)
}

// GenerateQuiz starts a quiz over AI-authored questions. Unlike report
// generation there is no fallback: a failed generation surfaces to the
// user, who can retry or use the static bank.
func (h *Handler) GenerateQuiz(w http.ResponseWriter, r *http.Request) {
	userID, username, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if h.ai == nil {
		http.Error(w, "AI question generation is not configured", http.StatusServiceUnavailable)
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Count <= 0 {
		req.Count = 10
	}
	if len(req.Topics) == 0 {
		req.Topics = h.service.Topics(req.Unit)
	}

	questions, err := h.ai.GenerateQuestions(r.Context(), req.Unit, req.Topics, req.Count)
	if err != nil {
		log.Printf("Quiz generation failed for user %d: %v", userID, err)
		http.Error(w, "Failed to generate quiz, please retry or use the question bank", http.StatusBadGateway)
		return
	}

	question, err := h.service.StartGenerated(token, userID, username, req.Unit, questions)
	if err != nil {
		h.writeQuizError(w, err)
		return
	}
	h.generator.Invalidate(token)
	json.NewEncoder(w).Encode(question)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, _, _, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.service.Stats(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"stats": stats})
}

// GenerateReport returns the analysis report for the finished quiz: cached
// if present, AI with local fallback otherwise. mode=local forces the
// deterministic strategy.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	_, _, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.service.Result(token)
	if err != nil {
		h.writeQuizError(w, err)
		return
	}

	forceLocal := r.URL.Query().Get("mode") == "local"
	text, source := h.generator.Generate(r.Context(), token, result.Answers, result.Unit, forceLocal)
	json.NewEncoder(w).Encode(map[string]string{"report": text, "source": source})
}

func (h *Handler) InvalidateReport(w http.ResponseWriter, r *http.Request) {
	_, _, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	h.generator.Invalidate(token)
	json.NewEncoder(w).Encode(map[string]string{"status": "report invalidated"})
}

// SessionState returns the URL-safe encoded snapshot of the live session.
func (h *Handler) SessionState(w http.ResponseWriter, r *http.Request) {
	_, _, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	encoded := session.Encode(h.service.Snapshot(token))
	if h.snapshots != nil {
		if err := h.snapshots.SetSnapshot(token, encoded); err != nil {
			log.Printf("Error caching session snapshot: %v", err)
		}
	}
	json.NewEncoder(w).Encode(map[string]string{"state": encoded})
}

type restoreRequest struct {
	State string `json:"state"`
}

// RestoreSession rebuilds session state from an encoded blob. The token was
// already validated by the auth middleware; a damaged blob silently yields
// the default home state. With an empty blob the cached snapshot is tried.
func (h *Handler) RestoreSession(w http.ResponseWriter, r *http.Request) {
	userID, username, token, ok := requestIdentity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.State = ""
	}
	if req.State == "" && h.snapshots != nil {
		if cached, err := h.snapshots.GetSnapshot(token); err == nil {
			req.State = cached
		}
	}

	state := h.service.Restore(token, userID, username, session.Decode(req.State))
	json.NewEncoder(w).Encode(state)
}

func (h *Handler) writeQuizError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoQuestions):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNoSession):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidChoice), errors.Is(err, ErrQuizComplete):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
