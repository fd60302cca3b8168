package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// SessionEvictor lets logout drop the user's live quiz session along with
// the token.
type SessionEvictor interface {
	Evict(token string)
}

type Handler struct {
	service *Service
	quizzes SessionEvictor
}

func NewHandler(service *Service, quizzes SessionEvictor) *Handler {
	return &Handler{service: service, quizzes: quizzes}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.service.Register(req.Username, req.Password); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrUsernameTaken) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"message": "Registration successful, please log in"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	token, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := r.Context().Value("token").(string)
	h.service.Invalidate(token)
	if h.quizzes != nil {
		h.quizzes.Evict(token)
	}
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out"})
}
