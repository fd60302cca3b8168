package auth

import (
	"errors"
	"log"
	"time"

	"physics-practice/internal/models"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// sessionTTL bounds how long an issued token stays valid. Matches the
// weekly cleanup of stale sessions.
const sessionTTL = 7 * 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
)

// Service issues and validates session tokens. Tokens are signed JWTs that
// are also stored server-side: validation checks both the signature and the
// stored row, so Invalidate actually revokes.
type Service struct {
	repo      *Repository
	jwtSecret []byte
}

func NewService(repo *Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
	}
}

func (s *Service) Register(username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	if _, err := s.repo.GetUserByUsername(username); err == nil {
		return ErrUsernameTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.repo.CreateUser(&models.User{
		Username: username,
		Password: string(hashedPassword),
	})
}

func (s *Service) Login(username, password string) (string, error) {
	user, err := s.repo.GetUserByUsername(username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"jti":      uuid.NewString(),
		"exp":      time.Now().Add(sessionTTL).Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", err
	}

	if err := s.repo.CreateSession(&models.SessionToken{
		UserID:   user.ID,
		Username: user.Username,
		Token:    tokenString,
	}); err != nil {
		return "", err
	}
	return tokenString, nil
}

// Validate checks signature and server-side presence. Any restored page
// state is only trusted after this passes.
func (s *Service) Validate(tokenString string) (bool, uint, string) {
	if tokenString == "" {
		return false, 0, ""
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return false, 0, ""
	}

	session, err := s.repo.GetSession(tokenString)
	if err != nil {
		return false, 0, ""
	}
	return true, session.UserID, session.Username
}

func (s *Service) Invalidate(tokenString string) {
	if tokenString == "" {
		return
	}
	if err := s.repo.DeleteSession(tokenString); err != nil {
		log.Printf("Error deleting session: %v", err)
	}
}

// CleanupExpired removes session rows past the TTL. Run periodically.
func (s *Service) CleanupExpired() {
	n, err := s.repo.DeleteSessionsBefore(time.Now().Add(-sessionTTL))
	if err != nil {
		log.Printf("Error cleaning up sessions: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Removed %d expired sessions", n)
	}
}
