package auth

import (
	"context"
	"net/http"
	"strings"
)

// Middleware validates the bearer token against the session store and
// injects user_id, username and the raw token into the request context.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			bearerToken := strings.Split(authHeader, " ")
			if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			valid, userID, username := service.Validate(bearerToken[1])
			if !valid {
				http.Error(w, "Invalid or expired session", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), "user_id", userID)
			ctx = context.WithValue(ctx, "username", username)
			ctx = context.WithValue(ctx, "token", bearerToken[1])
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
