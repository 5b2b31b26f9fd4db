// ABOUTME: HTTP middleware for bearer token authentication
// ABOUTME: Extracts the JWT from the Authorization header and adds the user id to context

package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/quillchat/quill/internal/auth"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// requireAuth wraps a handler with bearer token verification.
// The verified subject is placed on the request context for handlers
// to read via auth.UserFromContext.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
		if errMsg != "" {
			s.sendJSONError(w, http.StatusUnauthorized, errMsg)
			return
		}

		userID, err := s.verifier.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				s.sendJSONError(w, http.StatusUnauthorized, "token expired")
				return
			}
			s.sendJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), userID)))
	})
}
