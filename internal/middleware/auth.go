// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/trackvault/internal/logging"
)

type contextKey string

// userIDKey carries the authenticated user's ID.
const userIDKey contextKey = "user_id"

// UserIDFromContext returns the authenticated user ID, or "" when the
// request did not pass through Authenticator.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// Authenticator validates HS256 bearer tokens and injects the subject
// claim as the user ID. Token issuance lives in the surrounding identity
// service; Trackvault only verifies.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator with the shared JWT secret.
func NewAuthenticator(jwtSecret string) *Authenticator {
	return &Authenticator{secret: []byte(jwtSecret)}
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.authenticate(r)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Authentication failed")
			unauthorized(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("malformed Authorization header")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}

// unauthorized writes a minimal 401 envelope. The full response envelope
// lives in the api package; middleware keeps its own to avoid the import
// cycle.
func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":       "unauthorized",
		"message":    "valid bearer token required",
		"request_id": logging.RequestIDFromContext(r.Context()),
	})
}
