package api

import (
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("unauthorized")

// AuthProvider resolves the authenticated user id from a request. Credential
// verification itself (JWT, sessions) lives outside this service.
type AuthProvider interface {
	UserID(r *http.Request) (string, error)
}

// TokenAuth maps static bearer tokens to user ids.
type TokenAuth struct {
	tokens map[string]string
}

func NewTokenAuth(tokens map[string]string) *TokenAuth {
	return &TokenAuth{tokens: tokens}
}

func (a *TokenAuth) UserID(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", ErrUnauthorized
	}
	userID, ok := a.tokens[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return userID, nil
}
