package server

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no valid credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves an HTTP request to an application user id.
// Credential issuance lives outside this service; the server only needs a
// verified identity for every request.
type Authenticator interface {
	Authenticate(r *http.Request) (int64, error)
}

// TokenAuthenticator authenticates requests by bearer token against a
// static token-to-user mapping from configuration.
type TokenAuthenticator struct {
	tokens map[string]int64
}

// NewTokenAuthenticator creates an authenticator over the given mapping.
func NewTokenAuthenticator(tokens map[string]int64) *TokenAuthenticator {
	return &TokenAuthenticator{tokens: tokens}
}

func (a *TokenAuthenticator) Authenticate(r *http.Request) (int64, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return 0, ErrUnauthenticated
	}
	userID, ok := a.tokens[token]
	if !ok {
		return 0, ErrUnauthenticated
	}
	return userID, nil
}
