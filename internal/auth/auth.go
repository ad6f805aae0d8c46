package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingAPIKey   = errors.New("missing authorization header")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrAuthUnavailable = errors.New("authentication temporarily unavailable")
)

// KeyContext identifies the authenticated service key.
type KeyContext struct {
	KeyID int64
	Name  string
}

// Authenticator validates a presented API key.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*KeyContext, error)
}

// ExtractAPIKey pulls the Bearer token from an HTTP request and checks
// the wsk_ format. Format validation happens before any lookup.
func ExtractAPIKey(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAPIKey
	}

	token := header
	// RFC 6750: the "Bearer" scheme is case-insensitive.
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = token[7:]
	}
	token = strings.TrimSpace(token)

	if !strings.HasPrefix(token, "wsk_") {
		return "", ErrInvalidAPIKey
	}
	return token, nil
}
