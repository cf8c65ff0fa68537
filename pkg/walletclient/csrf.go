package walletclient

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var errEmptyCSRFToken = errors.New("session did not return a csrf token")

// CSRFSource supplies the anti-forgery token attached to mutating requests.
type CSRFSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops any cached token after the server rejects it.
	Invalidate()
}

// StaticCSRF is a token handed over by configuration.
type StaticCSRF string

func (s StaticCSRF) Token(context.Context) (string, error) {
	return string(s), nil
}

func (StaticCSRF) Invalidate() {}

// SessionCSRF fetches the token lazily and caches it until invalidated.
type SessionCSRF struct {
	fetch func(ctx context.Context) (string, error)

	mu    sync.Mutex
	token string
}

// NewSessionCSRF returns a source backed by fetch, usually Client.FetchCSRFToken.
func NewSessionCSRF(fetch func(ctx context.Context) (string, error)) *SessionCSRF {
	return &SessionCSRF{fetch: fetch}
}

func (s *SessionCSRF) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}
	token, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errEmptyCSRFToken
	}
	s.token = token
	return token, nil
}

func (s *SessionCSRF) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
