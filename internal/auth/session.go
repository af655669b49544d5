// Package auth holds the bearer token used against the InsightDash backend.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoToken is returned when a token file exists but is empty.
var ErrNoToken = errors.New("token file is empty")

// Session holds the current bearer token. It is safe for concurrent use
// and satisfies api.TokenSource.
type Session struct {
	mu    sync.RWMutex
	token string
	path  string // file the token was loaded from, if any
}

// NewSession creates a session holding token.
func NewSession(token string) *Session {
	return &Session{token: strings.TrimSpace(token)}
}

// LoadToken reads a token file written by Save.
func LoadToken(path string) (*Session, error) {
	if path == "" {
		return nil, fmt.Errorf("token path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, ErrNoToken
	}

	return &Session{token: token, path: path}, nil
}

// Token returns the current token, or "" after Clear.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken replaces the token, e.g. after a login.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

// Valid reports whether a token is held.
func (s *Session) Valid() bool {
	return s.Token() != ""
}

// Clear drops the token. The file it was loaded from, if any, is removed.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.token = ""
	path := s.path
	s.path = ""
	s.mu.Unlock()

	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// Invalidate is Clear for callers that cannot act on the error. The REST
// client calls it when the backend answers 401.
func (s *Session) Invalidate() {
	_ = s.Clear()
}

// Save writes the token to path with owner-only permissions and remembers
// path for Clear.
func (s *Session) Save(path string) error {
	token := s.Token()
	if token == "" {
		return ErrNoToken
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}

	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	return nil
}

// Header returns the Authorization header for the push endpoint handshake.
// It is empty when no token is held.
func (s *Session) Header() http.Header {
	h := http.Header{}
	if token := s.Token(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
