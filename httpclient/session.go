package httpclient

import (
	"net/http"
	"strings"
	"sync"
)

// SessionStore is the per-client side channel for session state
// carried in Set-Cookie style headers. It is instance-scoped: every
// client owns its own store, created at construction and discarded
// with the client. The store is read before each request and written
// after each response.
type SessionStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{values: make(map[string]string)}
}

// Get returns the value for name and whether it is present.
func (s *SessionStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Set stores a value under name, replacing any previous value.
func (s *SessionStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Clear drops all entries.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
}

// merge applies name/value pairs in order; later writes win.
func (s *SessionStore) merge(pairs [][2]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pairs {
		s.values[p[0]] = p[1]
	}
}

// cookieHeader renders the store as a Cookie request header value.
// Empty string when the store is empty.
func (s *SessionStore) cookieHeader() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.values) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.values))
	for name, value := range s.values {
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, "; ")
}

// parseSetCookies extracts name/value pairs from Set-Cookie headers in
// receipt order. Attributes after the first segment (Path, Expires,
// ...) are not session state and are dropped. Duplicate names are
// preserved in order so that the merge applies last-write-wins.
func parseSetCookies(header http.Header) [][2]string {
	var pairs [][2]string
	for _, line := range header.Values("Set-Cookie") {
		segment, _, _ := strings.Cut(line, ";")
		name, value, ok := strings.Cut(strings.TrimSpace(segment), "=")
		if !ok || name == "" {
			continue
		}
		pairs = append(pairs, [2]string{name, value})
	}
	return pairs
}
