package transcript

import (
	"strings"
	"sync"
)

// Store accumulates emitted fragments into the full session transcript.
// The transcript is append-only: once a fragment is written it is never
// retracted or rewritten.
type Store struct {
	builder   strings.Builder
	fragments uint64
	mu        sync.RWMutex
}

// NewStore creates an empty transcript store
func NewStore() *Store {
	return &Store{}
}

// WriteFragment appends one emitted fragment, prefixed by a single space
func (s *Store) WriteFragment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.builder.WriteByte(' ')
	s.builder.WriteString(text)
	s.fragments++

	return nil
}

// Text returns the accumulated transcript without the leading separator
func (s *Store) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return strings.TrimPrefix(s.builder.String(), " ")
}

// Fragments returns the number of fragments written so far
func (s *Store) Fragments() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fragments
}
