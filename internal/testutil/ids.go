package testutil

import (
	"fmt"
	"sync"
)

// SeqIDs hands out sequential span and event identifiers.
//
// Production identifiers are truncated random UUIDs; tests want stable
// values that read well in failure output and golden files, so this
// source counts instead: span-0001, span-0002, ... and ev-0001,
// ev-0002, ... on independent counters.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SeqIDs struct {
	mu     sync.Mutex
	spans  int
	events int
}

// NewSeqIDs creates a source whose first identifiers are span-0001 and
// ev-0001.
func NewSeqIDs() *SeqIDs {
	return &SeqIDs{}
}

// SpanID returns the next span identifier in sequence.
//
// Implements engine.IDSource.
func (s *SeqIDs) SpanID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans++
	return fmt.Sprintf("span-%04d", s.spans)
}

// EventID returns the next event identifier in sequence.
//
// Implements engine.IDSource.
func (s *SeqIDs) EventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events++
	return fmt.Sprintf("ev-%04d", s.events)
}
