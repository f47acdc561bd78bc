// Package testutils provides deterministic generators, fake adapters and fixture helpers
// shared by the package tests.
package testutils

import (
	"fmt"
	"sync"
)

// IDSequence hands out deterministic ids that keep the UUID v4 layout.
// The zero value is ready to use.
type IDSequence struct {
	mu      sync.Mutex
	counter uint64
	prefix  string
}

// NewIDSequence creates a sequence whose ids start with prefix.
func NewIDSequence(prefix string) *IDSequence {
	return &IDSequence{prefix: prefix}
}

// Next returns ids like session_00000001-0000-4000-8000-000000000001.
func (s *IDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	return fmt.Sprintf("%s%08x-0000-4000-8000-%012x", s.prefix, s.counter, s.counter)
}

// Reset restarts the sequence at 1.
func (s *IDSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = 0
}
