// Package id generates batch identifiers.
package id

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator returns a new unique identifier.
type Generator interface {
	NewID() (string, error)
}

// UUID creates time-ordered UUID v7 strings, so archived bulletins sort by
// creation when listed by id.
type UUID struct{}

// NewID returns a UUID7 string.
func (UUID) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Sequence yields prefix-1, prefix-2, ... and is meant for tests.
type Sequence struct {
	Prefix string
	mu     sync.Mutex
	n      int
}

// NewID returns the next identifier.
func (s *Sequence) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.Prefix, s.n), nil
}
