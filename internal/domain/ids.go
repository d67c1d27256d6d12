// Package domain contains pure business logic and types.
// It is the innermost ring of Clean Architecture; its only third-party
// imports are google/uuid and nyaruka/phonenumbers for value validation.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// SessionID is a value object representing a unique, 128-bit opaque
// verification session identifier.
type SessionID struct {
	value string
}

// NewSessionID creates a SessionID from a raw string, validating it is a valid UUID.
func NewSessionID(raw string) (SessionID, error) {
	if raw == "" {
		return SessionID{}, ErrEmptyID
	}
	if _, err := uuid.Parse(raw); err != nil {
		return SessionID{}, fmt.Errorf("invalid session ID %q: %w", raw, ErrInvalidID)
	}
	return SessionID{value: raw}, nil
}

// MustSessionID creates a SessionID, panicking on invalid input. Use only in tests.
func MustSessionID(raw string) SessionID {
	id, err := NewSessionID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateSessionID creates a new random SessionID.
func GenerateSessionID() SessionID {
	return SessionID{value: uuid.NewString()}
}

func (id SessionID) String() string { return id.value }
func (id SessionID) IsZero() bool   { return id.value == "" }
