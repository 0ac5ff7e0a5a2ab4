// Package domain contains the platform vocabulary shared by every layer:
// identifiers, enumerations, timing constants, and sentinel errors.
// It has no dependencies beyond the standard library and uuid.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// SessionID identifies a browser session. It is the subject of the signed
// session cookie and the key of the stored session record.
type SessionID struct {
	value string
}

// NewSessionID parses a raw session identifier, which must be a UUID.
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

// ChallengeID identifies a challenge on the backend.
type ChallengeID struct {
	value string
}

// NewChallengeID parses a challenge identifier, which must be a UUID.
func NewChallengeID(raw string) (ChallengeID, error) {
	if raw == "" {
		return ChallengeID{}, ErrEmptyID
	}
	if _, err := uuid.Parse(raw); err != nil {
		return ChallengeID{}, fmt.Errorf("invalid challenge ID %q: %w", raw, ErrInvalidID)
	}
	return ChallengeID{value: raw}, nil
}

func (id ChallengeID) String() string { return id.value }
func (id ChallengeID) IsZero() bool   { return id.value == "" }
