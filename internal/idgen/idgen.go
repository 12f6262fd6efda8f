// Package idgen generates identifiers: UUID v4 for configuration records and
// short nanoid-based correlation ids for requests and events.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// CorrelationPrefix is prepended to every generated correlation id.
const CorrelationPrefix = "corr-"

// alphabet is the character set for the random part of a correlation id.
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CorrelationLength is the number of random characters after the prefix.
const CorrelationLength = 16

// NewRecordID returns a fresh configuration record id.
func NewRecordID() string {
	return uuid.NewString()
}

// IsRecordID reports whether s is a well-formed record id.
func IsRecordID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// NewCorrelationID returns a new correlation id such as "corr-4fZ0...".
func NewCorrelationID() (string, error) {
	id, err := nanoid.Generate(alphabet, CorrelationLength)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return CorrelationPrefix + id, nil
}

// MustCorrelationID is NewCorrelationID for callers that cannot handle the
// error; it falls back to a UUID when the random source fails.
func MustCorrelationID() string {
	id, err := NewCorrelationID()
	if err != nil {
		return CorrelationPrefix + uuid.NewString()
	}
	return id
}
