package errors

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxIntentLength bounds the size of a natural-language request in runes.
const MaxIntentLength = 8000

// ValidateIntent validates a natural-language diagram request.
//
// Validation rules:
//   - Not empty after trimming whitespace
//   - At most MaxIntentLength runes
//   - No control characters other than newlines and tabs
func ValidateIntent(intent string) error {
	if strings.TrimSpace(intent) == "" {
		return New(ErrCodeInvalidInput, "no prompt provided")
	}

	if n := utf8.RuneCountInString(intent); n > MaxIntentLength {
		return New(ErrCodeInvalidInput, "prompt too long (%d characters, max %d)", n, MaxIntentLength)
	}

	for _, r := range intent {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "prompt contains invalid control characters")
		}
	}

	return nil
}

// ValidateRecordID validates a history record identifier.
// Identifiers are UUIDs; anything else is rejected before touching storage.
func ValidateRecordID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "record id cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return New(ErrCodeInvalidInput, "invalid record id: %q", id)
	}
	return nil
}
