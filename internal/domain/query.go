package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the maximum query length in characters.
const MaxQueryLength = 2000

var (
	// ErrEmptyQuery is returned for blank query text.
	ErrEmptyQuery = errors.New("query text is required")
	// ErrQueryTooLong is returned when the text exceeds MaxQueryLength.
	ErrQueryTooLong = errors.New("query text exceeds 2000 characters")
)

// Query is the immutable input of one pipeline run.
type Query struct {
	Text      string `json:"text"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Validate checks the text length bounds.
func (q Query) Validate() error {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return ErrEmptyQuery
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return ErrQueryTooLong
	}
	return nil
}
