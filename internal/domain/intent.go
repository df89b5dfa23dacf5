// Package domain contains the core types shared across the orchestration pipeline.
package domain

import (
	"fmt"
	"strings"
)

// Intent is the coarse category assigned to a query.
type Intent int

// Intent values. The zero value is not a valid intent.
const (
	IntentGreeting Intent = iota + 1
	IntentCasual
	IntentTechnical
)

// Intents lists every valid intent in declaration order.
var Intents = []Intent{IntentGreeting, IntentCasual, IntentTechnical}

// String returns the wire name of the intent.
func (i Intent) String() string {
	switch i {
	case IntentGreeting:
		return "GREETING"
	case IntentCasual:
		return "CASUAL"
	case IntentTechnical:
		return "TECHNICAL"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether i is one of the declared intents.
func (i Intent) Valid() bool {
	return i >= IntentGreeting && i <= IntentTechnical
}

// ParseIntent converts a wire name (case-insensitive) into an Intent.
func ParseIntent(s string) (Intent, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GREETING":
		return IntentGreeting, true
	case "CASUAL":
		return IntentCasual, true
	case "TECHNICAL":
		return IntentTechnical, true
	default:
		return 0, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (i Intent) MarshalText() ([]byte, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("invalid intent %d", int(i))
	}
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Intent) UnmarshalText(b []byte) error {
	v, ok := ParseIntent(string(b))
	if !ok {
		return fmt.Errorf("unknown intent %q", string(b))
	}
	*i = v
	return nil
}

// IntentClassification is the classifier verdict for one query.
type IntentClassification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// ResponseStyle selects the answer template used by the response generator.
type ResponseStyle int

// ResponseStyle values. The zero value is not a valid style.
const (
	StyleChat ResponseStyle = iota + 1
	StyleAnalyze
	StyleTutorial
)

// String returns the wire name of the style.
func (s ResponseStyle) String() string {
	switch s {
	case StyleChat:
		return "CHAT"
	case StyleAnalyze:
		return "ANALYZE"
	case StyleTutorial:
		return "TUTORIAL"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is one of the declared styles.
func (s ResponseStyle) Valid() bool {
	return s >= StyleChat && s <= StyleTutorial
}

// ParseResponseStyle converts a wire name (case-insensitive) into a ResponseStyle.
func ParseResponseStyle(v string) (ResponseStyle, bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "CHAT":
		return StyleChat, true
	case "ANALYZE":
		return StyleAnalyze, true
	case "TUTORIAL":
		return StyleTutorial, true
	default:
		return 0, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ResponseStyle) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid response style %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ResponseStyle) UnmarshalText(b []byte) error {
	v, ok := ParseResponseStyle(string(b))
	if !ok {
		return fmt.Errorf("unknown response style %q", string(b))
	}
	*s = v
	return nil
}
