// Package planparse recovers structured decisions from unreliable model output.
//
// Repair runs an ordered sequence of pure string steps:
//
//	NormalizeConfusables -> TrimToObject -> NormalizeMalformations ->
//	Decode -> BalanceClosers + Decode -> ExtractFields
//
// Every step is deterministic and independent of the network, so the same raw
// text always yields the same Fields.
package planparse

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/ashureev/lanne/internal/domain"
)

var errNotObject = errors.New("no JSON object found")

// Fields holds every value recovered from model output. A nil field was not found.
type Fields struct {
	Intent         *domain.Intent
	UseAction      *bool
	ActionCommands []string
	UseKnowledge   *bool
	UseWeb         *bool
	ResponseStyle  *domain.ResponseStyle
	Reasoning      *string

	Sufficient    *bool
	NeedKnowledge *bool
	NeedWeb       *bool
}

// Empty reports whether no field was recovered.
func (f Fields) Empty() bool {
	return f.Intent == nil && f.UseAction == nil && f.ActionCommands == nil &&
		f.UseKnowledge == nil && f.UseWeb == nil && f.ResponseStyle == nil &&
		f.Reasoning == nil && f.Sufficient == nil && f.NeedKnowledge == nil && f.NeedWeb == nil
}

// Repair runs the full pipeline over raw model output.
func Repair(raw string) Fields {
	s := NormalizeConfusables(raw)
	s = TrimToObject(s)
	s = NormalizeMalformations(s)

	if obj, err := Decode(s); err == nil {
		return fieldsFromObject(obj)
	}
	if obj, err := Decode(BalanceClosers(s)); err == nil {
		return fieldsFromObject(obj)
	}
	return ExtractFields(s)
}

// TrimToObject drops text before the first '{' and after the last '}'.
func TrimToObject(s string) string {
	if i := strings.IndexByte(s, '{'); i > 0 {
		s = s[i:]
	}
	if j := strings.LastIndexByte(s, '}'); j != -1 {
		s = s[:j+1]
	}
	return strings.TrimSpace(s)
}

// Decode strictly parses the first JSON object in s. Trailing text after the
// object is ignored.
func Decode(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, errNotObject
	}
	var obj map[string]any
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// BalanceClosers appends the closers a truncated JSON text is missing.
// It closes an open string, drops a dangling ',' and completes a dangling ':'
// with null before closing brackets and braces in nesting order.
func BalanceClosers(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		if escaped {
			b.WriteByte('\\')
		}
		b.WriteByte('"')
	}
	out := strings.TrimRight(b.String(), " \t\r\n")
	switch {
	case strings.HasSuffix(out, ","):
		out = strings.TrimRight(strings.TrimSuffix(out, ","), " \t\r\n")
	case strings.HasSuffix(out, ":"):
		out += "null"
	}
	b.Reset()
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

func fieldsFromObject(obj map[string]any) Fields {
	var f Fields
	for rawKey, v := range obj {
		switch canonicalKey(rawKey) {
		case keyIntent:
			if s, ok := v.(string); ok {
				if intent, ok := domain.ParseIntent(CanonicalEnum(s)); ok {
					f.Intent = &intent
				}
			}
		case keyUseAction:
			f.UseAction = boolValue(v)
		case keyActionCommands:
			f.ActionCommands = stringList(v)
		case keyUseKnowledge:
			f.UseKnowledge = boolValue(v)
		case keyUseWeb:
			f.UseWeb = boolValue(v)
		case keyResponseStyle:
			if s, ok := v.(string); ok {
				if style, ok := domain.ParseResponseStyle(CanonicalEnum(s)); ok {
					f.ResponseStyle = &style
				}
			}
		case keyReasoning:
			if s, ok := v.(string); ok {
				f.Reasoning = &s
			}
		case keySufficient:
			f.Sufficient = boolValue(v)
		case keyNeedKnowledge:
			f.NeedKnowledge = boolValue(v)
		case keyNeedWeb:
			f.NeedWeb = boolValue(v)
		}
	}
	return f
}

func boolValue(v any) *bool {
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		return parseBool(t)
	default:
		return nil
	}
}

func parseBool(s string) *bool {
	var b bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "verdadeiro", "sim":
		b = true
	case "false", "falso", "nao", "não":
		b = false
	default:
		return nil
	}
	return &b
}

func stringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	default:
		return nil
	}
	return out
}
