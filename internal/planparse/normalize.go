package planparse

import (
	"regexp"
	"strings"

	"github.com/ashureev/lanne/internal/shared"
)

// confusables maps lookalike runes from other scripts to their Latin form.
var confusables = map[rune]rune{
	// Cyrillic
	'а': 'a', 'е': 'e', 'о': 'o', 'р': 'p', 'с': 'c', 'у': 'y', 'х': 'x',
	'і': 'i', 'ј': 'j', 'ѕ': 's', 'ԁ': 'd', 'һ': 'h', 'ԛ': 'q', 'ԝ': 'w',
	'А': 'A', 'В': 'B', 'Е': 'E', 'К': 'K', 'М': 'M', 'Н': 'H', 'О': 'O',
	'Р': 'P', 'С': 'C', 'Т': 'T', 'У': 'Y', 'Х': 'X', 'І': 'I', 'Ј': 'J', 'Ѕ': 'S',
	// Greek
	'ο': 'o', 'ν': 'v', 'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Ζ': 'Z', 'Η': 'H',
	'Ι': 'I', 'Κ': 'K', 'Μ': 'M', 'Ν': 'N', 'Ο': 'O', 'Ρ': 'P', 'Τ': 'T',
	'Υ': 'Y', 'Χ': 'X',
	// Typographic and fullwidth punctuation
	'“': '"', '”': '"', '„': '"', '＂': '"', '｛': '{', '｝': '}',
	'［': '[', '］': ']', '：': ':', '，': ',',
}

// NormalizeConfusables replaces lookalike characters with their Latin equivalents.
func NormalizeConfusables(s string) string {
	return strings.Map(func(r rune) rune {
		if latin, ok := confusables[r]; ok {
			return latin
		}
		return r
	}, s)
}

type fieldKey int

const (
	keyUnknown fieldKey = iota
	keyIntent
	keyUseAction
	keyActionCommands
	keyUseKnowledge
	keyUseWeb
	keyResponseStyle
	keyReasoning
	keySufficient
	keyNeedKnowledge
	keyNeedWeb
)

var keyNames = map[fieldKey]string{
	keyIntent:         "intent",
	keyUseAction:      "useAction",
	keyActionCommands: "actionCommands",
	keyUseKnowledge:   "useKnowledge",
	keyUseWeb:         "useWeb",
	keyResponseStyle:  "responseStyle",
	keyReasoning:      "reasoning",
	keySufficient:     "sufficient",
	keyNeedKnowledge:  "needKnowledge",
	keyNeedWeb:        "needWeb",
}

// keyAliases is indexed by the lowercased key with '_' and '-' removed.
var keyAliases = map[string]fieldKey{
	"intent":         keyIntent,
	"useaction":      keyUseAction,
	"useagent":       keyUseAction,
	"actioncommands": keyActionCommands,
	"agentcommands":  keyActionCommands,
	"commands":       keyActionCommands,
	"useknowledge":   keyUseKnowledge,
	"userag":         keyUseKnowledge,
	"useweb":         keyUseWeb,
	"responsestyle":  keyResponseStyle,
	"style":          keyResponseStyle,
	"reasoning":      keyReasoning,
	"reason":         keyReasoning,
	"sufficient":     keySufficient,
	"needknowledge":  keyNeedKnowledge,
	"needrag":        keyNeedKnowledge,
	"needweb":        keyNeedWeb,
}

func canonicalKey(k string) fieldKey {
	k = strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(k)))
	return keyAliases[k]
}

// enumSynonyms maps localized or misspelled enum values to their wire names.
// Keys are uppercase and accent-folded.
var enumSynonyms = map[string]string{
	"TECNICO":     "TECHNICAL",
	"TECHNICO":    "TECHNICAL",
	"TECNICA":     "TECHNICAL",
	"TECNICAL":    "TECHNICAL",
	"SAUDACAO":    "GREETING",
	"CUMPRIMENTO": "GREETING",
	"CONVERSA":    "CHAT",
	"CONVERSACAO": "CHAT",
	"ANALISE":     "ANALYZE",
	"ANALISAR":    "ANALYZE",
	"ANALISA":     "ANALYZE",
	"ANALYSE":     "ANALYZE",
	"ANALYSIS":    "ANALYZE",
	"TUTORIAIS":   "TUTORIAL",
}

// CanonicalEnum maps a localized enum spelling to its wire name. Unknown
// values are returned uppercased.
func CanonicalEnum(s string) string {
	v := strings.ToUpper(shared.FoldAccents(strings.TrimSpace(s)))
	if canon, ok := enumSynonyms[v]; ok {
		return canon
	}
	return v
}

var (
	// "useKnowledge true":"true" -> "useKnowledge":true
	reKeyWithValue = regexp.MustCompile(`(?i)"(\w+)\s+(true|false)"\s*:\s*"?(?:true|false)"?`)
	// "(useAction)": or (useAction): -> "useAction":
	reParenKey = regexp.MustCompile(`([{,]\s*)"?\(\s*"?(\w+)"?\s*\)"?\s*:`)
	// Keys and values are only rewritten in key position: after an object
	// opener, a separator or the end of a previous value.
	reQuotedKey  = regexp.MustCompile(`((?:^|[{,\]}"]|true|false|null|\d)\s*)"([A-Za-z_][\w\- ]*)"\s*:`)
	reQuotedBool = regexp.MustCompile(`(?i)("\s*:\s*)"\s*(true|false|verdadeiro|falso)\s*"`)
	reBareBool   = regexp.MustCompile(`(?i)("\s*:\s*)(true|false)\b`)
	reEnumValue  = regexp.MustCompile(`"(intent|responseStyle)"\s*:\s*"([^"\\]{2,24})"`)
)

// NormalizeMalformations fixes the structural mistakes models make when
// emitting small JSON objects: escaped quotes around the whole object, keys
// carrying their value, parenthesised keys, alias key names, quoted or
// wrongly cased booleans and localized enum values.
func NormalizeMalformations(s string) string {
	if strings.Contains(s, `{\"`) || strings.Contains(s, `\":`) {
		s = strings.ReplaceAll(s, `\"`, `"`)
	}

	s = reKeyWithValue.ReplaceAllStringFunc(s, func(m string) string {
		sub := reKeyWithValue.FindStringSubmatch(m)
		return `"` + sub[1] + `":` + strings.ToLower(sub[2])
	})
	s = reParenKey.ReplaceAllString(s, `$1"$2":`)

	s = reQuotedKey.ReplaceAllStringFunc(s, func(m string) string {
		sub := reQuotedKey.FindStringSubmatch(m)
		if name, ok := keyNames[canonicalKey(sub[2])]; ok {
			return sub[1] + `"` + name + `":`
		}
		return m
	})

	s = reQuotedBool.ReplaceAllStringFunc(s, func(m string) string {
		sub := reQuotedBool.FindStringSubmatch(m)
		return sub[1] + boolLiteral(sub[2])
	})
	s = reBareBool.ReplaceAllStringFunc(s, func(m string) string {
		sub := reBareBool.FindStringSubmatch(m)
		return sub[1] + strings.ToLower(sub[2])
	})

	s = reEnumValue.ReplaceAllStringFunc(s, func(m string) string {
		sub := reEnumValue.FindStringSubmatch(m)
		if canon, ok := enumSynonyms[strings.ToUpper(shared.FoldAccents(sub[2]))]; ok {
			return `"` + sub[1] + `":"` + canon + `"`
		}
		return m
	})
	return s
}

func boolLiteral(s string) string {
	if b := parseBool(s); b != nil && *b {
		return "true"
	}
	return "false"
}
