package planparse

import (
	"regexp"
	"strings"

	"github.com/ashureev/lanne/internal/domain"
)

func boolFieldPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)"?` + name + `"?\s*:\s*"?(true|false|verdadeiro|falso)"?`)
}

var (
	reUseAction     = boolFieldPattern("useAction")
	reUseKnowledge  = boolFieldPattern("useKnowledge")
	reUseWeb        = boolFieldPattern("useWeb")
	reSufficient    = boolFieldPattern("sufficient")
	reNeedKnowledge = boolFieldPattern("needKnowledge")
	reNeedWeb       = boolFieldPattern("needWeb")

	reIntent         = regexp.MustCompile(`(?i)"?intent"?\s*:\s*"?([A-Za-zÀ-ÿ]+)`)
	reResponseStyle  = regexp.MustCompile(`(?i)"?responseStyle"?\s*:\s*"?([A-Za-zÀ-ÿ]+)`)
	reReasoning      = regexp.MustCompile(`(?is)"?reasoning"?\s*:\s*"((?:[^"\\]|\\.)*)`)
	reActionCommands = regexp.MustCompile(`(?is)"?actionCommands"?\s*:\s*\[([^\]]*)`)
	reQuotedName     = regexp.MustCompile(`"([A-Za-z0-9_]+)"`)
)

// ExtractFields recovers each field independently with a regular expression.
// It is the last resort for text that cannot be parsed as JSON.
func ExtractFields(s string) Fields {
	var f Fields

	f.UseAction = matchBool(reUseAction, s)
	f.UseKnowledge = matchBool(reUseKnowledge, s)
	f.UseWeb = matchBool(reUseWeb, s)
	f.Sufficient = matchBool(reSufficient, s)
	f.NeedKnowledge = matchBool(reNeedKnowledge, s)
	f.NeedWeb = matchBool(reNeedWeb, s)

	if m := reIntent.FindStringSubmatch(s); m != nil {
		if intent, ok := domain.ParseIntent(CanonicalEnum(m[1])); ok {
			f.Intent = &intent
		}
	}
	if m := reResponseStyle.FindStringSubmatch(s); m != nil {
		if style, ok := domain.ParseResponseStyle(CanonicalEnum(m[1])); ok {
			f.ResponseStyle = &style
		}
	}
	if m := reReasoning.FindStringSubmatch(s); m != nil {
		r := strings.ReplaceAll(m[1], `\"`, `"`)
		f.Reasoning = &r
	}
	if m := reActionCommands.FindStringSubmatch(s); m != nil {
		f.ActionCommands = []string{}
		for _, name := range reQuotedName.FindAllStringSubmatch(m[1], -1) {
			f.ActionCommands = append(f.ActionCommands, name[1])
		}
	}
	return f
}

func matchBool(re *regexp.Regexp, s string) *bool {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return parseBool(m[1])
}
