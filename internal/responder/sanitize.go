package responder

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reChatMLBlock   = regexp.MustCompile(`(?s)<\|im_start\|>.*?<\|im_end\|>`)
	reInstBlock     = regexp.MustCompile(`(?s)\[INST\].*?\[/INST\]`)
	reControlTokens = regexp.MustCompile(`<\|im_start\|>|<\|im_end\|>|<\|endoftext\|>|\[/?INST\]`)
	// Three or more numbers separated only by commas or blanks.
	reNumericRun = regexp.MustCompile(`\b\d+(?:(?:[ \t]*,[ \t]*|[ \t]+)\d+\b){2,}`)
	reDigits     = regexp.MustCompile(`\d+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
	reSpaceRuns  = regexp.MustCompile(` {2,}`)
)

// minDedupLine is the shortest normalized line subject to deduplication.
const minDedupLine = 15

// Sanitize cleans generated text. Passes repeat until nothing changes, so
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	for {
		next := sanitizePass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func sanitizePass(text string) string {
	text = strings.Map(dropPictograph, text)
	text = reChatMLBlock.ReplaceAllString(text, "")
	text = reInstBlock.ReplaceAllString(text, "")
	text = reControlTokens.ReplaceAllString(text, "")
	text = reNumericRun.ReplaceAllString(text, "")
	text = dedupLines(text)
	text = reSpaceRuns.ReplaceAllString(text, " ")
	text = trimLineEnds(text)
	text = reBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func dropPictograph(r rune) rune {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF,
		r >= 0x2600 && r <= 0x27BF,
		r >= 0x2B00 && r <= 0x2BFF,
		r == 0x24C2, r == 0xFE0F, r == 0x200D:
		return -1
	}
	return r
}

// dedupLines drops a line whose digit-normalized form repeats the previous
// kept non-blank line.
func dedupLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	prev := ""
	for _, line := range lines {
		key := dedupKey(line)
		if key == "" {
			out = append(out, line)
			continue
		}
		if key == prev && len(key) >= minDedupLine {
			continue
		}
		prev = key
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func dedupKey(line string) string {
	line = reDigits.ReplaceAllString(line, "N")
	return strings.Join(strings.FieldsFunc(line, unicode.IsSpace), " ")
}

func trimLineEnds(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	return strings.Join(lines, "\n")
}
