package domain

import "slices"

// Source labels recorded in ExecutionContext.Sources.
const (
	SourceAction    = "system-action"
	SourceKnowledge = "knowledge-base"
	SourceWeb       = "web-search"
)

// ExecutionContext is the data collected for one request.
// Values are passed by copy; use the With* helpers so Sources is never shared.
type ExecutionContext struct {
	ActionData          string
	KnowledgeData       string
	KnowledgeSimilarity float64
	WebData             string
	Sources             []string
}

// HasData reports whether any source contributed text.
func (c ExecutionContext) HasData() bool {
	return c.ActionData != "" || c.KnowledgeData != "" || c.WebData != ""
}

// OnlyActionData reports whether system-action output is the only data collected.
func (c ExecutionContext) OnlyActionData() bool {
	return c.ActionData != "" && c.KnowledgeData == "" && c.WebData == ""
}

// WithAction returns a copy carrying action output.
func (c ExecutionContext) WithAction(data string) ExecutionContext {
	c.ActionData = data
	return c.withSource(SourceAction)
}

// WithKnowledge returns a copy carrying knowledge-base text.
func (c ExecutionContext) WithKnowledge(data string) ExecutionContext {
	c.KnowledgeData = data
	return c.withSource(SourceKnowledge)
}

// WithWeb returns a copy carrying web search text.
func (c ExecutionContext) WithWeb(data string) ExecutionContext {
	c.WebData = data
	return c.withSource(SourceWeb)
}

func (c ExecutionContext) withSource(label string) ExecutionContext {
	if slices.Contains(c.Sources, label) {
		c.Sources = slices.Clone(c.Sources)
		return c
	}
	c.Sources = append(slices.Clone(c.Sources), label)
	return c
}
