package domain

// MaxActionCommands caps the number of catalog commands a plan may request.
const MaxActionCommands = 3

// ExecutionPlan is the planner's decision of which resources to consult.
type ExecutionPlan struct {
	Intent         Intent        `json:"intent"`
	UseAction      bool          `json:"useAction"`
	ActionCommands []string      `json:"actionCommands"`
	UseKnowledge   bool          `json:"useKnowledge"`
	UseWeb         bool          `json:"useWeb"`
	ResponseStyle  ResponseStyle `json:"responseStyle"`
	Reasoning      string        `json:"reasoning,omitempty"`
}

// UsesResources reports whether at least one resource flag is set.
func (p ExecutionPlan) UsesResources() bool {
	return p.UseAction || p.UseKnowledge || p.UseWeb
}

// TrivialPlan is the plan synthesized for queries that skip the planner.
func TrivialPlan(intent Intent) ExecutionPlan {
	return ExecutionPlan{
		Intent:         intent,
		ActionCommands: []string{},
		ResponseStyle:  StyleChat,
	}
}

// FallbackPlan is substituted whenever a technical plan cannot be recovered.
func FallbackPlan() ExecutionPlan {
	return ExecutionPlan{
		Intent:         IntentTechnical,
		ActionCommands: []string{},
		UseKnowledge:   true,
		ResponseStyle:  StyleTutorial,
		Reasoning:      "fallback: default knowledge",
	}
}
