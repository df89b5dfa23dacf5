package domain

import "time"

// Response is the final answer delivered to the caller.
type Response struct {
	Response string           `json:"response"`
	Intent   Intent           `json:"intent"`
	Sources  []string         `json:"sources"`
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata describes how the answer was produced.
type ResponseMetadata struct {
	Plan                ExecutionPlan `json:"plan"`
	Confidence          float64       `json:"confidence"`
	KnowledgeSimilarity float64       `json:"knowledgeSimilarity"`
	UsedAction          bool          `json:"usedAction"`
	UsedKnowledge       bool          `json:"usedKnowledge"`
	UsedWeb             bool          `json:"usedWeb"`
	RequestID           string        `json:"requestId,omitempty"`
	LatencyMs           int64         `json:"latencyMs"`
}

// Exchange is the persisted record of one completed request.
type Exchange struct {
	ID                  string
	RequestID           string
	UserID              string
	SessionID           string
	Query               string
	Intent              Intent
	Confidence          float64
	Plan                ExecutionPlan
	Sources             []string
	Response            string
	KnowledgeSimilarity float64
	Latency             time.Duration
	CreatedAt           time.Time
}
