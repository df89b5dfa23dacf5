// Package inference provides clients for the text-generation backend.
package inference

import (
	"context"
	"time"
)

// Request is one generation call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Result is the backend reply.
type Result struct {
	Text            string
	TokensGenerated int
	Latency         time.Duration
}

// Backend generates text. Classify is the low-latency variant used for short,
// low-temperature decisions.
type Backend interface {
	Generate(ctx context.Context, req Request) (Result, error)
	Classify(ctx context.Context, req Request) (Result, error)
}
