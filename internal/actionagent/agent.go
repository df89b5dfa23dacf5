// Package actionagent runs catalog commands on the inspected system.
package actionagent

import (
	"context"
	"errors"
)

// backendName tags every failure reported by this package.
const backendName = "action-agent"

var (
	// ErrCommandNotAllowed is returned for names outside the agent whitelist.
	ErrCommandNotAllowed = errors.New("command not allowed")
	// ErrDisabled is returned by the disabled agent.
	ErrDisabled = errors.New("action agent disabled")
)

// Result is the captured output of one command.
type Result struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Output returns stdout, or stderr when stdout is empty.
func (r Result) Output() string {
	if r.Stdout != "" {
		return r.Stdout
	}
	return r.Stderr
}

// Agent executes one whitelisted command by name.
type Agent interface {
	Execute(ctx context.Context, command string, params map[string]string) (Result, error)
}

// Disabled is an Agent that refuses every command.
type Disabled struct{}

var _ Agent = Disabled{}

func (Disabled) Execute(context.Context, string, map[string]string) (Result, error) {
	return Result{}, ErrDisabled
}
