package actionagent

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/lanne/internal/shared"
)

const defaultTimeout = 20 * time.Second

// HTTPConfig configures a remote agent.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// HTTPAgent calls a remote agent over its /execute endpoint.
type HTTPAgent struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
}

var _ Agent = (*HTTPAgent)(nil)

// NewHTTPAgent creates an HTTP agent client. A nil client uses http.DefaultClient.
func NewHTTPAgent(cfg HTTPConfig, client *http.Client) *HTTPAgent {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPAgent{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		client:  client,
	}
}

type executeRequest struct {
	Command string            `json:"command"`
	Params  map[string]string `json:"params"`
}

// executeReply accepts both the camelCase and the snake_case exit code.
type executeReply struct {
	Result
	LegacyExitCode *int `json:"exit_code"`
}

// Execute runs command under the agent timeout.
func (a *HTTPAgent) Execute(ctx context.Context, command string, params map[string]string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if params == nil {
		params = map[string]string{}
	}
	var headers map[string]string
	if a.token != "" {
		headers = map[string]string{"Authorization": "Bearer " + a.token}
	}

	var reply executeReply
	err := shared.PostJSON(ctx, a.client, a.baseURL+"/execute", headers,
		executeRequest{Command: command, Params: params}, &reply, backendName, command)
	if err != nil {
		return Result{}, err
	}
	if reply.LegacyExitCode != nil && reply.ExitCode == 0 {
		reply.ExitCode = *reply.LegacyExitCode
	}
	return reply.Result, nil
}
