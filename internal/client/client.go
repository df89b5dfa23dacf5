// Package client talks to a running Lanne orchestrator over HTTP.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/identity"
	"github.com/ashureev/lanne/internal/shared"
)

const (
	backendName = "lanne"
	// Longest NDJSON line accepted; final responses carry the whole answer.
	maxLineSize = 1 << 20
)

// ErrStreamTruncated is returned when the stream ends without a terminal event.
var ErrStreamTruncated = errors.New("stream ended without a final event")

// Client is an orchestrator API client.
type Client struct {
	baseURL   string
	http      *http.Client
	userID    string
	sessionID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithIdentity sends the given ids in the identity headers.
func WithIdentity(userID, sessionID string) Option {
	return func(c *Client) {
		c.userID = userID
		c.sessionID = sessionID
	}
}

// New creates a client for the orchestrator at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServiceInfo mirrors GET /.
type ServiceInfo struct {
	Service     string `json:"service"`
	Status      string `json:"status"`
	Version     string `json:"version"`
	ActionAgent string `json:"actionAgent"`
	Inference   string `json:"inference"`
}

// PlanResult mirrors GET /debug/plan.
type PlanResult struct {
	Query          string                      `json:"query"`
	Classification domain.IntentClassification `json:"classification"`
	Plan           domain.ExecutionPlan        `json:"plan"`
}

// ExchangeRecord mirrors one entry of GET /api/exchanges.
type ExchangeRecord struct {
	ID                  string               `json:"id"`
	RequestID           string               `json:"requestId"`
	SessionID           string               `json:"sessionId,omitempty"`
	Query               string               `json:"query"`
	Intent              domain.Intent        `json:"intent"`
	Confidence          float64              `json:"confidence"`
	Plan                domain.ExecutionPlan `json:"plan"`
	Sources             []string             `json:"sources"`
	Response            string               `json:"response"`
	KnowledgeSimilarity float64              `json:"knowledgeSimilarity"`
	LatencyMs           int64                `json:"latencyMs"`
	CreatedAt           time.Time            `json:"createdAt"`
}

// Stream posts text to the streaming endpoint and yields events as they
// arrive. A transport or decoding failure is yielded once as the error and
// ends the sequence.
func (c *Client) Stream(ctx context.Context, text string) iter.Seq2[domain.StreamEvent, error] {
	return func(yield func(domain.StreamEvent, error) bool) {
		resp, err := c.do(ctx, http.MethodPost, "/internal/orchestrate", c.query(text))
		if err != nil {
			yield(domain.StreamEvent{}, err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var ev domain.StreamEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				yield(domain.StreamEvent{}, shared.NewBackendError(backendName, "stream", fmt.Errorf("decode event: %w", err)))
				return
			}
			if !yield(ev, nil) || ev.IsTerminal() {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(domain.StreamEvent{}, shared.NewBackendError(backendName, "stream", err))
			return
		}
		yield(domain.StreamEvent{}, ErrStreamTruncated)
	}
}

// Ask runs text through the synchronous endpoint.
func (c *Client) Ask(ctx context.Context, text string) (domain.Response, error) {
	var out domain.Response
	err := c.doJSON(ctx, http.MethodPost, "/internal/orchestrate-sync", c.query(text), &out)
	return out, err
}

// Plan returns the classification and plan for text without executing it.
func (c *Client) Plan(ctx context.Context, text string) (PlanResult, error) {
	var out PlanResult
	err := c.doJSON(ctx, http.MethodGet, "/debug/plan?query="+url.QueryEscape(text), nil, &out)
	return out, err
}

// History lists recent exchanges; limit 0 uses the server default.
func (c *Client) History(ctx context.Context, limit int) ([]ExchangeRecord, error) {
	path := "/api/exchanges"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Exchanges []ExchangeRecord `json:"exchanges"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Exchanges, nil
}

// Info returns the service description.
func (c *Client) Info(ctx context.Context) (ServiceInfo, error) {
	var out ServiceInfo
	err := c.doJSON(ctx, http.MethodGet, "/", nil, &out)
	return out, err
}

func (c *Client) query(text string) domain.Query {
	return domain.Query{Text: text, UserID: c.userID, SessionID: c.sessionID}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return shared.NewBackendError(backendName, path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// do sends the request and returns a 2xx response; other statuses become a
// BackendError carrying the server's error message.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(identity.UserHeaderName, c.userID)
	}
	if c.sessionID != "" {
		req.Header.Set(identity.SessionHeaderName, c.sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, shared.NewBackendError(backendName, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}
	defer resp.Body.Close()

	var apiErr struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(resp.StatusCode)
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return nil, &shared.BackendError{
		Backend:    backendName,
		Op:         path,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("%w: %s", shared.ErrBackendStatus, msg),
	}
}
