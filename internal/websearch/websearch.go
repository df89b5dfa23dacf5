// Package websearch is the client for the web-search backend.
package websearch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/lanne/internal/shared"
)

const (
	backendName    = "web-search"
	defaultTimeout = 15 * time.Second
)

// Result is one search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// Searcher queries the web.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Client calls POST /internal/web_search.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

var _ Searcher = (*Client)(nil)

// NewClient creates a web-search client. A nil client uses http.DefaultClient.
func NewClient(baseURL string, timeout time.Duration, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout, client: client}
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchReply struct {
	Results []Result `json:"results"`
}

// Search runs one query under the client timeout.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out searchReply
	if err := shared.PostJSON(ctx, c.client, c.baseURL+"/internal/web_search", nil,
		searchRequest{Query: query, MaxResults: maxResults}, &out, backendName, "search"); err != nil {
		return nil, err
	}
	return out.Results, nil
}
