// Package knowledge is the client for the similarity-search backend.
package knowledge

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/lanne/internal/shared"
)

const (
	backendName    = "knowledge"
	defaultTimeout = 10 * time.Second
)

// Document is one ranked snippet.
type Document struct {
	Text            string         `json:"text"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	SimilarityScore float64        `json:"similarity_score"`
}

// SearchResult is the backend reply. MaxSimilarity is reported even when no
// document passes the threshold.
type SearchResult struct {
	Documents     []Document `json:"documents"`
	MaxSimilarity float64    `json:"max_similarity"`
}

// Searcher queries the knowledge index.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, threshold float64) (SearchResult, error)
}

// Client calls POST /internal/search.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

var _ Searcher = (*Client)(nil)

// NewClient creates a knowledge client. A nil client uses http.DefaultClient.
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
	Query     string  `json:"query"`
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
}

// Search runs one similarity query under the client timeout.
func (c *Client) Search(ctx context.Context, query string, topK int, threshold float64) (SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out SearchResult
	err := shared.PostJSON(ctx, c.client, c.baseURL+"/internal/search", nil,
		searchRequest{Query: query, TopK: topK, Threshold: threshold}, &out, backendName, "search")
	return out, err
}
