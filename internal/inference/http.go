package inference

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/lanne/internal/shared"
)

const backendName = "inference"

// HTTPConfig configures HTTPBackend.
type HTTPConfig struct {
	BaseURL         string
	GenerateTimeout time.Duration
	ClassifyTimeout time.Duration
}

// HTTPBackend talks to the inference service over its internal JSON API.
type HTTPBackend struct {
	baseURL         string
	client          *http.Client
	generateTimeout time.Duration
	classifyTimeout time.Duration
}

var _ Backend = (*HTTPBackend)(nil)

type llmRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type llmResponse struct {
	GeneratedText   string  `json:"generated_text"`
	TokensGenerated int     `json:"tokens_generated"`
	InferenceTimeMs float64 `json:"inference_time_ms"`
}

// NewHTTPBackend creates a client for the inference service.
func NewHTTPBackend(cfg HTTPConfig, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 60 * time.Second
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = 15 * time.Second
	}
	return &HTTPBackend{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		client:          client,
		generateTimeout: cfg.GenerateTimeout,
		classifyTimeout: cfg.ClassifyTimeout,
	}
}

// Generate calls POST /internal/generate.
func (b *HTTPBackend) Generate(ctx context.Context, req Request) (Result, error) {
	return b.call(ctx, "/internal/generate", "generate", b.generateTimeout, req)
}

// Classify calls POST /internal/classify.
func (b *HTTPBackend) Classify(ctx context.Context, req Request) (Result, error) {
	return b.call(ctx, "/internal/classify", "classify", b.classifyTimeout, req)
}

func (b *HTTPBackend) call(ctx context.Context, path, op string, timeout time.Duration, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var resp llmResponse
	err := shared.PostJSON(ctx, b.client, b.baseURL+path, nil, llmRequest{
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}, &resp, backendName, op)
	if err != nil {
		return Result{}, err
	}

	latency := time.Duration(resp.InferenceTimeMs * float64(time.Millisecond))
	if latency <= 0 {
		latency = time.Since(start)
	}
	return Result{
		Text:            strings.TrimSpace(resp.GeneratedText),
		TokensGenerated: resp.TokensGenerated,
		Latency:         latency,
	}, nil
}
