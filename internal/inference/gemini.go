package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/lanne/internal/shared"
	"google.golang.org/genai"
)

const (
	geminiBackendName  = "gemini"
	defaultGeminiModel = "gemini-2.0-flash"
)

var errEmptyCandidate = errors.New("no text in response")

// GeminiConfig configures GeminiBackend.
type GeminiConfig struct {
	APIKey          string
	Model           string
	GenerateTimeout time.Duration
	ClassifyTimeout time.Duration
}

// GeminiBackend serves generation through the Gemini API.
type GeminiBackend struct {
	client          *genai.Client
	model           string
	generateTimeout time.Duration
	classifyTimeout time.Duration
}

var _ Backend = (*GeminiBackend)(nil)

// NewGeminiBackend creates a Gemini client.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 60 * time.Second
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = 15 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiBackend{
		client:          client,
		model:           cfg.Model,
		generateTimeout: cfg.GenerateTimeout,
		classifyTimeout: cfg.ClassifyTimeout,
	}, nil
}

// Generate produces an answer.
func (g *GeminiBackend) Generate(ctx context.Context, req Request) (Result, error) {
	return g.call(ctx, "generate", g.generateTimeout, req)
}

// Classify produces a short decision.
func (g *GeminiBackend) Classify(ctx context.Context, req Request) (Result, error) {
	return g.call(ctx, "classify", g.classifyTimeout, req)
}

func (g *GeminiBackend) call(ctx context.Context, op string, timeout time.Duration, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), generateConfig(req))
	if err != nil {
		return Result{}, shared.NewBackendError(geminiBackendName, op, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Result{}, shared.NewBackendError(geminiBackendName, op, errEmptyCandidate)
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return Result{Text: text, TokensGenerated: tokens, Latency: time.Since(start)}, nil
}

func generateConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(min(req.MaxTokens, 1<<20))
	}
	return cfg
}
