package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/lanne/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBackendRoutesCalls(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		gotPaths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPaths = append(gotPaths, r.URL.Path)
		mu.Unlock()
		var req llmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		assert.Equal(t, "ola", req.Prompt)
		assert.Equal(t, 10, req.MaxTokens)
		assert.InDelta(t, 0.1, req.Temperature, 1e-9)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(llmResponse{GeneratedText: "  GREETING \n", TokensGenerated: 1, InferenceTimeMs: 12})
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL + "/"}, srv.Client())
	req := Request{Prompt: "ola", MaxTokens: 10, Temperature: 0.1}

	res, err := b.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "GREETING", res.Text)
	assert.Equal(t, 12*time.Millisecond, res.Latency)

	_, err = b.Generate(context.Background(), req)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/internal/classify", "/internal/generate"}, gotPaths)
}

func TestHTTPBackendTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	b := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL, ClassifyTimeout: 20 * time.Millisecond}, srv.Client())
	_, err := b.Classify(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, shared.IsTimeout(err))

	var be *shared.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "inference", be.Backend)
}

func TestGenerateConfig(t *testing.T) {
	t.Parallel()

	cfg := generateConfig(Request{MaxTokens: 600, Temperature: 0.3, TopP: 0.9})
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.3, *cfg.Temperature, 1e-6)
	require.NotNil(t, cfg.TopP)
	assert.Equal(t, int32(600), cfg.MaxOutputTokens)

	bare := generateConfig(Request{})
	assert.Nil(t, bare.TopP)
	assert.Zero(t, bare.MaxOutputTokens)
}

func TestNewGeminiBackendRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewGeminiBackend(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}
