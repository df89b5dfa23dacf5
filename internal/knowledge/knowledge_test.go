package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/lanne/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSearch(t *testing.T) {
	t.Parallel()

	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/search", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"documents":[{"text":"Use apt install","metadata":{"source":"debian"},"similarity_score":0.8}],"max_similarity":0.8}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, 0, srv.Client()).Search(context.Background(), "como instalar", 3, 0)
	require.NoError(t, err)

	assert.Equal(t, searchRequest{Query: "como instalar", TopK: 3, Threshold: 0}, got)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "Use apt install", res.Documents[0].Text)
	assert.Equal(t, "debian", res.Documents[0].Metadata["source"])
	assert.InDelta(t, 0.8, res.MaxSimilarity, 1e-9)
}

func TestClientSearchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0, srv.Client()).Search(context.Background(), "q", 3, 0)
	var be *shared.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "knowledge", be.Backend)
	assert.Equal(t, http.StatusServiceUnavailable, be.StatusCode)
}
