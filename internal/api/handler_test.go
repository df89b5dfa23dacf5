//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/identity"
	"github.com/ashureev/lanne/internal/middleware"
	"github.com/ashureev/lanne/internal/orchestrator"
	"github.com/ashureev/lanne/internal/store"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	mu      sync.Mutex
	queries []domain.Query
	events  []domain.StreamEvent
	err     error
}

func (f *fakePipeline) Stream(_ context.Context, q domain.Query) iter.Seq[domain.StreamEvent] {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	events := f.events
	f.mu.Unlock()
	return func(yield func(domain.StreamEvent) bool) {
		for _, ev := range events {
			if !yield(ev) {
				return
			}
		}
	}
}

func (f *fakePipeline) Process(ctx context.Context, q domain.Query) (domain.Response, error) {
	if f.err != nil {
		f.mu.Lock()
		f.queries = append(f.queries, q)
		f.mu.Unlock()
		return domain.Response{}, f.err
	}
	for ev := range f.Stream(ctx, q) {
		if ev.Type == domain.EventFinalResponse {
			return *ev.Response, nil
		}
	}
	return domain.Response{}, orchestrator.ErrIncomplete
}

func (f *fakePipeline) Plan(_ context.Context, text string) (domain.IntentClassification, domain.ExecutionPlan) {
	f.mu.Lock()
	f.queries = append(f.queries, domain.Query{Text: text})
	f.mu.Unlock()
	return domain.IntentClassification{Intent: domain.IntentTechnical, Confidence: 0.85}, domain.FallbackPlan()
}

func (f *fakePipeline) seen() []domain.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Query(nil), f.queries...)
}

type fakeHistory struct {
	exchanges []domain.Exchange
	filter    store.ExchangeFilter
	listErr   error
	pingErr   error
}

func (f *fakeHistory) ListExchanges(_ context.Context, filter store.ExchangeFilter) ([]domain.Exchange, error) {
	f.filter = filter
	return f.exchanges, f.listErr
}

func (f *fakeHistory) Ping(context.Context) error { return f.pingErr }

func finalResponse() domain.Response {
	return domain.Response{
		Response: "Voce esta usando 2 GB.",
		Intent:   domain.IntentTechnical,
		Sources:  []string{"system-action"},
		Metadata: domain.ResponseMetadata{Plan: domain.FallbackPlan(), Confidence: 0.85},
	}
}

func standardEvents() []domain.StreamEvent {
	return []domain.StreamEvent{
		domain.StatusEvent("Analisando sua pergunta..."),
		domain.PlanEvent(domain.FallbackPlan()),
		domain.FinalEvent(finalResponse()),
	}
}

func newTestRouter(p Pipeline, hist History, limiter *middleware.RateLimiter) http.Handler {
	opts := Options{
		Pipeline:           p,
		Info:               ServiceInfo{Service: "lanne-orchestrator", Version: "test", ActionAgent: "disabled", Inference: "http"},
		MaxRequestBodySize: 4096,
		Limiter:            limiter,
	}
	if hist != nil {
		opts.History = hist
	}
	return NewRouter(NewHandler(opts), []string{"*"})
}

func post(t *testing.T, h http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJSON(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()

	JSON(w, http.StatusCreated, map[string]string{"foo": "bar"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"foo":"bar"}`, w.Body.String())
}

func TestError(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "bad")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"bad"}`, w.Body.String())
}

func TestInfo(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	newTestRouter(&fakePipeline{}, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"service":"lanne-orchestrator","status":"running","version":"test",
		"actionAgent":"disabled","inference":"http"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		history    History
		wantStatus int
		wantDB     string
	}{
		{"no history", nil, http.StatusOK, "disabled"},
		{"database ok", &fakeHistory{}, http.StatusOK, "ok"},
		{"database down", &fakeHistory{pingErr: errors.New("closed")}, http.StatusServiceUnavailable, "unreachable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			newTestRouter(&fakePipeline{}, tc.history, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.wantStatus, rec.Code)
			var body struct {
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.wantDB, body.Checks["database"])
		})
	}
}

func TestOrchestrateStreamsNDJSON(t *testing.T) {
	t.Parallel()
	p := &fakePipeline{events: standardEvents()}

	rec := post(t, newTestRouter(p, nil, nil), "/internal/orchestrate",
		`{"text":"quanto de memoria estou usando?","sessionId":"body-session"}`,
		map[string]string{identity.UserHeaderName: "u-1", identity.SessionHeaderName: "header-session"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ndjsonContentType, rec.Header().Get("Content-Type"))

	var types []domain.EventType
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		var ev domain.StreamEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		types = append(types, ev.Type)
	}
	assert.Equal(t, []domain.EventType{domain.EventStatus, domain.EventPlan, domain.EventFinalResponse}, types)

	seen := p.seen()
	require.Len(t, seen, 1)
	assert.Equal(t, "u-1", seen[0].UserID)
	assert.Equal(t, "body-session", seen[0].SessionID, "body ids win over headers")
}

func TestOrchestrateRejectsInvalidQueries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"blank text", `{"text":"   "}`, http.StatusBadRequest},
		{"too long", fmt.Sprintf(`{"text":%q}`, strings.Repeat("a", domain.MaxQueryLength+1)), http.StatusBadRequest},
		{"malformed json", `{"text":`, http.StatusBadRequest},
		{"body too large", fmt.Sprintf(`{"text":"ok","pad":%q}`, strings.Repeat("x", 5000)), http.StatusRequestEntityTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := &fakePipeline{events: standardEvents()}
			router := newTestRouter(p, nil, nil)
			for _, path := range []string{"/internal/orchestrate", "/internal/orchestrate-sync"} {
				rec := post(t, router, path, tc.body, nil)
				assert.Equal(t, tc.wantStatus, rec.Code, path)
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
			assert.Empty(t, p.seen(), "pipeline must not run")
		})
	}
}

func TestOrchestrateSync(t *testing.T) {
	t.Parallel()

	rec := post(t, newTestRouter(&fakePipeline{events: standardEvents()}, nil, nil),
		"/internal/orchestrate-sync", `{"text":"quanto de memoria estou usando?"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, finalResponse().Response, got.Response)
	assert.Equal(t, domain.IntentTechnical, got.Intent)
	assert.Equal(t, []string{"system-action"}, got.Sources)
}

func TestOrchestrateSyncError(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{err: fmt.Errorf("%w: Erro interno ao processar a pergunta.", orchestrator.ErrPipeline)}
	rec := post(t, newTestRouter(p, nil, nil), "/internal/orchestrate-sync", `{"text":"oi"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Erro interno")
}

func TestDebugPlan(t *testing.T) {
	t.Parallel()
	router := newTestRouter(&fakePipeline{}, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/plan", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/plan?query=como+instalar+docker", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got planView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "como instalar docker", got.Query)
	assert.Equal(t, domain.IntentTechnical, got.Classification.Intent)
	assert.Equal(t, domain.FallbackPlan(), got.Plan)
}

func TestExchanges(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hist := &fakeHistory{exchanges: []domain.Exchange{{
		ID:        "ex-1",
		RequestID: "req-1",
		Query:     "oi",
		Intent:    domain.IntentGreeting,
		Plan:      domain.TrivialPlan(domain.IntentGreeting),
		Response:  "Ola!",
		Latency:   12 * time.Millisecond,
		CreatedAt: created,
	}}}
	router := newTestRouter(&fakePipeline{}, hist, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/exchanges?limit=5&session_id=s-1", nil)
	req.Header.Set(identity.UserHeaderName, "u-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, store.ExchangeFilter{UserID: "u-1", SessionID: "s-1", Limit: 5}, hist.filter)
	var body struct {
		Exchanges []exchangeView `json:"exchanges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Exchanges, 1)
	assert.Equal(t, "ex-1", body.Exchanges[0].ID)
	assert.Equal(t, int64(12), body.Exchanges[0].LatencyMs)
	assert.Equal(t, []string{}, body.Exchanges[0].Sources)
	assert.True(t, created.Equal(body.Exchanges[0].CreatedAt))

	for _, limit := range []string{"0", "101", "abc"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exchanges?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit %s", limit)
	}
}

func TestExchangesUnavailable(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestRouter(&fakePipeline{}, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exchanges", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	newTestRouter(&fakePipeline{}, &fakeHistory{listErr: errors.New("disk")}, nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exchanges", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimitedPipelineRoutes(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := newTestRouter(&fakePipeline{events: standardEvents()}, nil, middleware.NewRateLimiter(ctx, 1, time.Minute))
	headers := map[string]string{identity.UserHeaderName: "u-1"}

	assert.Equal(t, http.StatusOK, post(t, router, "/internal/orchestrate-sync", `{"text":"oi"}`, headers).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(t, router, "/internal/orchestrate-sync", `{"text":"oi"}`, headers).Code)
	assert.Equal(t, http.StatusOK, post(t, router, "/internal/orchestrate-sync", `{"text":"oi"}`,
		map[string]string{identity.UserHeaderName: "u-2"}).Code)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "read-only routes are not throttled")
}

func TestWebSocketOrchestrate(t *testing.T) {
	t.Parallel()
	p := &fakePipeline{events: standardEvents()}
	srv := httptest.NewServer(newTestRouter(p, nil, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set(identity.SessionHeaderName, "ws-session")
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/orchestrate",
		&websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer conn.CloseNow()

	readUntilTerminal := func() []domain.EventType {
		var types []domain.EventType
		for {
			var ev domain.StreamEvent
			require.NoError(t, wsjson.Read(ctx, conn, &ev))
			types = append(types, ev.Type)
			if ev.IsTerminal() {
				return types
			}
		}
	}

	require.NoError(t, wsjson.Write(ctx, conn, domain.Query{Text: "   "}))
	assert.Equal(t, []domain.EventType{domain.EventError}, readUntilTerminal())

	for range 2 {
		require.NoError(t, wsjson.Write(ctx, conn, domain.Query{Text: "quanto de memoria?"}))
		assert.Equal(t, []domain.EventType{domain.EventStatus, domain.EventPlan, domain.EventFinalResponse}, readUntilTerminal())
	}

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	seen := p.seen()
	require.Len(t, seen, 2)
	assert.Equal(t, "ws-session", seen[0].SessionID)
}

func TestWebSocketMessagesAreRateLimited(t *testing.T) {
	t.Parallel()
	limitCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// One slot for the upgrade, one for the first query.
	p := &fakePipeline{events: standardEvents()}
	srv := httptest.NewServer(newTestRouter(p, nil, middleware.NewRateLimiter(limitCtx, 2, time.Minute)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set(identity.UserHeaderName, "ws-user")
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/orchestrate",
		&websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer conn.CloseNow()

	lastEvent := func() domain.StreamEvent {
		for {
			var ev domain.StreamEvent
			require.NoError(t, wsjson.Read(ctx, conn, &ev))
			if ev.IsTerminal() {
				return ev
			}
		}
	}

	require.NoError(t, wsjson.Write(ctx, conn, domain.Query{Text: "quanto de memoria?"}))
	assert.Equal(t, domain.EventFinalResponse, lastEvent().Type)

	require.NoError(t, wsjson.Write(ctx, conn, domain.Query{Text: "e o disco?"}))
	limited := lastEvent()
	assert.Equal(t, domain.EventError, limited.Type)
	assert.Equal(t, middleware.MsgRateLimited, limited.Message)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	assert.Len(t, p.seen(), 1)
}
