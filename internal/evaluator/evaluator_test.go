package evaluator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/inference"
	"github.com/ashureev/lanne/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu   sync.Mutex
	text string
	err  error
	reqs []inference.Request
}

func (f *fakeBackend) Generate(ctx context.Context, req inference.Request) (inference.Result, error) {
	return f.Classify(ctx, req)
}

func (f *fakeBackend) Classify(_ context.Context, req inference.Request) (inference.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return inference.Result{Text: f.text}, f.err
}

type fakeCollector struct {
	mu             sync.Mutex
	knowledge      string
	similarity     float64
	web            string
	knowledgeCalls int
	webCalls       int
}

func (f *fakeCollector) CollectKnowledge(context.Context, string) (string, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.knowledgeCalls++
	return f.knowledge, f.similarity
}

func (f *fakeCollector) CollectWeb(context.Context, string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webCalls++
	return f.web
}

var (
	actionOnly = domain.ExecutionContext{}.WithAction("[DADOS DO SISTEMA]\nMemTotal: 2048 kB")
	plan       = domain.ExecutionPlan{Intent: domain.IntentTechnical, UseAction: true, ActionCommands: []string{"memory_detailed"}, ResponseStyle: domain.StyleAnalyze}
)

func TestEvaluateSkipsIneligibleContexts(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{text: `{"sufficient":false,"needWeb":true}`}
	e := New(backend, &fakeCollector{}, nil)

	for _, ec := range []domain.ExecutionContext{
		{},
		domain.ExecutionContext{}.WithKnowledge("doc"),
		actionOnly.WithWeb("web"),
	} {
		assert.Equal(t, ec, e.Evaluate(context.Background(), "q", ec, plan))
	}
	assert.Empty(t, backend.reqs)
}

func TestEvaluateSufficient(t *testing.T) {
	t.Parallel()

	for _, reply := range []string{
		`{"sufficient": true, "needKnowledge": false, "needWeb": false}`,
		`{"needKnowledge": true}`,
		`nao entendi`,
	} {
		collector := &fakeCollector{knowledge: "doc", similarity: 0.9}
		e := New(&fakeBackend{text: reply}, collector, nil)
		got := e.Evaluate(context.Background(), "qual o uso de memoria", actionOnly, plan)
		assert.Equal(t, actionOnly, got, reply)
		assert.Zero(t, collector.knowledgeCalls, reply)
	}
}

func TestEvaluateFetchesRequestedSources(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{text: `{"sufficient":false,"need_rag":true,"need_web":"true","reason":"falta contexto"}`}
	collector := &fakeCollector{knowledge: "Use free -h", similarity: 0.7, web: "- t\ns"}
	e := New(backend, collector, nil)

	got := e.Evaluate(context.Background(), "memoria alta e normal?", actionOnly, plan)

	assert.Equal(t, []string{domain.SourceAction, domain.SourceKnowledge, domain.SourceWeb}, got.Sources)
	assert.Equal(t, "Use free -h", got.KnowledgeData)
	assert.Equal(t, "- t\ns", got.WebData)
	assert.InDelta(t, 0.7, got.KnowledgeSimilarity, 1e-9)
	assert.Equal(t, []string{domain.SourceAction}, actionOnly.Sources, "input context must not be mutated")

	require.Len(t, backend.reqs, 1)
	assert.Equal(t, verdictMaxTokens, backend.reqs[0].MaxTokens)
	assert.Contains(t, backend.reqs[0].Prompt, "PERGUNTA: memoria alta e normal?")
}

func TestEvaluateRecordsSimilarityWithoutData(t *testing.T) {
	t.Parallel()

	collector := &fakeCollector{similarity: 0.2}
	e := New(&fakeBackend{text: `{"sufficient":false,"needKnowledge":true}`}, collector, nil)

	got := e.Evaluate(context.Background(), "q", actionOnly, plan)
	assert.Equal(t, []string{domain.SourceAction}, got.Sources)
	assert.InDelta(t, 0.2, got.KnowledgeSimilarity, 1e-9)
	assert.Zero(t, collector.webCalls)
}

func TestEvaluateBackendFailureKeepsContext(t *testing.T) {
	t.Parallel()

	e := New(&fakeBackend{err: errors.New("boom")}, &fakeCollector{}, nil)
	assert.Equal(t, actionOnly, e.Evaluate(context.Background(), "q", actionOnly, plan))
}

func TestPromptTruncatesActionData(t *testing.T) {
	t.Parallel()

	p := buildPrompt("q", strings.Repeat("Ω", 5000))
	assert.Equal(t, maxPromptData, strings.Count(p, "Ω"))
}

func TestEvaluateKeepsHigherExistingSimilarity(t *testing.T) {
	t.Parallel()

	ec := actionOnly
	ec.KnowledgeSimilarity = 0.3
	collector := &fakeCollector{}
	e := New(&fakeBackend{text: `{"sufficient":false,"needKnowledge":true}`}, collector, nil)

	got := e.Evaluate(context.Background(), "q", ec, plan)
	assert.Equal(t, 1, collector.knowledgeCalls)
	assert.InDelta(t, 0.3, got.KnowledgeSimilarity, 1e-9)
}

type panickingCollector struct{ fakeCollector }

func (p *panickingCollector) CollectWeb(context.Context, string) string {
	panic("web client bug")
}

func TestEvaluateReraisesBranchPanic(t *testing.T) {
	t.Parallel()

	collector := &panickingCollector{}
	e := New(&fakeBackend{text: `{"sufficient":false,"needKnowledge":true,"needWeb":true}`}, collector, nil)

	var rec any
	func() {
		defer func() { rec = recover() }()
		e.Evaluate(context.Background(), "q", actionOnly, plan)
	}()

	bp, ok := rec.(*shared.BranchPanic)
	require.True(t, ok, "got %T", rec)
	assert.Equal(t, "web client bug", bp.Value)
	assert.Equal(t, 1, collector.knowledgeCalls)
}
