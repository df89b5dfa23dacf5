package intent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu     sync.Mutex
	text   string
	err    error
	block  bool
	calls  int
	prompt string
}

func (f *fakeBackend) Generate(ctx context.Context, req inference.Request) (inference.Result, error) {
	return f.Classify(ctx, req)
}

func (f *fakeBackend) Classify(ctx context.Context, req inference.Request) (inference.Result, error) {
	f.mu.Lock()
	f.calls++
	f.prompt = req.Prompt
	block, text, err := f.block, f.text, f.err
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return inference.Result{}, ctx.Err()
	}
	return inference.Result{Text: text}, err
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixedPredictor struct {
	pred Prediction
	ok   bool
}

func (p fixedPredictor) Predict(string) (Prediction, bool) { return p.pred, p.ok }

func predicting(intent domain.Intent, conf float64) Predictor {
	return fixedPredictor{pred: Prediction{Intent: intent, Confidence: conf}, ok: true}
}

func TestClassifyLexicalRules(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{text: "TECHNICAL"}
	c := New(Config{Model: predicting(domain.IntentTechnical, 0.99), Backend: backend})

	tests := []struct {
		query string
		want  domain.Intent
		conf  float64
	}{
		{"oi", domain.IntentGreeting, greetingConfidence},
		{"Olá!", domain.IntentGreeting, greetingConfidence},
		{"bom dia, tudo bem?", domain.IntentGreeting, greetingConfidence},
		{"obrigado pela ajuda", domain.IntentCasual, casualConfidence},
		{"Quem é você?", domain.IntentCasual, casualConfidence},
	}
	for _, tt := range tests {
		got := c.Classify(context.Background(), tt.query)
		assert.Equal(t, tt.want, got.Intent, tt.query)
		assert.InDelta(t, tt.conf, got.Confidence, 1e-9, tt.query)
	}
	assert.Zero(t, backend.callCount())
}

func TestClassifyLongGreetingIsNotShortCircuited(t *testing.T) {
	t.Parallel()

	c := New(Config{Model: predicting(domain.IntentTechnical, 0.9)})
	got := c.Classify(context.Background(), "oi preciso de ajuda com o meu servidor web")
	assert.Equal(t, domain.IntentTechnical, got.Intent)
}

func TestClassifyTechnicalHintOverridesModel(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{text: "CASUAL"}
	c := New(Config{Model: predicting(domain.IntentCasual, 0.95), Backend: backend})

	for _, q := range []string{"qual o uso de memoria", "como instalar docker", "os serviços pararam, tem erros no log"} {
		got := c.Classify(context.Background(), q)
		assert.Equal(t, domain.IntentTechnical, got.Intent, q)
		assert.InDelta(t, hintConfidence, got.Confidence, 1e-9, q)
	}
	assert.Zero(t, backend.callCount())
}

func TestClassifyStatisticalTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		model     Predictor
		backend   *fakeBackend
		want      domain.Intent
		wantConf  float64
		wantCalls int
	}{
		{
			name:     "trusted model",
			model:    predicting(domain.IntentGreeting, 0.8),
			backend:  &fakeBackend{text: "TECHNICAL"},
			want:     domain.IntentGreeting,
			wantConf: 0.8,
		},
		{
			name:      "ambiguous model escalates",
			model:     predicting(domain.IntentCasual, 0.5),
			backend:   &fakeBackend{text: " Technical."},
			want:      domain.IntentTechnical,
			wantConf:  backendConfidence,
			wantCalls: 1,
		},
		{
			name:      "backend failure keeps model label",
			model:     predicting(domain.IntentCasual, 0.5),
			backend:   &fakeBackend{err: errors.New("unavailable")},
			want:      domain.IntentCasual,
			wantConf:  0.5,
			wantCalls: 1,
		},
		{
			name:      "unparseable reply keeps model label",
			model:     predicting(domain.IntentGreeting, 0.6),
			backend:   &fakeBackend{text: "nao sei"},
			want:      domain.IntentGreeting,
			wantConf:  0.6,
			wantCalls: 1,
		},
		{
			name:     "weak model is used directly",
			model:    predicting(domain.IntentCasual, 0.3),
			backend:  &fakeBackend{text: "TECHNICAL"},
			want:     domain.IntentCasual,
			wantConf: 0.3,
		},
		{
			name:      "absent model escalates",
			model:     fixedPredictor{},
			backend:   &fakeBackend{text: "GREETING"},
			want:      domain.IntentGreeting,
			wantConf:  backendConfidence,
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := New(Config{Model: tt.model, Backend: tt.backend})
			got := c.Classify(context.Background(), "xyzzy plugh")
			assert.Equal(t, tt.want, got.Intent)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assert.Equal(t, tt.wantCalls, tt.backend.callCount())
		})
	}
}

func TestClassifyKeywordAndDefaultFallbacks(t *testing.T) {
	t.Parallel()

	ds, err := DefaultDataset()
	require.NoError(t, err)

	failing := &fakeBackend{err: errors.New("down")}
	c := New(Config{Backend: failing, Keywords: ds.Keywords})

	got := c.Classify(context.Background(), "e o kernel?")
	assert.Equal(t, domain.IntentTechnical, got.Intent)
	assert.InDelta(t, keywordConfidence, got.Confidence, 1e-9)

	got = c.Classify(context.Background(), "hmm interessante")
	assert.Equal(t, domain.IntentCasual, got.Intent)
	assert.InDelta(t, defaultConfidence, got.Confidence, 1e-9)

	noBackend := New(Config{})
	assert.Equal(t, domain.IntentCasual, noBackend.Classify(context.Background(), "hmm").Intent)
}

func TestClassifyBackendTimeoutDegrades(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{block: true}
	c := New(Config{Model: predicting(domain.IntentCasual, 0.45), Backend: backend, LLMTimeout: 10 * time.Millisecond})

	start := time.Now()
	got := c.Classify(context.Background(), "xyzzy")
	assert.Equal(t, domain.IntentCasual, got.Intent)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, backend.callCount())
}

func TestValidationPromptCarriesQuery(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{text: "CASUAL"}
	c := New(Config{Backend: backend})
	c.Classify(context.Background(), "xyzzy plugh")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Contains(t, backend.prompt, "xyzzy plugh")
	assert.Contains(t, backend.prompt, "GREETING, CASUAL ou TECHNICAL")
}

func TestParseLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want domain.Intent
		ok   bool
	}{
		{"TECHNICAL", domain.IntentTechnical, true},
		{"casual.", domain.IntentCasual, true},
		{"A resposta é: GREETING", domain.IntentGreeting, true},
		{"Técnico", domain.IntentTechnical, true},
		{"CATEGORIA=CASUAL/TECHNICAL", domain.IntentTechnical, true},
		{"nao sei", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseLabel(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
