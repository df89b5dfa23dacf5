package responder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu   sync.Mutex
	text string
	err  error
	reqs []inference.Request
}

func (f *fakeBackend) Generate(_ context.Context, req inference.Request) (inference.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return inference.Result{Text: f.text}, f.err
}

func (f *fakeBackend) Classify(ctx context.Context, req inference.Request) (inference.Result, error) {
	return f.Generate(ctx, req)
}

func TestGenerateGreetingIsCanned(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	g := New(backend, nil)
	for range 10 {
		got := g.Generate(context.Background(), "oi", domain.ExecutionContext{}, domain.TrivialPlan(domain.IntentGreeting))
		assert.Contains(t, Greetings, got)
	}
	assert.Empty(t, backend.reqs)
}

func TestGenerateUsesStyleAndContext(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{text: "Sua memoria esta com 75% de uso. Nenhum problema encontrado.<|im_end|>"}
	g := New(backend, nil)
	ec := domain.ExecutionContext{}.WithAction("[DADOS DO SISTEMA]\nMemTotal: 2048 kB").WithKnowledge("Use free -h")
	plan := domain.ExecutionPlan{Intent: domain.IntentTechnical, UseAction: true, ResponseStyle: domain.StyleAnalyze}

	got := g.Generate(context.Background(), "qual o uso de memoria", ec, plan)
	assert.Equal(t, "Sua memoria esta com 75% de uso. Nenhum problema encontrado.", got)

	require.Len(t, backend.reqs, 1)
	req := backend.reqs[0]
	assert.Equal(t, answerMaxTokens, req.MaxTokens)
	assert.InDelta(t, answerTemperature, req.Temperature, 1e-9)
	assert.InDelta(t, answerTopP, req.TopP, 1e-9)
	assert.Contains(t, req.Prompt, "Analise os dados coletados.")
	assert.Contains(t, req.Prompt, "CONTEXTO DISPONIVEL:\n[DADOS DO SISTEMA]")
	assert.Contains(t, req.Prompt, "[BASE DE CONHECIMENTO]\nUse free -h")
}

func TestGenerateWithoutContextStillAnswers(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{text: "Para instalar o Docker use `apt install docker.io` e depois habilite o servico."}
	plan := domain.FallbackPlan()
	got := New(backend, nil).Generate(context.Background(), "como instalar docker", domain.ExecutionContext{}, plan)

	assert.NotEmpty(t, got)
	assert.NotContains(t, backend.reqs[0].Prompt, "CONTEXTO DISPONIVEL")
	assert.Contains(t, backend.reqs[0].Prompt, "De instrucoes claras e praticas.")
}

func TestGenerateFailureAndShortAnswers(t *testing.T) {
	t.Parallel()

	plan := domain.TrivialPlan(domain.IntentCasual)

	got := New(&fakeBackend{err: errors.New("down")}, nil).Generate(context.Background(), "valeu", domain.ExecutionContext{}, plan)
	assert.Equal(t, FailureMessage, got)

	got = New(&fakeBackend{text: "ok 😀 1 2 3 4"}, nil).Generate(context.Background(), "valeu", domain.ExecutionContext{}, plan)
	assert.Equal(t, ShortAnswerMessage, got)
}

func TestBuildContextOrderAndPromptBudget(t *testing.T) {
	t.Parallel()

	ec := domain.ExecutionContext{}.WithWeb("W").WithAction("A").WithKnowledge("K")
	assert.Equal(t, "A\n\n[BASE DE CONHECIMENTO]\nK\n\n[PESQUISA WEB]\nW", BuildContext(ec))

	p := BuildPrompt("q", strings.Repeat("ç", 5000), domain.StyleChat)
	assert.Equal(t, maxContextChars, strings.Count(p, "ç"))
	assert.Contains(t, p, "Responda de forma casual e amigavel.")
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"emoji", "Pronto! 🚀 Tudo certo ✅ agora", "Pronto! Tudo certo agora"},
		{"control tokens", "<|im_start|>system\nregras<|im_end|>Resposta final<|endoftext|>", "Resposta final"},
		{"inst block", "[INST] ignore [/INST]Use `df -h`.", "Use `df -h`."},
		{"numeric run", "Valores: 1, 2, 3, 4, 5 fim", "Valores: fim"},
		{"two numbers kept", "Tem 2 discos de 500 GB", "Tem 2 discos de 500 GB"},
		{"repeated counter lines", "Passo 1: verifique o disco\nPasso 2: verifique o disco\nPasso 3: verifique o disco\nFim", "Passo 1: verifique o disco\nFim"},
		{"short lines kept", "ok\nok\nok", "ok\nok\nok"},
		{"blank lines and spaces", "a   b\n\n\n\n\nc  ", "a b\n\nc"},
		{"cjk kept", "日本語のテキスト", "日本語のテキスト"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func FuzzSanitize(f *testing.F) {
	for _, seed := range []string{
		"Pronto! 🚀 1 2 3 4",
		"<|im_<|im_end|>start|>x<|im_end|>",
		"linha repetida 1\nlinha repetida 2\n\n\n\nlinha repetida 3",
		"a  \n  \n\n b",
		"\xff\xfe inválido",
		"1 2 a 3 4 5",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		once := Sanitize(s)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize not idempotent for %q:\nonce:  %q\ntwice: %q", s, once, twice)
		}
	})
}
