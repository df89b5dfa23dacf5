// Package evaluator decides whether collected system data is enough to answer
// a query and fetches the missing sources when it is not.
package evaluator

import (
	"context"
	"log/slog"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/inference"
	"github.com/ashureev/lanne/internal/planparse"
	"github.com/ashureev/lanne/internal/shared"
)

const (
	maxPromptData    = 2000
	verdictMaxTokens = 100
	verdictTemp      = 0.1
)

// Collector fetches the complementary sources.
type Collector interface {
	CollectKnowledge(ctx context.Context, query string) (string, float64)
	CollectWeb(ctx context.Context, query string) string
}

// Evaluator runs the sufficiency check.
type Evaluator struct {
	backend   inference.Backend
	collector Collector
	logger    *slog.Logger
}

// New creates an Evaluator.
func New(backend inference.Backend, collector Collector, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{backend: backend, collector: collector, logger: logger}
}

// Applies reports whether ec is eligible for evaluation: only system-action
// data was collected.
func Applies(ec domain.ExecutionContext) bool {
	return ec.OnlyActionData()
}

// Evaluate returns ec, possibly extended with knowledge or web data. Every
// failure returns ec unchanged.
func (e *Evaluator) Evaluate(ctx context.Context, query string, ec domain.ExecutionContext, plan domain.ExecutionPlan) domain.ExecutionContext {
	if !Applies(ec) {
		return ec
	}

	res, err := e.backend.Classify(ctx, inference.Request{
		Prompt:      buildPrompt(query, ec.ActionData),
		MaxTokens:   verdictMaxTokens,
		Temperature: verdictTemp,
	})
	if err != nil {
		e.logger.Warn("Evaluation call failed, keeping context",
			"kind", shared.FailureKind(err), "error", err)
		return ec
	}

	verdict := planparse.Repair(res.Text)
	if verdict.Sufficient == nil || *verdict.Sufficient {
		e.logger.Debug("Collected data judged sufficient", "style", plan.ResponseStyle.String())
		return ec
	}

	needKnowledge := verdict.NeedKnowledge != nil && *verdict.NeedKnowledge
	needWeb := verdict.NeedWeb != nil && *verdict.NeedWeb
	e.logger.Info("Evaluator requested more data", "knowledge", needKnowledge, "web", needWeb)

	var (
		knowledgeData, webData string
		similarity             float64
		g                      shared.Branches
	)
	if needKnowledge {
		g.Go(func() {
			knowledgeData, similarity = e.collector.CollectKnowledge(ctx, query)
		})
	}
	if needWeb {
		g.Go(func() {
			webData = e.collector.CollectWeb(ctx, query)
		})
	}
	g.Wait()

	if similarity > ec.KnowledgeSimilarity {
		ec.KnowledgeSimilarity = similarity
	}
	if knowledgeData != "" {
		ec = ec.WithKnowledge(knowledgeData)
	}
	if webData != "" {
		ec = ec.WithWeb(webData)
	}
	return ec
}

func buildPrompt(query, actionData string) string {
	return `<|im_start|>system
Voce e um avaliador de contexto. Analise os dados coletados e decida se precisa de mais informacao.

RESPONDA APENAS com JSON:
{
  "sufficient": true|false,
  "needKnowledge": true|false,
  "needWeb": true|false,
  "reason": "explicacao curta"
}

REGRAS:
- Se os dados respondem a pergunta completamente -> sufficient=true
- Se precisa de documentacao/tutorial para complementar -> needKnowledge=true
- Se precisa de informacao externa/atualizada -> needWeb=true
- Na duvida, prefira sufficient=true (evitar buscas desnecessarias)
<|im_end|>
<|im_start|>user
PERGUNTA: ` + query + `

DADOS COLETADOS:
` + shared.Truncate(actionData, maxPromptData) + `

Os dados acima sao suficientes para responder a pergunta?
<|im_end|>
<|im_start|>assistant
`
}
