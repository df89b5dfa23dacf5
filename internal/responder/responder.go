// Package responder composes the final answer from the collected context.
package responder

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/inference"
	"github.com/ashureev/lanne/internal/shared"
)

const (
	maxContextChars = 3000
	minAnswerChars  = 20

	answerMaxTokens   = 600
	answerTemperature = 0.3
	answerTopP        = 0.9
)

// Fixed answers.
const (
	FailureMessage     = "Desculpe, tive um problema ao processar sua pergunta. Pode tentar novamente?"
	ShortAnswerMessage = "Desculpe, nao consegui gerar uma resposta adequada. Pode reformular?"
)

// Greetings are the canned introductions returned for greeting queries.
var Greetings = []string{
	"Ola! Sou Lanne, sua assistente especialista em Linux e Debian. Como posso ajudar?",
	"Oi! Estou aqui para ajudar com Linux e Debian. O que voce precisa?",
	"Ola! Pronto para responder suas perguntas sobre Linux.",
}

// Generator produces answers. It is safe for concurrent use.
type Generator struct {
	backend inference.Backend
	logger  *slog.Logger
}

// New creates a Generator.
func New(backend inference.Backend, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{backend: backend, logger: logger}
}

// Generate never fails: backend errors and near-empty answers become fixed
// apology messages.
func (g *Generator) Generate(ctx context.Context, query string, ec domain.ExecutionContext, plan domain.ExecutionPlan) string {
	if plan.Intent == domain.IntentGreeting {
		return Greetings[rand.IntN(len(Greetings))]
	}

	res, err := g.backend.Generate(ctx, inference.Request{
		Prompt:      BuildPrompt(query, BuildContext(ec), plan.ResponseStyle),
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
		TopP:        answerTopP,
	})
	if err != nil {
		g.logger.Error("Answer generation failed", "kind", shared.FailureKind(err), "error", err)
		return FailureMessage
	}

	answer := Sanitize(res.Text)
	if utf8.RuneCountInString(answer) < minAnswerChars {
		g.logger.Warn("Generated answer too short", "chars", utf8.RuneCountInString(answer))
		return ShortAnswerMessage
	}
	return answer
}

// BuildContext serializes the collected data: action block, then knowledge,
// then web results.
func BuildContext(ec domain.ExecutionContext) string {
	var parts []string
	if ec.ActionData != "" {
		parts = append(parts, ec.ActionData)
	}
	if ec.KnowledgeData != "" {
		parts = append(parts, "[BASE DE CONHECIMENTO]\n"+ec.KnowledgeData)
	}
	if ec.WebData != "" {
		parts = append(parts, "[PESQUISA WEB]\n"+ec.WebData)
	}
	return strings.Join(parts, "\n\n")
}
