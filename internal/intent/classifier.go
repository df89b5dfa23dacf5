// Package intent decides whether a query is a greeting, casual talk or a
// technical request.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/inference"
	"github.com/ashureev/lanne/internal/planparse"
	"github.com/ashureev/lanne/internal/shared"
)

// Confidence thresholds of the statistical tier.
const (
	TrustedConfidence  = 0.75
	EscalateConfidence = 0.40
)

// Confidence assigned by the non-statistical tiers.
const (
	greetingConfidence = 0.95
	casualConfidence   = 0.90
	hintConfidence     = 0.85
	backendConfidence  = 0.70
	keywordConfidence  = 0.50
	defaultConfidence  = 0.30
)

const (
	defaultLLMTimeout   = 10 * time.Second
	validationMaxTokens = 10
)

// Config wires the classifier tiers. Model and Backend are optional.
type Config struct {
	Model      Predictor
	Backend    inference.Backend
	Keywords   map[domain.Intent][]string
	LLMTimeout time.Duration
	Logger     *slog.Logger
}

// Classifier runs the classification cascade. It holds no mutable state.
type Classifier struct {
	model      Predictor
	backend    inference.Backend
	keywords   map[domain.Intent][]string
	llmTimeout time.Duration
	logger     *slog.Logger
}

// New creates a Classifier.
func New(cfg Config) *Classifier {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = defaultLLMTimeout
	}
	return &Classifier{
		model:      cfg.Model,
		backend:    cfg.Backend,
		keywords:   cfg.Keywords,
		llmTimeout: cfg.LLMTimeout,
		logger:     cfg.Logger,
	}
}

// NewFromDataset trains the statistical model from ds and wires the backend.
func NewFromDataset(ds Dataset, backend inference.Backend, llmTimeout time.Duration, logger *slog.Logger) (*Classifier, error) {
	model, err := Train(ds.Samples)
	if err != nil {
		return nil, fmt.Errorf("train intent model: %w", err)
	}
	return New(Config{
		Model:      model,
		Backend:    backend,
		Keywords:   ds.Keywords,
		LLMTimeout: llmTimeout,
		Logger:     logger,
	}), nil
}

// Classify never fails: every backend problem degrades to the next tier.
func (c *Classifier) Classify(ctx context.Context, text string) domain.IntentClassification {
	norm := normalize(text)

	if isGreeting(norm) {
		return c.verdict(domain.IntentGreeting, greetingConfidence, "greeting_rule")
	}
	if isCasual(norm) {
		return c.verdict(domain.IntentCasual, casualConfidence, "casual_rule")
	}

	pred, havePred := c.predict(text)

	if hasTechnicalHint(norm) {
		conf := hintConfidence
		if havePred && pred.Intent == domain.IntentTechnical && pred.Confidence > conf {
			conf = pred.Confidence
		}
		return c.verdict(domain.IntentTechnical, conf, "technical_hint")
	}

	if havePred && pred.Confidence >= TrustedConfidence {
		return c.verdict(pred.Intent, pred.Confidence, "model")
	}

	if havePred && pred.Confidence < EscalateConfidence {
		return c.verdict(pred.Intent, pred.Confidence, "model_low")
	}

	if intent, ok := c.askBackend(ctx, text); ok {
		return c.verdict(intent, backendConfidence, "backend")
	}
	if havePred {
		return c.verdict(pred.Intent, pred.Confidence, "model_after_backend")
	}
	return c.keywordFallback(norm)
}

func (c *Classifier) predict(text string) (Prediction, bool) {
	if c.model == nil {
		return Prediction{}, false
	}
	return c.model.Predict(text)
}

func (c *Classifier) askBackend(ctx context.Context, text string) (domain.Intent, bool) {
	if c.backend == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.llmTimeout)
	defer cancel()

	res, err := c.backend.Classify(ctx, inference.Request{
		Prompt:      validationPrompt(text),
		MaxTokens:   validationMaxTokens,
		Temperature: 0.1,
	})
	if err != nil {
		c.logger.Warn("Intent validation call failed", "error", err)
		return 0, false
	}
	intent, ok := ParseLabel(res.Text)
	if !ok {
		c.logger.Warn("Intent validation returned no label", "raw", shared.Truncate(res.Text, 80))
	}
	return intent, ok
}

func (c *Classifier) keywordFallback(norm string) domain.IntentClassification {
	tech := c.countKeywords(norm, domain.IntentTechnical)
	greet := c.countKeywords(norm, domain.IntentGreeting)
	switch {
	case greet > tech && greet > 0:
		return c.verdict(domain.IntentGreeting, keywordConfidence, "keywords")
	case tech > 0:
		return c.verdict(domain.IntentTechnical, keywordConfidence, "keywords")
	default:
		return c.verdict(domain.IntentCasual, defaultConfidence, "default")
	}
}

func (c *Classifier) countKeywords(norm string, intent domain.Intent) int {
	n := 0
	for _, kw := range c.keywords[intent] {
		if containsPhrase(norm, kw) {
			n++
		}
	}
	return n
}

func (c *Classifier) verdict(intent domain.Intent, confidence float64, tier string) domain.IntentClassification {
	c.logger.Debug("Intent classified", "intent", intent.String(), "confidence", confidence, "tier", tier)
	return domain.IntentClassification{Intent: intent, Confidence: confidence}
}

// ParseLabel extracts the first intent label from a short model reply.
func ParseLabel(text string) (domain.Intent, bool) {
	upper := strings.ToUpper(text)
	for _, word := range strings.Fields(upper) {
		word = strings.Trim(word, `.,!?"':-`)
		if intent, ok := domain.ParseIntent(planparse.CanonicalEnum(word)); ok {
			return intent, true
		}
	}
	for _, intent := range []domain.Intent{domain.IntentTechnical, domain.IntentCasual, domain.IntentGreeting} {
		if strings.Contains(upper, intent.String()) {
			return intent, true
		}
	}
	return 0, false
}

func validationPrompt(query string) string {
	return `<|im_start|>system
Classifique a intencao do usuario em UMA das categorias:

- GREETING: saudacoes, cumprimentos (oi, ola, bom dia)
- CASUAL: conversa casual, perguntas sobre voce, agradecimentos
- TECHNICAL: qualquer coisa sobre Linux, computador, sistema, erros, problemas tecnicos, comandos, instalacao, configuracao

Responda APENAS com a palavra: GREETING, CASUAL ou TECHNICAL
<|im_end|>
<|im_start|>user
` + query + `
<|im_end|>
<|im_start|>assistant
`
}
