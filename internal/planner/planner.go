// Package planner turns a technical query into an ExecutionPlan by asking the
// generation backend which resources to consult.
package planner

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/ashureev/lanne/internal/catalog"
	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/inference"
	"github.com/ashureev/lanne/internal/planparse"
	"github.com/ashureev/lanne/internal/shared"
)

const (
	planMaxTokens   = 150
	planTemperature = 0.1
)

// Planner builds execution plans. It is safe for concurrent use.
type Planner struct {
	backend inference.Backend
	catalog *catalog.Catalog
	prefix  string
	logger  *slog.Logger
}

// New creates a Planner over an immutable catalog.
func New(backend inference.Backend, cat *catalog.Catalog, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		backend: backend,
		catalog: cat,
		prefix:  buildPromptPrefix(cat.Names()),
		logger:  logger,
	}
}

// Plan asks the backend for a plan. Any failure yields the fallback plan, so
// the result always routes a technical query to at least one resource.
func (p *Planner) Plan(ctx context.Context, query string) domain.ExecutionPlan {
	res, err := p.backend.Classify(ctx, inference.Request{
		Prompt:      p.prompt(query),
		MaxTokens:   planMaxTokens,
		Temperature: planTemperature,
	})
	if err != nil {
		p.logger.Warn("Planner call failed, using fallback plan",
			"kind", shared.FailureKind(err), "error", err)
		return domain.FallbackPlan()
	}

	raw := res.Text
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		raw = Primer + raw
	}
	p.logger.Debug("Planner replied", "raw", shared.Truncate(raw, 200))
	return p.Repair(raw)
}

// Repair converts raw planner output into a validated plan without any
// network access.
func (p *Planner) Repair(raw string) domain.ExecutionPlan {
	fields := planparse.Repair(raw)
	if fields.Empty() {
		p.logger.Warn("Planner output unparseable, using fallback plan", "raw", shared.Truncate(raw, 120))
		return domain.FallbackPlan()
	}

	plan := domain.ExecutionPlan{
		Intent:         domain.IntentTechnical,
		UseAction:      deref(fields.UseAction),
		ActionCommands: p.validCommands(fields.ActionCommands),
		UseKnowledge:   deref(fields.UseKnowledge),
		UseWeb:         deref(fields.UseWeb),
	}
	if fields.Reasoning != nil {
		plan.Reasoning = *fields.Reasoning
	}

	if plan.UseAction && len(plan.ActionCommands) == 0 {
		p.logger.Debug("Plan requested action without valid commands")
		plan.UseAction = false
	}
	if !plan.UseAction {
		plan.ActionCommands = []string{}
	}
	if !plan.UsesResources() {
		p.logger.Warn("Plan selects no resource, using fallback plan")
		return domain.FallbackPlan()
	}

	switch {
	case fields.ResponseStyle != nil:
		plan.ResponseStyle = *fields.ResponseStyle
	case plan.UseAction:
		plan.ResponseStyle = domain.StyleAnalyze
	default:
		plan.ResponseStyle = domain.StyleTutorial
	}
	return plan
}

// validCommands normalizes names, drops those outside the catalog, removes
// duplicates and caps the list.
func (p *Planner) validCommands(names []string) []string {
	out := make([]string, 0, domain.MaxActionCommands)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if !p.catalog.Has(name) {
			if name != "" {
				p.logger.Debug("Dropping unknown command", "command", name)
			}
			continue
		}
		if slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
		if len(out) == domain.MaxActionCommands {
			break
		}
	}
	return out
}

func deref(b *bool) bool {
	return b != nil && *b
}
