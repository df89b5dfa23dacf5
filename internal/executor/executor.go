// Package executor carries out an execution plan by consulting the action
// agent, the knowledge index and the web search backend.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/lanne/internal/actionagent"
	"github.com/ashureev/lanne/internal/catalog"
	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/knowledge"
	"github.com/ashureev/lanne/internal/shared"
	"github.com/ashureev/lanne/internal/websearch"
)

const (
	minActionOutput  = 10
	maxActionOutput  = 2500
	knowledgeTopK    = 3
	maxKnowledgeDoc  = 500
	webMaxResults    = 3
	maxWebSnippet    = 300
	webQueryPrefix   = "Linux Debian "
	defaultWebTitle  = "Sem titulo"
	defaultThreshold = 0.5
)

// Config wires the collaborators. Nil collaborators disable their branch.
type Config struct {
	Catalog            *catalog.Catalog
	Agent              actionagent.Agent
	Knowledge          knowledge.Searcher
	Web                websearch.Searcher
	KnowledgeThreshold float64
	Logger             *slog.Logger
}

// Executor runs plan branches. It holds no per-request state.
type Executor struct {
	catalog   *catalog.Catalog
	agent     actionagent.Agent
	knowledge knowledge.Searcher
	web       websearch.Searcher
	threshold float64
	logger    *slog.Logger
}

// New creates an Executor.
func New(cfg Config) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Agent == nil {
		cfg.Agent = actionagent.Disabled{}
	}
	if cfg.KnowledgeThreshold <= 0 {
		cfg.KnowledgeThreshold = defaultThreshold
	}
	return &Executor{
		catalog:   cfg.Catalog,
		agent:     cfg.Agent,
		knowledge: cfg.Knowledge,
		web:       cfg.Web,
		threshold: cfg.KnowledgeThreshold,
		logger:    cfg.Logger,
	}
}

// Execute runs the branches enabled by plan concurrently. Branch failures
// only leave their source out; sources are ordered action, knowledge, web.
// A panic inside a branch is re-raised as a *shared.BranchPanic after the
// other branches finish.
func (e *Executor) Execute(ctx context.Context, plan domain.ExecutionPlan, query string) domain.ExecutionContext {
	var (
		actionData, knowledgeData, webData string
		similarity                         float64
		g                                  shared.Branches
	)

	if plan.UseAction && len(plan.ActionCommands) > 0 {
		g.Go(func() {
			actionData = e.CollectAction(ctx, plan.ActionCommands)
		})
	}
	if plan.UseKnowledge {
		g.Go(func() {
			knowledgeData, similarity = e.CollectKnowledge(ctx, query)
		})
	}
	if plan.UseWeb {
		g.Go(func() {
			webData = e.CollectWeb(ctx, query)
		})
	}
	g.Wait()

	out := domain.ExecutionContext{KnowledgeSimilarity: similarity}
	if actionData != "" {
		out = out.WithAction(actionData)
	}
	if knowledgeData != "" {
		out = out.WithKnowledge(knowledgeData)
	}
	if webData != "" {
		out = out.WithWeb(webData)
	}
	return out
}

type actionOutput struct {
	entry  catalog.Entry
	output string
}

// CollectAction runs commands one at a time and formats the usable outputs
// as a delimited block. It returns "" when no command produced usable output.
func (e *Executor) CollectAction(ctx context.Context, commands []string) string {
	if len(commands) > domain.MaxActionCommands {
		commands = commands[:domain.MaxActionCommands]
	}

	var outputs []actionOutput
	for _, name := range commands {
		if ctx.Err() != nil {
			break
		}
		entry, ok := e.catalog.Get(name)
		if !ok {
			e.logger.Warn("Skipping command outside catalog", "command", name)
			continue
		}
		res, err := e.agent.Execute(ctx, name, entry.Params)
		if err != nil {
			level := slog.LevelWarn
			if !shared.IsUnavailable(err) {
				level = slog.LevelError
			}
			e.logger.Log(ctx, level, "Action command failed", "command", name,
				"kind", shared.FailureKind(err), "error", err)
			continue
		}
		out := res.Output()
		if utf8.RuneCountInString(out) <= minActionOutput {
			e.logger.Debug("Action command returned no usable output", "command", name, "exit_code", res.ExitCode)
			continue
		}
		e.logger.Info("Action command collected", "command", name, "chars", len(out))
		outputs = append(outputs, actionOutput{entry: entry, output: shared.Truncate(out, maxActionOutput)})
	}
	return formatActionBlock(outputs)
}

func formatActionBlock(outputs []actionOutput) string {
	if len(outputs) == 0 {
		return ""
	}
	rule := strings.Repeat("=", 50)
	parts := []string{"[DADOS DO SISTEMA]", rule}
	for _, o := range outputs {
		parts = append(parts,
			fmt.Sprintf("\n>> %s: %s", strings.ToUpper(o.entry.Name), o.entry.Description),
			strings.Repeat("-", 40),
			o.output,
		)
	}
	parts = append(parts, "\n"+rule)
	return strings.Join(parts, "\n")
}

// CollectKnowledge queries the knowledge index. The text is empty unless the
// best similarity exceeds the threshold; the similarity is returned either way.
func (e *Executor) CollectKnowledge(ctx context.Context, query string) (string, float64) {
	if e.knowledge == nil {
		return "", 0
	}
	res, err := e.knowledge.Search(ctx, query, knowledgeTopK, 0)
	if err != nil {
		e.logger.Warn("Knowledge search failed", "kind", shared.FailureKind(err), "error", err)
		return "", 0
	}
	if len(res.Documents) == 0 || res.MaxSimilarity <= e.threshold {
		e.logger.Info("Knowledge below threshold", "max_similarity", res.MaxSimilarity, "documents", len(res.Documents))
		return "", res.MaxSimilarity
	}

	texts := make([]string, 0, len(res.Documents))
	for _, doc := range res.Documents {
		texts = append(texts, shared.Truncate(doc.Text, maxKnowledgeDoc))
	}
	return strings.Join(texts, "\n\n"), res.MaxSimilarity
}

// CollectWeb searches the web with the query scoped to the distribution.
func (e *Executor) CollectWeb(ctx context.Context, query string) string {
	if e.web == nil {
		return ""
	}
	results, err := e.web.Search(ctx, webQueryPrefix+query, webMaxResults)
	if err != nil {
		e.logger.Warn("Web search failed", "kind", shared.FailureKind(err), "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	entries := make([]string, 0, len(results))
	for _, r := range results {
		title := r.Title
		if title == "" {
			title = defaultWebTitle
		}
		entries = append(entries, "- "+title+"\n"+shared.Truncate(r.Snippet, maxWebSnippet))
	}
	return strings.Join(entries, "\n\n")
}
