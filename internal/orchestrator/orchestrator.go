// Package orchestrator sequences the pipeline stages for one query and
// reports progress as a stream of events.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/shared"
)

// Status messages sent while a request is processed.
const (
	msgAnalyzing  = "Analisando sua pergunta..."
	msgProcessing = "Processando..."
	msgKnowledge  = "Buscando na base de conhecimento..."
	msgWeb        = "Buscando na web..."
	msgEvaluating = "Avaliando dados..."
	msgGenerating = "Gerando resposta..."
	msgInternal   = "Erro interno ao processar a pergunta."
)

const recordTimeout = 5 * time.Second

var (
	// ErrPipeline is returned by Process when the stream ends with an error event.
	ErrPipeline = errors.New("pipeline failed")
	// ErrIncomplete is returned by Process when the stream ends without a terminal event.
	ErrIncomplete = errors.New("pipeline ended without a result")
)

// Classifier assigns an intent to a query.
type Classifier interface {
	Classify(ctx context.Context, text string) domain.IntentClassification
}

// Planner builds the plan for a technical query.
type Planner interface {
	Plan(ctx context.Context, query string) domain.ExecutionPlan
}

// Executor runs the branches of a plan.
type Executor interface {
	Execute(ctx context.Context, plan domain.ExecutionPlan, query string) domain.ExecutionContext
}

// Evaluator may extend a context that holds only system data.
type Evaluator interface {
	Evaluate(ctx context.Context, query string, ec domain.ExecutionContext, plan domain.ExecutionPlan) domain.ExecutionContext
}

// Responder writes the final answer.
type Responder interface {
	Generate(ctx context.Context, query string, ec domain.ExecutionContext, plan domain.ExecutionPlan) string
}

// Recorder persists completed exchanges.
type Recorder interface {
	RecordExchange(ctx context.Context, ex domain.Exchange) error
}

// Config wires the stages. Evaluator and Recorders are optional.
type Config struct {
	Classifier Classifier
	Planner    Planner
	Executor   Executor
	Evaluator  Evaluator
	Responder  Responder
	Recorders  []Recorder
	Logger     *slog.Logger
}

// Orchestrator is stateless across requests and safe for concurrent use.
type Orchestrator struct {
	classifier Classifier
	planner    Planner
	executor   Executor
	evaluator  Evaluator
	responder  Responder
	recorders  []Recorder
	logger     *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		classifier: cfg.Classifier,
		planner:    cfg.Planner,
		executor:   cfg.Executor,
		evaluator:  cfg.Evaluator,
		responder:  cfg.Responder,
		recorders:  cfg.Recorders,
		logger:     cfg.Logger,
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request id used in metadata, logs and records.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Plan classifies text and returns the plan without executing it.
func (o *Orchestrator) Plan(ctx context.Context, text string) (domain.IntentClassification, domain.ExecutionPlan) {
	cls := o.classifier.Classify(ctx, text)
	if cls.Intent != domain.IntentTechnical {
		return cls, domain.TrivialPlan(cls.Intent)
	}
	return cls, o.planner.Plan(ctx, text)
}

// Stream runs the pipeline for q. A completed run ends with exactly one
// terminal event. When ctx ends or the consumer stops iterating, no further
// stage starts and no terminal event is produced.
func (o *Orchestrator) Stream(ctx context.Context, q domain.Query) iter.Seq[domain.StreamEvent] {
	return func(yield func(domain.StreamEvent) bool) {
		r := &run{o: o, q: q, yield: yield, id: requestID(ctx), start: time.Now()}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if r.inYield {
				panic(rec)
			}
			stack := debug.Stack()
			if bp, ok := rec.(*shared.BranchPanic); ok {
				rec, stack = bp.Value, bp.Stack
			}
			o.logger.Error("Pipeline panic",
				"request_id", r.id, "panic", fmt.Sprint(rec), "stack", string(stack))
			r.emit(ctx, domain.ErrorEvent(msgInternal))
		}()
		r.execute(ctx)
	}
}

// Process runs the pipeline to completion and returns the final response.
func (o *Orchestrator) Process(ctx context.Context, q domain.Query) (domain.Response, error) {
	for ev := range o.Stream(ctx, q) {
		switch ev.Type {
		case domain.EventFinalResponse:
			return *ev.Response, nil
		case domain.EventError:
			return domain.Response{}, fmt.Errorf("%w: %s", ErrPipeline, ev.Message)
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.Response{}, err
	}
	return domain.Response{}, ErrIncomplete
}

// run holds the state of one pipeline execution.
type run struct {
	o       *Orchestrator
	q       domain.Query
	id      string
	start   time.Time
	yield   func(domain.StreamEvent) bool
	stopped bool
	inYield bool
}

// emit delivers ev unless the run was stopped. It reports whether the
// pipeline may continue.
func (r *run) emit(ctx context.Context, ev domain.StreamEvent) bool {
	if r.stopped {
		return false
	}
	if ctx.Err() != nil {
		r.stopped = true
		return false
	}
	r.inYield = true
	ok := r.yield(ev)
	r.inYield = false
	if !ok || ev.IsTerminal() {
		r.stopped = true
	}
	return ok
}

func (r *run) execute(ctx context.Context) {
	o := r.o
	log := o.logger.With("request_id", r.id)

	if err := r.q.Validate(); err != nil {
		r.emit(ctx, domain.ErrorEvent(err.Error()))
		return
	}
	if !r.emit(ctx, domain.StatusEvent(msgAnalyzing)) {
		return
	}

	cls, plan := o.Plan(ctx, r.q.Text)
	log.Info("Plan ready", "intent", cls.Intent.String(), "confidence", cls.Confidence,
		"action", plan.ActionCommands, "knowledge", plan.UseKnowledge, "web", plan.UseWeb,
		"style", plan.ResponseStyle.String())
	if !r.emit(ctx, domain.PlanEvent(plan)) {
		return
	}

	var ec domain.ExecutionContext
	switch plan.Intent {
	case domain.IntentGreeting:
	case domain.IntentCasual:
		if !r.emit(ctx, domain.StatusEvent(msgProcessing)) {
			return
		}
	case domain.IntentTechnical:
		var ok bool
		if ec, ok = r.collect(ctx, plan); !ok {
			return
		}
		if !r.emit(ctx, domain.StatusEvent(msgGenerating)) {
			return
		}
	}

	answer := o.responder.Generate(ctx, r.q.Text, ec, plan)
	if ctx.Err() != nil {
		log.Info("Request canceled before completion")
		return
	}

	resp := domain.Response{
		Response: answer,
		Intent:   plan.Intent,
		Sources:  sourcesOf(ec),
		Metadata: domain.ResponseMetadata{
			Plan:                plan,
			Confidence:          cls.Confidence,
			KnowledgeSimilarity: ec.KnowledgeSimilarity,
			UsedAction:          ec.ActionData != "",
			UsedKnowledge:       ec.KnowledgeData != "",
			UsedWeb:             ec.WebData != "",
			RequestID:           r.id,
			LatencyMs:           time.Since(r.start).Milliseconds(),
		},
	}
	r.emit(ctx, domain.FinalEvent(resp))
	r.record(ctx, resp, cls)
}

// collect runs the executor and the evaluator, reporting each step.
func (r *run) collect(ctx context.Context, plan domain.ExecutionPlan) (domain.ExecutionContext, bool) {
	o := r.o
	if plan.UseAction && len(plan.ActionCommands) > 0 {
		msg := "Coletando dados: " + strings.Join(plan.ActionCommands, ", ") + "..."
		if !r.emit(ctx, domain.StatusEvent(msg)) {
			return domain.ExecutionContext{}, false
		}
	}
	if plan.UseKnowledge && !r.emit(ctx, domain.StatusEvent(msgKnowledge)) {
		return domain.ExecutionContext{}, false
	}
	if plan.UseWeb && !r.emit(ctx, domain.StatusEvent(msgWeb)) {
		return domain.ExecutionContext{}, false
	}

	ec := o.executor.Execute(ctx, plan, r.q.Text)
	if ctx.Err() != nil {
		return ec, false
	}

	if o.evaluator != nil && ec.OnlyActionData() {
		if !r.emit(ctx, domain.StatusEvent(msgEvaluating)) {
			return ec, false
		}
		ec = o.evaluator.Evaluate(ctx, r.q.Text, ec, plan)
		if ctx.Err() != nil {
			return ec, false
		}
	}
	return ec, true
}

func (r *run) record(ctx context.Context, resp domain.Response, cls domain.IntentClassification) {
	if len(r.o.recorders) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	ex := domain.Exchange{
		ID:                  uuid.NewString(),
		RequestID:           r.id,
		UserID:              r.q.UserID,
		SessionID:           r.q.SessionID,
		Query:               r.q.Text,
		Intent:              resp.Intent,
		Confidence:          cls.Confidence,
		Plan:                resp.Metadata.Plan,
		Sources:             resp.Sources,
		Response:            resp.Response,
		KnowledgeSimilarity: resp.Metadata.KnowledgeSimilarity,
		Latency:             time.Duration(resp.Metadata.LatencyMs) * time.Millisecond,
		CreatedAt:           time.Now().UTC(),
	}
	for _, rec := range r.o.recorders {
		if err := rec.RecordExchange(ctx, ex); err != nil {
			r.o.logger.Warn("Failed to record exchange",
				"request_id", r.id, "kind", shared.FailureKind(err), "error", err)
		}
	}
}

func sourcesOf(ec domain.ExecutionContext) []string {
	if ec.Sources == nil {
		return []string{}
	}
	return ec.Sources
}
