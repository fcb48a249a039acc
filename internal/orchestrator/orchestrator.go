// Package orchestrator composes the pipeline: normalize the prompt,
// route a model for the declared tier, quote the cost, check the budget,
// optionally execute and judge, and escalate to a stronger model while
// the quality gate fails. One run produces exactly one finalized record.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/costwise/costwise/internal/budget"
	"github.com/costwise/costwise/internal/pricing"
	"github.com/costwise/costwise/internal/prompt"
	"github.com/costwise/costwise/internal/provider"
	"github.com/costwise/costwise/internal/quality"
	"github.com/costwise/costwise/internal/router"
)

// Pricer produces cost quotes. Never errors; unknown models quote zero
// cost with real token counts.
type Pricer interface {
	Quote(model, text string, outputTokens int) pricing.Quote
	ActualQuote(model string, promptTokens, completionTokens int) pricing.Quote
}

// Completer executes one chat completion against a model.
type Completer interface {
	Complete(ctx context.Context, model string, messages []provider.Message, maxTokens int) (*provider.Result, error)
}

// Judge scores an output against the task that produced it. Never
// errors; failures become a fail-open verdict.
type Judge interface {
	Evaluate(ctx context.Context, task, output string) (quality.Verdict, pricing.Quote)
}

// RunStore persists finalized run records and answers cost queries.
type RunStore interface {
	InsertRun(ctx context.Context, rec *RunRecord) (int64, error)
	CumulativeCost(ctx context.Context) (float64, error)
}

// EventSink receives lifecycle events for live observers.
type EventSink interface {
	Broadcast(event string, data interface{})
}

// Notifier pushes human-facing alerts.
type Notifier interface {
	Send(event string, payload interface{})
}

// Deps wires the orchestrator's collaborators. Store is required.
// Completer nil means live execution is unavailable (dry-run still
// works); Judge nil disables the quality gate; Events, Notify and
// Monitor are optional observers.
type Deps struct {
	Router    *router.Router
	Pricer    Pricer
	Guard     *budget.Guard
	Completer Completer
	Judge     Judge
	Store     RunStore
	Events    EventSink
	Notify    Notifier
	Monitor   *budget.Monitor
	Log       zerolog.Logger

	QualityThreshold int
	MaxRetries       int
	PromptCeiling    int
}

// Orchestrator owns the run lifecycle for one process.
type Orchestrator struct {
	router    *router.Router
	pricer    Pricer
	guard     *budget.Guard
	completer Completer
	judge     Judge
	store     RunStore
	events    EventSink
	notify    Notifier
	monitor   *budget.Monitor
	log       zerolog.Logger

	threshold     int
	maxRetries    int
	promptCeiling int
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		router:        d.Router,
		pricer:        d.Pricer,
		guard:         d.Guard,
		completer:     d.Completer,
		judge:         d.Judge,
		store:         d.Store,
		events:        d.Events,
		notify:        d.Notify,
		monitor:       d.Monitor,
		log:           d.Log,
		threshold:     d.QualityThreshold,
		maxRetries:    d.MaxRetries,
		promptCeiling: d.PromptCeiling,
	}
}

// Route resolves the model for a tier, honoring an explicit override.
// Overrides bypass the router verbatim; bad identifiers surface later
// as provider errors, not here.
func (o *Orchestrator) Route(tier int, override string) router.Decision {
	if override != "" {
		return router.Decision{Model: override, Reason: "override:" + override}
	}
	return o.router.Route(tier)
}

// Estimate runs normalize, route, quote and budget-check without calling
// any provider and without touching the run log.
func (o *Orchestrator) Estimate(req TaskRequest) (*RunRecord, error) {
	started := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec := newRecord(req, started)
	normalized := prompt.Normalize(req.Text, o.promptCeiling)
	rec.CompressedPrompt = normalized
	rec.CompressionRatio = prompt.CompressionRatio(req.Text, normalized)

	decision := o.Route(req.Tier, req.ModelOverride)
	rec.Model = decision.Model
	rec.RouterReason = decision.Reason

	est := o.pricer.Quote(decision.Model, normalized, req.OutputTokens)
	applyQuote(rec, est)
	rec.Quotes = append(rec.Quotes, est)
	rec.TotalCost = est.TotalCost

	exceeded, limit := o.guard.Check(est.TotalCost, req.Budget)
	rec.Budget = limit
	rec.BudgetExceeded = exceeded

	rec.FinishedAt = time.Now().UTC()
	rec.LatencyMS = float64(time.Since(started)) / float64(time.Millisecond)
	return rec, nil
}

// Execute runs the full lifecycle for one request and returns the
// finalized record. On provider failure the record is still finalized
// and logged; the classified error is returned alongside it.
func (o *Orchestrator) Execute(ctx context.Context, req TaskRequest) (*RunRecord, error) {
	started := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec := newRecord(req, started)
	o.broadcast("run.started", map[string]interface{}{
		"trace_id": rec.TraceID,
		"level":    req.Tier,
		"execute":  req.Execute,
	})

	// One normalization per run; every attempt sends the same prompt.
	normalized := prompt.Normalize(req.Text, o.promptCeiling)
	rec.CompressedPrompt = normalized
	rec.CompressionRatio = prompt.CompressionRatio(req.Text, normalized)

	override := req.ModelOverride != ""
	tier := req.Tier

	var (
		verdict     quality.Verdict
		judged      bool
		actualTotal float64
		executed    bool
	)

	for {
		decision := o.Route(tier, req.ModelOverride)
		rec.Model = decision.Model
		rec.RouterReason = decision.Reason
		o.transition(rec, StateRouted)

		est := o.pricer.Quote(decision.Model, normalized, req.OutputTokens)
		applyQuote(rec, est)
		o.transition(rec, StateEstimated)

		exceeded, limit := o.guard.Check(est.TotalCost, req.Budget)
		rec.Budget = limit
		if exceeded {
			if !rec.BudgetExceeded {
				o.broadcast("budget.warn", map[string]interface{}{
					"trace_id": rec.TraceID,
					"model":    decision.Model,
					"cost":     est.TotalCost,
					"budget":   limit,
				})
			}
			rec.BudgetExceeded = true
			o.log.Warn().
				Str("trace_id", rec.TraceID).
				Str("model", decision.Model).
				Float64("cost", est.TotalCost).
				Float64("budget", limit).
				Msg("estimated cost exceeds budget, proceeding anyway")
		}
		o.transition(rec, StateBudgetChecked)

		if !req.Execute {
			rec.Quotes = append(rec.Quotes, est)
			rec.Response = "[Dry-run] Would use " + decision.Model
			return o.finalize(ctx, rec, nil)
		}

		res, err := o.complete(ctx, decision.Model, normalized, req.OutputTokens)
		if err != nil {
			runErr := &RunError{Code: classifyErr(err), Err: err}
			rec.Status = "error"
			rec.ErrorCode = runErr.Code
			rec.ErrorDetail = firstLine(err.Error())
			rec.Response = ""
			// Earlier attempts may already have spent real money.
			if executed {
				rec.ActualCost = &actualTotal
			}
			return o.finalize(ctx, rec, runErr)
		}
		actual := o.pricer.ActualQuote(decision.Model, res.PromptTokens, res.CompletionTokens)
		rec.Quotes = append(rec.Quotes, actual)
		rec.Response = res.Content
		tokens := res.CompletionTokens
		rec.ActualOutputTokens = &tokens
		actualTotal += actual.TotalCost
		executed = true
		o.transition(rec, StateExecuted)

		// Override models skip the quality gate: there is no tier to
		// escalate from.
		if o.judge == nil || override {
			break
		}

		var evalQuote pricing.Quote
		verdict, evalQuote = o.judge.Evaluate(ctx, req.Text, res.Content)
		judged = true
		rec.Quotes = append(rec.Quotes, evalQuote)
		o.transition(rec, StateJudged)

		if verdict.Pass(o.threshold) {
			break
		}
		next, ok := router.Escalate(tier)
		if !ok || rec.QualityRetries >= o.maxRetries {
			o.log.Info().
				Str("trace_id", rec.TraceID).
				Int("score", verdict.Score).
				Int("retries", rec.QualityRetries).
				Msg("escalation exhausted, returning last attempt")
			break
		}
		if rec.OriginalModel == "" {
			rec.OriginalModel = rec.Model
		}
		rec.QualityRetries++
		o.log.Info().
			Str("trace_id", rec.TraceID).
			Int("score", verdict.Score).
			Int("threshold", o.threshold).
			Int("from_tier", tier).
			Int("to_tier", next).
			Msg("quality below threshold, escalating")
		tier = next
		o.transition(rec, StateEscalate)
	}

	if judged {
		score := verdict.Score
		rec.QualityScore = &score
		rec.QualityReason = verdict.Reason
		rec.QualityFailOpen = verdict.FailOpen
	}
	if executed {
		rec.ActualCost = &actualTotal
	}
	o.transition(rec, StateAccepted)
	return o.finalize(ctx, rec, nil)
}

// complete calls the provider, treating a missing completer as an
// unconfigured provider.
func (o *Orchestrator) complete(ctx context.Context, model, text string, maxTokens int) (*provider.Result, error) {
	if o.completer == nil {
		return nil, provider.ErrNotConfigured
	}
	return o.completer.Complete(ctx, model, provider.UserMessage(text), maxTokens)
}

// finalize aggregates the incurred quotes, writes the record to the log
// store and fans out events. The write runs on a context detached from
// the caller's cancellation: a provider timeout must not also lose the
// record of that timeout.
func (o *Orchestrator) finalize(ctx context.Context, rec *RunRecord, runErr *RunError) (*RunRecord, error) {
	rec.TotalCost = 0
	for _, q := range rec.Quotes {
		rec.TotalCost += q.TotalCost
	}

	ctx = context.WithoutCancel(ctx)
	if id, err := o.store.InsertRun(ctx, rec); err != nil {
		o.log.Error().Err(err).Str("trace_id", rec.TraceID).Msg("run log write failed")
	} else {
		rec.LogID = id
	}
	if cum, err := o.store.CumulativeCost(ctx); err == nil {
		rec.CumulativeCost = cum
	}

	rec.FinishedAt = time.Now().UTC()
	rec.LatencyMS = float64(rec.FinishedAt.Sub(rec.StartedAt)) / float64(time.Millisecond)
	o.transition(rec, StateFinalized)

	evt := o.log.Info().
		Str("trace_id", rec.TraceID).
		Str("model", rec.Model).
		Str("status", rec.Status).
		Float64("total_cost", rec.TotalCost).
		Int("retries", rec.QualityRetries).
		Bool("budget_exceeded", rec.BudgetExceeded)
	if rec.ErrorCode != "" {
		evt = evt.Str("error_code", rec.ErrorCode)
	}
	evt.Msg("run finalized")

	o.broadcast("run.finalized", rec)
	if runErr != nil && o.notify != nil {
		o.notify.Send("run.failed", map[string]interface{}{
			"trace_id": rec.TraceID,
			"model":    rec.Model,
			"error":    rec.ErrorDetail,
		})
	}
	if o.monitor != nil {
		if _, err := o.monitor.CheckDaily(ctx); err != nil {
			o.log.Warn().Err(err).Msg("daily budget check failed")
		}
	}

	if runErr != nil {
		return rec, runErr
	}
	return rec, nil
}

func (o *Orchestrator) transition(rec *RunRecord, s State) {
	o.log.Debug().
		Str("trace_id", rec.TraceID).
		Str("state", s.String()).
		Str("model", rec.Model).
		Msg("state transition")
}

func (o *Orchestrator) broadcast(event string, data interface{}) {
	if o.events != nil {
		o.events.Broadcast(event, data)
	}
}

func newRecord(req TaskRequest, started time.Time) *RunRecord {
	return &RunRecord{
		TraceID:   uuid.NewString(),
		Status:    "ok",
		Tier:      req.Tier,
		TenantID:  req.TenantID,
		CallerID:  req.CallerID,
		StartedAt: started.UTC(),
	}
}

// applyQuote copies an estimate onto the record's top-level breakdown.
// Escalation overwrites it each attempt, so the finalized record shows
// the final attempt's estimate.
func applyQuote(rec *RunRecord, q pricing.Quote) {
	rec.PromptTokens = q.PromptTokens
	rec.OutputTokens = q.OutputTokens
	rec.PromptCost = q.PromptCost
	rec.CompletionCost = q.CompletionCost
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
