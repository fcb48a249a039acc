package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costwise/costwise/internal/budget"
	"github.com/costwise/costwise/internal/catalog"
	"github.com/costwise/costwise/internal/pricing"
	"github.com/costwise/costwise/internal/provider"
	"github.com/costwise/costwise/internal/quality"
	"github.com/costwise/costwise/internal/router"
)

// memStore collects inserted records without touching SQLite.
type memStore struct {
	inserted  []*RunRecord
	insertErr error
	cum       float64
}

func (s *memStore) InsertRun(ctx context.Context, rec *RunRecord) (int64, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted = append(s.inserted, rec)
	return int64(len(s.inserted)), nil
}

func (s *memStore) CumulativeCost(ctx context.Context) (float64, error) {
	return s.cum, nil
}

// scriptedCompleter returns canned results or errors per attempt, in order.
type scriptedCompleter struct {
	results []*provider.Result
	errs    []error
	calls   []string
}

func (c *scriptedCompleter) Complete(ctx context.Context, model string, messages []provider.Message, maxTokens int) (*provider.Result, error) {
	i := len(c.calls)
	c.calls = append(c.calls, model)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.results) {
		return c.results[i], nil
	}
	return &provider.Result{Content: "stub output", PromptTokens: 10, CompletionTokens: 5}, nil
}

// scriptedJudge returns canned verdicts per evaluation, in order.
type scriptedJudge struct {
	verdicts []quality.Verdict
	quote    pricing.Quote
	calls    int
}

func (j *scriptedJudge) Evaluate(ctx context.Context, task, output string) (quality.Verdict, pricing.Quote) {
	i := j.calls
	if i >= len(j.verdicts) {
		i = len(j.verdicts) - 1
	}
	j.calls++
	return j.verdicts[i], j.quote
}

type memEvents struct {
	events []string
}

func (e *memEvents) Broadcast(event string, data interface{}) {
	e.events = append(e.events, event)
}

type memNotify struct {
	events []string
}

func (n *memNotify) Send(event string, payload interface{}) {
	n.events = append(n.events, event)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Model{
		{ID: "tiny", Provider: "test", Tier: 1, CostTier: 1, PromptPer1K: 0.001, CompletionPer1K: 0.002},
		{ID: "mid", Provider: "test", Tier: 2, CostTier: 2, PromptPer1K: 0.01, CompletionPer1K: 0.02},
		{ID: "big", Provider: "test", Tier: 3, CostTier: 3, PromptPer1K: 0.1, CompletionPer1K: 0.2},
	})
	require.NoError(t, err)
	return cat
}

func testDeps(t *testing.T) (Deps, *memStore) {
	t.Helper()
	cat := testCatalog(t)
	store := &memStore{}
	return Deps{
		Router:           router.New(cat, router.ModeSingle, "test"),
		Pricer:           pricing.NewEstimator(cat),
		Guard:            budget.NewGuard(1.0),
		Store:            store,
		Log:              zerolog.Nop(),
		QualityThreshold: 7,
		MaxRetries:       2,
	}, store
}

func req(text string, tier int, execute bool) TaskRequest {
	return TaskRequest{Text: text, Tier: tier, OutputTokens: 100, Execute: execute}
}

func TestExecute_DryRun(t *testing.T) {
	deps, store := testDeps(t)
	events := &memEvents{}
	deps.Events = events
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Summarize this report", 1, false))
	require.NoError(t, err)

	assert.Equal(t, "tiny", rec.Model)
	assert.Equal(t, "router:level=1", rec.RouterReason)
	assert.Equal(t, "[Dry-run] Would use tiny", rec.Response)
	assert.Nil(t, rec.ActualCost)
	assert.True(t, rec.DryRun())
	assert.Equal(t, "ok", rec.Status)
	assert.NotEmpty(t, rec.TraceID)

	// One estimate quote, aggregated into the total.
	require.Len(t, rec.Quotes, 1)
	assert.Equal(t, rec.Quotes[0].TotalCost, rec.TotalCost)

	// Finalized exactly once.
	require.Len(t, store.inserted, 1)
	assert.Equal(t, int64(1), rec.LogID)
	assert.Contains(t, events.events, "run.started")
	assert.Contains(t, events.events, "run.finalized")
}

func TestExecute_Live_Accept(t *testing.T) {
	deps, store := testDeps(t)
	completer := &scriptedCompleter{
		results: []*provider.Result{{Content: "a fine answer", PromptTokens: 8, CompletionTokens: 40}},
	}
	judge := &scriptedJudge{
		verdicts: []quality.Verdict{{Score: 9, Reason: "good"}},
		quote:    pricing.Quote{Model: "judge", TotalCost: 0.0001},
	}
	deps.Completer = completer
	deps.Judge = judge
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Explain DNS", 1, true))
	require.NoError(t, err)

	assert.Equal(t, "tiny", rec.Model)
	assert.Equal(t, "a fine answer", rec.Response)
	assert.False(t, rec.DryRun())
	assert.Equal(t, 0, rec.QualityRetries)
	require.NotNil(t, rec.QualityScore)
	assert.Equal(t, 9, *rec.QualityScore)
	require.NotNil(t, rec.ActualOutputTokens)
	assert.Equal(t, 40, *rec.ActualOutputTokens)

	// Quotes: the attempt's actual usage plus the judge call.
	require.Len(t, rec.Quotes, 2)
	actual := rec.Quotes[0]
	assert.Equal(t, 8, actual.PromptTokens)
	assert.Equal(t, 40, actual.OutputTokens)
	require.NotNil(t, rec.ActualCost)
	assert.InDelta(t, actual.TotalCost, *rec.ActualCost, 1e-12)
	assert.InDelta(t, actual.TotalCost+0.0001, rec.TotalCost, 1e-12)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, 1, judge.calls)
}

func TestExecute_Escalation(t *testing.T) {
	deps, _ := testDeps(t)
	completer := &scriptedCompleter{}
	judge := &scriptedJudge{
		verdicts: []quality.Verdict{{Score: 5}, {Score: 6}, {Score: 9}},
	}
	deps.Completer = completer
	deps.Judge = judge
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Hard question", 1, true))
	require.NoError(t, err)

	// Two failed verdicts walk the run up the ladder; the third accepts.
	assert.Equal(t, []string{"tiny", "mid", "big"}, completer.calls)
	assert.Equal(t, "big", rec.Model)
	assert.Equal(t, "tiny", rec.OriginalModel)
	assert.True(t, rec.Escalated())
	assert.Equal(t, 2, rec.QualityRetries)
	require.NotNil(t, rec.QualityScore)
	assert.Equal(t, 9, *rec.QualityScore)

	// Three attempts and three judge calls, every quote aggregated.
	assert.Len(t, rec.Quotes, 6)
}

func TestExecute_Escalation_NeverAccepted(t *testing.T) {
	deps, _ := testDeps(t)
	completer := &scriptedCompleter{}
	judge := &scriptedJudge{verdicts: []quality.Verdict{{Score: 4, Reason: "still weak"}}}
	deps.Completer = completer
	deps.Judge = judge
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Impossible standards", 1, true))
	require.NoError(t, err)

	// Every verdict fails, so the run climbs to the top and returns the
	// last attempt anyway.
	assert.Equal(t, []string{"tiny", "mid", "big"}, completer.calls)
	assert.Equal(t, "big", rec.Model)
	assert.Equal(t, "tiny", rec.OriginalModel)
	assert.Equal(t, 2, rec.QualityRetries)
	assert.Equal(t, "ok", rec.Status)
	require.NotNil(t, rec.QualityScore)
	assert.Equal(t, 4, *rec.QualityScore)
}

func TestExecute_Escalation_RetriesExhausted(t *testing.T) {
	deps, _ := testDeps(t)
	deps.MaxRetries = 1
	completer := &scriptedCompleter{}
	judge := &scriptedJudge{verdicts: []quality.Verdict{{Score: 3, Reason: "weak"}}}
	deps.Completer = completer
	deps.Judge = judge
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Hard question", 1, true))
	require.NoError(t, err)

	// The retry budget stops the loop; the last attempt is returned as-is.
	assert.Equal(t, []string{"tiny", "mid"}, completer.calls)
	assert.Equal(t, "mid", rec.Model)
	assert.Equal(t, 1, rec.QualityRetries)
	assert.Equal(t, "ok", rec.Status)
	require.NotNil(t, rec.QualityScore)
	assert.Equal(t, 3, *rec.QualityScore)
	assert.Equal(t, "weak", rec.QualityReason)
}

func TestExecute_Escalation_TopTier(t *testing.T) {
	deps, _ := testDeps(t)
	deps.MaxRetries = 5
	completer := &scriptedCompleter{}
	judge := &scriptedJudge{verdicts: []quality.Verdict{{Score: 2}}}
	deps.Completer = completer
	deps.Judge = judge
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Hard question", 3, true))
	require.NoError(t, err)

	// No tier above 3: a failing verdict at the top cannot escalate.
	assert.Equal(t, []string{"big"}, completer.calls)
	assert.Equal(t, "big", rec.Model)
	assert.Equal(t, 0, rec.QualityRetries)
	assert.False(t, rec.Escalated())
}

func TestExecute_Override_SkipsJudge(t *testing.T) {
	deps, _ := testDeps(t)
	completer := &scriptedCompleter{}
	judge := &scriptedJudge{verdicts: []quality.Verdict{{Score: 1}}}
	deps.Completer = completer
	deps.Judge = judge
	o := New(deps)

	r := req("Use my model", 2, true)
	r.ModelOverride = "custom-model"
	rec, err := o.Execute(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, "custom-model", rec.Model)
	assert.Equal(t, "override:custom-model", rec.RouterReason)
	assert.Equal(t, 0, judge.calls)
	assert.Nil(t, rec.QualityScore)
	assert.Equal(t, []string{"custom-model"}, completer.calls)
}

func TestExecute_ProviderFailure(t *testing.T) {
	deps, store := testDeps(t)
	notify := &memNotify{}
	deps.Notify = notify
	deps.Completer = &scriptedCompleter{
		errs: []error{fmt.Errorf("status 503: %w", provider.ErrUnavailable)},
	}
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Doomed", 1, true))
	require.Error(t, err)
	require.NotNil(t, rec)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ErrCodeProviderUnavailable, runErr.Code)

	assert.Equal(t, "error", rec.Status)
	assert.Equal(t, ErrCodeProviderUnavailable, rec.ErrorCode)
	assert.Empty(t, rec.Response)
	assert.Nil(t, rec.ActualCost)

	// The failed run is still logged and alerted.
	require.Len(t, store.inserted, 1)
	assert.Contains(t, notify.events, "run.failed")
}

func TestExecute_AuthFailure(t *testing.T) {
	deps, _ := testDeps(t)
	deps.Completer = &scriptedCompleter{
		errs: []error{fmt.Errorf("status 401: %w", provider.ErrAuth)},
	}
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Doomed", 1, true))
	require.Error(t, err)
	assert.Equal(t, ErrCodeProviderAuth, rec.ErrorCode)
}

func TestExecute_NoCompleter(t *testing.T) {
	deps, _ := testDeps(t)
	o := New(deps)

	// Live execution without any configured provider is an auth problem.
	rec, err := o.Execute(context.Background(), req("Doomed", 1, true))
	require.Error(t, err)
	assert.Equal(t, ErrCodeProviderAuth, rec.ErrorCode)
}

func TestExecute_FailureAfterSpend(t *testing.T) {
	deps, _ := testDeps(t)
	completer := &scriptedCompleter{
		results: []*provider.Result{{Content: "first try", PromptTokens: 10, CompletionTokens: 50}},
		errs:    []error{nil, fmt.Errorf("gone: %w", provider.ErrUnavailable)},
	}
	judge := &scriptedJudge{verdicts: []quality.Verdict{{Score: 2}}}
	deps.Completer = completer
	deps.Judge = judge
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Flaky", 1, true))
	require.Error(t, err)

	// The escalated attempt failed, but the first attempt's spend is real
	// and stays on the record.
	assert.Equal(t, []string{"tiny", "mid"}, completer.calls)
	assert.Equal(t, "mid", rec.Model)
	assert.Equal(t, ErrCodeProviderUnavailable, rec.ErrorCode)
	require.NotNil(t, rec.ActualCost)
	assert.Greater(t, *rec.ActualCost, 0.0)
}

func TestExecute_BudgetExceededProceeds(t *testing.T) {
	deps, store := testDeps(t)
	deps.Guard = budget.NewGuard(0.0000001)
	events := &memEvents{}
	deps.Events = events
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Expensive prompt for its budget", 1, false))
	require.NoError(t, err)

	// Advisory only: the run is flagged and broadcast, never blocked.
	assert.True(t, rec.BudgetExceeded)
	assert.Equal(t, 0.0000001, rec.Budget)
	assert.Equal(t, "ok", rec.Status)
	assert.Contains(t, events.events, "budget.warn")
	require.Len(t, store.inserted, 1)
}

func TestExecute_BudgetOverride(t *testing.T) {
	deps, _ := testDeps(t)
	o := New(deps)

	tight := 0.0000001
	r := req("Within default, over override", 1, false)
	r.Budget = &tight
	rec, err := o.Execute(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, rec.BudgetExceeded)
	assert.Equal(t, tight, rec.Budget)
}

func TestExecute_InsertFailureDoesNotFailRun(t *testing.T) {
	deps, store := testDeps(t)
	store.insertErr = errors.New("disk full")
	o := New(deps)

	rec, err := o.Execute(context.Background(), req("Still fine", 1, false))
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.LogID)
	assert.Equal(t, "ok", rec.Status)
}

func TestExecute_Validation(t *testing.T) {
	deps, store := testDeps(t)
	o := New(deps)
	ctx := context.Background()

	_, err := o.Execute(ctx, TaskRequest{Text: "  ", Tier: 1, OutputTokens: 100})
	assert.ErrorContains(t, err, "input_text is required")

	_, err = o.Execute(ctx, TaskRequest{Text: "hi", Tier: 0, OutputTokens: 100})
	assert.ErrorContains(t, err, "level must be 1-3")

	_, err = o.Execute(ctx, TaskRequest{Text: "hi", Tier: 1, OutputTokens: 0})
	assert.ErrorContains(t, err, "tokens must be >= 1")

	neg := -1.0
	_, err = o.Execute(ctx, TaskRequest{Text: "hi", Tier: 1, OutputTokens: 100, Budget: &neg})
	assert.ErrorContains(t, err, "budget must not be negative")

	// Rejected requests never reach the log.
	assert.Empty(t, store.inserted)
}

func TestEstimate(t *testing.T) {
	deps, store := testDeps(t)
	o := New(deps)

	rec, err := o.Estimate(req("The quick brown fox is on the mat", 2, false))
	require.NoError(t, err)

	assert.Equal(t, "mid", rec.Model)
	assert.Equal(t, "quick brown fox mat", rec.CompressedPrompt)
	assert.Greater(t, rec.CompressionRatio, 0.0)
	assert.Less(t, rec.CompressionRatio, 1.0)
	assert.Empty(t, rec.Response)
	assert.Nil(t, rec.ActualCost)
	require.Len(t, rec.Quotes, 1)

	// Estimates never touch the run log.
	assert.Empty(t, store.inserted)
}

func TestRoute(t *testing.T) {
	deps, _ := testDeps(t)
	o := New(deps)

	d := o.Route(1, "")
	assert.Equal(t, "tiny", d.Model)
	assert.Equal(t, "router:level=1", d.Reason)

	d = o.Route(1, "my-model")
	assert.Equal(t, "my-model", d.Model)
	assert.Equal(t, "override:my-model", d.Reason)
}
