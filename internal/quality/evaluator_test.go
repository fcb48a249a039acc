package quality

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/costwise/costwise/internal/catalog"
	"github.com/costwise/costwise/internal/pricing"
	"github.com/costwise/costwise/internal/provider"
)

type fakeCompleter struct {
	content string
	err     error
	prompt  string
}

func (f *fakeCompleter) Complete(ctx context.Context, model string, messages []provider.Message, maxTokens int) (*provider.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.prompt = messages[0].Content
	return &provider.Result{Content: f.content, Model: model, PromptTokens: 50, CompletionTokens: 20}, nil
}

func newTestEvaluator(c *fakeCompleter, taskLimit, outputLimit int) *Evaluator {
	pricer := pricing.NewEstimator(catalog.Default())
	return NewEvaluator(c, pricer, "gemini/gemini-2.0-flash", taskLimit, outputLimit, zerolog.Nop())
}

func TestParseVerdict_JSON(t *testing.T) {
	v := parseVerdict(`{"score": 7, "reason": "solid answer"}`)
	assert.Equal(t, 7, v.Score)
	assert.Equal(t, "solid answer", v.Reason)
	assert.False(t, v.FailOpen)
}

func TestParseVerdict_Fenced(t *testing.T) {
	v := parseVerdict("```json\n{\"score\": 4, \"reason\": \"thin\"}\n```")
	assert.Equal(t, 4, v.Score)
	assert.Equal(t, "thin", v.Reason)
	assert.False(t, v.FailOpen)
}

func TestParseVerdict_Clamp(t *testing.T) {
	assert.Equal(t, 10, parseVerdict(`{"score": 42}`).Score)
	assert.Equal(t, 1, parseVerdict(`{"score": 0}`).Score)
	assert.Equal(t, 1, parseVerdict(`{"score": -3}`).Score)
}

func TestParseVerdict_RegexRescue(t *testing.T) {
	v := parseVerdict("the score: 8 because it covers everything")
	assert.Equal(t, 8, v.Score)
	assert.False(t, v.FailOpen)

	v = parseVerdict("score = 9")
	assert.Equal(t, 9, v.Score)
}

func TestParseVerdict_FailOpen(t *testing.T) {
	v := parseVerdict("I cannot evaluate this response")
	assert.Equal(t, 10, v.Score)
	assert.True(t, v.FailOpen)
	assert.True(t, strings.HasPrefix(v.Reason, "parse_error:"))
}

func TestVerdict_Pass(t *testing.T) {
	assert.True(t, Verdict{Score: 7}.Pass(7))
	assert.False(t, Verdict{Score: 6}.Pass(7))
}

func TestEvaluator_Evaluate(t *testing.T) {
	c := &fakeCompleter{content: `{"score": 6, "reason": "missing detail"}`}
	e := newTestEvaluator(c, 0, 0)

	verdict, quote := e.Evaluate(context.Background(), "explain DNS", "DNS maps names to addresses")
	assert.Equal(t, 6, verdict.Score)
	assert.Equal(t, "missing detail", verdict.Reason)
	assert.False(t, verdict.FailOpen)

	// Judge cost is quoted from the real usage the provider reported.
	assert.Equal(t, "gemini/gemini-2.0-flash", quote.Model)
	assert.Equal(t, 50, quote.PromptTokens)
	assert.Equal(t, 20, quote.OutputTokens)
	assert.InDelta(t, 50.0/1000.0*0.0001+20.0/1000.0*0.0004, quote.TotalCost, 1e-12)

	// The judge sees both the task and the response.
	assert.Contains(t, c.prompt, "explain DNS")
	assert.Contains(t, c.prompt, "DNS maps names to addresses")
}

func TestEvaluator_Evaluate_CompleterError(t *testing.T) {
	c := &fakeCompleter{err: errors.New("connection refused")}
	e := newTestEvaluator(c, 0, 0)

	verdict, quote := e.Evaluate(context.Background(), "task", "output")
	assert.Equal(t, 10, verdict.Score)
	assert.True(t, verdict.FailOpen)
	assert.Contains(t, verdict.Reason, "eval_error")
	assert.Equal(t, 0.0, quote.TotalCost)
}

func TestEvaluator_Evaluate_ClipsInputs(t *testing.T) {
	c := &fakeCompleter{content: `{"score": 9}`}
	e := newTestEvaluator(c, 8, 8)

	e.Evaluate(context.Background(), "0123456789", "abcdefghij")
	assert.Contains(t, c.prompt, "01234567")
	assert.NotContains(t, c.prompt, "012345678")
	assert.Contains(t, c.prompt, "abcdefgh")
	assert.NotContains(t, c.prompt, "abcdefghi")
}
