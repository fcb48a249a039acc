// Package quality scores completed responses with a cheap judge model.
// The evaluator is strictly fail-open: any judge failure (call error,
// unparseable reply) yields a passing verdict so the pipeline is never
// blocked by its own quality gate.
package quality

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/costwise/costwise/internal/pricing"
	"github.com/costwise/costwise/internal/provider"
)

// judgePrompt asks for a strict JSON verdict so parsing stays trivial.
const judgePrompt = `You are a quality evaluator. Rate the following AI response on a scale of 1-10.

Criteria:
- Relevance: Does the response address the prompt?
- Completeness: Does it cover the key points?
- Accuracy: Is the information correct and coherent?
- Clarity: Is it well-written and easy to understand?

Prompt:
%s

Response:
%s

Reply with ONLY a JSON object: {"score": <integer 1-10>, "reason": "<one sentence>"}`

// judgeMaxTokens bounds the judge completion; a verdict object is tiny.
const judgeMaxTokens = 100

// scoreRe rescues a score from replies that wrap the JSON in prose.
var scoreRe = regexp.MustCompile(`"?score"?\s*[:=]\s*(\d+)`)

// Verdict is the judge's opinion of one response.
type Verdict struct {
	Score    int    `json:"score"`
	Reason   string `json:"reason"`
	FailOpen bool   `json:"fail_open,omitempty"`
}

// Pass reports whether the score clears the threshold.
func (v Verdict) Pass(threshold int) bool {
	return v.Score >= threshold
}

// Completer executes a chat completion against the judge model.
type Completer interface {
	Complete(ctx context.Context, model string, messages []provider.Message, maxTokens int) (*provider.Result, error)
}

// Pricer turns the judge's token usage into a cost quote.
type Pricer interface {
	ActualQuote(model string, promptTokens, completionTokens int) pricing.Quote
}

// Evaluator runs the LLM-as-judge check.
type Evaluator struct {
	completer   Completer
	pricer      Pricer
	model       string
	taskLimit   int
	outputLimit int
	log         zerolog.Logger
}

// NewEvaluator builds an evaluator for the given judge model. taskLimit
// and outputLimit bound how many characters of the task and the response
// are shown to the judge; zero or negative values fall back to 2000/3000.
func NewEvaluator(completer Completer, pricer Pricer, model string, taskLimit, outputLimit int, log zerolog.Logger) *Evaluator {
	if taskLimit <= 0 {
		taskLimit = 2000
	}
	if outputLimit <= 0 {
		outputLimit = 3000
	}
	return &Evaluator{
		completer:   completer,
		pricer:      pricer,
		model:       model,
		taskLimit:   taskLimit,
		outputLimit: outputLimit,
		log:         log,
	}
}

// Model returns the judge model identifier.
func (e *Evaluator) Model() string { return e.model }

// Evaluate scores a response against the task that produced it. It never
// returns an error: judge failures become a passing verdict with
// FailOpen set, and a zero-cost quote.
func (e *Evaluator) Evaluate(ctx context.Context, task, response string) (Verdict, pricing.Quote) {
	prompt := fmt.Sprintf(judgePrompt, clip(task, e.taskLimit), clip(response, e.outputLimit))

	res, err := e.completer.Complete(ctx, e.model, provider.UserMessage(prompt), judgeMaxTokens)
	if err != nil {
		e.log.Warn().Err(err).Str("judge_model", e.model).Msg("quality eval failed, passing by default")
		return Verdict{Score: 10, Reason: "eval_error: " + clip(err.Error(), 100), FailOpen: true}, pricing.Quote{Model: e.model}
	}

	verdict := parseVerdict(res.Content)
	quote := e.pricer.ActualQuote(e.model, res.PromptTokens, res.CompletionTokens)
	e.log.Debug().
		Int("score", verdict.Score).
		Str("reason", verdict.Reason).
		Float64("eval_cost", quote.TotalCost).
		Msg("quality eval done")
	return verdict, quote
}

// parseVerdict extracts score and reason from the judge reply. JSON first,
// then a regex rescue, then fail-open.
func parseVerdict(raw string) Verdict {
	trimmed := strings.TrimSpace(raw)

	if body := jsonBody(trimmed); body != "" {
		score := gjson.Get(body, "score")
		if score.Exists() {
			return Verdict{
				Score:  clampScore(int(score.Int())),
				Reason: gjson.Get(body, "reason").String(),
			}
		}
	}

	if m := scoreRe.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			if n > 10 {
				n = 10
			}
			return Verdict{Score: n, Reason: clip(trimmed, 100)}
		}
	}

	return Verdict{Score: 10, Reason: "parse_error: " + clip(trimmed, 100), FailOpen: true}
}

// jsonBody returns the JSON object inside raw, tolerating markdown fences
// around it. Empty string when raw holds no valid object.
func jsonBody(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	body := raw[start : end+1]
	if !gjson.Valid(body) {
		return ""
	}
	return body
}

func clampScore(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
