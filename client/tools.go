package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Tool names exposed to agent frameworks.
const (
	ToolRoute    = "costwise_route"
	ToolEstimate = "costwise_estimate"
	ToolRun      = "costwise_run"
)

// Tools returns OpenAI-style tool definitions for costwise.
//
// These schemas are intentionally small and stable so other agent
// frameworks can reuse them as a de-facto standard tool contract.
func Tools() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"type": "function",
			"function": map[string]interface{}{
				"name":        ToolRoute,
				"description": "Select the best model for a given task level (no execution, no DB write).",
				"parameters": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"level": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 3},
						"model": map[string]interface{}{"type": []string{"string", "null"}, "description": "Optional override model id"},
					},
					"required":             []string{"level"},
					"additionalProperties": false,
				},
			},
		},
		{
			"type": "function",
			"function": map[string]interface{}{
				"name":        ToolEstimate,
				"description": "Compress + route + estimate cost (no execution, no DB write).",
				"parameters": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"input_text": map[string]interface{}{"type": "string"},
						"level":      map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 3},
						"tokens":     map[string]interface{}{"type": "integer", "minimum": 1},
						"model":      map[string]interface{}{"type": []string{"string", "null"}, "description": "Optional override model id"},
						"budget":     map[string]interface{}{"type": []string{"number", "null"}, "description": "Optional per-call budget override"},
					},
					"required":             []string{"input_text", "level", "tokens"},
					"additionalProperties": false,
				},
			},
		},
		{
			"type": "function",
			"function": map[string]interface{}{
				"name":        ToolRun,
				"description": "Route + estimate + optionally execute. Writes a run record to the log.",
				"parameters": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"input_text": map[string]interface{}{"type": "string"},
						"tenant_id":  map[string]interface{}{"type": []string{"string", "null"}},
						"caller_id":  map[string]interface{}{"type": []string{"string", "null"}},
						"level":      map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 3},
						"tokens":     map[string]interface{}{"type": "integer", "minimum": 1},
						"model":      map[string]interface{}{"type": []string{"string", "null"}, "description": "Optional override model id"},
						"budget":     map[string]interface{}{"type": []string{"number", "null"}, "description": "Optional per-call budget override"},
						"execute":    map[string]interface{}{"type": "boolean"},
					},
					"required":             []string{"input_text", "level", "tokens", "execute"},
					"additionalProperties": false,
				},
			},
		},
	}
}

// DispatchToolCall forwards one tool call to the matching endpoint and
// returns the endpoint's data payload verbatim. arguments must be the
// tool call's JSON argument object.
func (c *Client) DispatchToolCall(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error) {
	var path string
	switch name {
	case ToolRoute:
		path = "/api/route"
	case ToolEstimate:
		path = "/api/estimate"
	case ToolRun:
		path = "/api/run"
	default:
		return nil, fmt.Errorf("client: unknown tool %q", name)
	}

	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, path, arguments, &out); err != nil {
		// Failed runs still carry the finalized record.
		if apiErr, ok := err.(*APIError); ok && apiErr.Partial {
			return out, apiErr
		}
		return nil, err
	}
	return out, nil
}
