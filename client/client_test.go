package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Run(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/run", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"success":true,"data":{
			"trace_id":"abc","status":"ok","model":"tiny",
			"total_cost":0.00123,"response":"[Dry-run] Would use tiny",
			"actual_cost":null,"summary":"Mode: [Dry-run]"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithAPIKey("secret"))
	run, err := c.Run(context.Background(), TaskInput{InputText: "hello", Level: 1, Tokens: 100})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Contains(t, gotBody, `"input_text":"hello"`)
	assert.Contains(t, gotBody, `"execute":false`)

	assert.Equal(t, "abc", run.TraceID)
	assert.Equal(t, "tiny", run.Model)
	assert.Equal(t, 0.00123, run.TotalCost)
	assert.Nil(t, run.ActualCost)
	assert.Equal(t, "Mode: [Dry-run]", run.Summary)
}

func TestClient_Run_PartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"success":false,"error":"provider_unavailable: status 503",
			"data":{"trace_id":"abc","status":"error","error_code":"provider_unavailable","total_cost":0.001}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	run, err := c.Run(context.Background(), TaskInput{InputText: "doomed", Execute: true})
	require.Error(t, err)

	// The finalized record comes back alongside the error.
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Partial)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Contains(t, apiErr.Message, "provider_unavailable")

	require.NotNil(t, run)
	assert.Equal(t, "error", run.Status)
	assert.Equal(t, "provider_unavailable", run.ErrorCode)
}

func TestClient_Run_PlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	run, err := c.Run(context.Background(), TaskInput{InputText: "x"})
	require.Error(t, err)
	assert.Nil(t, run)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.Partial)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestClient_Route(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"success":true,"data":{"model":"gpt-4o","reason":"router:level=2"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	d, err := c.Route(context.Background(), 2, "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", d.Model)
	assert.Equal(t, "router:level=2", d.Reason)

	// Empty override stays off the wire.
	assert.NotContains(t, gotBody, "model")

	_, err = c.Route(context.Background(), 1, "custom")
	require.NoError(t, err)
	assert.Contains(t, gotBody, `"model":"custom"`)
}

func TestClient_Runs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/runs", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"success":true,"data":{"runs":[
			{"id":2,"trace_id":"t2","model":"tiny","task_level":1,"total_cost":0.02,"actual_cost":0.018,"status":"ok"},
			{"id":1,"trace_id":"t1","model":"mid","task_level":2,"total_cost":0.01,"actual_cost":null,"status":"ok"}
		]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	runs, err := c.Runs(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(2), runs[0].ID)
	require.NotNil(t, runs[0].ActualCost)
	assert.Equal(t, 0.018, *runs[0].ActualCost)
	assert.Nil(t, runs[1].ActualCost)
}

func TestClient_Budget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{
			"per_call_default":1,"daily_cap":10,"spent_today":7.5,
			"zone":"warning","cumulative_cost":42.1}}`))
	}))
	defer srv.Close()

	b, err := New(srv.URL).Budget(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, b.PerCallDefault)
	assert.Equal(t, 7.5, b.SpentToday)
	assert.Equal(t, "warning", b.Zone)
}

func TestClient_Models(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"routing_mode":"cross","models":[
			{"id":"tiny","provider":"test","tier":1,"cost_tier":1,"available":true}]}}`))
	}))
	defer srv.Close()

	m, err := New(srv.URL).Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cross", m.RoutingMode)
	require.Len(t, m.Models, 1)
	assert.True(t, m.Models[0].Available)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL).Health(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	err := New(down.URL).Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestClient_TimeoutOption(t *testing.T) {
	c := New("http://localhost:1", WithTimeout(5*time.Second))
	assert.Equal(t, 5*time.Second, c.http.Timeout)
	assert.Equal(t, "http://localhost:1", c.baseURL)

	// Trailing slashes are normalized away.
	assert.Equal(t, "http://x", New("http://x/").baseURL)
}

func TestTools(t *testing.T) {
	tools := Tools()
	require.Len(t, tools, 3)

	names := make([]string, 0, 3)
	for _, tool := range tools {
		fn := tool["function"].(map[string]interface{})
		names = append(names, fn["name"].(string))
	}
	assert.Equal(t, []string{ToolRoute, ToolEstimate, ToolRun}, names)
}

func TestClient_DispatchToolCall(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"success":true,"data":{"model":"tiny","reason":"router:level=1"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	out, err := c.DispatchToolCall(context.Background(), ToolRoute, json.RawMessage(`{"level":1}`))
	require.NoError(t, err)
	assert.Equal(t, "/api/route", gotPath)
	assert.Equal(t, `{"level":1}`, gotBody)
	assert.JSONEq(t, `{"model":"tiny","reason":"router:level=1"}`, string(out))

	_, err = c.DispatchToolCall(context.Background(), "costwise_nuke", nil)
	assert.ErrorContains(t, err, "unknown tool")
}
