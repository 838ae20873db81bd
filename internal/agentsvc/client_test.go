package agentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"agentctl/internal/config"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/openai/openai-go/v2/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]interface{}
}

// fakeAPI serves canned JSON per "METHOD path" and records every request.
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string]string
	requests  []recordedRequest
}

func newFakeAPI(t *testing.T, responses map[string]string) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{responses: responses}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone()}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		api.mu.Lock()
		api.requests = append(api.requests, rec)
		api.mu.Unlock()

		body, ok := responses[r.Method+" "+r.URL.Path]
		if !ok {
			http.Error(w, `{"error":{"message":"not found"}}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := NewClient(config.ServiceConfig{
		Endpoint:   endpoint,
		APIVersion: "v1",
		Auth:       config.AuthConfig{Mode: config.AuthModeAPIKey, APIKey: "test-key"},
	}, option.WithMaxRetries(0))
	require.NoError(t, err)
	return c
}

func TestClient_GetRun_RequiresAction(t *testing.T) {
	api, srv := newFakeAPI(t, map[string]string{
		"GET /threads/thread_1/runs/run_1": `{
			"id": "run_1", "object": "thread.run", "thread_id": "thread_1", "status": "requires_action",
			"required_action": {"type": "submit_tool_outputs", "submit_tool_outputs": {"tool_calls": [
				{"id": "call_a", "type": "function", "function": {"name": "lookup", "arguments": "{\"q\":\"x\"}"}},
				{"id": "call_b", "type": "function", "function": {"name": "clock", "arguments": "{}"}}
			]}}
		}`,
	})
	c := newTestClient(t, srv.URL)

	run, err := c.GetRun(context.Background(), "thread_1", "run_1")
	require.NoError(t, err)

	assert.Equal(t, RunStatusRequiresAction, run.Status)
	assert.Equal(t, ThreadID("thread_1"), run.ThreadID)
	require.Len(t, run.RequiredAction, 2)
	assert.Equal(t, ToolCall{ID: "call_a", Name: "lookup", Arguments: `{"q":"x"}`}, run.RequiredAction[0])
	assert.Equal(t, "clock", run.RequiredAction[1].Name)
	assert.Nil(t, run.LastError)

	req := api.last()
	assert.Equal(t, "test-key", req.Header.Get("api-key"))
	assert.Contains(t, req.Query, "api-version=v1")
}

func TestClient_GetRun_FailedAndExpired(t *testing.T) {
	_, srv := newFakeAPI(t, map[string]string{
		"GET /threads/t/runs/failed": `{"id": "failed", "thread_id": "t", "status": "failed",
			"last_error": {"code": "rate_limit_exceeded", "message": "rate limited"}}`,
		"GET /threads/t/runs/expired": `{"id": "expired", "thread_id": "t", "status": "expired"}`,
	})
	c := newTestClient(t, srv.URL)

	run, err := c.GetRun(context.Background(), "t", "failed")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	require.NotNil(t, run.LastError)
	assert.Equal(t, "rate limited", run.LastError.Message)
	assert.Equal(t, "rate_limit_exceeded", run.LastError.Code)

	run, err = c.GetRun(context.Background(), "t", "expired")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	require.NotNil(t, run.LastError)
	assert.Equal(t, "run expired", run.LastError.Message)
}

func TestClient_SubmitToolOutputs_SendsOneBatch(t *testing.T) {
	api, srv := newFakeAPI(t, map[string]string{
		"POST /threads/t/runs/r/submit_tool_outputs": `{"id": "r", "thread_id": "t", "status": "queued"}`,
	})
	c := newTestClient(t, srv.URL)

	run, err := c.SubmitToolOutputs(context.Background(), "t", "r", []ToolOutput{
		{ToolCallID: "call_a", Output: "42"},
		{ToolCallID: "call_b", Output: "error: unknown tool Y"},
	})
	require.NoError(t, err)
	assert.Equal(t, RunStatusQueued, run.Status)

	req := api.last()
	outputs, ok := req.Body["tool_outputs"].([]interface{})
	require.True(t, ok, "tool_outputs missing from body: %v", req.Body)
	require.Len(t, outputs, 2)
	first := outputs[0].(map[string]interface{})
	assert.Equal(t, "call_a", first["tool_call_id"])
	assert.Equal(t, "42", first["output"])
}

func TestClient_ListMessages(t *testing.T) {
	api, srv := newFakeAPI(t, map[string]string{
		"GET /threads/t/messages": `{"object": "list", "has_more": false, "data": [
			{"id": "msg_2", "object": "thread.message", "role": "assistant", "created_at": 1700000000,
			 "content": [
				{"type": "image_file", "image_file": {"file_id": "f"}},
				{"type": "text", "text": {"value": "Hello there", "annotations": []}}
			 ]}
		]}`,
	})
	c := newTestClient(t, srv.URL)

	msgs, err := c.ListMessages(context.Background(), "t", ListOptions{Order: OrderDescending, Limit: 1})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
	text, ok := msgs[0].LastText()
	assert.True(t, ok)
	assert.Equal(t, "Hello there", text)
	assert.Equal(t, "image_file", msgs[0].Content[0].Type)

	req := api.last()
	assert.Contains(t, req.Query, "order=desc")
	assert.Contains(t, req.Query, "limit=1")
}

func TestClient_CreateAgentDeclaresTools(t *testing.T) {
	api, srv := newFakeAPI(t, map[string]string{
		"POST /assistants": `{"id": "asst_1", "object": "assistant", "model": "gpt-4o"}`,
	})
	c := newTestClient(t, srv.URL)

	id, err := c.CreateAgent(context.Background(), AgentSpec{
		Model:        "gpt-4o",
		Name:         "microsoft-agent",
		Instructions: "You are an expert on Microsoft Information",
		Tools: []ToolDefinition{{
			Name:        "get_info",
			Description: "Look up information",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, AgentID("asst_1"), id)

	body := api.last().Body
	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, "microsoft-agent", body["name"])
	tools, ok := body["tools"].([]interface{})
	require.True(t, ok)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]interface{})["function"].(map[string]interface{})
	assert.Equal(t, "get_info", fn["name"])
}

type fakeCredential struct {
	calls int
	err   error
}

func (f *fakeCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.calls++
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{Token: "tok-" + opts.Scopes[0], ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func TestClient_AzureAuthUsesCachedBearerToken(t *testing.T) {
	cred := &fakeCredential{}
	original := newDefaultCredential
	newDefaultCredential = func() (azcore.TokenCredential, error) { return cred, nil }
	t.Cleanup(func() { newDefaultCredential = original })

	api, srv := newFakeAPI(t, map[string]string{
		"POST /threads": `{"id": "thread_1", "object": "thread"}`,
	})
	c, err := NewClient(config.ServiceConfig{
		Endpoint: srv.URL,
		Auth:     config.AuthConfig{Mode: config.AuthModeAzure, Scope: "scope-x"},
	}, option.WithMaxRetries(0))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		id, err := c.CreateThread(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ThreadID("thread_1"), id)
	}

	assert.Equal(t, "Bearer tok-scope-x", api.last().Header.Get("Authorization"))
	assert.Equal(t, 1, cred.calls)
}

func TestClient_AzureAuthFailure(t *testing.T) {
	cred := &fakeCredential{err: errors.New("no login")}
	original := newDefaultCredential
	newDefaultCredential = func() (azcore.TokenCredential, error) { return cred, nil }
	t.Cleanup(func() { newDefaultCredential = original })

	_, srv := newFakeAPI(t, map[string]string{"POST /threads": `{"id": "thread_1"}`})
	c, err := NewClient(config.ServiceConfig{Endpoint: srv.URL}, option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = c.CreateThread(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no login")
}

func TestNewClient_RejectsBadConfig(t *testing.T) {
	_, err := NewClient(config.ServiceConfig{})
	assert.Error(t, err)

	_, err = NewClient(config.ServiceConfig{Endpoint: "https://x", Auth: config.AuthConfig{Mode: config.AuthModeAPIKey}})
	assert.Error(t, err)

	_, err = NewClient(config.ServiceConfig{Endpoint: "https://x", Auth: config.AuthConfig{Mode: "kerberos"}})
	assert.Error(t, err)
}

func TestMessage_LastText(t *testing.T) {
	msg := Message{Content: []ContentPart{{Type: ContentTypeText, Text: "first"}, {Type: ContentTypeText, Text: "second"}, {Type: "image_file"}}}
	text, ok := msg.LastText()
	assert.True(t, ok)
	assert.Equal(t, "second", text)

	_, ok = Message{Content: []ContentPart{{Type: "image_file"}}}.LastText()
	assert.False(t, ok)
}
