package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/flowstudio/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string // URL-encoded path (for testing PathEscape)
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler, opts ...Option) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL, opts...)
	return c, srv
}

func sampleGraph() model.Graph {
	return model.Graph{
		Nodes: []model.Node{
			{ID: "u1", Label: "User", Type: model.NodeUser, Config: map[string]any{}},
			{ID: "a1", Label: "DefaultAgent", Type: model.NodeAgent, Config: map[string]any{
				model.KeySystemMessage: "You are a helpful assistant.",
			}},
		},
		Edges: []model.Edge{{Source: "u1", Target: "a1"}},
	}
}

// --- Sessions ---

func TestHTTPClient_ListSessions(t *testing.T) {
	h := &testHandler{responseBody: `{"sessions":["s-1","s-2"]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	ids, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if h.method != http.MethodGet {
		t.Errorf("method = %q, want GET", h.method)
	}
	if h.path != "/api/v1/sessions" {
		t.Errorf("path = %q, want /api/v1/sessions", h.path)
	}
	if len(ids) != 2 || ids[0] != "s-1" || ids[1] != "s-2" {
		t.Errorf("ids = %v, want [s-1 s-2]", ids)
	}
}

func TestHTTPClient_ListSessions_Empty(t *testing.T) {
	h := &testHandler{responseBody: `{"sessions":null}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	ids, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("ids = %#v, want empty non-nil slice", ids)
	}
}

func TestHTTPClient_CreateSession(t *testing.T) {
	h := &testHandler{statusCode: http.StatusCreated, responseBody: `{"session_id":"s-new"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	id, err := c.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if h.method != http.MethodPost || h.path != "/api/v1/sessions" {
		t.Errorf("request = %s %s, want POST /api/v1/sessions", h.method, h.path)
	}
	if id != "s-new" {
		t.Errorf("id = %q, want s-new", id)
	}
}

func TestHTTPClient_CreateSession_MissingID(t *testing.T) {
	h := &testHandler{responseBody: `{}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.CreateSession(context.Background()); err == nil {
		t.Fatal("expected error for missing session_id")
	}
}

func TestHTTPClient_GetHistory(t *testing.T) {
	h := &testHandler{responseBody: `[
		{"role":"user","sender_name":"User","content":"hi","timestamp":"2026-01-15T10:00:00Z"},
		{"role":"assistant","sender_name":"Boss","sender_type":"SUPERVISOR","tool_calls":[
			{"id":"c1","type":"function","function":{"name":"delegate_to_Writer","arguments":"{\"reasoning\":\"words\"}"}}
		]}
	]`}
	c, srv := newTestClient(h)
	defer srv.Close()

	msgs, err := c.GetHistory(context.Background(), "s/1")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if h.rawPath != "/api/v1/sessions/s%2F1/history" {
		t.Errorf("rawPath = %q, want escaped session id", h.rawPath)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[0].Content != "hi" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if got := msgs[1].ToolCalls[0].Function.Name; got != "delegate_to_Writer" {
		t.Errorf("tool call name = %q", got)
	}
}

func TestHTTPClient_DeleteSession(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h)
	defer srv.Close()

	if err := c.DeleteSession(context.Background(), "s-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if h.method != http.MethodDelete || h.path != "/api/v1/sessions/s-1" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
}

func TestHTTPClient_DeleteSession_NotFound(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNotFound, responseBody: `{"detail":"Session not found."}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	err := c.DeleteSession(context.Background(), "gone")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Session not found." {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

// --- Workflow ---

func TestHTTPClient_CompileWorkflow(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if err := c.CompileWorkflow(context.Background(), sampleGraph()); err != nil {
		t.Fatalf("CompileWorkflow: %v", err)
	}
	if h.path != "/api/v1/workflow/compile" {
		t.Errorf("path = %q", h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("Content-Type = %q", h.contentType)
	}
	var sent model.Graph
	if err := json.Unmarshal([]byte(h.body), &sent); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(sent.Nodes) != 2 || sent.Edges[0].Target != "a1" {
		t.Errorf("sent graph = %+v", sent)
	}
}

func TestHTTPClient_CompileWorkflow_Rejected(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		want string
	}{
		{"DetailString", `{"detail":"Workflow must contain a User node."}`, "Workflow must contain a User node."},
		{"DetailList", `{"detail":[{"loc":["body"],"msg":"field required"}]}`, `[{"loc":["body"],"msg":"field required"}]`},
		{"ErrorField", `{"error":"boom"}`, "boom"},
		{"PlainText", "internal failure\n", "internal failure"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{statusCode: http.StatusBadRequest, responseBody: tc.body}
			c, srv := newTestClient(h)
			defer srv.Close()

			err := c.CompileWorkflow(context.Background(), model.Graph{})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.Message != tc.want {
				t.Errorf("Message = %q, want %q", apiErr.Message, tc.want)
			}
		})
	}
}

func TestHTTPClient_ExportWorkflow(t *testing.T) {
	h := &testHandler{responseBody: "workflow:\n  name: demo\n"}
	c, srv := newTestClient(h)
	defer srv.Close()

	out, err := c.ExportWorkflow(context.Background(), sampleGraph(), "")
	if err != nil {
		t.Fatalf("ExportWorkflow: %v", err)
	}
	if string(out) != "workflow:\n  name: demo\n" {
		t.Errorf("artifact = %q", out)
	}
	var req ExportRequest
	if err := json.Unmarshal([]byte(h.body), &req); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if req.Format != "yaml" {
		t.Errorf("format = %q, want yaml", req.Format)
	}
	if len(req.Graph.Nodes) != 2 {
		t.Errorf("graph nodes = %d, want 2", len(req.Graph.Nodes))
	}
}

func TestHTTPClient_GetToolSchemas(t *testing.T) {
	h := &testHandler{responseBody: `{
		"calculator": {"properties": {"precision": {"title": "Precision", "description": "Decimal places"}}},
		"search": {"properties": {}}
	}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	schemas, err := c.GetToolSchemas(context.Background())
	if err != nil {
		t.Fatalf("GetToolSchemas: %v", err)
	}
	if h.path != "/api/v1/workflow/tools/schemas" {
		t.Errorf("path = %q", h.path)
	}
	kinds := schemas.Kinds()
	if len(kinds) != 2 || kinds[0] != "calculator" {
		t.Errorf("kinds = %v", kinds)
	}
	if got := schemas["calculator"].Properties["precision"].Title; got != "Precision" {
		t.Errorf("precision title = %q", got)
	}
}

// --- Status ---

func TestHTTPClient_Status(t *testing.T) {
	for _, tc := range []struct {
		name      string
		body      string
		wantReady bool
	}{
		{"StudioLoaded", `{"status":"ok","workflow_status":"loaded","root_node":"Boss"}`, true},
		{"StudioEmpty", `{"status":"ok","workflow_status":"not_loaded","root_node":"None"}`, false},
		{"SessionsLoaded", `{"status":"ok","workflow_loaded":true}`, true},
		{"SessionsError", `{"status":"error","workflow_loaded":false}`, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{responseBody: tc.body}
			c, srv := newTestClient(h)
			defer srv.Close()

			st, err := c.Status(context.Background())
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if st.Ready() != tc.wantReady {
				t.Errorf("Ready() = %v, want %v", st.Ready(), tc.wantReady)
			}
		})
	}
}

// --- Options ---

func TestHTTPClient_Options(t *testing.T) {
	h := &testHandler{responseBody: `{"sessions":[]}`}
	c, srv := newTestClient(h, WithToken("secret"), WithPrefix("api/v2/"))
	defer srv.Close()

	if _, err := c.ListSessions(context.Background()); err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if h.auth != "Bearer secret" {
		t.Errorf("Authorization = %q", h.auth)
	}
	if h.path != "/api/v2/sessions" {
		t.Errorf("path = %q, want /api/v2/sessions", h.path)
	}
}

func TestHTTPClient_EmptyPrefix(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	c, srv := newTestClient(h, WithPrefix(""))
	defer srv.Close()

	if _, err := c.Status(context.Background()); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if h.path != "/status" {
		t.Errorf("path = %q, want /status", h.path)
	}
	if h.auth != "" {
		t.Errorf("Authorization = %q, want none", h.auth)
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.ListSessions(context.Background())
	if err == nil || !strings.Contains(err.Error(), "performing request") {
		t.Fatalf("err = %v, want request failure", err)
	}
}

func TestHTTPClient_TrailingSlash(t *testing.T) {
	c := NewHTTPClient("http://localhost:8000///")
	if c.BaseURL() != "http://localhost:8000" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
}

func TestHTTPClient_ImplementsStudioClient(t *testing.T) {
	var _ StudioClient = (*HTTPClient)(nil)
}
