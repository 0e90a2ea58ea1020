package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alfredjeanlab/flowstudio/internal/model"
)

// DefaultAPIPrefix is the path prefix of every REST route.
const DefaultAPIPrefix = "/api/v1"

// HTTPClient implements StudioClient using the studio HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	prefix     string
	token      string
	httpClient *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithToken sets a bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *HTTPClient) { c.token = token }
}

// WithPrefix overrides the REST path prefix. An empty prefix mounts routes
// at the root.
func WithPrefix(prefix string) Option {
	return func(c *HTTPClient) { c.prefix = normalizePrefix(prefix) }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8000").
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		prefix:     DefaultAPIPrefix,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root without the API prefix.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Sessions ---

func (c *HTTPClient) ListSessions(ctx context.Context) ([]string, error) {
	var resp struct {
		Sessions []string `json:"sessions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Sessions == nil {
		return []string{}, nil
	}
	return resp.Sessions, nil
}

func (c *HTTPClient) CreateSession(ctx context.Context) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", nil, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("create session: server returned no session_id")
	}
	return resp.SessionID, nil
}

func (c *HTTPClient) GetHistory(ctx context.Context, sessionID string) ([]model.Message, error) {
	var msgs []model.Message
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/history", nil, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

func (c *HTTPClient) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// --- Workflow ---

// CompileWorkflow submits the graph for compilation. A rejection is returned
// as an *APIError whose Message carries the server's detail text.
func (c *HTTPClient) CompileWorkflow(ctx context.Context, g model.Graph) error {
	return c.doJSON(ctx, http.MethodPost, "/workflow/compile", g, nil)
}

// ExportWorkflow returns the textual artifact for the graph in the given
// format (yaml when empty).
func (c *HTTPClient) ExportWorkflow(ctx context.Context, g model.Graph, format string) ([]byte, error) {
	if format == "" {
		format = DefaultExportFormat
	}
	return c.do(ctx, http.MethodPost, "/workflow/export", &ExportRequest{Graph: g, Format: format})
}

func (c *HTTPClient) GetToolSchemas(ctx context.Context) (model.ToolSchemas, error) {
	schemas := model.ToolSchemas{}
	if err := c.doJSON(ctx, http.MethodGet, "/workflow/tools/schemas", nil, &schemas); err != nil {
		return nil, err
	}
	return schemas, nil
}

// --- Status ---

func (c *HTTPClient) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	respBody, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// do performs the request and returns the raw response body. Status codes of
// 400 and above become an *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+c.prefix+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, nil
}

// errorMessage extracts the human-readable reason from an error body. Servers
// answer with {"detail": "..."} or {"error": "..."}; a structured detail is
// kept as compact JSON.
func errorMessage(body []byte) string {
	var errResp struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if len(errResp.Detail) > 0 && string(errResp.Detail) != "null" {
			var s string
			if json.Unmarshal(errResp.Detail, &s) == nil {
				return s
			}
			var buf bytes.Buffer
			if json.Compact(&buf, errResp.Detail) == nil {
				return buf.String()
			}
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}
	return strings.TrimSpace(string(body))
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}
