package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/flowstudio/internal/config"
	"github.com/alfredjeanlab/flowstudio/internal/model"
	"github.com/alfredjeanlab/flowstudio/internal/protocol"
	"github.com/gorilla/websocket"
)

// fakeBackend serves the REST API and a sessions-flavor WebSocket that
// answers every query with "echo: <query>".
type fakeBackend struct {
	srv *httptest.Server

	mu       sync.Mutex
	sessions []string
	history  map[string][]model.Message
	compiled int
	nextID   int
	deleted  []string
}

func newFakeBackend(t *testing.T, sessions ...string) *fakeBackend {
	t.Helper()
	b := &fakeBackend{sessions: sessions, history: map[string][]model.Message{}}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		ids := slices.Clone(b.sessions)
		b.mu.Unlock()
		if ids == nil {
			ids = []string{}
		}
		respondJSON(w, http.StatusOK, map[string]any{"sessions": ids})
	})
	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.nextID++
		id := fmt.Sprintf("new-%d", b.nextID)
		b.sessions = append(b.sessions, id)
		b.mu.Unlock()
		respondJSON(w, http.StatusOK, map[string]any{"session_id": id})
	})
	mux.HandleFunc("GET /api/v1/sessions/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		msgs := b.history[r.PathValue("id")]
		b.mu.Unlock()
		if msgs == nil {
			msgs = []model.Message{}
		}
		respondJSON(w, http.StatusOK, msgs)
	})
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		b.mu.Lock()
		b.sessions = slices.DeleteFunc(b.sessions, func(s string) bool { return s == id })
		b.deleted = append(b.deleted, id)
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/workflow/compile", func(w http.ResponseWriter, r *http.Request) {
		var g model.Graph
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
			return
		}
		b.mu.Lock()
		b.compiled++
		b.mu.Unlock()
		if len(g.Nodes) == 0 {
			respondJSON(w, http.StatusBadRequest, map[string]any{"detail": "Workflow is empty."})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"status": "compiled"})
	})
	mux.HandleFunc("POST /api/v1/workflow/export", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Graph  model.Graph `json:"graph"`
			Format string      `json:"format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
			return
		}
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "name: exported\nnodes: %d\n", len(req.Graph.Nodes))
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("GET /api/v1/workflow/tools/schemas", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"calculator": map[string]any{"properties": map[string]any{}},
			"web_search": map[string]any{
				"properties": map[string]any{
					"api_key":     map[string]any{"title": "API Key", "description": "Search provider key"},
					"max_results": map[string]any{"title": "Max Results"},
				},
				"required": []string{"api_key"},
			},
		})
	})
	mux.HandleFunc("GET /api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "workflow_loaded": true})
	})
	mux.HandleFunc("GET /ws/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var q struct {
				Query string `json:"query"`
			}
			if json.Unmarshal(data, &q) != nil {
				continue
			}
			reply := map[string]string{
				"response":  "echo: " + q.Query,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) compileCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.compiled
}

func (b *fakeBackend) deletedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.deleted)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// useBackend points the command globals at url, as PersistentPreRunE would.
func useBackend(t *testing.T, url string) {
	t.Helper()
	stateDir := t.TempDir()
	t.Setenv("STUDIO_STATE_DIR", stateDir)
	cfg = &config.Config{
		URL:         url,
		APIPrefix:   config.DefaultAPIPrefix,
		Flavor:      protocol.FlavorSessions,
		HTTPTimeout: 5 * time.Second,
		StateDir:    stateDir,
		S3Region:    config.DefaultS3Region,
	}
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	studioClient = newClient(cfg)
	t.Cleanup(func() {
		cfg, logger, studioClient = nil, nil, nil
		jsonOutput = false
	})
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
