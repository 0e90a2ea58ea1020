package coordinator

import (
	"context"
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

	"github.com/alfredjeanlab/flowstudio/internal/client"
	"github.com/alfredjeanlab/flowstudio/internal/directory"
	"github.com/alfredjeanlab/flowstudio/internal/graph"
	"github.com/alfredjeanlab/flowstudio/internal/model"
	"github.com/alfredjeanlab/flowstudio/internal/protocol"
	"github.com/alfredjeanlab/flowstudio/internal/render"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// serverConn is the server side of one session connection.
type serverConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *serverConn) sendJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *serverConn) sendEvent(tag string, data any) error {
	return s.sendJSON(map[string]any{"type": tag, "data": data})
}

func (s *serverConn) closeWith(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

// fakeStudio is an in-process studio backend: the REST API under /api/v1
// plus /ws and /ws/sessions/{id}.
type fakeStudio struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	sessions     []string
	history      map[string][]model.Message
	historyFail  bool
	historyGate  map[string]chan struct{}
	nextID       int
	historyCalls map[string]int
	connects     map[string]int
	conns        map[string]*serverConn
	received     map[string][]string
	compiled     []model.Graph
	closedByPeer map[string]int
}

var upgrader = websocket.Upgrader{}

func newFakeStudio(t *testing.T, sessions ...string) *fakeStudio {
	t.Helper()
	f := &fakeStudio{
		t:            t,
		sessions:     sessions,
		history:      map[string][]model.Message{},
		historyCalls: map[string]int{},
		historyGate:  map[string]chan struct{}{},
		connects:     map[string]int{},
		conns:        map[string]*serverConn{},
		received:     map[string][]string{},
		closedByPeer: map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		ids := slices.Clone(f.sessions)
		f.mu.Unlock()
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
	})
	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.nextID++
		id := fmt.Sprintf("s-%d", f.nextID)
		f.sessions = append(f.sessions, id)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id})
	})
	mux.HandleFunc("GET /api/v1/sessions/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		f.historyCalls[id]++
		fail := f.historyFail
		gate := f.historyGate[id]
		f.mu.Unlock()
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		f.mu.Lock()
		msgs := f.history[id]
		f.mu.Unlock()
		if fail {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "history store unavailable"})
			return
		}
		if msgs == nil {
			msgs = []model.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	})
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		f.sessions = slices.DeleteFunc(f.sessions, func(s string) bool { return s == id })
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/workflow/compile", func(w http.ResponseWriter, r *http.Request) {
		var g model.Graph
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &g); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
			return
		}
		f.mu.Lock()
		f.compiled = append(f.compiled, g)
		f.mu.Unlock()
		if len(g.Nodes) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Workflow is empty."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "compiled"})
	})
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		f.serveWS(w, r, "")
	})
	mux.HandleFunc("GET /ws/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.serveWS(w, r, r.PathValue("id"))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeStudio) serveWS(w http.ResponseWriter, r *http.Request, key string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	sc := &serverConn{conn: conn}

	f.mu.Lock()
	f.connects[key]++
	f.conns[key] = sc
	f.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				f.mu.Lock()
				f.closedByPeer[key]++
				f.mu.Unlock()
			}
			return
		}
		f.mu.Lock()
		f.received[key] = append(f.received[key], string(data))
		f.mu.Unlock()
	}
}

func (f *fakeStudio) setHistory(id string, msgs ...model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[id] = msgs
}

// holdHistory makes history requests for id wait until the returned func is
// called.
func (f *fakeStudio) holdHistory(id string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.historyGate[id] = gate
	f.mu.Unlock()
	var once sync.Once
	release = func() { once.Do(func() { close(gate) }) }
	f.t.Cleanup(release)
	return release
}

func (f *fakeStudio) failHistory() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyFail = true
}

func (f *fakeStudio) compiledGraphs() []model.Graph {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.compiled)
}

func (f *fakeStudio) counts(id string) (history, connects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyCalls[id], f.connects[id]
}

func (f *fakeStudio) totalConnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.connects {
		n += c
	}
	return n
}

func (f *fakeStudio) frames(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.received[key])
}

func (f *fakeStudio) peerCloses(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closedByPeer[key]
}

func (f *fakeStudio) sessionIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sessions)
}

// conn waits for the latest server-side connection for key.
func (f *fakeStudio) conn(key string) *serverConn {
	f.t.Helper()
	var sc *serverConn
	require.Eventually(f.t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		sc = f.conns[key]
		return sc != nil
	}, 2*time.Second, 5*time.Millisecond)
	return sc
}

func clientFor(f *fakeStudio) *client.HTTPClient {
	return client.NewHTTPClient(f.srv.URL)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingPublisher captures published topics.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.topics)
}

type setup struct {
	flavor    protocol.Flavor
	memory    directory.Memory
	graph     *graph.Editor
	publisher *recordingPublisher
}

func newCoordinator(t *testing.T, f *fakeStudio, s setup) *Coordinator {
	t.Helper()
	if s.flavor == "" {
		s.flavor = protocol.FlavorSessions
	}
	if s.memory == nil {
		s.memory = &directory.InMemory{}
	}
	opts := Options{
		Flavor:  s.flavor,
		BaseURL: f.srv.URL,
		Memory:  s.memory,
		Graph:   s.graph,
		Logger:  quietLogger(),
	}
	if s.publisher != nil {
		opts.Publisher = s.publisher
	}
	c := New(clientFor(f), opts)
	t.Cleanup(c.Close)
	return c
}

// entryBodies lists the bodies of non-status entries.
func entryBodies(entries []render.Entry) []string {
	var out []string
	for _, e := range entries {
		if e.Kind == render.KindStatus {
			continue
		}
		out = append(out, e.Body)
	}
	return out
}

func placeholders(entries []render.Entry) int {
	n := 0
	for _, e := range entries {
		if e.Placeholder {
			n++
		}
	}
	return n
}

func hasEntry(entries []render.Entry, kind render.Kind, body string) bool {
	return slices.ContainsFunc(entries, func(e render.Entry) bool {
		return e.Kind == kind && e.Body == body
	})
}

func userMsg(content string) model.Message {
	return model.Message{Role: model.RoleUser, SenderType: "user", Content: content}
}

func agentMsg(name, content string) model.Message {
	return model.Message{Role: model.RoleAssistant, SenderName: name, SenderType: "agent", Content: content}
}
