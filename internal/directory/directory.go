// Package directory tracks the known chat sessions, the active session and
// the remembered last session, over the backend's session endpoints.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/alfredjeanlab/flowstudio/internal/model"
)

// Backend is the subset of the studio client the directory needs.
type Backend interface {
	ListSessions(ctx context.Context) ([]string, error)
	CreateSession(ctx context.Context) (string, error)
	GetHistory(ctx context.Context, sessionID string) ([]model.Message, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Memory persists the last activated session id across restarts.
type Memory interface {
	Remembered() (string, error)
	Remember(id string) error
	Forget() error
}

// FetchError reports a failed backend call. Reads that fail degrade to an
// empty result alongside this error.
type FetchError struct {
	Op  string // e.g. "load session list"
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("could not %s: %v", e.Op, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// Directory owns the active-session pointer.
type Directory struct {
	backend Backend
	memory  Memory
	logger  *slog.Logger

	mu     sync.Mutex
	active string
	known  []string
}

// New creates a directory. A nil memory keeps the remembered id in process.
func New(backend Backend, memory Memory, logger *slog.Logger) *Directory {
	if memory == nil {
		memory = &InMemory{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{backend: backend, memory: memory, logger: logger}
}

// List fetches the session ids in server order. On failure it returns an
// empty list and a *FetchError.
func (d *Directory) List(ctx context.Context) ([]string, error) {
	ids, err := d.backend.ListSessions(ctx)
	if err != nil {
		d.logger.Warn("list sessions failed", "error", err)
		return []string{}, &FetchError{Op: "load session list", Err: err}
	}
	d.mu.Lock()
	d.known = slices.Clone(ids)
	d.mu.Unlock()
	return ids, nil
}

// Create asks the backend for a new session. The new session is not
// activated.
func (d *Directory) Create(ctx context.Context) (string, error) {
	id, err := d.backend.CreateSession(ctx)
	if err != nil {
		d.logger.Warn("create session failed", "error", err)
		return "", &FetchError{Op: "create new session", Err: err}
	}
	d.mu.Lock()
	if !slices.Contains(d.known, id) {
		d.known = append(d.known, id)
	}
	d.mu.Unlock()
	d.logger.Info("session created", "session", id)
	return id, nil
}

// Delete removes a session. Deleting the active session clears the active
// pointer and the remembered id; the caller re-initializes.
func (d *Directory) Delete(ctx context.Context, id string) error {
	if err := d.backend.DeleteSession(ctx, id); err != nil {
		d.logger.Warn("delete session failed", "session", id, "error", err)
		return &FetchError{Op: "delete session " + id, Err: err}
	}
	d.mu.Lock()
	d.known = slices.DeleteFunc(d.known, func(s string) bool { return s == id })
	wasActive := d.active == id
	if wasActive {
		d.active = ""
	}
	d.mu.Unlock()

	if wasActive {
		if err := d.memory.Forget(); err != nil {
			d.logger.Warn("forget session failed", "error", err)
		}
	}
	d.logger.Info("session deleted", "session", id, "was_active", wasActive)
	return nil
}

// History fetches a session's messages. On failure it returns an empty
// history and a *FetchError.
func (d *Directory) History(ctx context.Context, id string) ([]model.Message, error) {
	msgs, err := d.backend.GetHistory(ctx, id)
	if err != nil {
		d.logger.Warn("fetch history failed", "session", id, "error", err)
		return []model.Message{}, &FetchError{Op: "load history for session " + id, Err: err}
	}
	return msgs, nil
}

// Activate makes id the active session and remembers it. It returns false,
// doing nothing, when id is already active.
func (d *Directory) Activate(id string) bool {
	d.mu.Lock()
	if d.active == id {
		d.mu.Unlock()
		return false
	}
	d.active = id
	d.mu.Unlock()

	if err := d.memory.Remember(id); err != nil {
		d.logger.Warn("remember session failed", "session", id, "error", err)
	}
	return true
}

// Deactivate clears the active pointer without forgetting the remembered id.
func (d *Directory) Deactivate() {
	d.mu.Lock()
	d.active = ""
	d.mu.Unlock()
}

// Active returns the active session id, or "".
func (d *Directory) Active() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Known returns the ids from the most recent List, plus sessions created
// since.
func (d *Directory) Known() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.known)
}

// Resolve picks the session to open at startup: the remembered id if it is
// still listed, else the first listed session, else "".
func (d *Directory) Resolve(sessions []string) string {
	remembered, err := d.memory.Remembered()
	if err != nil {
		d.logger.Warn("read remembered session failed", "error", err)
	}
	if remembered != "" && slices.Contains(sessions, remembered) {
		return remembered
	}
	if len(sessions) > 0 {
		return sessions[0]
	}
	return ""
}

// InMemory is a Memory that lives only as long as the process.
type InMemory struct {
	mu sync.Mutex
	id string
}

func (m *InMemory) Remembered() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

func (m *InMemory) Remember(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	return nil
}

func (m *InMemory) Forget() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = ""
	return nil
}
