// Package presence keeps a live roster of chat sessions seen on the event
// bus. Watchers feed it the entry and state events published by chat
// clients; a background sweep marks sessions that stopped producing entries
// as quiet and eventually forgets them.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/flowstudio/internal/events"
)

// Entry is one session's activity snapshot.
type Entry struct {
	SessionID  string    `json:"session_id"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	LastKind   string    `json:"last_kind,omitempty"`   // kind of the latest entry
	LastSource string    `json:"last_source,omitempty"` // latest speaking agent
	Mode       string    `json:"mode,omitempty"`
	Connection string    `json:"connection,omitempty"`
	IdleSecs   float64   `json:"idle_secs"`
	EntryCount int64     `json:"entry_count"`
	Quiet      bool      `json:"quiet,omitempty"`
	QuietAt    time.Time `json:"quiet_at,omitempty"`
}

// ReaperConfig configures the background sweep.
type ReaperConfig struct {
	// QuietAfter is how long a session may go without events before it is
	// marked quiet. Default: 10 minutes.
	QuietAfter time.Duration

	// EvictAfter is how long a quiet session stays in the roster.
	// Default: 30 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the sweep runs. Default: 30 seconds.
	SweepInterval time.Duration

	// OnQuiet is called outside the lock for each session newly marked quiet.
	OnQuiet func(sessionID string)
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
	now      func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type sessionState struct {
	firstSeen  time.Time
	lastSeen   time.Time
	lastKind   string
	lastSource string
	mode       string
	connection string
	entryCount int64
	quiet      bool
	quietAt    time.Time
}

func New() *Tracker {
	return &Tracker{
		sessions: make(map[string]*sessionState),
		now:      time.Now,
	}
}

func sessionKey(id string) string {
	if id == "" {
		return events.DesignSession
	}
	return id
}

// touch returns the state for id, creating or reviving it. Callers hold mu.
func (t *Tracker) touch(id string) *sessionState {
	now := t.now()
	s, ok := t.sessions[id]
	if !ok {
		s = &sessionState{firstSeen: now}
		t.sessions[id] = s
	}
	if s.quiet {
		slog.Debug("presence: session active again", "session", id)
		s.quiet = false
		s.quietAt = time.Time{}
	}
	s.lastSeen = now
	return s
}

// RecordEntry notes an appended log entry.
func (t *Tracker) RecordEntry(ev events.EntryAppended) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.touch(sessionKey(ev.SessionID))
	s.entryCount++
	s.lastKind = string(ev.Entry.Kind)
	if ev.Entry.Source != "" {
		s.lastSource = ev.Entry.Source
	}
}

// RecordState notes a coordinator state change for its active session.
func (t *Tracker) RecordState(st events.StateChanged) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.touch(sessionKey(st.ActiveSession))
	s.mode = st.Mode
	s.connection = st.Connection
}

// Roster returns all tracked sessions, most recently active first. Sessions
// idle for longer than staleThreshold are left out; 0 includes everything.
func (t *Tracker) Roster(staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.sessions))
	for id, s := range t.sessions {
		idle := now.Sub(s.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}
		entries = append(entries, Entry{
			SessionID:  id,
			FirstSeen:  s.firstSeen,
			LastSeen:   s.lastSeen,
			LastKind:   s.lastKind,
			LastSource: s.lastSource,
			Mode:       s.mode,
			Connection: s.connection,
			IdleSecs:   idle.Seconds(),
			EntryCount: s.entryCount,
			Quiet:      s.quiet,
			QuietAt:    s.quietAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].SessionID < entries[j].SessionID
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches the background sweep. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	cfg = withDefaults(cfg)
	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})
	go t.reapLoop(cfg)
	slog.Debug("presence: reaper started", "quiet_after", cfg.QuietAfter, "sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the sweep goroutine, if running.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func withDefaults(cfg *ReaperConfig) *ReaperConfig {
	c := ReaperConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.QuietAfter == 0 {
		c.QuietAfter = 10 * time.Minute
	}
	if c.EvictAfter == 0 {
		c.EvictAfter = 30 * time.Minute
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 30 * time.Second
	}
	return &c
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()
	var newlyQuiet []string

	t.mu.Lock()
	for id, s := range t.sessions {
		if s.quiet {
			if now.Sub(s.quietAt) > cfg.EvictAfter {
				delete(t.sessions, id)
			}
			continue
		}
		if now.Sub(s.lastSeen) > cfg.QuietAfter {
			s.quiet = true
			s.quietAt = now
			newlyQuiet = append(newlyQuiet, id)
		}
	}
	t.mu.Unlock()

	sort.Strings(newlyQuiet)
	for _, id := range newlyQuiet {
		slog.Debug("presence: session quiet", "session", id, "threshold", cfg.QuietAfter)
		if cfg.OnQuiet != nil {
			cfg.OnQuiet(id)
		}
	}
}
