// Package events fans coordinator activity out to an event bus. Rendered log
// entries go to a per-session subject and coordinator state changes to a
// single subject, so external viewers can follow a chat without owning the
// session connection.
package events

import (
	"context"
	"strings"

	"github.com/alfredjeanlab/flowstudio/internal/render"
)

// Subjects
const (
	TopicCoordinatorState = "studio.coordinator.state"
	TopicAllEntries       = "studio.session.*.entry"
	TopicAll              = "studio.>"

	// DesignSession names the entry subject used when no session is active,
	// e.g. the single-workflow studio flavor.
	DesignSession = "_design"
)

// EntryTopic returns the subject for entries of sessionID. Characters NATS
// treats as token separators or wildcards are replaced with '_'.
func EntryTopic(sessionID string) string {
	if sessionID == "" {
		sessionID = DesignSession
	}
	return "studio.session." + subjectToken(sessionID) + ".entry"
}

func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// EntryAppended is published for every entry added to the live log.
type EntryAppended struct {
	SessionID  string       `json:"session_id,omitempty"`
	Generation uint64       `json:"generation"`
	Entry      render.Entry `json:"entry"`
}

// StateChanged is published after each coordinator turn that changed state.
type StateChanged struct {
	Flavor        string   `json:"flavor"`
	Mode          string   `json:"mode"`
	ActiveSession string   `json:"active_session,omitempty"`
	Sessions      []string `json:"sessions"`
	InputEnabled  bool     `json:"input_enabled"`
	Connection    string   `json:"connection"`
	Compiled      bool     `json:"compiled"`
	Generation    uint64   `json:"generation"`
	LogReset      bool     `json:"log_reset,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
