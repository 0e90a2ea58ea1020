package render

import (
	"slices"

	"github.com/alfredjeanlab/flowstudio/internal/protocol"
)

// Log is the ordered list of entries for the live session, including at most
// one "awaiting response" placeholder. A Log is not safe for concurrent use;
// callers serialize access.
type Log struct {
	entries     []Entry
	placeholder string // id of the outstanding placeholder, if any
}

// NewLog returns an empty log.
func NewLog() *Log { return &Log{} }

// Append adds an entry at the end.
func (l *Log) Append(e Entry) {
	l.entries = append(l.entries, e)
}

// Submit records an outbound query: it appends the placeholder unless one is
// already outstanding, and returns the outstanding placeholder.
func (l *Log) Submit() Entry {
	if l.placeholder != "" {
		if i := l.index(l.placeholder); i >= 0 {
			return l.entries[i]
		}
	}
	p := AwaitingResponse()
	l.placeholder = p.ID
	l.entries = append(l.entries, p)
	return p
}

// Apply interprets one inbound event. Any frame other than WORKFLOW_END first
// removes the outstanding placeholder. It returns the appended entry, or
// false when the event was suppressed.
func (l *Log) Apply(ev protocol.Event) (Entry, bool) {
	if protocol.IsEnd(ev) {
		return Entry{}, false
	}
	l.ClearPlaceholder()
	e, ok := Interpret(ev)
	if ok {
		l.entries = append(l.entries, e)
	}
	return e, ok
}

// Reject records a frame that could not be decoded. Like any other answer it
// removes the outstanding placeholder.
func (l *Log) Reject(frame []byte, err error) Entry {
	l.ClearPlaceholder()
	e := Unreadable(frame, err)
	l.entries = append(l.entries, e)
	return e
}

// ClearPlaceholder removes the outstanding placeholder and reports whether
// there was one.
func (l *Log) ClearPlaceholder() bool {
	if l.placeholder == "" {
		return false
	}
	id := l.placeholder
	l.placeholder = ""
	if i := l.index(id); i >= 0 {
		l.entries = slices.Delete(l.entries, i, i+1)
		return true
	}
	return false
}

// Pending reports whether a placeholder is outstanding.
func (l *Log) Pending() bool { return l.placeholder != "" }

// Reset discards every entry.
func (l *Log) Reset() {
	l.entries = nil
	l.placeholder = ""
}

// Len returns the number of entries, placeholder included.
func (l *Log) Len() int { return len(l.entries) }

// Entries returns a copy of the entries in order.
func (l *Log) Entries() []Entry {
	return slices.Clone(l.entries)
}

func (l *Log) index(id string) int {
	return slices.IndexFunc(l.entries, func(e Entry) bool { return e.ID == id })
}
