// Package render turns protocol events and history messages into ordered,
// presentation-neutral log entries.
package render

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/flowstudio/internal/idgen"
)

// Kind classifies an entry for styling.
type Kind string

const (
	KindUserQuery     Kind = "user_query"
	KindDelegation    Kind = "delegation"
	KindToolCall      Kind = "tool_call"
	KindToolResponse  Kind = "tool_response"
	KindAgentResponse Kind = "agent_response"
	KindFinalResponse Kind = "final_response"
	KindError         Kind = "error"
	KindUnknown       Kind = "unknown"
	KindUserMessage   Kind = "user_message"
	KindAgentMessage  Kind = "agent_message"
	KindStatus        Kind = "status"
	KindPlaceholder   Kind = "placeholder"
)

// Field is one labelled value inside an entry, e.g. "Reasoning".
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Entry is one renderable log line.
type Entry struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Title       string          `json:"title,omitempty"`
	Source      string          `json:"source,omitempty"`
	Target      string          `json:"target,omitempty"`
	Body        string          `json:"body,omitempty"`
	Fields      []Field         `json:"fields,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	Timestamp   time.Time       `json:"timestamp,omitzero"`
	Placeholder bool            `json:"placeholder,omitempty"`
}

// Field returns the value of the named field.
func (e Entry) Field(label string) (string, bool) {
	for _, f := range e.Fields {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}

func newEntry(kind Kind, title string) Entry {
	return Entry{ID: idgen.Entry(), Kind: kind, Title: title}
}

// Status builds an informational entry such as "Connected to session.".
func Status(msg string) Entry {
	e := newEntry(KindStatus, "")
	e.Body = msg
	return e
}

// Failure builds an error entry for a local failure (transport, fetch).
func Failure(msg string) Entry {
	e := newEntry(KindError, "ERROR")
	e.Body = msg
	return e
}

// Unreadable builds the entry for an inbound frame that could not be
// decoded: the decode error and the frame as received.
func Unreadable(frame []byte, err error) Entry {
	e := newEntry(KindUnknown, "UNREADABLE FRAME")
	e.Fields = []Field{{Label: "Error", Value: err.Error()}}
	e.Body = prettyJSON(frame)
	if json.Valid(frame) {
		e.Raw = json.RawMessage(bytes.Clone(frame))
	}
	return e
}

// AwaitingResponse builds the placeholder shown while a query is unanswered.
func AwaitingResponse() Entry {
	e := newEntry(KindPlaceholder, "")
	e.Body = "Thinking..."
	e.Placeholder = true
	return e
}

// prettyJSON indents a JSON document. Text that is not JSON is returned as is.
func prettyJSON(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// UserMessage builds the local echo of a query the user just sent.
func UserMessage(text string) Entry {
	e := newEntry(KindUserMessage, "")
	e.Body = text
	e.Timestamp = time.Now()
	return e
}
