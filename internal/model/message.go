package model

import "time"

// Role is the conversational role of a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Message is one record of a session's history as returned by the backend.
type Message struct {
	Role       Role       `json:"role"`
	SenderName string     `json:"sender_name,omitempty"`
	SenderType string     `json:"sender_type,omitempty"`
	Content    string     `json:"content,omitempty"`
	Timestamp  string     `json:"timestamp,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall describes a function invocation requested by an assistant message.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// timestampLayouts covers RFC 3339 plus the zone-less ISO form some
// backends emit.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Time parses the message timestamp. Zone-less timestamps are taken as UTC.
func (m Message) Time() (time.Time, bool) {
	if m.Timestamp == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, m.Timestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
