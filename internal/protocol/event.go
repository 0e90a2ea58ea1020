// Package protocol defines the session wire protocol: the tagged inbound
// event frames emitted during multi-agent execution, the auxiliary error and
// reply frames, and the outbound query encodings.
package protocol

import (
	"bytes"
	"encoding/json"
)

// Tag identifies an inbound event kind.
type Tag string

const (
	TagWorkflowStart      Tag = "WORKFLOW_START"
	TagSupervisorDelegate Tag = "SUPERVISOR_DELEGATE"
	TagAgentToolCall      Tag = "AGENT_TOOL_CALL"
	TagAgentToolResponse  Tag = "AGENT_TOOL_RESPONSE"
	TagAgentResponse      Tag = "AGENT_RESPONSE"
	TagFinalResponse      Tag = "FINAL_RESPONSE"
	TagError              Tag = "ERROR"
	TagWorkflowEnd        Tag = "WORKFLOW_END"

	// Frames outside the tagged union.
	TagErrorFrame Tag = "error"
	TagReply      Tag = "response"
)

// Event is one decoded inbound frame. The concrete types form a closed set;
// Unknown carries any tag this client does not recognize.
type Event interface {
	Tag() Tag
}

// Party names the sender or recipient of an event.
type Party struct {
	Name string `json:"name"`
}

// UnmarshalJSON accepts either {"name": "..."} or a bare string.
func (p *Party) UnmarshalJSON(data []byte) error {
	var s string
	if json.Unmarshal(data, &s) == nil {
		p.Name = s
		return nil
	}
	var obj struct {
		Name Text `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.Name = string(obj.Name)
	return nil
}

// Text is a string field that tolerates non-string JSON: numbers, objects
// and arrays are kept as compact JSON text, null becomes "".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if json.Unmarshal(data, &s) == nil {
		*t = Text(s)
		return nil
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = ""
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*t = Text(buf.String())
	return nil
}

type WorkflowStart struct {
	UserQuery Text `json:"user_query"`
}

type SupervisorDelegate struct {
	Source        Party `json:"source"`
	Target        Party `json:"target"`
	Reasoning     Text  `json:"reasoning"`
	QueryForAgent Text  `json:"query_for_agent"`
}

type AgentToolCall struct {
	Source    Party           `json:"source"`
	ToolName  Text            `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

type AgentToolResponse struct {
	Source Party `json:"source"`
	Result Text  `json:"result"`
}

type AgentResponse struct {
	Source  Party `json:"source"`
	Content Text  `json:"content"`
}

type FinalResponse struct {
	Source  Party `json:"source"`
	Content Text  `json:"content"`
}

type Error struct {
	Source       Party `json:"source"`
	ErrorMessage Text  `json:"error_message"`
}

// WorkflowEnd marks the end of one execution. It carries nothing renderable.
type WorkflowEnd struct{}

// Unknown preserves a frame with an unrecognized tag and its raw payload.
type Unknown struct {
	Type string
	Data json.RawMessage
}

// ErrorFrame is a top-level {"error": "..."} frame.
type ErrorFrame struct {
	Message   string
	Timestamp string
}

// Reply is a session server's {"response": "...", "timestamp": "..."} frame.
type Reply struct {
	Response  string
	Timestamp string
}

func (WorkflowStart) Tag() Tag      { return TagWorkflowStart }
func (SupervisorDelegate) Tag() Tag { return TagSupervisorDelegate }
func (AgentToolCall) Tag() Tag      { return TagAgentToolCall }
func (AgentToolResponse) Tag() Tag  { return TagAgentToolResponse }
func (AgentResponse) Tag() Tag      { return TagAgentResponse }
func (FinalResponse) Tag() Tag      { return TagFinalResponse }
func (Error) Tag() Tag              { return TagError }
func (WorkflowEnd) Tag() Tag        { return TagWorkflowEnd }
func (u Unknown) Tag() Tag          { return Tag(u.Type) }
func (ErrorFrame) Tag() Tag         { return TagErrorFrame }
func (Reply) Tag() Tag              { return TagReply }

// IsEnd reports whether ev is the no-op end marker.
func IsEnd(ev Event) bool {
	_, ok := ev.(WorkflowEnd)
	return ok
}
