package render

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/alfredjeanlab/flowstudio/internal/model"
	"github.com/alfredjeanlab/flowstudio/internal/protocol"
)

// Interpret maps one inbound event to an entry. It returns false only for
// WORKFLOW_END, which has nothing to show. Unrecognized tags render with the
// tag as title and an indented dump of the payload.
func Interpret(ev protocol.Event) (Entry, bool) {
	switch ev := ev.(type) {
	case protocol.WorkflowStart:
		e := newEntry(KindUserQuery, "USER QUERY")
		e.Body = string(ev.UserQuery)
		return e, true

	case protocol.SupervisorDelegate:
		e := newEntry(KindDelegation, "DELEGATING")
		e.Source, e.Target = ev.Source.Name, ev.Target.Name
		e.Fields = []Field{
			{Label: "Reasoning", Value: string(ev.Reasoning)},
			{Label: "Query", Value: string(ev.QueryForAgent)},
		}
		return e, true

	case protocol.AgentToolCall:
		e := newEntry(KindToolCall, "TOOL CALL")
		e.Source = ev.Source.Name
		e.Fields = []Field{
			{Label: "Tool", Value: string(ev.ToolName)},
			{Label: "Arguments", Value: prettyJSON(ev.Arguments)},
		}
		e.Raw = ev.Arguments
		return e, true

	case protocol.AgentToolResponse:
		e := newEntry(KindToolResponse, "TOOL RESPONSE")
		e.Source = ev.Source.Name
		e.Fields = []Field{{Label: "Result", Value: string(ev.Result)}}
		return e, true

	case protocol.AgentResponse:
		e := newEntry(KindAgentResponse, "AGENT RESPONSE")
		e.Source = ev.Source.Name
		e.Body = string(ev.Content)
		return e, true

	case protocol.FinalResponse:
		e := newEntry(KindFinalResponse, "FINAL RESPONSE")
		e.Source = ev.Source.Name
		e.Body = string(ev.Content)
		return e, true

	case protocol.Error:
		e := newEntry(KindError, "ERROR")
		e.Source = ev.Source.Name
		e.Body = string(ev.ErrorMessage)
		return e, true

	case protocol.WorkflowEnd:
		return Entry{}, false

	case protocol.ErrorFrame:
		e := Failure(ev.Message)
		e.Timestamp = parseTime(ev.Timestamp)
		return e, true

	case protocol.Reply:
		e := newEntry(KindAgentMessage, "")
		e.Body = ev.Response
		e.Timestamp = parseTime(ev.Timestamp)
		return e, true

	case protocol.Unknown:
		e := newEntry(KindUnknown, ev.Type)
		e.Body = prettyJSON(ev.Data)
		e.Raw = ev.Data
		return e, true
	}

	// Event is a closed set; anything else is shown by its tag.
	return newEntry(KindUnknown, string(ev.Tag())), true
}

// delegatePrefix marks supervisor tool calls that hand work to an agent.
const delegatePrefix = "delegate_to_"

// FromMessage renders one history record. System messages are hidden, as
// are records with neither content nor tool calls.
func FromMessage(m model.Message) (Entry, bool) {
	if m.Role == model.RoleSystem {
		return Entry{}, false
	}

	var e Entry
	switch {
	case m.Role == model.RoleAssistant && len(m.ToolCalls) > 0:
		call := m.ToolCalls[0].Function
		if target, ok := strings.CutPrefix(call.Name, delegatePrefix); ok {
			e = newEntry(KindDelegation, "DELEGATING")
			e.Source, e.Target = m.SenderName, target
			e.Fields = []Field{{Label: "Reasoning", Value: argument(call.Arguments, "reasoning")}}
		} else {
			e = newEntry(KindToolCall, "TOOL CALL")
			e.Source = m.SenderName
			e.Fields = []Field{
				{Label: "Tool", Value: call.Name},
				{Label: "Arguments", Value: prettyJSON([]byte(call.Arguments))},
			}
		}
		e.Raw = json.RawMessage(call.Arguments)
		if !json.Valid(e.Raw) {
			e.Raw = nil
		}

	case m.Content != "":
		if m.Role == model.RoleUser || m.SenderType == string(model.RoleUser) {
			e = newEntry(KindUserMessage, "")
		} else {
			e = newEntry(KindAgentMessage, "")
		}
		e.Source = m.SenderName
		e.Body = m.Content

	case m.Role == model.RoleTool:
		e = newEntry(KindToolResponse, "TOOL RESPONSE")
		e.Source = m.SenderName

	default:
		return Entry{}, false
	}

	if ts, ok := m.Time(); ok {
		e.Timestamp = ts
	}
	return e, true
}

// argument extracts a string argument from JSON-encoded tool arguments.
func argument(arguments, key string) string {
	var args map[string]any
	if json.Unmarshal([]byte(arguments), &args) != nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

func parseTime(s string) time.Time {
	t, _ := model.Message{Timestamp: s}.Time()
	return t
}
