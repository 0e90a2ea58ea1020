package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnrecognizedFrame is returned for JSON frames that carry neither a type
// tag nor an error or response field.
var ErrUnrecognizedFrame = errors.New("unrecognized frame")

type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Error     *Text           `json:"error"`
	Response  *Text           `json:"response"`
	Timestamp string          `json:"timestamp"`
}

// Decode parses one inbound frame. Tagged frames with an unknown tag decode
// to Unknown so they can still be shown.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	switch {
	case env.Type != "":
		return decodeTagged(env)
	case env.Error != nil:
		return ErrorFrame{Message: string(*env.Error), Timestamp: env.Timestamp}, nil
	case env.Response != nil:
		return Reply{Response: string(*env.Response), Timestamp: env.Timestamp}, nil
	}
	return nil, ErrUnrecognizedFrame
}

func decodeTagged(env envelope) (Event, error) {
	var ev Event
	var err error
	switch Tag(env.Type) {
	case TagWorkflowStart:
		ev, err = decodeData[WorkflowStart](env.Data)
	case TagSupervisorDelegate:
		ev, err = decodeData[SupervisorDelegate](env.Data)
	case TagAgentToolCall:
		ev, err = decodeData[AgentToolCall](env.Data)
	case TagAgentToolResponse:
		ev, err = decodeData[AgentToolResponse](env.Data)
	case TagAgentResponse:
		ev, err = decodeData[AgentResponse](env.Data)
	case TagFinalResponse:
		ev, err = decodeData[FinalResponse](env.Data)
	case TagError:
		ev, err = decodeData[Error](env.Data)
	case TagWorkflowEnd:
		return WorkflowEnd{}, nil
	default:
		return Unknown{Type: env.Type, Data: env.Data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s data: %w", env.Type, err)
	}
	return ev, nil
}

func decodeData[T Event](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	err := json.Unmarshal(data, &v)
	return v, err
}

// Flavor selects the session endpoint layout and outbound encoding.
type Flavor string

const (
	// FlavorStudio is the single-workflow server: one /ws endpoint opened
	// after compile, bare text outbound frames.
	FlavorStudio Flavor = "studio"
	// FlavorSessions is the multi-session server: /ws/sessions/{id} opened
	// on selection, {"query": ...} outbound frames.
	FlavorSessions Flavor = "sessions"
)

// ParseFlavor maps a configuration string to a Flavor.
func ParseFlavor(s string) (Flavor, error) {
	switch f := Flavor(strings.ToLower(strings.TrimSpace(s))); f {
	case FlavorStudio, FlavorSessions:
		return f, nil
	}
	return "", fmt.Errorf("invalid flavor %q (want %q or %q)", s, FlavorStudio, FlavorSessions)
}

// Path returns the WebSocket path for a session. The studio flavor ignores
// the session id.
func (f Flavor) Path(sessionID string) string {
	if f == FlavorStudio {
		return "/ws"
	}
	return "/ws/sessions/" + url.PathEscape(sessionID)
}

// EncodeQuery builds the outbound frame for a user query.
func (f Flavor) EncodeQuery(query string) []byte {
	if f == FlavorStudio {
		return []byte(query)
	}
	data, _ := json.Marshal(struct {
		Query string `json:"query"`
	}{query})
	return data
}

// WebSocketURL converts an http(s) base URL into the ws(s) URL for path.
// path must already be escaped.
func WebSocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	var scheme string
	switch u.Scheme {
	case "http", "ws":
		scheme = "ws"
	case "https", "wss":
		scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return scheme + "://" + u.Host + u.EscapedPath() + path, nil
}
