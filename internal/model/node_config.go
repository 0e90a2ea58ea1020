package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

// NodeConfig is the typed configuration of one node type. Implementations
// form a closed set: UserConfig, SupervisorConfig, AgentConfig, ToolConfig
// and MCPConfig.
type NodeConfig interface {
	NodeType() NodeType
	// Validate checks the configuration and returns a *ValidationError on failure.
	Validate() error
	// Payload returns the wire form of the configuration. Every field is
	// always present so that DecodeConfig(Payload()) is lossless.
	Payload() map[string]any
}

// Payload keys shared across node types.
const (
	KeySystemMessage      = "system_message"
	KeyCanRespondDirectly = "can_respond_directly"
	KeyKeepHistory        = "keep_history"
	KeyOutputSchema       = "output_schema"
	KeyStrict             = "strict"
	KeyToolKind           = "tool_kind"
	KeyToolConfig         = "config"
	KeyTransport          = "transport"
	KeyURL                = "url"
	KeyAuthToken          = "auth_token"
	KeyScriptPath         = "script_path"
)

// UserConfig is the (empty) configuration of the entry point.
type UserConfig struct{}

func (UserConfig) NodeType() NodeType      { return NodeUser }
func (UserConfig) Validate() error         { return nil }
func (UserConfig) Payload() map[string]any { return map[string]any{} }

// SupervisorConfig configures a node that delegates work to agents.
type SupervisorConfig struct {
	SystemMessage      string
	CanRespondDirectly bool
}

func (SupervisorConfig) NodeType() NodeType { return NodeSupervisor }

func (c SupervisorConfig) Validate() error { return nil }

func (c SupervisorConfig) Payload() map[string]any {
	return map[string]any{
		KeySystemMessage:      c.SystemMessage,
		KeyCanRespondDirectly: c.CanRespondDirectly,
	}
}

// AgentConfig configures a node that executes and responds, optionally
// calling tools.
type AgentConfig struct {
	SystemMessage string
	KeepHistory   bool
	OutputSchema  string // JSON object text; empty disables structured output
	Strict        bool   // only meaningful with an OutputSchema
}

func (AgentConfig) NodeType() NodeType { return NodeAgent }

func (c AgentConfig) Validate() error {
	schema := strings.TrimSpace(c.OutputSchema)
	if schema == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(schema), &obj); err != nil {
		return &ValidationError{Errors: []FieldError{{
			Field:   KeyOutputSchema,
			Message: "must be a JSON object",
		}}}
	}
	return nil
}

func (c AgentConfig) Payload() map[string]any {
	return map[string]any{
		KeySystemMessage: c.SystemMessage,
		KeyKeepHistory:   c.KeepHistory,
		KeyOutputSchema:  c.OutputSchema,
		KeyStrict:        c.Strict,
	}
}

// ToolConfig configures an invokable tool. Settings must match the tool
// kind's declared schema; conformance is checked by the remote compiler.
type ToolConfig struct {
	Kind     string
	Settings map[string]any
}

func (ToolConfig) NodeType() NodeType { return NodeTool }

// Validate checks the shape of the settings only. A missing tool kind is
// reported by Missing, since nodes are filled in one field at a time.
func (c ToolConfig) Validate() error {
	var ve ValidationError
	for k, v := range c.Settings {
		if !isScalar(v) {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   KeyToolConfig + "." + k,
				Message: "must be a string, number or boolean",
			})
		}
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func (c ToolConfig) Payload() map[string]any {
	settings := make(map[string]any, len(c.Settings))
	maps.Copy(settings, c.Settings)
	return map[string]any{
		KeyToolKind:   c.Kind,
		KeyToolConfig: settings,
	}
}

// MCPTransport selects how an MCP server is reached.
type MCPTransport string

const (
	MCPRemote MCPTransport = "remote"
	MCPLocal  MCPTransport = "local"
)

// MCPConfig configures an external tool-providing process.
type MCPConfig struct {
	Transport  MCPTransport
	URL        string
	AuthToken  string
	ScriptPath string
}

func (MCPConfig) NodeType() NodeType { return NodeMCP }

func (c MCPConfig) Validate() error {
	switch c.Transport {
	case MCPRemote, MCPLocal:
		return nil
	}
	return &ValidationError{Errors: []FieldError{{
		Field:   KeyTransport,
		Message: fmt.Sprintf("must be %q or %q, got %q", MCPRemote, MCPLocal, c.Transport),
	}}}
}

func (c MCPConfig) Payload() map[string]any {
	return map[string]any{
		KeyTransport:  string(c.Transport),
		KeyURL:        c.URL,
		KeyAuthToken:  c.AuthToken,
		KeyScriptPath: c.ScriptPath,
	}
}

// Missing lists the fields cfg still needs before the remote compiler will
// accept it. Incomplete nodes are valid to edit and save.
func Missing(cfg NodeConfig) []FieldError {
	var missing []FieldError
	switch c := cfg.(type) {
	case ToolConfig:
		if strings.TrimSpace(c.Kind) == "" {
			missing = append(missing, FieldError{Field: KeyToolKind, Message: "is required"})
		}
	case MCPConfig:
		switch {
		case c.Transport == MCPRemote && strings.TrimSpace(c.URL) == "":
			missing = append(missing, FieldError{Field: KeyURL, Message: "is required for remote transport"})
		case c.Transport == MCPLocal && strings.TrimSpace(c.ScriptPath) == "":
			missing = append(missing, FieldError{Field: KeyScriptPath, Message: "is required for local transport"})
		}
	}
	return missing
}

// DefaultConfig returns the configuration a freshly added node starts with.
func DefaultConfig(t NodeType, label string) NodeConfig {
	switch t {
	case NodeSupervisor:
		return SupervisorConfig{
			SystemMessage:      fmt.Sprintf("You are the %s supervisor.", label),
			CanRespondDirectly: true,
		}
	case NodeAgent:
		return AgentConfig{
			SystemMessage: fmt.Sprintf("You are the %s agent.", label),
			KeepHistory:   true,
		}
	case NodeTool:
		return ToolConfig{Settings: map[string]any{}}
	case NodeMCP:
		return MCPConfig{Transport: MCPRemote}
	}
	return UserConfig{}
}

// DecodeConfig builds the typed configuration for t from a payload. Missing
// keys take the zero value; keys of the wrong type are reported in a
// *ValidationError. The decoded configuration is not validated.
func DecodeConfig(t NodeType, payload map[string]any) (NodeConfig, error) {
	d := decoder{m: payload}
	var cfg NodeConfig
	switch t {
	case NodeUser:
		cfg = UserConfig{}
	case NodeSupervisor:
		cfg = SupervisorConfig{
			SystemMessage:      d.str(KeySystemMessage),
			CanRespondDirectly: d.boolean(KeyCanRespondDirectly),
		}
	case NodeAgent:
		c := AgentConfig{
			SystemMessage: d.str(KeySystemMessage),
			KeepHistory:   d.boolean(KeyKeepHistory),
			OutputSchema:  d.str(KeyOutputSchema),
			Strict:        d.boolean(KeyStrict),
		}
		if strings.TrimSpace(c.OutputSchema) == "" {
			c.Strict = false
		}
		cfg = c
	case NodeTool:
		cfg = ToolConfig{
			Kind:     d.str(KeyToolKind),
			Settings: d.object(KeyToolConfig),
		}
	case NodeMCP:
		cfg = MCPConfig{
			Transport:  MCPTransport(d.str(KeyTransport)),
			URL:        d.str(KeyURL),
			AuthToken:  d.str(KeyAuthToken),
			ScriptPath: d.str(KeyScriptPath),
		}
	default:
		return nil, &ValidationError{Errors: []FieldError{{
			Field:   "type",
			Message: fmt.Sprintf("invalid value %q", t),
		}}}
	}
	if d.ve.HasErrors() {
		return nil, &d.ve
	}
	return cfg, nil
}

// MergeConfig overlays partial onto cfg's payload and decodes the result.
func MergeConfig(cfg NodeConfig, partial map[string]any) (NodeConfig, error) {
	merged := cfg.Payload()
	maps.Copy(merged, partial)
	return DecodeConfig(cfg.NodeType(), merged)
}

// decoder reads typed values out of a payload, collecting type errors.
type decoder struct {
	m  map[string]any
	ve ValidationError
}

func (d *decoder) str(key string) string {
	v, ok := d.m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.ve.Errors = append(d.ve.Errors, FieldError{Field: key, Message: "must be a string"})
	}
	return s
}

func (d *decoder) boolean(key string) bool {
	v, ok := d.m[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.ve.Errors = append(d.ve.Errors, FieldError{Field: key, Message: "must be a boolean"})
	}
	return b
}

func (d *decoder) object(key string) map[string]any {
	out := map[string]any{}
	v, ok := d.m[key]
	if !ok || v == nil {
		return out
	}
	obj, ok := v.(map[string]any)
	if !ok {
		d.ve.Errors = append(d.ve.Errors, FieldError{Field: key, Message: "must be an object"})
		return out
	}
	maps.Copy(out, obj)
	return out
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int64, float64, json.Number:
		return true
	}
	return false
}
