package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/flowstudio/internal/render"
)

func init() {
	ForceNoColor()
}

func TestFormatEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry render.Entry
		want  string
	}{
		{
			name:  "status",
			entry: render.Entry{Kind: render.KindStatus, Body: "Connected to session."},
			want:  "· Connected to session.",
		},
		{
			name:  "placeholder",
			entry: render.Entry{Kind: render.KindPlaceholder, Body: "Thinking...", Placeholder: true},
			want:  "… Thinking...",
		},
		{
			name:  "user message",
			entry: render.Entry{Kind: render.KindUserMessage, Body: "hello"},
			want:  "you> hello",
		},
		{
			name:  "agent message without source",
			entry: render.Entry{Kind: render.KindAgentMessage, Body: "hi there"},
			want:  "assistant> hi there",
		},
		{
			name:  "agent message with source",
			entry: render.Entry{Kind: render.KindAgentMessage, Source: "Researcher", Body: "done"},
			want:  "Researcher> done",
		},
		{
			name: "delegation",
			entry: render.Entry{
				Kind: render.KindDelegation, Title: "DELEGATING", Source: "Boss", Target: "Worker",
				Fields: []render.Field{{Label: "Reasoning", Value: "needs math"}, {Label: "Query", Value: "2+2"}},
			},
			want: "DELEGATING  Boss → Worker\n  Reasoning: needs math\n  Query: 2+2",
		},
		{
			name: "tool call with multiline arguments",
			entry: render.Entry{
				Kind: render.KindToolCall, Title: "TOOL CALL", Source: "Worker",
				Fields: []render.Field{{Label: "Tool", Value: "calc"}, {Label: "Arguments", Value: "{\n  \"x\": 1\n}"}},
			},
			want: "TOOL CALL  Worker\n  Tool: calc\n  Arguments:\n    {\n      \"x\": 1\n    }",
		},
		{
			name:  "final response",
			entry: render.Entry{Kind: render.KindFinalResponse, Title: "FINAL RESPONSE", Source: "Boss", Body: "4\n\nthanks"},
			want:  "FINAL RESPONSE  Boss\n  4\n\n  thanks",
		},
		{
			name:  "error without source",
			entry: render.Entry{Kind: render.KindError, Title: "ERROR", Body: "Connection closed."},
			want:  "ERROR\n  Connection closed.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatEntry(tt.entry); got != tt.want {
				t.Errorf("FormatEntry() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestFormatEntry_Timestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 15, 0, time.Local)
	got := FormatEntry(render.Entry{Kind: render.KindUserMessage, Body: "hi", Timestamp: ts})
	if want := "[09:30:15] you> hi"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderNoColor(t *testing.T) {
	for _, fn := range []func(string) string{RenderAccent, RenderMuted, RenderCommand, RenderError, RenderPass, RenderWarn} {
		if got := fn("x"); got != "x" {
			t.Errorf("got %q with color disabled", got)
		}
	}
}

func TestShouldUseColor_Env(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CLICOLOR_FORCE", "1")
	if ShouldUseColor() {
		t.Error("NO_COLOR must win over CLICOLOR_FORCE")
	}

	t.Setenv("NO_COLOR", "")
	if !ShouldUseColor() {
		t.Error("CLICOLOR_FORCE=1 should force color")
	}

	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("CLICOLOR", "0")
	if ShouldUseColor() {
		t.Error("CLICOLOR=0 should disable color")
	}
}

func TestIsTerminal_NonFiles(t *testing.T) {
	var b strings.Builder
	if IsTerminal(&b) {
		t.Error("a strings.Builder is not a terminal")
	}
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("CLICOLOR", "")
	if ShouldUseColorFor(&b) {
		t.Error("buffers must not get color by default")
	}
}
