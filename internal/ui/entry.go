package ui

import (
	"strings"

	"github.com/alfredjeanlab/flowstudio/internal/render"
)

// FormatEntry renders a log entry as terminal text, without a trailing
// newline.
func FormatEntry(e render.Entry) string {
	var b strings.Builder
	if !e.Timestamp.IsZero() {
		b.WriteString(RenderMuted("[" + e.Timestamp.Local().Format("15:04:05") + "] "))
	}

	switch e.Kind {
	case render.KindStatus:
		b.WriteString(RenderMuted("· " + e.Body))
		return b.String()
	case render.KindPlaceholder:
		b.WriteString(RenderMuted("… " + e.Body))
		return b.String()
	case render.KindUserMessage:
		b.WriteString(RenderAccent("you") + "> " + e.Body)
		return b.String()
	case render.KindAgentMessage:
		name := e.Source
		if name == "" {
			name = "assistant"
		}
		b.WriteString(RenderPass(name) + "> " + e.Body)
		return b.String()
	}

	b.WriteString(titleStyle(e.Kind)(e.Title))
	switch {
	case e.Source != "" && e.Target != "":
		b.WriteString("  " + e.Source + " → " + e.Target)
	case e.Source != "":
		b.WriteString("  " + e.Source)
	}
	for _, f := range e.Fields {
		b.WriteString("\n  " + RenderMuted(f.Label+":"))
		if strings.Contains(f.Value, "\n") {
			b.WriteString("\n" + indent(f.Value, "    "))
		} else {
			b.WriteString(" " + f.Value)
		}
	}
	if e.Body != "" {
		b.WriteString("\n" + indent(e.Body, "  "))
	}
	return b.String()
}

func titleStyle(k render.Kind) func(string) string {
	switch k {
	case render.KindError:
		return RenderError
	case render.KindFinalResponse:
		return RenderPass
	case render.KindToolCall, render.KindToolResponse:
		return RenderWarn
	case render.KindUnknown:
		return RenderMuted
	}
	return RenderAccent
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
