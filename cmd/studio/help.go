package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/flowstudio/internal/ui"
	"github.com/spf13/cobra"
)

// helpRule styles every match of re in cobra's plain help text.
type helpRule struct {
	re    *regexp.Regexp
	style func(parts []string) string
}

var helpRules = []helpRule{
	// Group and section headers ("Design:", "Flags:").
	{
		re:    regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`),
		style: func(p []string) string { return ui.RenderAccent(strings.TrimSpace(p[0])) },
	},
	// Subcommand names in the command listing.
	{
		re:    regexp.MustCompile(`(?m)^(  )(\S+)(  )`),
		style: func(p []string) string { return p[1] + ui.RenderCommand(p[2]) + p[3] },
	},
	// Flag value types, e.g. "--format string", "--out stringArray".
	{
		re:    regexp.MustCompile(`(--?\S+\s+)(string|int|duration|stringArray)\b`),
		style: func(p []string) string { return p[1] + ui.RenderMuted(p[2]) },
	},
	{
		re:    regexp.MustCompile(`\(default "[^"]*"\)`),
		style: func(p []string) string { return ui.RenderMuted(p[0]) },
	},
}

// colorizedHelpFunc renders cobra's usage text, colorized when stdout is a
// color-capable terminal.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColorFor(out) {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, r := range helpRules {
		s = r.re.ReplaceAllStringFunc(s, func(m string) string {
			return r.style(r.re.FindStringSubmatch(m))
		})
	}
	return s
}
