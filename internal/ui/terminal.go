package ui

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether stdout gets ANSI colors.
func ShouldUseColor() bool {
	return ShouldUseColorFor(os.Stdout)
}

// ShouldUseColorFor applies NO_COLOR, CLICOLOR_FORCE and CLICOLOR, in that
// order, and otherwise colors only terminals.
func ShouldUseColorFor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch {
	case envFlag("CLICOLOR_FORCE") == "1":
		return true
	case envFlag("CLICOLOR") == "0":
		return false
	}
	return IsTerminal(w)
}

// IsTerminal reports whether w is a file attached to a terminal. Pipes,
// buffers and regular files are not.
func IsTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func envFlag(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}
