package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a markdown renderer for drafts. When styled is false, or the
// glamour renderer cannot be built, text is returned unchanged.
func NewRenderer(styled bool) func(string) (string, error) {
	plain := func(md string) (string, error) { return md, nil }
	if !styled {
		return plain
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return plain
	}
	return r.Render
}
