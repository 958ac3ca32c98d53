package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the quill banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct{ text, hex string }{
		{"   __ _ _   _(_) | |", "#818cf8"},
		{"  / _` | | | | | | |", "#a78bfa"},
		{" | (_| | |_| | | | |", "#c084fc"},
		{"  \\__, |\\__,_|_|_|_|", "#e879f9"},
		{"     |_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for i, l := range lines {
		s := termenv.String(l.text).Foreground(p.Color(l.hex))
		if i == len(lines)-1 {
			fmt.Fprintf(w, "%s  %s\n", s, termenv.String("v"+strings.TrimSpace(version)).Faint())
			continue
		}
		fmt.Fprintln(w, s)
	}
	fmt.Fprintln(w)
}
