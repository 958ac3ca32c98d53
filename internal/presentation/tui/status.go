package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

// Status prints a one-line status with a colored symbol.
func Status(w io.Writer, symbol string, c *color.Color, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), fmt.Sprintf(format, args...))
}

// Iteration prints the outcome of one iteration.
func Iteration(w io.Writer, rec domain.IterationRecord, threshold int) {
	c := warnColor
	if rec.Score >= threshold {
		c = okColor
	}
	if rec.DraftFailed {
		c = errColor
	}
	Status(w, "●", c, "iteration %d  score %3d/%d  %s", rec.Iteration, rec.Score, domain.MaxScore,
		dimColor.Sprintf("%d chars, %d issues", rec.DraftLength, len(rec.KeyIssues)))
}

// Summary prints the final status and key issues of a result.
func Summary(w io.Writer, res domain.Result) {
	switch {
	case res.Status == domain.ResultMissingData:
		Status(w, "✗", errColor, "missing required data: %s", strings.Join(res.MissingKeys, ", "))
		return
	case res.Status == domain.ResultError:
		Status(w, "✗", errColor, "%s", res.Message)
		return
	case res.Degraded:
		Status(w, "!", warnColor, "%s", res.Message)
	default:
		Status(w, "✓", okColor, "final score %d after %d iteration(s)", res.Score, res.IterationsCompleted)
	}
	for _, issue := range res.KeyIssues {
		fmt.Fprintf(w, "  %s %s\n", dimColor.Sprint("-"), issue)
	}
}
