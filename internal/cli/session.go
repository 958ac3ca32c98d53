package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/quill/internal/presentation/graph"
	"github.com/aretw0/quill/internal/presentation/tui"
	"github.com/aretw0/quill/internal/runtime"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/state"
)

// Inspect output formats.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatMermaid = "mermaid"
)

// ListSessions prints every stored session with its status and last score.
func ListSessions(ctx context.Context, app *App, w io.Writer) error {
	ids, err := app.Sessions.List(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}

	fmt.Fprintln(w, "Sessions:")
	for _, id := range ids {
		st, err := app.Sessions.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "- %s  (unreadable: %v)\n", id, err)
			continue
		}
		score := "-"
		if n := len(st.History); n > 0 {
			score = fmt.Sprintf("%d", st.History[n-1].Score)
		}
		fmt.Fprintf(w, "- %s  %s  score %s  iterations %d\n", id, st.Status, score, len(st.History))
	}

	if app.Ledger != nil {
		stats, err := app.Ledger.Stats(ctx)
		if err != nil {
			return err
		}
		if stats.Sessions > 0 {
			fmt.Fprintf(w, "\n%d completed, average final score %.1f, best %d\n",
				stats.Sessions, stats.Average, stats.Best)
		}
	}
	return nil
}

// InspectSession prints one session in the given format.
func InspectSession(ctx context.Context, app *App, sessionID, format string, w io.Writer) error {
	raw, err := app.Sessions.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session '%s': %w", sessionID, err)
	}
	st := state.New(raw)
	threshold, ok := st.Int(domain.KeyScoreThreshold)
	if !ok {
		threshold = app.Config.Refinement.ScoreThreshold
	}

	history := raw.History
	if app.Ledger != nil {
		if ledger, err := app.Ledger.Iterations(ctx, sessionID); err == nil && len(ledger) > 0 {
			history = ledger
		}
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling state: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case FormatMermaid:
		raw.History = history
		fmt.Fprint(w, graph.GenerateMermaid(raw, threshold))
	case FormatText, "":
		fmt.Fprintf(w, "Session %s (%s), threshold %d\n", raw.SessionID, raw.Status, threshold)
		for _, rec := range history {
			tui.Iteration(w, rec, threshold)
		}
		tui.Summary(w, runtime.Finalize(st))
	default:
		return fmt.Errorf("unknown format %q (text, json, mermaid)", format)
	}
	return nil
}

// RemoveSessions deletes each session, reporting failures without stopping.
func RemoveSessions(ctx context.Context, app *App, ids []string, w io.Writer) error {
	var failed int
	for _, id := range ids {
		if err := app.Sessions.Delete(ctx, id); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", id, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "Removed session '%s'\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sessions could not be removed", failed, len(ids))
	}
	return nil
}
