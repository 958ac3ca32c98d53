package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/quill/internal/brief"
	"github.com/aretw0/quill/internal/presentation/tui"
	"github.com/aretw0/quill/pkg/domain"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	BriefPath string
	Overrides brief.Overrides
	SessionID string
	Resume    bool
	Watch     bool
	JSON      bool
	// Styled renders the final draft as markdown.
	Styled bool
}

// Execute handles the run command, dispatching to a single run or watch mode.
func Execute(ctx context.Context, app *App, opts RunOptions, w io.Writer) error {
	if opts.Watch {
		if opts.BriefPath == "" {
			return errors.New("--watch needs a brief file")
		}
		if opts.Resume {
			return errors.New("--watch and --resume cannot be used together")
		}
		return RunWatch(ctx, app, opts, w)
	}

	res, err := RunOnce(ctx, app, opts)
	if werr := report(w, app, opts, res, err); werr != nil {
		return werr
	}
	return handleExecutionError(err)
}

// RunOnce refines the brief, or resumes the session, and returns the outcome.
func RunOnce(ctx context.Context, app *App, opts RunOptions) (domain.Result, error) {
	if opts.Resume {
		if opts.SessionID == "" {
			return domain.Result{}, errors.New("--resume needs --session")
		}
		return app.Engine.Resume(ctx, opts.SessionID)
	}

	in, err := loadInputs(ctx, opts)
	if err != nil {
		return domain.Result{}, err
	}
	return app.Engine.Refine(ctx, opts.SessionID, in)
}

func loadInputs(ctx context.Context, opts RunOptions) (domain.Inputs, error) {
	var in domain.Inputs
	if opts.BriefPath != "" {
		loaded, err := brief.Load(ctx, opts.BriefPath)
		if err != nil {
			return domain.Inputs{}, err
		}
		in = loaded
	}
	return opts.Overrides.Apply(in), nil
}

// report prints the outcome of a run. Results that carry no information, such as
// those of a failed load, are not printed.
func report(w io.Writer, app *App, opts RunOptions, res domain.Result, err error) error {
	if isInterrupted(err) {
		printSystemMessage(w, "Interrupted; partial session saved.")
		return nil
	}
	var missing *domain.MissingDataError
	if err != nil && !errors.As(err, &missing) && !errors.Is(err, domain.ErrSessionComplete) {
		return nil
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	tui.Summary(w, res)
	if res.Draft != "" {
		out, rerr := tui.NewRenderer(opts.Styled)(res.Draft)
		if rerr != nil {
			out = res.Draft
		}
		fmt.Fprintf(w, "\n%s\n", strings.TrimRight(out, "\n"))
	}
	if app.Tracker != nil && app.Tracker.Calls() > 0 {
		in, out := app.Tracker.Total()
		printSystemMessage(w, "%d calls, %d input / %d output tokens, ~$%.4f",
			app.Tracker.Calls(), in, out, app.Tracker.Cost())
	}
	if res.SessionID != "" {
		printSystemMessage(w, "Session '%s' saved.", res.SessionID)
	}
	return nil
}
