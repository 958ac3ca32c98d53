package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/progress"
	"github.com/aretw0/quill/pkg/stage"
	"github.com/aretw0/quill/pkg/state"
)

// Engine is the bounded refinement loop.
type Engine struct {
	draft      stage.Stage
	scoring    stage.Stage
	controller *progress.Controller
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	now        func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithController replaces the default progress controller.
func WithController(c *progress.Controller) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.controller = c
		}
	}
}

// WithClock overrides the time source used for events and history.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a loop over the given drafting and scoring stages.
func NewEngine(draft, scoring stage.Stage, opts ...EngineOption) *Engine {
	e := &Engine{
		draft:      draft,
		scoring:    scoring,
		controller: progress.New(),
		logger:     logging.NewNop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes iterations until the controller says DONE or the iteration cap is hit.
//
// Missing required inputs stop the session before any stage runs and yield a
// *domain.MissingDataError. Cancellation is honoured between stages; the partially
// updated store is returned together with ctx.Err().
func (e *Engine) Run(ctx context.Context, st *state.Store) (*state.Store, error) {
	if missing := st.Missing(domain.RequiredInputs...); len(missing) > 0 {
		st.Set(domain.KeyIsComplete, true)
		e.logger.Warn("Session missing required data", "session_id", st.State().SessionID, "keys", missing)
		e.emitDecision(ctx, st, domain.Progress{
			Decision: domain.DecisionDone,
			Reason:   domain.ReasonMissingData,
			Escalate: true,
		})
		return st, &domain.MissingDataError{Keys: missing}
	}
	if st.Bool(domain.KeyIsComplete) {
		return st, fmt.Errorf("run %s: %w", st.State().SessionID, domain.ErrSessionComplete)
	}

	st.State().Status = domain.StatusRunning
	e.logger.Info("Refinement started", "session_id", st.State().SessionID)

	for {
		if err := ctx.Err(); err != nil {
			return e.abort(st, err)
		}
		done, _ := st.Int(domain.KeyIterationCount)
		if done >= e.controller.Limit(st) {
			// Resumed at or past the cap: no further drafts.
			p := domain.Progress{
				Decision: domain.DecisionDone,
				Reason:   domain.ReasonMaxIterations,
				Escalate: true,
			}
			e.emitDecision(ctx, st, p)
			return e.finish(st, p, done), nil
		}
		iteration := done + 1

		e.runStage(ctx, st, e.draft, iteration)
		if err := ctx.Err(); err != nil {
			return e.abort(st, err)
		}
		e.runStage(ctx, st, e.scoring, iteration)

		p := e.controller.Check(st)
		if !p.Done() {
			// The controller may have absorbed a failure; the cap still holds.
			count, _ := st.Int(domain.KeyIterationCount)
			if count >= e.controller.Limit(st) {
				p.Decision = domain.DecisionDone
				p.Reason = domain.ReasonMaxIterations
				p.Escalate = true
			}
		}
		e.emitDecision(ctx, st, p)
		e.record(ctx, st, iteration, p)

		if p.Done() {
			return e.finish(st, p, iteration), nil
		}
	}
}

func (e *Engine) finish(st *state.Store, p domain.Progress, iterations int) *state.Store {
	st.Set(domain.KeyIsComplete, true)
	st.State().Status = domain.StatusCompleted
	e.logger.Info("Refinement finished", "session_id", st.State().SessionID,
		"reason", p.Reason, "iterations", iterations)
	return st
}

func (e *Engine) runStage(ctx context.Context, st *state.Store, s stage.Stage, iteration int) domain.StageResult {
	start := e.now()
	if e.hooks.OnStageStart != nil {
		e.hooks.OnStageStart(ctx, &domain.StageEvent{
			EventBase: e.base(st, domain.EventStageStart),
			Stage:     s.Name(),
			Iteration: iteration,
		})
	}

	res := s.Run(ctx, st)
	if !res.OK() {
		e.logger.Warn("Stage degraded", "session_id", st.State().SessionID,
			"stage", s.Name(), "iteration", iteration, "message", res.Message)
	}

	if e.hooks.OnStageEnd != nil {
		e.hooks.OnStageEnd(ctx, &domain.StageEvent{
			EventBase: e.base(st, domain.EventStageEnd),
			Stage:     s.Name(),
			Iteration: iteration,
			Status:    res.Status,
			Duration:  e.now().Sub(start),
		})
	}
	return res
}

func (e *Engine) record(ctx context.Context, st *state.Store, iteration int, p domain.Progress) {
	score, _ := progress.CurrentScore(st)
	rec := domain.IterationRecord{
		Iteration:   iteration,
		Score:       score,
		Decision:    p.Decision,
		Reason:      p.Reason,
		DraftFailed: st.Bool(domain.KeyDraftFailed),
		DraftLength: st.DraftInfo().Length,
		KeyIssues:   st.Strings(domain.KeyKeyIssues),
		CompletedAt: e.now(),
	}
	st.State().History = append(st.State().History, rec)

	if e.hooks.OnIteration != nil {
		e.hooks.OnIteration(ctx, &domain.IterationEvent{
			EventBase: e.base(st, domain.EventIteration),
			Record:    rec,
		})
	}
}

func (e *Engine) emitDecision(ctx context.Context, st *state.Store, p domain.Progress) {
	if e.hooks.OnDecision != nil {
		e.hooks.OnDecision(ctx, &domain.DecisionEvent{
			EventBase: e.base(st, domain.EventDecision),
			Progress:  p,
		})
	}
}

func (e *Engine) abort(st *state.Store, err error) (*state.Store, error) {
	st.State().Status = domain.StatusAborted
	e.logger.Warn("Refinement aborted", "session_id", st.State().SessionID, "err", err)
	return st, err
}

func (e *Engine) base(st *state.Store, t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: e.now(),
		Type:      t,
		SessionID: st.State().SessionID,
	}
}
