package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/quill/pkg/domain"
)

// Combine returns hooks that call each of the given hook sets in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks

	for _, h := range sets {
		if h.OnStageStart != nil {
			out.OnStageStart = chain(out.OnStageStart, h.OnStageStart)
		}
		if h.OnStageEnd != nil {
			out.OnStageEnd = chain(out.OnStageEnd, h.OnStageEnd)
		}
		if h.OnIteration != nil {
			out.OnIteration = chain(out.OnIteration, h.OnIteration)
		}
		if h.OnDecision != nil {
			out.OnDecision = chain(out.OnDecision, h.OnDecision)
		}
	}
	return out
}

func chain[E any](first, next func(context.Context, E)) func(context.Context, E) {
	if first == nil {
		return next
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		next(ctx, e)
	}
}

// LogHooks logs every lifecycle event. Stage starts go to debug; the rest to info,
// except stages that ended in error, which go to warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageStart: func(ctx context.Context, e *domain.StageEvent) {
			logger.DebugContext(ctx, "stage_start",
				"session_id", e.SessionID,
				"stage", e.Stage,
				"iteration", e.Iteration,
			)
		},
		OnStageEnd: func(ctx context.Context, e *domain.StageEvent) {
			level := slog.LevelInfo
			if e.Status == domain.StageError {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "stage_end",
				"session_id", e.SessionID,
				"stage", e.Stage,
				"iteration", e.Iteration,
				"status", e.Status,
				"duration", e.Duration,
			)
		},
		OnIteration: func(ctx context.Context, e *domain.IterationEvent) {
			logger.InfoContext(ctx, "iteration",
				"session_id", e.SessionID,
				"iteration", e.Record.Iteration,
				"score", e.Record.Score,
				"draft_length", e.Record.DraftLength,
				"issues", len(e.Record.KeyIssues),
			)
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			attrs := []any{
				"session_id", e.SessionID,
				"decision", e.Progress.Decision,
				"iteration", e.Progress.Iteration,
			}
			if e.Progress.Reason != domain.ReasonNone {
				attrs = append(attrs, "reason", e.Progress.Reason)
			}
			if e.Progress.Error != "" {
				attrs = append(attrs, "err", e.Progress.Error)
			}
			logger.InfoContext(ctx, "decision", attrs...)
		},
	}
}
