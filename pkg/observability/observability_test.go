package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine_CallsInOrder(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnDecision: func(context.Context, *domain.DecisionEvent) { calls = append(calls, "a") },
	}
	b := domain.LifecycleHooks{
		OnDecision:   func(context.Context, *domain.DecisionEvent) { calls = append(calls, "b") },
		OnStageStart: func(context.Context, *domain.StageEvent) { calls = append(calls, "b-start") },
	}

	hooks := observability.Combine(a, domain.LifecycleHooks{}, b)
	hooks.OnDecision(context.Background(), &domain.DecisionEvent{})
	hooks.OnStageStart(context.Background(), &domain.StageEvent{})

	assert.Equal(t, []string{"a", "b", "b-start"}, calls)
	assert.Nil(t, hooks.OnIteration)
}

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnStageEnd(ctx, &domain.StageEvent{Stage: "draft", Status: domain.StageSuccess, Duration: 200 * time.Millisecond})
	hooks.OnStageEnd(ctx, &domain.StageEvent{Stage: "scoring", Status: domain.StageError})
	hooks.OnIteration(ctx, &domain.IterationEvent{Record: domain.IterationRecord{Iteration: 1, Score: 72}})
	hooks.OnDecision(ctx, &domain.DecisionEvent{Progress: domain.Progress{Decision: domain.DecisionDone, Reason: domain.ReasonScorePassed}})
	hooks.OnDecision(ctx, &domain.DecisionEvent{Progress: domain.Progress{Decision: domain.DecisionContinue}})

	body := scrape(t, m)
	assert.Contains(t, body, "quill_iterations_total 1")
	assert.Contains(t, body, `quill_stage_failures_total{stage="scoring"} 1`)
	assert.NotContains(t, body, `quill_stage_failures_total{stage="draft"}`)
	assert.Contains(t, body, `quill_decisions_total{decision="done",reason="score_passed"} 1`)
	assert.Contains(t, body, `quill_decisions_total{decision="continue",reason="none"} 1`)
	assert.Contains(t, body, `quill_stage_duration_seconds_count{stage="draft"} 1`)
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics()
	m.Hooks().OnIteration(context.Background(), &domain.IterationEvent{Record: domain.IterationRecord{Score: 40}})

	assert.Contains(t, scrape(t, m), "quill_iterations_total 1")
}

func scrape(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := observability.LogHooks(logging.NewWithWriter(&buf, slog.LevelDebug))
	ctx := context.Background()

	hooks.OnStageEnd(ctx, &domain.StageEvent{EventBase: domain.EventBase{SessionID: "s1"}, Stage: "draft", Status: domain.StageError})
	hooks.OnDecision(ctx, &domain.DecisionEvent{
		EventBase: domain.EventBase{SessionID: "s1"},
		Progress:  domain.Progress{Decision: domain.DecisionDone, Reason: domain.ReasonMaxIterations, Iteration: 5},
	})

	out := buf.String()
	assert.Contains(t, out, "level=WARN msg=stage_end session_id=s1 stage=draft")
	assert.Contains(t, out, "reason=max_iterations")
}
