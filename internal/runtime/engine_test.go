package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/quill/internal/runtime"
	"github.com/aretw0/quill/pkg/adapters/stub"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/stage"
	"github.com/aretw0/quill/pkg/state"
)

func newSession(t *testing.T, threshold, maxIterations int) *state.Store {
	t.Helper()
	st := state.New(domain.NewState(t.Name()))
	for k, ok := range st.Update(map[string]any{
		domain.KeyMaterial:        "Notes from the launch meeting.",
		domain.KeyRequirements:    "A 100-word summary.",
		domain.KeyScoringCriteria: "Completeness.",
		domain.KeyScoreThreshold:  threshold,
		domain.KeyMaxIterations:   maxIterations,
	}) {
		if !ok {
			t.Fatalf("seeding %s failed", k)
		}
	}
	return st
}

func newEngine(drafter, scorer *stub.Scripted, opts ...runtime.EngineOption) *runtime.Engine {
	return runtime.NewEngine(stage.NewDraft(drafter), stage.NewScoring(scorer), opts...)
}

func TestEngine_StopsWhenScorePasses(t *testing.T) {
	drafter := stub.NewScripted("draft one", "draft two")
	scorer := stub.Scorer(70, 92, 99)
	st := newSession(t, 90, 5)

	st, err := newEngine(drafter, scorer).Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := drafter.Calls(); got != 2 {
		t.Errorf("Expected 2 drafts, got %d", got)
	}
	if got := scorer.Calls(); got != 2 {
		t.Errorf("Expected 2 evaluations, got %d", got)
	}
	if !st.Bool(domain.KeyIsComplete) {
		t.Error("Expected session to be complete")
	}
	if st.State().Status != domain.StatusCompleted {
		t.Errorf("Expected status completed, got %s", st.State().Status)
	}
	history := st.State().History
	if len(history) != 2 {
		t.Fatalf("Expected 2 history records, got %d", len(history))
	}
	if history[1].Reason != domain.ReasonScorePassed || history[1].Score != 92 {
		t.Errorf("Unexpected final record: %+v", history[1])
	}
	if history[0].Decision != domain.DecisionContinue {
		t.Errorf("Expected first iteration to continue, got %s", history[0].Decision)
	}
}

func TestEngine_IterationCap(t *testing.T) {
	for _, max := range []int{1, 3, 4} {
		t.Run(fmt.Sprintf("max=%d", max), func(t *testing.T) {
			drafter := stub.NewScripted("text")
			scorer := stub.Scorer(10)
			st := newSession(t, 90, max)

			st, err := newEngine(drafter, scorer).Run(context.Background(), st)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			count, _ := st.Int(domain.KeyIterationCount)
			if count != max {
				t.Errorf("Expected %d iterations, got %d", max, count)
			}
			if drafter.Calls() != max {
				t.Errorf("Expected %d draft calls, got %d", max, drafter.Calls())
			}
			last := st.State().History[len(st.State().History)-1]
			if last.Reason != domain.ReasonMaxIterations {
				t.Errorf("Expected max_iterations, got %q", last.Reason)
			}
			if !st.Bool(domain.KeyIsComplete) {
				t.Error("Expected session to be complete")
			}
		})
	}
}

func TestEngine_DraftPrecedesScore(t *testing.T) {
	drafter := stub.NewScripted("a", "b", "c")
	scorer := stub.Scorer(10, 20, 30)
	st := newSession(t, 90, 3)

	hooks := domain.LifecycleHooks{
		OnIteration: func(_ context.Context, e *domain.IterationEvent) {
			if !st.NewerThan(domain.KeyCurrentScore, domain.KeyCurrentDraft) {
				t.Errorf("iteration %d: score written before draft", e.Record.Iteration)
			}
		},
	}

	if _, err := newEngine(drafter, scorer, runtime.WithLifecycleHooks(hooks)).Run(context.Background(), st); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestEngine_LifecycleHooksOrder(t *testing.T) {
	var events []string
	hooks := domain.LifecycleHooks{
		OnStageStart: func(_ context.Context, e *domain.StageEvent) {
			events = append(events, "start:"+e.Stage)
		},
		OnStageEnd: func(_ context.Context, e *domain.StageEvent) {
			events = append(events, "end:"+e.Stage)
		},
		OnDecision: func(_ context.Context, e *domain.DecisionEvent) {
			events = append(events, "decision:"+string(e.Progress.Decision))
		},
		OnIteration: func(_ context.Context, e *domain.IterationEvent) {
			events = append(events, fmt.Sprintf("iteration:%d", e.Record.Iteration))
		},
	}

	st := newSession(t, 50, 3)
	_, err := newEngine(stub.NewScripted("x"), stub.Scorer(80), runtime.WithLifecycleHooks(hooks)).
		Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{
		"start:draft", "end:draft",
		"start:scoring", "end:scoring",
		"decision:done", "iteration:1",
	}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Errorf("Expected events %v, got %v", want, events)
	}
}

func TestEngine_MissingData(t *testing.T) {
	drafter := stub.NewScripted("x")
	st := newSession(t, 60, 3)
	st.Set(domain.KeyMaterial, "")

	_, err := newEngine(drafter, stub.Scorer(90)).Run(context.Background(), st)

	var mde *domain.MissingDataError
	if !errors.As(err, &mde) {
		t.Fatalf("Expected MissingDataError, got %v", err)
	}
	if len(mde.Keys) != 1 || mde.Keys[0] != domain.KeyMaterial {
		t.Errorf("Expected [material], got %v", mde.Keys)
	}
	if drafter.Calls() != 0 {
		t.Error("No stage may run without required data")
	}
}

func TestEngine_CompletedSessionDoesNotRerun(t *testing.T) {
	st := newSession(t, 60, 3)
	st.Set(domain.KeyIsComplete, true)

	_, err := newEngine(stub.NewScripted("x"), stub.Scorer(90)).Run(context.Background(), st)
	if !errors.Is(err, domain.ErrSessionComplete) {
		t.Errorf("Expected ErrSessionComplete, got %v", err)
	}
}

func TestEngine_CancellationBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooks := domain.LifecycleHooks{
		OnStageEnd: func(_ context.Context, e *domain.StageEvent) {
			if e.Stage == stage.NameDraft {
				cancel()
			}
		},
	}
	drafter := stub.NewScripted("finished draft")
	scorer := stub.Scorer(99)
	st := newSession(t, 60, 3)

	st, err := newEngine(drafter, scorer, runtime.WithLifecycleHooks(hooks)).Run(ctx, st)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if scorer.Calls() != 0 {
		t.Error("Scoring must not start after cancellation")
	}
	if st.String(domain.KeyCurrentDraft) != "finished draft" {
		t.Error("The completed draft stage must keep its write")
	}
	if st.State().Status != domain.StatusAborted {
		t.Errorf("Expected aborted, got %s", st.State().Status)
	}
}

func TestEngine_ResumeContinuesCount(t *testing.T) {
	st := newSession(t, 90, 4)
	st.Update(map[string]any{
		domain.KeyCurrentDraft:    "earlier text",
		domain.KeyCurrentScore:    40,
		domain.KeyIterationCount:  2,
		domain.KeyCurrentFeedback: "needs work",
	})
	drafter := stub.NewScripted("third", "fourth")

	st, err := newEngine(drafter, stub.Scorer(50)).Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if drafter.Calls() != 2 {
		t.Errorf("Expected 2 more drafts, got %d", drafter.Calls())
	}
	if st.State().History[0].Iteration != 3 {
		t.Errorf("Expected numbering to continue at 3, got %d", st.State().History[0].Iteration)
	}
}

func TestEngine_ResumeAtCapDoesNotDraft(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooks := domain.LifecycleHooks{
		OnStageEnd: func(_ context.Context, e *domain.StageEvent) {
			if e.Stage == stage.NameDraft && e.Iteration == 3 {
				cancel()
			}
		},
	}
	drafter := stub.NewScripted("d1", "d2", "d3")
	st := newSession(t, 99, 3)

	st, err := newEngine(drafter, stub.Scorer(10, 20), runtime.WithLifecycleHooks(hooks)).Run(ctx, st)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if st.Bool(domain.KeyIsComplete) {
		t.Fatal("An aborted session must not be complete")
	}

	var decisions []domain.Progress
	resumeHooks := domain.LifecycleHooks{
		OnDecision: func(_ context.Context, e *domain.DecisionEvent) {
			decisions = append(decisions, e.Progress)
		},
	}
	st, err = newEngine(drafter, stub.Scorer(30), runtime.WithLifecycleHooks(resumeHooks)).Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if drafter.Calls() != 3 {
		t.Errorf("Expected no draft after the cap, got %d calls", drafter.Calls())
	}
	if count, _ := st.Int(domain.KeyIterationCount); count != 3 {
		t.Errorf("Expected iteration_count 3, got %d", count)
	}
	if !st.Bool(domain.KeyIsComplete) || st.State().Status != domain.StatusCompleted {
		t.Errorf("Expected a completed session, got status %s", st.State().Status)
	}
	if len(decisions) != 1 || decisions[0].Reason != domain.ReasonMaxIterations || !decisions[0].Done() {
		t.Errorf("Expected a single max_iterations decision, got %+v", decisions)
	}
}

func TestEngine_RevisionAfterFailureKeepsCritique(t *testing.T) {
	drafter := stub.NewScripted("d1", "", "d3").WithErrors(nil, errors.New("overloaded"))
	scorer := stub.NewScripted(
		stub.Evaluation(40, "Add concrete customer examples", "no customer quotes"),
		stub.Evaluation(90, "good"),
	)
	st := newSession(t, 80, 3)

	st, err := newEngine(drafter, scorer).Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	prompts := drafter.Prompts()
	if len(prompts) != 3 {
		t.Fatalf("Expected 3 drafts, got %d", len(prompts))
	}
	if !strings.Contains(prompts[2], "Add concrete customer examples") {
		t.Errorf("Third prompt lost the evaluator critique:\n%s", prompts[2])
	}
	if strings.Contains(prompts[2], stage.FailedDraftIssue) {
		t.Errorf("Third prompt forwards the failure as an issue:\n%s", prompts[2])
	}
	if !strings.Contains(prompts[2], "d1") {
		t.Errorf("Third prompt must revise the last good draft:\n%s", prompts[2])
	}
	if st.String(domain.KeyCurrentDraft) != "d3" {
		t.Errorf("Expected final draft d3, got %q", st.String(domain.KeyCurrentDraft))
	}
}

func TestEngine_LoweredCapStopsBeforeDrafting(t *testing.T) {
	st := newSession(t, 99, 2)
	st.Update(map[string]any{
		domain.KeyCurrentDraft:   "fourth text",
		domain.KeyIterationCount: 4,
	})
	drafter := stub.NewScripted("fifth")
	scorer := stub.Scorer(50)

	st, err := newEngine(drafter, scorer).Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if drafter.Calls() != 0 || scorer.Calls() != 0 {
		t.Errorf("Expected no model calls, got %d drafts and %d evaluations", drafter.Calls(), scorer.Calls())
	}
	if count, _ := st.Int(domain.KeyIterationCount); count != 4 {
		t.Errorf("Expected iteration_count to stay at 4, got %d", count)
	}
	if st.String(domain.KeyCurrentDraft) != "fourth text" {
		t.Error("The stored draft must be kept")
	}
	if len(st.State().History) != 0 {
		t.Errorf("No iteration ran, got %d history records", len(st.State().History))
	}
}
