package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/quill/internal/presentation/graph"
	"github.com/aretw0/quill/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	st := domain.NewState("s")
	st.History = []domain.IterationRecord{
		{Iteration: 1, Score: 0, DraftFailed: true, Decision: domain.DecisionContinue},
		{Iteration: 2, Score: 48, KeyIssues: []string{"a", "b"}, Decision: domain.DecisionContinue},
		{Iteration: 3, Score: 71, Decision: domain.DecisionDone, Reason: domain.ReasonScorePassed},
	}

	out := graph.GenerateMermaid(st, 70)

	for _, want := range []string{
		"graph LR",
		"start --> it1",
		"it1 --> it2",
		`it2["#2 <br/> score 48 <br/> 2 issues"]`,
		`done(("score_passed"))`,
		`it3 -- "threshold 70" --> done`,
		"class it3 passed;",
		"class it1 failed;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "class it2") {
		t.Error("A below-threshold iteration must not be styled")
	}
}

func TestGenerateMermaid_Empty(t *testing.T) {
	out := graph.GenerateMermaid(domain.NewState("s"), 60)
	if strings.Contains(out, "done") || strings.Contains(out, "classDef") {
		t.Errorf("Unexpected output for an empty session:\n%s", out)
	}
}
