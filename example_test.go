package quill_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aretw0/quill"
	"github.com/aretw0/quill/pkg/adapters/memory"
	"github.com/aretw0/quill/pkg/adapters/stub"
	"github.com/aretw0/quill/pkg/domain"
)

// ExampleEngine_Refine runs a whole session with offline completers.
func ExampleEngine_Refine() {
	eng, err := quill.New(
		quill.WithCompleter(&stub.Writer{}),
		quill.WithScorer(stub.Scorer(40, 75)),
	)
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Refine(context.Background(), "example", quill.Inputs{
		Material:        "Q3 revenue rose 8%.",
		Requirements:    "One sentence.",
		ScoringCriteria: "Accuracy.",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s after %d iterations, score %d\n", res.Status, res.IterationsCompleted, res.Score)
	fmt.Println(strings.SplitN(res.Draft, "\n", 2)[0])
	// Output:
	// success after 2 iterations, score 75
	// Draft 2
}

// ExampleWithLifecycleHooks observes each iteration as it completes.
func ExampleWithLifecycleHooks() {
	hooks := domain.LifecycleHooks{
		OnIteration: func(ctx context.Context, e *domain.IterationEvent) {
			fmt.Printf("iteration %d: score %d (%s)\n", e.Record.Iteration, e.Record.Score, e.Record.Decision)
		},
	}

	eng, err := quill.New(
		quill.WithCompleter(&stub.Writer{}),
		quill.WithScorer(stub.Scorer(30, 50, 65)),
		quill.WithStore(memory.NewStore()),
		quill.WithDefaults(60, 5),
		quill.WithLifecycleHooks(hooks),
	)
	if err != nil {
		log.Fatal(err)
	}

	if _, err := eng.Refine(context.Background(), "hooks", quill.Inputs{
		Material:        "notes",
		Requirements:    "summary",
		ScoringCriteria: "clarity",
	}); err != nil {
		log.Fatal(err)
	}
	// Output:
	// iteration 1: score 30 (continue)
	// iteration 2: score 50 (continue)
	// iteration 3: score 65 (done)
}
