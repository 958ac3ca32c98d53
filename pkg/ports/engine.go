package ports

import (
	"context"

	"github.com/aretw0/quill/pkg/domain"
)

// Refiner is the surface host adapters (HTTP, MCP, CLI) drive. quill.Engine implements it.
type Refiner interface {
	// Refine seeds a new session from inputs, runs the loop and returns the final result.
	// An empty sessionID is replaced by a generated one. Missing required inputs
	// yield a *domain.MissingDataError.
	Refine(ctx context.Context, sessionID string, in domain.Inputs) (domain.Result, error)

	// Resume continues a stored session that has not completed yet.
	Resume(ctx context.Context, sessionID string) (domain.Result, error)

	// Result aggregates the outcome of a stored session without running it.
	Result(ctx context.Context, sessionID string) (domain.Result, error)

	// Check evaluates the stop conditions for a set of raw session values.
	Check(ctx context.Context, values map[string]any) domain.Progress
}
