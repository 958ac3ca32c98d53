// Package progress decides, after every scoring pass, whether a refinement session stops.
package progress

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/state"
)

// Controller evaluates the stop conditions of a session.
type Controller struct {
	logger        *slog.Logger
	threshold     int
	maxIterations int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used to report substituted defaults and absorbed failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDefaults overrides the threshold and cap used when the session does not set
// valid values of its own. Invalid arguments are ignored.
func WithDefaults(threshold, maxIterations int) Option {
	return func(c *Controller) {
		if validThreshold(threshold) {
			c.threshold = threshold
		}
		if maxIterations >= 1 {
			c.maxIterations = maxIterations
		}
	}
}

// New creates a Controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		logger:        logging.NewNop(),
		threshold:     domain.DefaultScoreThreshold,
		maxIterations: domain.DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns DONE when the current score meets the threshold or the iteration cap
// is reached, and CONTINUE otherwise. On DONE it marks the session complete.
//
// Check never panics: an internal failure yields CONTINUE with Error set, leaving the
// iteration cap of the loop as the final backstop.
func (c *Controller) Check(st *state.Store) (p domain.Progress) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Progress check failed", "err", r)
			p = domain.Progress{
				Decision: domain.DecisionContinue,
				Error:    fmt.Sprintf("progress check failed: %v", r),
			}
		}
	}()

	p = domain.Progress{
		Decision:  domain.DecisionContinue,
		Threshold: c.thresholdOf(st),
		Max:       c.maxIterationsOf(st),
	}
	p.Iteration, _ = st.Int(domain.KeyIterationCount)

	if score, ok := CurrentScore(st); ok {
		p.Score = &score
		if score >= p.Threshold {
			p.Decision = domain.DecisionDone
			p.Reason = domain.ReasonScorePassed
		}
	}
	if !p.Done() && p.Iteration >= p.Max {
		p.Decision = domain.DecisionDone
		p.Reason = domain.ReasonMaxIterations
	}

	p.Escalate = p.Done()
	if p.Done() {
		st.Set(domain.KeyIsComplete, true)
	}
	return p
}

// Limit returns the iteration cap in effect for st.
func (c *Controller) Limit(st *state.Store) int {
	return c.maxIterationsOf(st)
}

// CurrentScore returns the score of the current draft. A score written before the
// latest draft belongs to an older text and is reported as absent.
func CurrentScore(st *state.Store) (int, bool) {
	score, ok := st.Int(domain.KeyCurrentScore)
	if !ok {
		return 0, false
	}
	if st.Has(domain.KeyCurrentDraft) && !st.NewerThan(domain.KeyCurrentScore, domain.KeyCurrentDraft) {
		return 0, false
	}
	return score, true
}

func (c *Controller) thresholdOf(st *state.Store) int {
	if !st.Has(domain.KeyScoreThreshold) {
		return c.threshold
	}
	t, ok := st.Int(domain.KeyScoreThreshold)
	if !ok || !validThreshold(t) {
		c.logger.Warn("Invalid score threshold, using default",
			"value", st.Get(domain.KeyScoreThreshold, nil), "default", c.threshold)
		return c.threshold
	}
	return t
}

func (c *Controller) maxIterationsOf(st *state.Store) int {
	if !st.Has(domain.KeyMaxIterations) {
		return c.maxIterations
	}
	n, ok := st.Int(domain.KeyMaxIterations)
	if !ok || n < 1 {
		c.logger.Warn("Invalid max iterations, using default",
			"value", st.Get(domain.KeyMaxIterations, nil), "default", c.maxIterations)
		return c.maxIterations
	}
	return n
}

func validThreshold(t int) bool {
	return t >= 0 && t <= domain.MaxScore
}
