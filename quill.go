package quill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/internal/runtime"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/progress"
	"github.com/aretw0/quill/pkg/schema"
	"github.com/aretw0/quill/pkg/stage"
	"github.com/aretw0/quill/pkg/state"
	"github.com/google/uuid"
)

// ErrNoStore is returned by operations that need a SessionStore when none is configured.
var ErrNoStore = errors.New("no session store configured")

// Inputs seeds a new session.
type Inputs = domain.Inputs

var _ ports.Refiner = (*Engine)(nil)

// Engine is the high-level entry point for the quill library.
// It wires the stages, the progress controller and the loop, and optionally
// persists sessions through a ports.SessionStore.
type Engine struct {
	runtime    *runtime.Engine
	controller *progress.Controller
	completer  ports.Completer
	scorer     ports.Completer
	store      ports.SessionStore
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	schema     schema.Schema
	templates  stage.Templates
	threshold  int
	maxIter    int
	newID      func() string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCompleter sets the model used to write drafts. It also scores them unless
// WithScorer is given.
func WithCompleter(c ports.Completer) Option {
	return func(e *Engine) {
		e.completer = c
	}
}

// WithScorer sets a separate evaluator model.
func WithScorer(c ports.Completer) Option {
	return func(e *Engine) {
		e.scorer = c
	}
}

// WithStore enables session persistence.
func WithStore(s ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithDefaults sets the threshold and iteration cap for sessions that do not set their own.
func WithDefaults(threshold, maxIterations int) Option {
	return func(e *Engine) {
		e.threshold = threshold
		e.maxIter = maxIterations
	}
}

// WithSchema declares extra typed session keys.
func WithSchema(s schema.Schema) Option {
	return func(e *Engine) {
		e.schema = s
	}
}

// WithDraftTemplates replaces the prompt templates. Empty fields keep the defaults.
func WithDraftTemplates(t stage.Templates) Option {
	return func(e *Engine) {
		e.templates = t
	}
}

// WithIDGenerator overrides how session IDs are minted for empty IDs.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New initializes a quill Engine. A completer is required.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		threshold: domain.DefaultScoreThreshold,
		maxIter:   domain.DefaultMaxIterations,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.completer == nil {
		return nil, fmt.Errorf("a completer is required")
	}
	if eng.scorer == nil {
		eng.scorer = eng.completer
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.threshold < 0 || eng.threshold > domain.MaxScore {
		return nil, fmt.Errorf("score threshold %d outside [0,%d]", eng.threshold, domain.MaxScore)
	}
	if eng.maxIter < 1 {
		return nil, fmt.Errorf("max iterations must be at least 1, got %d", eng.maxIter)
	}

	prompts, err := stage.Compile(eng.templates)
	if err != nil {
		return nil, err
	}
	stageOpts := []stage.Option{stage.WithLogger(eng.logger), stage.WithPrompts(prompts)}

	eng.controller = progress.New(
		progress.WithLogger(eng.logger),
		progress.WithDefaults(eng.threshold, eng.maxIter),
	)
	eng.runtime = runtime.NewEngine(
		stage.NewDraft(eng.completer, stageOpts...),
		stage.NewScoring(eng.scorer, stageOpts...),
		runtime.WithController(eng.controller),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	)
	return eng, nil
}

// Start creates the state of a new session from in.
//
// Values that fail their type check are reported as a *schema.AggregateError and no
// state is returned. Missing or blank required inputs yield a *domain.MissingDataError
// together with the seeded store, so hosts can still report on it.
func (e *Engine) Start(ctx context.Context, sessionID string, in Inputs) (*state.Store, error) {
	if sessionID == "" {
		sessionID = e.newID()
	}
	st := e.newStore(domain.NewState(sessionID))

	values := in.Values()
	var errs []error
	for _, k := range slices.Sorted(maps.Keys(values)) {
		if err := st.Schema().Check(k, values[k]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, &schema.AggregateError{Errors: errs}
	}

	st.Update(values)
	if !st.Has(domain.KeyScoreThreshold) {
		st.Set(domain.KeyScoreThreshold, e.threshold)
	}
	if !st.Has(domain.KeyMaxIterations) {
		st.Set(domain.KeyMaxIterations, e.maxIter)
	}
	st.Set(domain.KeyIterationCount, 0)
	st.Set(domain.KeyIsComplete, false)

	if missing := st.Missing(domain.RequiredInputs...); len(missing) > 0 {
		e.logger.Warn("Session missing required data", "session_id", sessionID, "keys", missing)
		return st, &domain.MissingDataError{Keys: missing}
	}
	e.logger.Debug("Session started", "session_id", sessionID)
	return st, nil
}

// Run drives the refinement loop on st until it is done.
func (e *Engine) Run(ctx context.Context, st *state.Store) (*state.Store, error) {
	return e.runtime.Run(ctx, st)
}

// Finalize aggregates the outcome of st.
func (e *Engine) Finalize(st *state.Store) domain.Result {
	return runtime.Finalize(st)
}

// Refine starts a session, runs it to completion and returns its result.
// With a store configured, the final state is saved even when the loop was cancelled.
func (e *Engine) Refine(ctx context.Context, sessionID string, in Inputs) (domain.Result, error) {
	st, err := e.Start(ctx, sessionID, in)
	if err != nil {
		if st != nil {
			return runtime.Finalize(st), err
		}
		return domain.Result{}, err
	}

	st, runErr := e.Run(ctx, st)
	if err := e.save(ctx, st); err != nil {
		return runtime.Finalize(st), err
	}
	return runtime.Finalize(st), runErr
}

// Resume loads a stored session and continues it.
func (e *Engine) Resume(ctx context.Context, sessionID string) (domain.Result, error) {
	st, err := e.load(ctx, sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	if st.Bool(domain.KeyIsComplete) {
		return runtime.Finalize(st), fmt.Errorf("resume %s: %w", sessionID, domain.ErrSessionComplete)
	}

	st, runErr := e.Run(ctx, st)
	if err := e.save(ctx, st); err != nil {
		return runtime.Finalize(st), err
	}
	return runtime.Finalize(st), runErr
}

// Result aggregates a stored session without running it.
func (e *Engine) Result(ctx context.Context, sessionID string) (domain.Result, error) {
	st, err := e.load(ctx, sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	return runtime.Finalize(st), nil
}

// Check runs the progress controller over raw session values, as a host would for a
// session it drives itself. Invalid values are dropped and defaults apply.
func (e *Engine) Check(ctx context.Context, values map[string]any) domain.Progress {
	st := e.newStore(domain.NewState("check"))
	st.Update(values)
	return e.controller.Check(st)
}

// Store returns the configured session store, or nil.
func (e *Engine) Store() ports.SessionStore {
	return e.store
}

// Schema returns the effective session schema.
func (e *Engine) Schema() schema.Schema {
	return state.DefaultSchema().Merge(e.schema)
}

func (e *Engine) newStore(st *domain.State) *state.Store {
	return state.New(st, state.WithSchema(e.schema), state.WithLogger(e.logger))
}

func (e *Engine) load(ctx context.Context, sessionID string) (*state.Store, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	raw, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return e.newStore(raw), nil
}

func (e *Engine) save(ctx context.Context, st *state.Store) error {
	if e.store == nil {
		return nil
	}
	// An aborted run still persists its partial state.
	ctx = context.WithoutCancel(ctx)
	if err := e.store.Save(ctx, st.State().SessionID, st.State()); err != nil {
		return fmt.Errorf("save session %s: %w", st.State().SessionID, err)
	}
	return nil
}
