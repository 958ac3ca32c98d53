package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/quill"
	"github.com/aretw0/quill/internal/adapters/file"
	"github.com/aretw0/quill/internal/config"
	"github.com/aretw0/quill/pkg/adapters/anthropic"
	"github.com/aretw0/quill/pkg/adapters/memory"
	"github.com/aretw0/quill/pkg/adapters/process"
	"github.com/aretw0/quill/pkg/adapters/redis"
	"github.com/aretw0/quill/pkg/adapters/sqlite"
	"github.com/aretw0/quill/pkg/adapters/stub"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/observability"
	"github.com/aretw0/quill/pkg/persistence/middleware"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/session"
)

// DefaultSQLitePath is used by the sqlite driver when store.path is empty.
var DefaultSQLitePath = filepath.Join(".quill", "quill.db")

// AppOptions adjust how an App is assembled from configuration.
type AppOptions struct {
	// Stub replaces the model with deterministic completers.
	Stub bool
	// StubScores are the scores the stub evaluator hands out, in order.
	StubScores []int
	// Hooks are called alongside the logging and metrics hooks.
	Hooks domain.LifecycleHooks
	Logger *slog.Logger
}

// App is an engine together with the resources it was built from.
type App struct {
	Config   *config.Config
	Engine   *quill.Engine
	Sessions *session.Manager
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	// Tracker is nil in stub mode.
	Tracker *anthropic.TokenTracker
	// Ledger is set with the sqlite driver.
	Ledger *sqlite.Store

	closers []func() error
}

// NewApp builds an App from cfg.
func NewApp(ctx context.Context, cfg *config.Config, opts AppOptions) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = createLogger(cfg.Log.Level)
	}

	app := &App{
		Config:  cfg,
		Metrics: observability.NewMetrics(),
		Logger:  logger,
	}

	store, locker, err := app.openStore(cfg.Store)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	managerOpts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(locker))
	}
	app.Sessions = session.NewManager(store, managerOpts...)

	writer, scorer, err := app.newCompleters(ctx, cfg, opts)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	extra, err := cfg.ExtraSchema()
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	hooks := observability.Combine(observability.LogHooks(logger), app.Metrics.Hooks(), opts.Hooks)
	engine, err := quill.New(
		quill.WithLogger(logger),
		quill.WithCompleter(writer),
		quill.WithScorer(scorer),
		quill.WithStore(app.Sessions),
		quill.WithDefaults(cfg.Refinement.ScoreThreshold, cfg.Refinement.MaxIterations),
		quill.WithSchema(extra),
		quill.WithLifecycleHooks(hooks),
	)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = engine
	return app, nil
}

// Close releases store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Store returns the session store the engine persists to.
func (a *App) Store() ports.SessionStore {
	return a.Sessions
}

func (a *App) openStore(cfg config.StoreConfig) (ports.SessionStore, ports.DistributedLocker, error) {
	var (
		store  ports.SessionStore
		locker ports.DistributedLocker
	)
	switch cfg.Driver {
	case config.DriverMemory:
		store = memory.NewStore()
	case config.DriverFile:
		store = file.New(cfg.Path)
	case config.DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultSQLitePath
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.Ledger = db
		store = db
	case config.DriverRedis:
		rs := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redis.WithPrefix(cfg.RedisPrefix), redis.WithTTL(cfg.TTL))
		a.closers = append(a.closers, rs.Close)
		store = rs
		locker = redis.NewLocker(rs.Client(), cfg.RedisPrefix)
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	var mws []middleware.Middleware
	if len(cfg.PIIKeys) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.PIIKeys)
		if err != nil {
			return nil, nil, fmt.Errorf("store.pii_keys: %w", err)
		}
		mws = append(mws, pii)
	}
	if cfg.EncryptionKey != "" {
		key, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		mws = append(mws, enc)
		if a.Ledger != nil {
			a.Logger.Warn("Encrypted sessions are opaque to the sqlite ledger; session history and stats stay empty",
				"path", cfg.Path)
		}
	}
	return middleware.Chain(store, mws...), locker, nil
}

func (a *App) newCompleters(ctx context.Context, full *config.Config, opts AppOptions) (writer, scorer ports.Completer, err error) {
	if opts.Stub {
		scores := opts.StubScores
		if len(scores) == 0 {
			scores = []int{45, 70, 90}
		}
		a.Logger.Info("Using stub completers", "scores", scores)
		return &stub.Writer{}, stub.Scorer(scores...), nil
	}
	if p := full.Process; p.Command != "" {
		c, err := process.New(process.Config{
			Command: p.Command,
			Args:    p.Args,
			Env:     p.Env,
			Timeout: p.Timeout,
		}, process.WithLogger(a.Logger))
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}

	cfg := full.Anthropic
	a.Tracker = anthropic.NewTokenTracker()
	retries := cfg.MaxRetries
	base := anthropic.Config{
		Model:      cfg.Model,
		MaxTokens:  cfg.MaxTokens,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		MaxRetries: &retries,
		UseBedrock: cfg.Bedrock,
		AWSRegion:  cfg.AWSRegion,
		AWSProfile: cfg.AWSProfile,
	}
	clientOpts := []anthropic.Option{anthropic.WithLogger(a.Logger), anthropic.WithTracker(a.Tracker)}

	w, err := anthropic.New(ctx, base, clientOpts...)
	if err != nil {
		return nil, nil, err
	}
	if cfg.ScorerModel == "" || cfg.ScorerModel == cfg.Model {
		return w, w, nil
	}
	base.Model = cfg.ScorerModel
	s, err := anthropic.New(ctx, base, clientOpts...)
	if err != nil {
		return nil, nil, err
	}
	return w, s, nil
}
