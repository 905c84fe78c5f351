package cli

import (
	"context"
	"errors"
	"os"
	"time"

	"trackmystacks/internal/amqp"
	"trackmystacks/internal/config"
	"trackmystacks/internal/log"
	"trackmystacks/internal/services"
	"trackmystacks/internal/sheets"
	"trackmystacks/internal/snapshot"
)

// App is everything a command needs, built once per invocation.
type App struct {
	Config      *config.Config
	Logger      *log.Logger
	Backend     *Backend
	Backup      *services.BackupService
	Comparisons *services.ComparisonService
	// Writer publishes comparisons for `compare --publish`. Built on first use
	// when nil.
	Writer sheets.ComparisonWriter
	Now    func() time.Time

	amqp *amqp.Client
}

// NewApp opens the configured backend and wires the services on top of it.
func NewApp(cfg *config.Config, logger *log.Logger) (*App, error) {
	backend, err := OpenBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	// Events are best-effort for the CLI: an unreachable broker must not
	// block a backup.
	client, err := NewAMQPClient(cfg, logger)
	if err != nil {
		logger.Warn("AMQP unavailable, snapshot events disabled", log.FieldError, err)
		client = nil
	}

	engine := snapshot.NewEngine(backend.Store, snapshot.WithLogger(logger))
	return &App{
		Config:      cfg,
		Logger:      logger,
		Backend:     backend,
		Backup:      services.NewBackupService(engine, Publisher(client), logger),
		Comparisons: services.NewComparisonService(backend.Ranges, services.WithComparisonLogger(logger)),
		Now:         time.Now,
		amqp:        client,
	}, nil
}

// loadAppFromEnv is the production AppLoader.
func loadAppFromEnv(opts *RootOptions) (*App, error) {
	LoadEnvFile()
	cfg := config.Load()
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg.LogLevel, os.Stderr).WithComponent(log.ComponentCLI)
	return NewApp(cfg, logger)
}

// storeContext bounds store calls by STORE_TIMEOUT.
func (a *App) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.Config == nil || a.Config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.Config.StoreTimeout)
}

func (a *App) comparisonWriter(ctx context.Context) (sheets.ComparisonWriter, error) {
	if a.Writer != nil {
		return a.Writer, nil
	}
	w, err := NewComparisonWriter(ctx, a.Config, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Writer = w
	return w, nil
}

func (a *App) Close() error {
	var errs []error
	if a.amqp != nil {
		errs = append(errs, a.amqp.Close())
	}
	if a.Backend != nil {
		errs = append(errs, a.Backend.Close())
	}
	return errors.Join(errs...)
}
