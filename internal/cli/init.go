// Package cli provides common CLI initialization utilities shared by
// cmd/stacks and cmd/stacks-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trackmystacks/internal/amqp"
	"trackmystacks/internal/config"
	"trackmystacks/internal/log"
	"trackmystacks/internal/services"
	"trackmystacks/internal/sheets"
	"trackmystacks/internal/sheets/google"
	sheetsmem "trackmystacks/internal/sheets/memory"
	"trackmystacks/internal/store"
	"trackmystacks/internal/store/memory"
	"trackmystacks/internal/store/sqlite"
)

// SetupLogger initializes structured logging at the given level and sets it
// as the default logger. Unknown levels fall back to info.
func SetupLogger(level string, out io.Writer) *log.Logger {
	lvl, err := log.ParseLevel(level)
	cfg := log.DefaultConfig()
	cfg.Level = lvl
	if out != nil {
		cfg.Output = out
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Backend bundles the store ports served by the configured data backend.
type Backend struct {
	Store  store.Store
	Ranges store.RangeReader
	Seeder store.Seeder
	close  func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend opens the store selected by DATA_BACKEND.
func OpenBackend(cfg *config.Config, logger *log.Logger) (*Backend, error) {
	switch cfg.DataBackend {
	case config.BackendSQLite:
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}
		logger.Info("SQLite repository ready", log.FieldPath, cfg.SQLiteDBPath)
		return &Backend{Store: repo, Ranges: repo, Seeder: repo, close: repo.Close}, nil
	case config.BackendMemory:
		st := memory.New()
		logger.Warn("Using in-memory store, data is lost on exit")
		return &Backend{Store: st, Ranges: st, Seeder: st}, nil
	default:
		return nil, fmt.Errorf("unsupported data backend %q", cfg.DataBackend)
	}
}

// NewAMQPClient returns nil when AMQP is not configured.
func NewAMQPClient(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP not configured, snapshot events disabled")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("initialize AMQP client: %w", err)
	}
	logger.Info("AMQP client ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// Publisher adapts an optional AMQP client to the services port. A nil
// client yields a nil interface, which disables publishing.
func Publisher(client *amqp.Client) services.EventPublisher {
	if client == nil {
		return nil
	}
	return client
}

// NewComparisonWriter returns the Google Sheets writer when a spreadsheet is
// configured and an in-memory writer otherwise.
func NewComparisonWriter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.ComparisonWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, comparisons are kept in memory only")
		return sheetsmem.New(), nil
	}
	client, err := google.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetPrefix, google.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	return client, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
