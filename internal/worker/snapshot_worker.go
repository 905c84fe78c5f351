package worker

import (
	"context"
	"errors"
	"fmt"

	"trackmystacks/internal/amqp"
	"trackmystacks/internal/log"
	"trackmystacks/internal/services"
	"trackmystacks/internal/sheets"
	"trackmystacks/internal/store"
)

// SnapshotWorker republishes monthly comparisons for users whose expenses
// were rewritten by an import.
type SnapshotWorker struct {
	store       store.Store
	comparisons *services.ComparisonService
	writer      sheets.ComparisonWriter
	window      int
	logger      *log.Logger
}

func NewSnapshotWorker(st store.Store, comparisons *services.ComparisonService, writer sheets.ComparisonWriter, window int, logger *log.Logger) *SnapshotWorker {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &SnapshotWorker{
		store:       st,
		comparisons: comparisons,
		writer:      writer,
		window:      window,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSnapshotEvent processes a single snapshot event from AMQP.
// Exports change nothing and are acknowledged without work.
func (w *SnapshotWorker) HandleSnapshotEvent(ctx context.Context, ev *amqp.SnapshotEvent) error {
	w.logger.InfoContext(ctx, "Processing snapshot event",
		log.FieldEventID, ev.ID.String(),
		log.FieldEventKind, string(ev.Kind),
		log.FieldUsers, len(ev.Usernames))

	if !ev.ChangesExpenses() {
		return nil
	}

	for _, username := range ev.Usernames {
		if err := w.refresh(ctx, username); err != nil {
			return err
		}
	}
	return nil
}

// StartupRefresh rewrites the comparison of every user. It recovers from
// events missed while the worker was down.
func (w *SnapshotWorker) StartupRefresh(ctx context.Context) error {
	var usernames []string
	err := w.store.ReadTx(ctx, func(r store.Reader) error {
		users, err := r.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			usernames = append(usernames, u.Username)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list users for startup refresh: %w", err)
	}

	refreshed, failed := 0, 0
	for _, username := range usernames {
		if err := w.refresh(ctx, username); err != nil {
			w.logger.ErrorContext(ctx, "Failed to refresh comparison during startup",
				log.FieldUsername, username, log.FieldError, err)
			failed++
			continue
		}
		refreshed++
	}

	w.logger.InfoContext(ctx, "Startup refresh completed",
		"total", len(usernames),
		"refreshed", refreshed,
		"errors", failed)
	return nil
}

func (w *SnapshotWorker) refresh(ctx context.Context, username string) error {
	points, err := w.comparisons.ComputeForUsername(ctx, username, w.window)
	if errors.Is(err, services.ErrUnknownUser) {
		// Renamed or removed since the event was published; nothing to redo.
		w.logger.WarnContext(ctx, "Skipping comparison for unknown user", log.FieldUsername, username)
		return nil
	}
	if err != nil {
		return fmt.Errorf("compute comparison for %s: %w", username, err)
	}

	if err := w.writer.WriteComparison(ctx, username, points); err != nil {
		return fmt.Errorf("write comparison for %s: %w", username, err)
	}

	w.logger.InfoContext(ctx, "Comparison refreshed",
		log.FieldUsername, username,
		log.FieldWindow, w.window)
	return nil
}
