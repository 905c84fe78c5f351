package services

import (
	"context"

	"trackmystacks/internal/amqp"
	"trackmystacks/internal/log"
	"trackmystacks/internal/snapshot"
)

// EventPublisher announces committed snapshot operations.
type EventPublisher interface {
	PublishSnapshotEvent(ctx context.Context, ev *amqp.SnapshotEvent) error
}

// BackupService runs snapshot operations and announces them. The store is
// the source of truth: a publish failure is logged and never fails the
// operation that already committed.
type BackupService struct {
	engine    *snapshot.Engine
	publisher EventPublisher
	logger    *log.Logger
}

// NewBackupService wires the engine to an optional publisher (nil disables events).
func NewBackupService(engine *snapshot.Engine, publisher EventPublisher, logger *log.Logger) *BackupService {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &BackupService{
		engine:    engine,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentSnapshot),
	}
}

func (s *BackupService) Export(ctx context.Context) (*snapshot.Document, error) {
	doc, err := s.engine.Export(ctx)
	if err != nil {
		return nil, err
	}

	ev := amqp.NewSnapshotEvent(amqp.KindExport, doc.Usernames()...)
	ev.Users, ev.Categories, ev.Expenses = len(doc.Users), len(doc.Categories), len(doc.Expenses)
	s.publish(ctx, ev)
	return doc, nil
}

func (s *BackupService) ExportUser(ctx context.Context, username string) (*snapshot.UserDocument, error) {
	doc, err := s.engine.ExportUser(ctx, username)
	if err != nil {
		return nil, err
	}

	ev := amqp.NewSnapshotEvent(amqp.KindExportUser, username)
	ev.Expenses = len(doc.Expenses)
	s.publish(ctx, ev)
	return doc, nil
}

func (s *BackupService) Import(ctx context.Context, doc *snapshot.Document) (snapshot.ImportReport, error) {
	report, err := s.engine.Import(ctx, doc)
	if err != nil {
		return report, err
	}

	ev := amqp.NewSnapshotEvent(amqp.KindImport, doc.Usernames()...)
	ev.Users = report.UsersCreated + report.UsersUpdated
	ev.Categories = report.Categories
	ev.Expenses = report.Expenses
	ev.Skipped = report.DanglingCount()
	s.publish(ctx, ev)
	return report, nil
}

func (s *BackupService) ImportUser(ctx context.Context, owner string, doc *snapshot.UserDocument) (snapshot.ImportReport, error) {
	report, err := s.engine.ImportUser(ctx, owner, doc)
	if err != nil {
		return report, err
	}

	ev := amqp.NewSnapshotEvent(amqp.KindImportUser, owner)
	ev.Expenses = report.Expenses
	s.publish(ctx, ev)
	return report, nil
}

func (s *BackupService) publish(ctx context.Context, ev *amqp.SnapshotEvent) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping snapshot event", log.FieldEventKind, ev.Kind)
		return
	}
	if err := s.publisher.PublishSnapshotEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish snapshot event",
			log.FieldEventID, ev.ID.String(),
			log.FieldEventKind, ev.Kind,
			log.FieldError, err)
	}
}
