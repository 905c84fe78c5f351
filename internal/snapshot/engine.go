package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trackmystacks/internal/log"
	"trackmystacks/internal/store"
)

// Engine exports and imports snapshots against a transactional store.
// Concurrent imports are not coordinated here; callers serialize them.
type Engine struct {
	store  store.Store
	logger *log.Logger
	now    func() time.Time
}

type Option func(*Engine)

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l.WithComponent(log.ComponentSnapshot) }
}

// WithClock overrides the time source used for exportedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: log.FromContext(context.Background()).WithComponent(log.ComponentSnapshot),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export returns every user, category and expense in one consistent read.
// Password hashes are copied verbatim. An empty store yields a document with
// empty, non-nil lists.
func (e *Engine) Export(ctx context.Context) (*Document, error) {
	doc := &Document{
		Version:    Version,
		ExportedAt: e.now().UTC(),
		Users:      []UserEntry{},
		Categories: []CategoryEntry{},
		Expenses:   []ExpenseEntry{},
	}

	err := e.store.ReadTx(ctx, func(r store.Reader) error {
		users, err := r.ListUsers(ctx)
		if err != nil {
			return storeErr("list users", err)
		}
		for _, u := range users {
			doc.Users = append(doc.Users, newUserEntry(u))
		}

		categories, err := r.ListCategories(ctx)
		if err != nil {
			return storeErr("list categories", err)
		}
		for _, c := range categories {
			doc.Categories = append(doc.Categories, newCategoryEntry(c))
		}

		expenses, err := r.ListOwnedExpenses(ctx)
		if err != nil {
			return storeErr("list expenses", err)
		}
		for _, x := range expenses {
			doc.Expenses = append(doc.Expenses, newExpenseEntry(x))
		}
		return nil
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Export failed", log.FieldError, err)
		return nil, storeErr("export", err)
	}

	e.logger.InfoContext(ctx, "Export finished",
		log.NewFields().WithOperation(log.OpExport).WithCounts(len(doc.Users), len(doc.Categories), len(doc.Expenses)).ToSlice()...)
	return doc, nil
}

// ExportUser returns the expenses of one user without any credentials.
func (e *Engine) ExportUser(ctx context.Context, username string) (*UserDocument, error) {
	doc := &UserDocument{
		Version:    Version,
		Username:   username,
		ExportedAt: e.now().UTC(),
		Expenses:   []UserExpenseEntry{},
	}

	err := e.store.ReadTx(ctx, func(r store.Reader) error {
		owner, err := r.FindUserByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownUser, username)
		}
		if err != nil {
			return storeErr("find user", err)
		}
		expenses, err := r.ListExpensesByOwner(ctx, owner.ID)
		if err != nil {
			return storeErr("list expenses", err)
		}
		for _, x := range expenses {
			doc.Expenses = append(doc.Expenses, newUserExpenseEntry(x))
		}
		return nil
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "User export failed", log.FieldUsername, username, log.FieldError, err)
		return nil, storeErr("export user", err)
	}

	e.logger.InfoContext(ctx, "User export finished",
		log.FieldOperation, log.OpExportUser,
		log.FieldUsername, username,
		log.FieldExpenses, len(doc.Expenses))
	return doc, nil
}
