package snapshot

import (
	"context"
	"errors"
	"fmt"

	"trackmystacks/internal/core"
	"trackmystacks/internal/log"
	"trackmystacks/internal/store"
)

// importState is threaded through the import steps of one transaction.
type importState struct {
	doc *Document
	// owners maps each document username to the id it has after the
	// user pass. Expenses are linked through it, never through ids from
	// the document.
	owners map[string]int64
	report ImportReport
}

type importStep struct {
	name string
	run  func(ctx context.Context, w store.Writer, st *importState) error
}

// Expenses reference users, so they go first and come back last.
var fullImportSteps = []importStep{
	{name: "delete expenses", run: deleteAllExpenses},
	{name: "replace categories", run: replaceCategories},
	{name: "upsert users", run: upsertUsers},
	{name: "insert expenses", run: insertExpenses},
}

// Import restores doc into the store in one write transaction. Existing
// users keep their id; all expenses and categories are replaced. Any store
// failure rolls the whole import back.
func (e *Engine) Import(ctx context.Context, doc *Document) (ImportReport, error) {
	if err := doc.Validate(); err != nil {
		e.logger.WarnContext(ctx, "Rejected snapshot", log.FieldOperation, log.OpImport, log.FieldError, err)
		return ImportReport{}, err
	}

	var st *importState
	err := e.store.WriteTx(ctx, func(w store.Writer) error {
		st = &importState{doc: doc, owners: make(map[string]int64, len(doc.Users))}
		for _, step := range fullImportSteps {
			if err := step.run(ctx, w, st); err != nil {
				return storeErr(step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Import failed, nothing was written", log.FieldOperation, log.OpImport, log.FieldError, err)
		return ImportReport{}, storeErr("import", err)
	}

	for _, s := range st.report.Skipped {
		e.logger.WarnContext(ctx, "Skipped expense with unknown owner",
			log.FieldIndex, s.Index, log.FieldUsername, s.Username)
	}
	e.logger.InfoContext(ctx, "Import finished",
		log.FieldOperation, log.OpImport,
		"users_created", st.report.UsersCreated,
		"users_updated", st.report.UsersUpdated,
		log.FieldCategories, st.report.Categories,
		log.FieldExpenses, st.report.Expenses,
		log.FieldSkipped, st.report.DanglingCount())
	return st.report, nil
}

func deleteAllExpenses(ctx context.Context, w store.Writer, st *importState) error {
	n, err := w.DeleteAllExpenses(ctx)
	st.report.ExpensesDeleted = n
	return err
}

func replaceCategories(ctx context.Context, w store.Writer, st *importState) error {
	if _, err := w.DeleteAllCategories(ctx); err != nil {
		return err
	}
	for _, c := range st.doc.Categories {
		if _, err := w.InsertCategory(ctx, core.Category{Name: c.Name, CreatedAt: timeOrZero(c.CreatedAt)}); err != nil {
			return fmt.Errorf("category %q: %w", c.Name, err)
		}
		st.report.Categories++
	}
	return nil
}

func upsertUsers(ctx context.Context, w store.Writer, st *importState) error {
	for _, u := range st.doc.Users {
		// The store matches usernames byte for byte; NFC only keys the
		// document's own owner references.
		username := u.Username
		key := normalizeUsername(username)
		existing, err := w.FindUserByUsername(ctx, username)
		switch {
		case err == nil:
			existing.Email = u.Email
			existing.PasswordHash = u.PasswordHash
			existing.Admin = u.Admin
			if err := w.UpdateUser(ctx, existing); err != nil {
				return fmt.Errorf("user %q: %w", username, err)
			}
			st.owners[key] = existing.ID
			st.report.UsersUpdated++
		case errors.Is(err, store.ErrNotFound):
			created, err := w.InsertUser(ctx, core.User{
				Username:     username,
				Email:        u.Email,
				PasswordHash: u.PasswordHash,
				Admin:        u.Admin,
				CreatedAt:    timeOrZero(u.CreatedAt),
			})
			if err != nil {
				return fmt.Errorf("user %q: %w", username, err)
			}
			st.owners[key] = created.ID
			st.report.UsersCreated++
		default:
			return fmt.Errorf("user %q: %w", username, err)
		}
	}
	return nil
}

func insertExpenses(ctx context.Context, w store.Writer, st *importState) error {
	for i, x := range st.doc.Expenses {
		ownerID, ok := st.owners[normalizeUsername(x.Username)]
		if !ok {
			st.report.Skipped = append(st.report.Skipped, SkippedExpense{Index: i, Username: x.Username})
			continue
		}
		if _, err := w.InsertExpense(ctx, x.expense(ownerID)); err != nil {
			return fmt.Errorf("expenses[%d]: %w", i, err)
		}
		st.report.Expenses++
	}
	return nil
}

// ImportUser replaces the expenses of owner with those in doc. The
// document's own username is ignored. Other users and categories are never
// touched.
func (e *Engine) ImportUser(ctx context.Context, owner string, doc *UserDocument) (ImportReport, error) {
	if err := doc.Validate(); err != nil {
		e.logger.WarnContext(ctx, "Rejected user snapshot", log.FieldOperation, log.OpImportUser,
			log.FieldUsername, owner, log.FieldError, err)
		return ImportReport{}, err
	}

	var report ImportReport
	err := e.store.WriteTx(ctx, func(w store.Writer) error {
		report = ImportReport{}
		user, err := w.FindUserByUsername(ctx, owner)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownUser, owner)
		}
		if err != nil {
			return storeErr("find user", err)
		}

		if report.ExpensesDeleted, err = w.DeleteExpensesByOwner(ctx, user.ID); err != nil {
			return storeErr("delete expenses", err)
		}
		for i, x := range doc.Expenses {
			if _, err := w.InsertExpense(ctx, x.expense(user.ID)); err != nil {
				return storeErr(fmt.Sprintf("insert expenses[%d]", i), err)
			}
			report.Expenses++
		}
		return nil
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "User import failed, nothing was written",
			log.FieldOperation, log.OpImportUser, log.FieldUsername, owner, log.FieldError, err)
		return ImportReport{}, storeErr("import user", err)
	}

	e.logger.InfoContext(ctx, "User import finished",
		log.FieldOperation, log.OpImportUser,
		log.FieldUsername, owner,
		"deleted", report.ExpensesDeleted,
		log.FieldExpenses, report.Expenses)
	return report, nil
}
