package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trackmystacks/internal/core"
	"trackmystacks/internal/log"
	"trackmystacks/internal/store"
	"trackmystacks/internal/store/memory"
	"trackmystacks/internal/store/sqlite"
)

type testStore interface {
	store.Store
	store.Seeder
}

// backends runs fn against every store implementation.
func backends(t *testing.T, fn func(t *testing.T, s testStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, memory.New()) })
	t.Run("sqlite", func(t *testing.T) {
		repo, err := sqlite.NewRepository(filepath.Join(t.TempDir(), "stacks.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		fn(t, repo)
	})
}

func newEngine(s store.Store) *Engine {
	fixed := time.Date(2026, 3, 28, 12, 0, 0, 0, time.UTC)
	return NewEngine(s, WithLogger(log.Discard()), WithClock(func() time.Time { return fixed }))
}

func mustUser(t *testing.T, s store.Seeder, username string) core.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), core.User{
		Username: username, Email: username + "@example.com", PasswordHash: "$2a$10$" + username,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func mustExpense(t *testing.T, s store.Seeder, owner core.User, amount string, day int) {
	t.Helper()
	if _, err := s.AddExpense(context.Background(), core.Expense{
		UserID: owner.ID, Amount: decimal.RequireFromString(amount), Category: "Food",
		Description: "groceries", Date: core.NewDate(2026, 3, day),
	}); err != nil {
		t.Fatalf("add expense: %v", err)
	}
}

func mustCategories(t *testing.T, s store.Store, names ...string) {
	t.Helper()
	ctx := context.Background()
	err := s.WriteTx(ctx, func(w store.Writer) error {
		for _, n := range names {
			if _, err := w.InsertCategory(ctx, core.Category{Name: n}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert categories: %v", err)
	}
}

func amountPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ownerNames(doc *Document) []string {
	var names []string
	for _, e := range doc.Expenses {
		names = append(names, e.Username)
	}
	sort.Strings(names)
	return names
}

func mustExport(t *testing.T, e *Engine) *Document {
	t.Helper()
	doc, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	return doc
}

func TestExportEmptyStore(t *testing.T) {
	backends(t, func(t *testing.T, s testStore) {
		doc := mustExport(t, newEngine(s))
		if doc.Version != Version {
			t.Fatalf("version = %q", doc.Version)
		}
		if doc.Users == nil || doc.Categories == nil || doc.Expenses == nil {
			t.Fatalf("expected non-nil empty lists: %+v", doc)
		}
		if len(doc.Users)+len(doc.Categories)+len(doc.Expenses) != 0 {
			t.Fatalf("expected empty document, got %+v", doc)
		}
	})
}

func TestExportCopiesHashesAndOwners(t *testing.T) {
	backends(t, func(t *testing.T, s testStore) {
		alice := mustUser(t, s, "alice")
		mustExpense(t, s, alice, "12.50", 3)

		doc := mustExport(t, newEngine(s))
		if len(doc.Users) != 1 || doc.Users[0].PasswordHash != "$2a$10$alice" {
			t.Fatalf("hash not copied verbatim: %+v", doc.Users)
		}
		if doc.Users[0].OriginalID != alice.ID {
			t.Fatalf("originalId = %d, want %d", doc.Users[0].OriginalID, alice.ID)
		}
		if len(doc.Expenses) != 1 || doc.Expenses[0].Username != "alice" || !doc.Expenses[0].Amount.Equal(decimal.RequireFromString("12.5")) {
			t.Fatalf("unexpected expenses: %+v", doc.Expenses)
		}
	})
}

func TestRoundTripPreservesCountsAndOwners(t *testing.T) {
	backends(t, func(t *testing.T, s testStore) {
		alice := mustUser(t, s, "alice")
		bob := mustUser(t, s, "bob")
		mustExpense(t, s, alice, "10", 1)
		mustExpense(t, s, alice, "20", 2)
		mustExpense(t, s, bob, "30", 3)
		mustCategories(t, s, "Bills", "Food")

		engine := newEngine(s)
		before := mustExport(t, engine)
		report, err := engine.Import(context.Background(), before)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if report.UsersUpdated != 2 || report.UsersCreated != 0 || report.Expenses != 3 || report.DanglingCount() != 0 {
			t.Fatalf("unexpected report: %+v", report)
		}

		after := mustExport(t, engine)
		if len(after.Users) != len(before.Users) || len(after.Categories) != len(before.Categories) || len(after.Expenses) != len(before.Expenses) {
			t.Fatalf("counts changed: before=%d/%d/%d after=%d/%d/%d",
				len(before.Users), len(before.Categories), len(before.Expenses),
				len(after.Users), len(after.Categories), len(after.Expenses))
		}
		b, a := ownerNames(before), ownerNames(after)
		for i := range b {
			if b[i] != a[i] {
				t.Fatalf("owners changed: before=%v after=%v", b, a)
			}
		}
	})
}

func TestImportPreservesExistingUserID(t *testing.T) {
	backends(t, func(t *testing.T, s testStore) {
		ctx := context.Background()
		alice := mustUser(t, s, "alice")

		doc := &Document{
			Version: Version,
			Users: []UserEntry{
				{OriginalID: 99, Username: "alice", Email: "new@example.com", PasswordHash: "restored", Admin: true},
				{OriginalID: 100, Username: "carol", Email: "carol@example.com", PasswordHash: "h"},
			},
		}
		report, err := newEngine(s).Import(ctx, doc)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if report.UsersUpdated != 1 || report.UsersCreated != 1 {
			t.Fatalf("unexpected report: %+v", report)
		}

		err = s.ReadTx(ctx, func(r store.Reader) error {
			got, err := r.FindUserByUsername(ctx, "alice")
			if err != nil {
				return err
			}
			if got.ID != alice.ID {
				t.Fatalf("alice id changed from %d to %d", alice.ID, got.ID)
			}
			if got.Email != "new@example.com" || got.PasswordHash != "restored" || !got.Admin {
				t.Fatalf("alice not updated in place: %+v", got)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("read: %v", err)
		}
	})
}

func TestDecomposedUsernameRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, s testStore) {
		ctx := context.Background()
		jose := mustUser(t, s, "jose\u0301")
		mustExpense(t, s, jose, "12", 4)

		engine := newEngine(s)
		report, err := engine.Import(ctx, mustExport(t, engine))
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if report.UsersUpdated != 1 || report.UsersCreated != 0 || report.Expenses != 1 || report.DanglingCount() != 0 {
			t.Fatalf("unexpected report: %+v", report)
		}
		after := mustExport(t, engine)
		if len(after.Users) != 1 || after.Users[0].Username != "jose\u0301" {
			t.Fatalf("username changed: %+v", after.Users)
		}
		if len(after.Expenses) != 1 || after.Expenses[0].Username != "jose\u0301" {
			t.Fatalf("owner changed: %+v", after.Expenses)
		}

		userDoc, err := engine.ExportUser(ctx, "jose\u0301")
		if err != nil {
			t.Fatalf("export user: %v", err)
		}
		report, err = engine.ImportUser(ctx, "jose\u0301", userDoc)
		if err != nil {
			t.Fatalf("import user: %v", err)
		}
		if report.ExpensesDeleted != 1 || report.Expenses != 1 {
			t.Fatalf("unexpected user report: %+v", report)
		}
	})
}

func TestImportConstraintConflictIsStoreFailure(t *testing.T) {
	backends(t, func(t *testing.T, s testStore) {
		alice := mustUser(t, s, "alice")
		mustExpense(t, s, alice, "5", 1)

		engine := newEngine(s)
		before := mustExport(t, engine)

		doc := &Document{
			Version: Version,
			Users: []UserEntry{
				{Username: "alice", Email: "shared@example.com", PasswordHash: "h"},
				{Username: "bob", Email: "shared@example.com", PasswordHash: "h"},
			},
		}
		if _, err := engine.Import(context.Background(), doc); !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}

		after := mustExport(t, engine)
		if len(after.Users) != 1 || after.Users[0].Email != before.Users[0].Email {
			t.Fatalf("users mutated: %+v", after.Users)
		}
		if len(after.Expenses) != len(before.Expenses) {
			t.Fatalf("expenses mutated: before=%d after=%d", len(before.Expenses), len(after.Expenses))
		}
	})
}

func TestImportSkipsDanglingExpense(t *testing.T) {
	backends(t, func(t *testing.T, s testStore) {
		created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		doc := &Document{
			Version: Version,
			Users:   []UserEntry{{Username: "alice", Email: "a@example.com", PasswordHash: "h"}},
			Expenses: []ExpenseEntry{
				{Username: "alice", Amount: amountPtr("1"), Category: "Food", Date: core.NewDate(2026, 1, 1), CreatedAt: &created},
				{Username: "ghost", Amount: amountPtr("2"), Category: "Food", Date: core.NewDate(2026, 1, 2)},
				{Username: "alice", Amount: amountPtr("3"), Category: "Food", Date: core.NewDate(2026, 1, 3)},
			},
		}
		engine := newEngine(s)
		report, err := engine.Import(context.Background(), doc)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if report.Expenses != 2 || report.DanglingCount() != 1 {
			t.Fatalf("unexpected report: %+v", report)
		}
		if sk := report.Skipped[0]; sk.Index != 1 || sk.Username != "ghost" {
			t.Fatalf("unexpected skipped entry: %+v", sk)
		}

		after := mustExport(t, engine)
		if len(after.Expenses) != 2 {
			t.Fatalf("expected 2 expenses, got %d", len(after.Expenses))
		}
		var kept bool
		for _, e := range after.Expenses {
			if e.CreatedAt != nil && e.CreatedAt.Equal(created) {
				kept = true
			}
		}
		if !kept {
			t.Fatalf("original createdAt not preserved: %+v", after.Expenses)
		}
	})
}

func TestRepeatedImportKeepsCategoriesUnique(t *testing.T) {
	backends(t, func(t *testing.T, s testStore) {
		mustCategories(t, s, "Bills", "Food")
		engine := newEngine(s)
		doc := mustExport(t, engine)

		for i := 0; i < 2; i++ {
			if _, err := engine.Import(context.Background(), doc); err != nil {
				t.Fatalf("import %d: %v", i, err)
			}
		}

		after := mustExport(t, engine)
		var names []string
		for _, c := range after.Categories {
			names = append(names, c.Name)
		}
		sort.Strings(names)
		if len(names) != 2 || names[0] != "Bills" || names[1] != "Food" {
			t.Fatalf("unexpected categories: %v", names)
		}
	})
}

func TestImportUserIsolation(t *testing.T) {
	backends(t, func(t *testing.T, s testStore) {
		ctx := context.Background()
		alice := mustUser(t, s, "alice")
		bob := mustUser(t, s, "bob")
		mustExpense(t, s, alice, "5", 1)
		mustExpense(t, s, bob, "7", 2)
		mustExpense(t, s, bob, "9", 3)
		mustCategories(t, s, "Bills")

		doc := &UserDocument{
			Version:  Version,
			Username: "bob", // ignored
			Expenses: []UserExpenseEntry{
				{Amount: amountPtr("100"), Category: "Rent", Date: core.NewDate(2026, 3, 1)},
				{Amount: amountPtr("-4.20"), Category: "Refund", Date: core.NewDate(2026, 3, 2), Recurring: true},
			},
		}
		engine := newEngine(s)
		report, err := engine.ImportUser(ctx, "alice", doc)
		if err != nil {
			t.Fatalf("import user: %v", err)
		}
		if report.ExpensesDeleted != 1 || report.Expenses != 2 {
			t.Fatalf("unexpected report: %+v", report)
		}

		aliceDoc, err := engine.ExportUser(ctx, "alice")
		if err != nil {
			t.Fatalf("export alice: %v", err)
		}
		if len(aliceDoc.Expenses) != 2 {
			t.Fatalf("alice should have 2 expenses, got %d", len(aliceDoc.Expenses))
		}
		bobDoc, err := engine.ExportUser(ctx, "bob")
		if err != nil {
			t.Fatalf("export bob: %v", err)
		}
		if len(bobDoc.Expenses) != 2 {
			t.Fatalf("bob's expenses changed: %d", len(bobDoc.Expenses))
		}
		if full := mustExport(t, engine); len(full.Categories) != 1 {
			t.Fatalf("categories touched by user import: %+v", full.Categories)
		}
	})
}

func TestImportUserEmptyListClearsExpenses(t *testing.T) {
	s := memory.New()
	alice := mustUser(t, s, "alice")
	mustExpense(t, s, alice, "5", 1)

	engine := newEngine(s)
	report, err := engine.ImportUser(context.Background(), "alice", &UserDocument{Version: Version, Expenses: []UserExpenseEntry{}})
	if err != nil {
		t.Fatalf("import user: %v", err)
	}
	if report.ExpensesDeleted != 1 || report.Expenses != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestImportUserUnknownOwner(t *testing.T) {
	s := memory.New()
	bob := mustUser(t, s, "bob")
	mustExpense(t, s, bob, "5", 1)

	engine := newEngine(s)
	doc := &UserDocument{Version: Version, Expenses: []UserExpenseEntry{
		{Amount: amountPtr("1"), Category: "Food", Date: core.NewDate(2026, 3, 1)},
	}}
	if _, err := engine.ImportUser(context.Background(), "ghost", doc); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	if _, err := engine.ExportUser(context.Background(), "ghost"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser on export, got %v", err)
	}
	if after := mustExport(t, engine); len(after.Expenses) != 1 {
		t.Fatalf("store mutated: %d expenses", len(after.Expenses))
	}
}

func TestImportRollsBackOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	alice := mustUser(t, s, "alice")
	mustExpense(t, s, alice, "5", 1)
	mustCategories(t, s, "Bills")

	engine := newEngine(s)
	before := mustExport(t, engine)

	doc := &Document{
		Version:    Version,
		Users:      []UserEntry{{Username: "alice", Email: "a@example.com", PasswordHash: "h"}},
		Categories: []CategoryEntry{{Name: "Food"}, {Name: "Travel"}},
		Expenses: []ExpenseEntry{
			{Username: "alice", Amount: amountPtr("1"), Category: "Food", Date: core.NewDate(2026, 1, 1)},
		},
	}
	injected := errors.New("database is locked")
	s.FailOn("InsertExpense", injected)

	_, err := engine.Import(ctx, doc)
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, injected) {
		t.Fatalf("expected store failure, got %v", err)
	}

	s.FailOn("InsertExpense", nil)
	after := mustExport(t, engine)
	if len(after.Categories) != 1 || after.Categories[0].Name != "Bills" {
		t.Fatalf("categories not rolled back: %+v", after.Categories)
	}
	if len(after.Expenses) != len(before.Expenses) || after.Users[0].PasswordHash != before.Users[0].PasswordHash {
		t.Fatalf("prior state not intact: before=%+v after=%+v", before, after)
	}
}

func TestImportUserRollsBackOnStoreFailure(t *testing.T) {
	s := memory.New()
	alice := mustUser(t, s, "alice")
	mustExpense(t, s, alice, "5", 1)

	engine := newEngine(s)
	s.FailOn("InsertExpense", errors.New("disk I/O error"))
	doc := &UserDocument{Version: Version, Expenses: []UserExpenseEntry{
		{Amount: amountPtr("1"), Category: "Food", Date: core.NewDate(2026, 3, 1)},
	}}
	if _, err := engine.ImportUser(context.Background(), "alice", doc); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	s.FailOn("InsertExpense", nil)

	got, err := engine.ExportUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(got.Expenses) != 1 || !got.Expenses[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expenses not rolled back: %+v", got.Expenses)
	}
}

func TestMalformedDocumentCausesNoMutation(t *testing.T) {
	valid := func() *Document {
		return &Document{
			Version:    Version,
			Users:      []UserEntry{{Username: "alice", Email: "a@example.com", PasswordHash: "h"}},
			Categories: []CategoryEntry{{Name: "Food"}},
			Expenses: []ExpenseEntry{
				{Username: "alice", Amount: amountPtr("1"), Category: "Food", Date: core.NewDate(2026, 1, 1)},
			},
		}
	}
	tests := []struct {
		name   string
		mutate func(d *Document)
	}{
		{"missing version", func(d *Document) { d.Version = "" }},
		{"unsupported version", func(d *Document) { d.Version = "2.0" }},
		{"user without username", func(d *Document) { d.Users[0].Username = " " }},
		{"user without email", func(d *Document) { d.Users[0].Email = "" }},
		{"user without hash", func(d *Document) { d.Users[0].PasswordHash = "" }},
		{"duplicate username", func(d *Document) { d.Users = append(d.Users, d.Users[0]) }},
		{"duplicate username after normalization", func(d *Document) {
			d.Users[0].Username = "jos\u00e9"
			d.Users = append(d.Users, UserEntry{Username: "jose\u0301", Email: "j@example.com", PasswordHash: "h"})
		}},
		{"category without name", func(d *Document) { d.Categories[0].Name = "" }},
		{"duplicate category", func(d *Document) { d.Categories = append(d.Categories, CategoryEntry{Name: "Food"}) }},
		{"expense without amount", func(d *Document) { d.Expenses[0].Amount = nil }},
		{"expense without date", func(d *Document) { d.Expenses[0].Date = core.Date{} }},
		{"expense without category", func(d *Document) { d.Expenses[0].Category = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			bob := mustUser(t, s, "bob")
			mustExpense(t, s, bob, "7", 2)
			mustCategories(t, s, "Bills")
			// Any write would fail loudly instead of silently mutating.
			s.FailOn("DeleteAllExpenses", errors.New("unexpected write"))

			doc := valid()
			tt.mutate(doc)
			_, err := newEngine(s).Import(context.Background(), doc)
			if !errors.Is(err, ErrMalformedDocument) {
				t.Fatalf("expected ErrMalformedDocument, got %v", err)
			}

			s.FailOn("DeleteAllExpenses", nil)
			after := mustExport(t, newEngine(s))
			if len(after.Users) != 1 || len(after.Expenses) != 1 || len(after.Categories) != 1 {
				t.Fatalf("store mutated: %+v", after)
			}
		})
	}

	if _, err := newEngine(memory.New()).Import(context.Background(), nil); !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("expected nil document to be malformed, got %v", err)
	}
}

func TestMalformedUserDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  *UserDocument
	}{
		{"nil", nil},
		{"missing expenses", &UserDocument{Version: Version}},
		{"bad version", &UserDocument{Version: "0.9", Expenses: []UserExpenseEntry{}}},
		{"expense without amount", &UserDocument{Version: Version, Expenses: []UserExpenseEntry{
			{Category: "Food", Date: core.NewDate(2026, 1, 1)},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			alice := mustUser(t, s, "alice")
			mustExpense(t, s, alice, "5", 1)

			if _, err := newEngine(s).ImportUser(context.Background(), "alice", tt.doc); !errors.Is(err, ErrMalformedDocument) {
				t.Fatalf("expected ErrMalformedDocument, got %v", err)
			}
			got, _ := newEngine(s).ExportUser(context.Background(), "alice")
			if len(got.Expenses) != 1 {
				t.Fatalf("store mutated: %+v", got.Expenses)
			}
		})
	}
}

func TestDocumentUsernames(t *testing.T) {
	doc := &Document{Users: []UserEntry{{Username: "jose\u0301"}, {Username: "bob"}, {Username: "jos\u00e9"}}}
	got := doc.Usernames()
	if len(got) != 2 || got[0] != "jose\u0301" || got[1] != "bob" {
		t.Fatalf("unexpected usernames: %q", got)
	}
}
