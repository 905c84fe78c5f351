package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trackmystacks/internal/core"
	"trackmystacks/internal/store"
)

// Store keeps every table in memory. Write transactions run against a copy
// of the data that replaces the live copy only when the callback succeeds,
// so a failed import leaves nothing behind.
type Store struct {
	mu     sync.Mutex
	data   *tables
	failOn map[string]error
}

type tables struct {
	users      []core.User
	categories []core.Category
	expenses   []core.Expense
	incomes    []core.Income
	lastID     int64
}

// Ensure interface conformance
var (
	_ store.Store       = (*Store)(nil)
	_ store.RangeReader = (*Store)(nil)
	_ store.Seeder      = (*Store)(nil)
	_ store.Writer      = (*tx)(nil)
)

func New() *Store {
	return &Store{data: &tables{}, failOn: map[string]error{}}
}

// FailOn makes every later call of the named Writer/Reader method return err.
// A nil err clears the failure.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, method)
		return
	}
	s.failOn[method] = err
}

func (s *Store) ReadTx(ctx context.Context, fn func(store.Reader) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&tx{t: s.data.clone(), failOn: s.failOn})
}

func (s *Store) WriteTx(ctx context.Context, fn func(store.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(&tx{t: work, failOn: s.failOn}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{t: s.data, failOn: s.failOn}).FindUserByUsername(ctx, username)
}

func (s *Store) ListExpensesByOwnerAndDateRange(_ context.Context, userID int64, from, to core.Date) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["ListExpensesByOwnerAndDateRange"]; err != nil {
		return nil, err
	}
	var out []core.Expense
	for _, e := range s.data.expenses {
		if e.UserID == userID && !e.Date.Before(from.Time) && !e.Date.After(to.Time) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) ListIncomeByOwnerAndMonthRange(_ context.Context, userID int64, from, to core.Date) ([]core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["ListIncomeByOwnerAndMonthRange"]; err != nil {
		return nil, err
	}
	var out []core.Income
	for _, in := range s.data.incomes {
		if in.UserID == userID && !in.Month.Before(from.Time) && !in.Month.After(to.Time) {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month.Time) })
	return out, nil
}

// CreateUser stores a user and returns it with its assigned id.
func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	var created core.User
	err := s.WriteTx(ctx, func(w store.Writer) error {
		var err error
		created, err = w.InsertUser(ctx, u)
		return err
	})
	return created, err
}

func (s *Store) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	var created core.Expense
	err := s.WriteTx(ctx, func(w store.Writer) error {
		var err error
		created, err = w.InsertExpense(ctx, e)
		return err
	})
	return created, err
}

func (s *Store) AddIncome(_ context.Context, in core.Income) (core.Income, error) {
	in.Month = in.Month.MonthStart()
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.userByID(in.UserID); !ok {
		return core.Income{}, fmt.Errorf("income owner %d: %w", in.UserID, store.ErrNotFound)
	}
	in.ID = s.data.nextID()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	s.data.incomes = append(s.data.incomes, in)
	return in, nil
}

func (t *tables) clone() *tables {
	return &tables{
		users:      append([]core.User(nil), t.users...),
		categories: append([]core.Category(nil), t.categories...),
		expenses:   append([]core.Expense(nil), t.expenses...),
		incomes:    append([]core.Income(nil), t.incomes...),
		lastID:     t.lastID,
	}
}

func (t *tables) nextID() int64 {
	t.lastID++
	return t.lastID
}

func (t *tables) userByID(id int64) (core.User, bool) {
	for _, u := range t.users {
		if u.ID == id {
			return u, true
		}
	}
	return core.User{}, false
}

// tx is the view handed to transaction callbacks.
type tx struct {
	t      *tables
	failOn map[string]error
}

func (x *tx) ListUsers(context.Context) ([]core.User, error) {
	if err := x.failOn["ListUsers"]; err != nil {
		return nil, err
	}
	return append([]core.User(nil), x.t.users...), nil
}

func (x *tx) ListCategories(context.Context) ([]core.Category, error) {
	if err := x.failOn["ListCategories"]; err != nil {
		return nil, err
	}
	return append([]core.Category(nil), x.t.categories...), nil
}

func (x *tx) ListOwnedExpenses(context.Context) ([]core.OwnedExpense, error) {
	if err := x.failOn["ListOwnedExpenses"]; err != nil {
		return nil, err
	}
	out := make([]core.OwnedExpense, 0, len(x.t.expenses))
	for _, e := range x.t.expenses {
		u, ok := x.t.userByID(e.UserID)
		if !ok {
			continue
		}
		out = append(out, core.OwnedExpense{Expense: e, Username: u.Username})
	}
	return out, nil
}

func (x *tx) ListExpensesByOwner(_ context.Context, userID int64) ([]core.Expense, error) {
	if err := x.failOn["ListExpensesByOwner"]; err != nil {
		return nil, err
	}
	var out []core.Expense
	for _, e := range x.t.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (x *tx) FindUserByUsername(_ context.Context, username string) (core.User, error) {
	if err := x.failOn["FindUserByUsername"]; err != nil {
		return core.User{}, err
	}
	for _, u := range x.t.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
}

func (x *tx) DeleteAllExpenses(context.Context) (int64, error) {
	if err := x.failOn["DeleteAllExpenses"]; err != nil {
		return 0, err
	}
	n := int64(len(x.t.expenses))
	x.t.expenses = nil
	return n, nil
}

func (x *tx) DeleteAllCategories(context.Context) (int64, error) {
	if err := x.failOn["DeleteAllCategories"]; err != nil {
		return 0, err
	}
	n := int64(len(x.t.categories))
	x.t.categories = nil
	return n, nil
}

func (x *tx) InsertCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := x.failOn["InsertCategory"]; err != nil {
		return core.Category{}, err
	}
	for _, existing := range x.t.categories {
		if existing.Name == c.Name {
			return core.Category{}, fmt.Errorf("unique constraint failed: categories.name %q", c.Name)
		}
	}
	c.ID = x.t.nextID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	x.t.categories = append(x.t.categories, c)
	return c, nil
}

func (x *tx) InsertUser(_ context.Context, u core.User) (core.User, error) {
	if err := x.failOn["InsertUser"]; err != nil {
		return core.User{}, err
	}
	for _, existing := range x.t.users {
		if existing.Username == u.Username {
			return core.User{}, fmt.Errorf("unique constraint failed: users.username %q", u.Username)
		}
		if existing.Email == u.Email {
			return core.User{}, fmt.Errorf("unique constraint failed: users.email %q", u.Email)
		}
	}
	u.ID = x.t.nextID()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	x.t.users = append(x.t.users, u)
	return u, nil
}

func (x *tx) UpdateUser(_ context.Context, u core.User) error {
	if err := x.failOn["UpdateUser"]; err != nil {
		return err
	}
	idx := -1
	for i, existing := range x.t.users {
		if existing.ID == u.ID {
			idx = i
			continue
		}
		if existing.Email == u.Email {
			return fmt.Errorf("unique constraint failed: users.email %q", u.Email)
		}
	}
	if idx < 0 {
		return fmt.Errorf("user id %d: %w", u.ID, store.ErrNotFound)
	}
	x.t.users[idx].Email = u.Email
	x.t.users[idx].PasswordHash = u.PasswordHash
	x.t.users[idx].Admin = u.Admin
	return nil
}

func (x *tx) InsertExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := x.failOn["InsertExpense"]; err != nil {
		return core.Expense{}, err
	}
	if _, ok := x.t.userByID(e.UserID); !ok {
		return core.Expense{}, fmt.Errorf("foreign key constraint failed: expense owner %d", e.UserID)
	}
	e.ID = x.t.nextID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	x.t.expenses = append(x.t.expenses, e)
	return e, nil
}

func (x *tx) DeleteExpensesByOwner(_ context.Context, userID int64) (int64, error) {
	if err := x.failOn["DeleteExpensesByOwner"]; err != nil {
		return 0, err
	}
	kept := x.t.expenses[:0:0]
	var n int64
	for _, e := range x.t.expenses {
		if e.UserID == userID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	x.t.expenses = kept
	return n, nil
}
