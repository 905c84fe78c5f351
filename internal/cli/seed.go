package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"trackmystacks/internal/core"
	"trackmystacks/internal/log"
	"trackmystacks/internal/store"
)

// NewSeedUserCommand creates the seed-user command group, used to populate
// a store by hand before exporting or comparing.
func NewSeedUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Create users and record their expenses and incomes",
	}
	cmd.AddCommand(newSeedUserCreateCommand(rootOpts))
	cmd.AddCommand(newSeedExpenseCommand(rootOpts))
	cmd.AddCommand(newSeedIncomeCommand(rootOpts))
	return cmd
}

func newSeedUserCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var email, password, passwordHash string
	var admin bool

	cmd := &cobra.Command{
		Use:   "user <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := resolvePasswordHash(password, passwordHash)
			if err != nil {
				return err
			}
			app, err := rootOpts.App()
			if err != nil {
				return err
			}
			ctx, cancel := app.storeContext(cmd.Context())
			defer cancel()

			u, err := app.Backend.Seeder.CreateUser(ctx, core.User{
				Username:     args[0],
				Email:        email,
				PasswordHash: hash,
				Admin:        admin,
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			app.Logger.Info("User created", log.FieldOperation, log.OpSeed, log.FieldUsername, u.Username, log.FieldUserID, u.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", u.Username, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "plain password, stored as a bcrypt hash")
	cmd.Flags().StringVar(&passwordHash, "password-hash", "", "precomputed password hash, stored verbatim")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin rights")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "password-hash")
	return cmd
}

func resolvePasswordHash(password, hash string) (string, error) {
	if hash != "" {
		return hash, nil
	}
	if password == "" {
		return "", errors.New("one of --password or --password-hash is required")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func newSeedExpenseCommand(rootOpts *RootOptions) *cobra.Command {
	var amount, category, date, description string
	var recurring bool

	cmd := &cobra.Command{
		Use:   "expense <username>",
		Short: "Record an expense for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := core.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("amount %q: %w", amount, err)
			}
			d := core.DateOf(time.Now())
			if date != "" {
				if d, err = core.ParseDate(date); err != nil {
					return fmt.Errorf("date %q: %w", date, err)
				}
			}

			app, err := rootOpts.App()
			if err != nil {
				return err
			}
			ctx, cancel := app.storeContext(cmd.Context())
			defer cancel()

			u, err := findSeedUser(ctx, app, args[0])
			if err != nil {
				return err
			}
			e, err := app.Backend.Seeder.AddExpense(ctx, core.Expense{
				UserID:      u.ID,
				Amount:      amt,
				Category:    category,
				Description: description,
				Date:        d,
				Recurring:   recurring,
			})
			if err != nil {
				return fmt.Errorf("add expense: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded expense %d: %s %s on %s\n", e.ID, core.FormatAmount(e.Amount), e.Category, e.Date)
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount, dot or comma as decimal separator (required)")
	cmd.Flags().StringVar(&category, "category", "", "category label (required)")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD, defaults to today")
	cmd.Flags().StringVar(&description, "description", "", "free text, at most 255 characters")
	cmd.Flags().BoolVar(&recurring, "recurring", false, "mark the expense as recurring")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newSeedIncomeCommand(rootOpts *RootOptions) *cobra.Command {
	var amount, month, description string

	cmd := &cobra.Command{
		Use:   "income <username>",
		Short: "Record a monthly income for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := core.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("amount %q: %w", amount, err)
			}
			m, err := parseMonth(month)
			if err != nil {
				return err
			}

			app, err := rootOpts.App()
			if err != nil {
				return err
			}
			ctx, cancel := app.storeContext(cmd.Context())
			defer cancel()

			u, err := findSeedUser(ctx, app, args[0])
			if err != nil {
				return err
			}
			in, err := app.Backend.Seeder.AddIncome(ctx, core.Income{
				UserID:      u.ID,
				Amount:      amt,
				Month:       m,
				Description: description,
			})
			if err != nil {
				return fmt.Errorf("add income: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded income %d: %s for %s\n", in.ID, core.FormatAmount(in.Amount), in.Month.Format(core.MonthLabelLayout))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount, dot or comma as decimal separator (required)")
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM, defaults to the current month")
	cmd.Flags().StringVar(&description, "description", "", "free text")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// parseMonth accepts YYYY-MM or a full date and returns the first of that month.
func parseMonth(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.DateOf(time.Now()).MonthStart(), nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return core.DateOf(t), nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("month %q: expected YYYY-MM", s)
	}
	return d.MonthStart(), nil
}

func findSeedUser(ctx context.Context, app *App, username string) (core.User, error) {
	u, err := app.Backend.Ranges.FindUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return core.User{}, fmt.Errorf("unknown user %q, create it with `seed-user user`", username)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}
