package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"trackmystacks/internal/log"
	"trackmystacks/internal/snapshot"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out, format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all users, categories and expenses to a snapshot file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rootOpts.App()
			if err != nil {
				return err
			}
			ctx, cancel := app.storeContext(cmd.Context())
			defer cancel()

			doc, err := app.Backup.Export(ctx)
			if err != nil {
				return err
			}
			path, f, err := app.outputPath(out, format, "")
			if err != nil {
				return err
			}
			if err := writeSnapshot(path, f, doc); err != nil {
				return err
			}

			app.Logger.Info("Snapshot written", log.FieldOperation, log.OpExport, log.FieldPath, path, log.FieldFormat, string(f))
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d users, %d categories, %d expenses to %s\n",
				len(doc.Users), len(doc.Categories), len(doc.Expenses), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (.json, .yaml or .yml), defaults to a dated name in BACKUP_DIR")
	cmd.Flags().StringVar(&format, "format", string(snapshot.FormatJSON), "format of the default output file (json|yaml)")
	return cmd
}

// NewExportUserCommand creates the export-user command.
func NewExportUserCommand(rootOpts *RootOptions) *cobra.Command {
	var out, format string

	cmd := &cobra.Command{
		Use:   "export-user <username>",
		Short: "Export the expenses of one user to a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rootOpts.App()
			if err != nil {
				return err
			}
			ctx, cancel := app.storeContext(cmd.Context())
			defer cancel()

			doc, err := app.Backup.ExportUser(ctx, args[0])
			if err != nil {
				return err
			}
			path, f, err := app.outputPath(out, format, args[0])
			if err != nil {
				return err
			}
			if err := writeSnapshot(path, f, doc); err != nil {
				return err
			}

			app.Logger.Info("Snapshot written", log.FieldOperation, log.OpExportUser, log.FieldUsername, args[0], log.FieldPath, path)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d expenses of %s to %s\n", len(doc.Expenses), doc.Username, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (.json, .yaml or .yml), defaults to a dated name in BACKUP_DIR")
	cmd.Flags().StringVar(&format, "format", string(snapshot.FormatJSON), "format of the default output file (json|yaml)")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace categories and expenses with the content of a snapshot file",
		Long: `Import a full snapshot. Every existing expense and category is replaced,
users are matched by username and updated or created. Expenses whose owner
is not listed among the snapshot's users are skipped and reported.

Nothing is changed when the file is malformed or the store fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			app, err := rootOpts.App()
			if err != nil {
				return err
			}
			ctx, cancel := app.storeContext(cmd.Context())
			defer cancel()

			report, err := app.Backup.Import(ctx, doc)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), args[0], report)
			return nil
		},
	}
}

// NewImportUserCommand creates the import-user command.
func NewImportUserCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-user <username> <file>",
		Short: "Replace the expenses of one user with the content of a snapshot file",
		Long: `Import a per-user snapshot into an existing user. Only that user's
expenses are replaced; an empty expenses list clears them.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readUserSnapshot(args[1])
			if err != nil {
				return err
			}
			app, err := rootOpts.App()
			if err != nil {
				return err
			}
			ctx, cancel := app.storeContext(cmd.Context())
			defer cancel()

			report, err := app.Backup.ImportUser(ctx, args[0], doc)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), args[1], report)
			return nil
		},
	}
}

func printReport(w io.Writer, source string, r snapshot.ImportReport) {
	fmt.Fprintf(w, "Imported %s\n", source)
	fmt.Fprintf(w, "  users created:     %d\n", r.UsersCreated)
	fmt.Fprintf(w, "  users updated:     %d\n", r.UsersUpdated)
	fmt.Fprintf(w, "  categories:        %d\n", r.Categories)
	fmt.Fprintf(w, "  expenses:          %d\n", r.Expenses)
	fmt.Fprintf(w, "  expenses replaced: %d\n", r.ExpensesDeleted)
	fmt.Fprintf(w, "  dangling skipped:  %d\n", r.DanglingCount())
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "    expense #%d owned by unknown user %q\n", s.Index, s.Username)
	}
}
