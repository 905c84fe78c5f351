package cli

import (
	"github.com/spf13/cobra"
)

// AppLoader builds the App a command runs against.
type AppLoader func(opts *RootOptions) (*App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string

	load AppLoader
	app  *App
}

// App returns the application, loading it on first use so that help and
// flag errors never touch the store.
func (o *RootOptions) App() (*App, error) {
	if o.app != nil {
		return o.app, nil
	}
	app, err := o.load(o)
	if err != nil {
		return nil, err
	}
	o.app = app
	return app, nil
}

// NewRootCommand creates the root command for the stacks CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(loadAppFromEnv)
}

func newRootCommand(load AppLoader) *cobra.Command {
	opts := &RootOptions{load: load}

	cmd := &cobra.Command{
		Use:   "stacks",
		Short: "trackmystacks - snapshot backups and monthly comparisons",
		Long: `Export and import trackmystacks snapshots as JSON or YAML files,
print the income vs expenses comparison of a user and seed data for testing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.app == nil {
				return nil
			}
			return opts.app.Close()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides LOG_LEVEL")

	// Add subcommands
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewExportUserCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewImportUserCommand(opts))
	cmd.AddCommand(NewCompareCommand(opts))
	cmd.AddCommand(NewSeedUserCommand(opts))

	return cmd
}
