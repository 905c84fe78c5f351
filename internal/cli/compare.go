package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trackmystacks/internal/core"
	"trackmystacks/internal/log"
	"trackmystacks/internal/sheets"
)

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	var window int
	var publish bool

	cmd := &cobra.Command{
		Use:   "compare <username>",
		Short: "Print monthly income vs expenses of a user, ending with the current month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rootOpts.App()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("window") {
				window = app.Config.ComparisonWindow
			}
			ctx, cancel := app.storeContext(cmd.Context())
			defer cancel()

			points, err := app.Comparisons.ComputeForUsername(ctx, args[0], window)
			if err != nil {
				return err
			}
			if err := printComparison(cmd.OutOrStdout(), points); err != nil {
				return err
			}

			if !publish {
				return nil
			}
			w, err := app.comparisonWriter(cmd.Context())
			if err != nil {
				return err
			}
			if err := w.WriteComparison(cmd.Context(), args[0], points); err != nil {
				return fmt.Errorf("publish comparison: %w", err)
			}
			app.Logger.Info("Comparison published", log.FieldOperation, log.OpCompare, log.FieldUsername, args[0])
			return nil
		},
	}

	cmd.Flags().IntVarP(&window, "window", "w", 0, "number of months, defaults to COMPARISON_WINDOW")
	cmd.Flags().BoolVar(&publish, "publish", false, "also write the comparison to the configured spreadsheet")
	return cmd
}

func printComparison(out io.Writer, points []core.MonthlyComparison) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(sheets.Header, "\t")+"\t")
	for _, row := range sheets.Rows(points) {
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}
	return tw.Flush()
}
