// =============================================================================
// Sales Receipt Reconciler - Tie Out Command
// =============================================================================
//
// This file defines the 'tieout' command, which reconciles the Salesforce,
// QuickBooks and Avalara ledgers for a date range.
//
// COMMAND USAGE:
//   reconciler tieout [flags]
//
// FLAGS:
//   --qb       : QuickBooks sales receipts export
//   --qb-cm    : QuickBooks credit memos export
//   --sfdc     : Salesforce data, usually the import workbook
//   --sfdc-cm  : Salesforce credit memos. When omitted, the credit sheets of
//                --sfdc are used
//   --avalara  : Avalara transaction export
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/orchestrator"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/reconcile"
)

var tieOutRequest orchestrator.TieOutRequest

var tieoutCmd = &cobra.Command{
	Use:   "tieout",
	Short: "Reconcile SFDC, QB and Avalara ledgers",
	Long: `The tieout command matches orders between Salesforce and QuickBooks, and
between QuickBooks and Avalara, and writes a workbook with the source sheets
and one sheet per comparison.

Missing ledgers do not fail the run: the affected comparison gets a single
row explaining what is missing.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runTieOut(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(tieoutCmd)

	tieoutCmd.Flags().StringVar(&tieOutRequest.QBPath, "qb", "", "QuickBooks sales receipts export")
	tieoutCmd.Flags().StringVar(&tieOutRequest.QBCMPath, "qb-cm", "", "QuickBooks credit memos export")
	tieoutCmd.Flags().StringVar(&tieOutRequest.SFDCPath, "sfdc", "", "Salesforce data or import workbook")
	tieoutCmd.Flags().StringVar(&tieOutRequest.SFDCCMPath, "sfdc-cm", "", "Salesforce credit memos")
	tieoutCmd.Flags().StringVar(&tieOutRequest.AvalaraPath, "avalara", "", "Avalara transaction export")
}

func runTieOut(ctx context.Context) error {
	env, err := setup(nil)
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Println("=== Sales Receipt Tie Out ===")

	o := orchestrator.New(env.config, env.rules, env.logger)
	o.Progress = printProgress

	result, err := o.RunTieOut(ctx, tieOutRequest)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Tie Out Complete ===")
	for _, c := range result.Comparisons {
		if c.IsDiagnostic() {
			fmt.Printf("%s: %s\n", c.Name, c.Rows[0].Message)
			continue
		}
		fmt.Printf("%s: %d matched, %d %s only, %d %s only",
			c.Name,
			c.Count(reconcile.RowMatched),
			c.Count(reconcile.RowLeftOnly), c.Left.Name,
			c.Count(reconcile.RowRightOnly), c.Right.Name)
		if totals, ok := c.Totals(); ok && totals.Difference.Valid {
			fmt.Printf(", difference %s", totals.Difference.Decimal.StringFixed(2))
		}
		fmt.Println()
	}
	fmt.Printf("\nOutput written to %s\n", result.OutputPath)

	return nil
}
