// =============================================================================
// Sales Receipt Reconciler - Import Command
// =============================================================================
//
// This file defines the 'import' command, which builds the sales receipt
// import workbook from an order export.
//
// COMMAND USAGE:
//   reconciler import [flags]
//
// FLAGS:
//   --orders      : The order export (CSV or XLSX). Defaults to the newest
//                   file in the input directory
//   --fees-source : Overrides fees.source ("none", "file", "woopayments",
//                   "stripe")
//   --fees-file   : A fee export file; implies --fees-source file
//   --dry-run     : Run the rules without writing any file
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/fees"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/orchestrator"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/validation"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	ordersPath string
	feesSource string
	feesFile   string
	dryRun     bool
)

// =============================================================================
// IMPORT COMMAND DEFINITION
// =============================================================================

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Build the sales receipt import workbook",
	Long: `The import command loads an order export, looks up processor fees for
billable payments, applies the business rules and writes the import workbook.

The workbook has a Sales Receipts sheet, a Credit Memos sheet when there are
credit orders, and an Errors sheet when rows fail validation. Rows with
validation findings are still written.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&ordersPath, "orders", "", "Path to the order export (CSV or XLSX)")
	importCmd.Flags().StringVar(&feesSource, "fees-source", "", "Fee source: none, file, woopayments or stripe")
	importCmd.Flags().StringVar(&feesFile, "fees-file", "", "Path to a fee export file")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the rules without writing output files")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runImport(ctx context.Context) error {
	startTime := time.Now()

	env, err := setup(func(cfg *config.MainConfig) {
		if feesSource != "" {
			cfg.Fees.Source = feesSource
		}
		if feesFile != "" {
			cfg.Fees.Source = config.FeeSourceFile
			cfg.Fees.File.Path = feesFile
		}
	})
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := fees.NewPageSource(env.config.Fees, env.config.CSVSettings, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to configure fee source: %w", err)
	}

	fmt.Println("=== Sales Receipt Import ===")

	o := orchestrator.New(env.config, env.rules, env.logger)
	o.FeeSource = source
	o.Progress = printProgress

	result, err := o.RunImport(ctx, orchestrator.ImportRequest{OrdersPath: ordersPath, DryRun: dryRun})
	if err != nil {
		return err
	}

	stats := result.Result.Stats
	fmt.Println("\n=== Import Complete ===")
	fmt.Printf("Input file:        %s\n", result.OrdersPath)
	fmt.Printf("Orders:            %d\n", stats.Orders)
	fmt.Printf("Fees resolved:     %d\n", result.FeeStats.Matched)
	fmt.Printf("Sales receipts:    %d orders (%d rows)\n", stats.MainOrders, len(result.Result.Main))
	fmt.Printf("Credit memos:      %d orders (%d rows)\n", stats.CreditOrders, len(result.Result.Credit))
	fmt.Printf("Validation errors: %d\n", stats.ValidationErrors)
	fmt.Printf("Time elapsed:      %s\n", time.Since(startTime).Round(time.Millisecond))

	if result.OutputPath != "" {
		fmt.Printf("\nOutput written to %s\n", result.OutputPath)
	} else {
		fmt.Println("\nDry run: no files were written.")
	}
	for _, warning := range result.Warnings {
		fmt.Printf("Warning: %s\n", warning)
	}
	if len(result.Result.Errors) > 0 {
		fmt.Printf("\n%s", validation.FormatErrors(result.Result.Errors))
	}

	return nil
}
