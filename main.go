// =============================================================================
// Sales Receipt Reconciler - Main Entry Point
// =============================================================================
//
// USAGE:
//   reconciler import       - Build the sales receipt import workbook
//   reconciler tieout       - Reconcile SFDC, QB and Avalara ledgers
//   reconciler rules        - Print the effective rule set
//   reconciler validate     - Validate configuration files without processing
//   reconciler version      - Display the application version
//
// ARCHITECTURE:
//   - cmd/                  : CLI command definitions (Cobra)
//   - internal/orchestrator : Runs imports and tie-outs end to end
//   - internal/pipeline     : The business rule pipeline
//   - internal/reconcile    : Order matching and tie-out comparisons
//   - internal/fees         : Processor fee sources and the fee resolver
//   - internal/report       : Excel output
//   - pkg/utils             : File naming, archival and run summaries
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/sales-receipt-reconciler/cmd"
)

func main() {
	cmd.Execute()
}
