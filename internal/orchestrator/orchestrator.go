// =============================================================================
// Sales Receipt Reconciler - Orchestrator
// =============================================================================
//
// This module runs the two operations end to end: it owns file loading, the
// fee lookup, the rule pipeline, the reconciliation and the output files.
//
// IMPORT:
//   1. Load the order ledger (CSV or XLSX) and rename its columns
//   2. Collect billable payment ids
//   3. Resolve processor fees (an unavailable source yields no fees)
//   4. Run the rule pipeline
//   5. Write the import workbook
//   6. Archive the inputs if configured
//   7. Write the run summary
//
// TIE-OUT:
//   1. Load the QB, QB CM, SFDC, SFDC CM and Avalara ledgers
//   2. Build the order fee map from SFDC
//   3. Run both comparisons
//   4. Write the tie-out workbook and the run summary
//
// PROGRESS:
//   Each operation reports coarse milestones through the Progress callback.
//   Reported percentages never decrease.
//
// =============================================================================

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/fees"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/logging"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/pipeline"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/reconcile"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/report"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/sources"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/xlsxparser"
	"github.com/ginjaninja78/sales-receipt-reconciler/pkg/utils"
)

// Run kinds, used in output and summary file names.
const (
	KindImport = "import"
	KindTieOut = "tieout"
)

// Source sheet names of the tie-out workbook.
const (
	SheetQB      = "QB"
	SheetQBCM    = "QB CM"
	SheetSFDC    = "SFDC"
	SheetSFDCCM  = "SFDC CM"
	SheetAvalara = "Avalara"
)

// ErrNoInput is returned when no order file is given and none is found in
// the input directory.
var ErrNoInput = errors.New("no input file")

var creditSheetPattern = regexp.MustCompile(`(?i)\bCM\b|Credit`)

// ProgressFunc receives coarse progress updates.
type ProgressFunc func(percent int, message string)

// =============================================================================
// ORCHESTRATOR STRUCTURE
// =============================================================================

// Orchestrator runs imports and tie-outs. It holds no per-run state, so one
// Orchestrator may serve several runs at once.
type Orchestrator struct {
	Config *config.MainConfig
	Rules  config.RuleSet

	// FeeSource is used when an ImportRequest carries none. Nil means no
	// fees are looked up.
	FeeSource fees.PageSource

	Logger   logging.Logger
	Progress ProgressFunc
	Files    *utils.FileManager
}

// New creates an Orchestrator whose file manager follows the configured
// directories.
func New(cfg *config.MainConfig, rules config.RuleSet, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		Config: cfg,
		Rules:  rules,
		Logger: logger,
		Files:  utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.ArchiveDir),
	}
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportRequest describes one import run.
type ImportRequest struct {
	// OrdersPath is the order ledger. Empty means the newest CSV or XLSX file
	// in the input directory.
	OrdersPath string

	// FeeSource overrides the orchestrator's fee source for this run.
	FeeSource fees.PageSource

	// DryRun runs the pipeline without writing or archiving anything.
	DryRun bool
}

// ImportResult is the outcome of an import run.
type ImportResult struct {
	RunID      string
	OrdersPath string

	// Columns are the renamed source headers of the order ledger.
	Columns []string

	Result   *pipeline.Result
	FeeStats fees.Stats

	// OutputPath and SummaryPath are empty for dry runs.
	OutputPath  string
	SummaryPath string
	Archived    []string
	Warnings    []string
}

// RunImport runs the sales receipt import.
//
// RETURNS:
//   - The import result.
//   - An error if the ledger cannot be loaded, the rules are invalid or the
//     workbook cannot be written. Fee lookup and archival failures are
//     warnings.
func (o *Orchestrator) RunImport(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	start := o.Files.CurrentTime()
	result := &ImportResult{RunID: uuid.New().String()}
	logger := logging.ForRun(o.Logger, result.RunID)
	progress := newProgress(o.Progress)
	cfg := o.Config

	progress.report(0, "Starting sales receipt import")

	ordersPath, err := o.ordersPath(req.OrdersPath)
	if err != nil {
		return nil, err
	}
	result.OrdersPath = ordersPath

	// =========================================================================
	// STEP 1: LOAD ORDERS
	// =========================================================================

	progress.report(10, "Loading order data")
	logger.Info("Loading orders from %s", ordersPath)

	table, err := sources.LoadTable(ordersPath, cfg.CSVSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	ledger, err := sources.LoadLineItems(table, cfg.Columns, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	result.Columns = ledger.Columns
	logger.Debug("Loaded %d line items", len(ledger.Items))

	// =========================================================================
	// STEP 2: RESOLVE FEES
	// =========================================================================

	progress.report(30, "Looking up processor fees")

	source := req.FeeSource
	if source == nil {
		source = o.FeeSource
	}
	ids := sources.BillablePaymentIDs(ledger.Items, o.Rules.BillablePaymentPrefix)
	feeMap, feeStats := fees.NewResolver(source, cfg.Fees, logger).Resolve(ctx, ids)
	result.FeeStats = feeStats
	if feeStats.Err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("fee lookup stopped early: %v", feeStats.Err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Info("Resolved %d of %d processor fees", feeStats.Matched, len(ids))

	// =========================================================================
	// STEP 3: APPLY RULES
	// =========================================================================

	progress.report(50, "Applying business rules")

	out, err := pipeline.New(o.Rules, logger).Run(ledger.Items, feeMap)
	if err != nil {
		return nil, err
	}
	result.Result = out

	// =========================================================================
	// STEP 4: WRITE WORKBOOK
	// =========================================================================

	progress.report(70, "Writing import workbook")

	if !req.DryRun {
		if err := o.Files.EnsureDirectories(); err != nil {
			return nil, err
		}
		name := o.Files.GenerateOutputFileName(cfg.OutputNameFormat, map[string]string{
			"kind": KindImport,
			"run":  result.RunID,
		})
		result.OutputPath = o.Files.OutputPath(name)
		if err := report.WriteImport(result.OutputPath, ledger.Columns, out); err != nil {
			return nil, err
		}
		logger.Info("Wrote import workbook to %s", result.OutputPath)
	}

	// =========================================================================
	// STEP 5: ARCHIVE INPUTS
	// =========================================================================

	progress.report(80, "Archiving inputs")

	if cfg.ArchiveInputs && !req.DryRun {
		result.Archived, result.Warnings = o.archive(result.RunID, result.Warnings, ordersPath)
	}

	// =========================================================================
	// STEP 6: RUN SUMMARY
	// =========================================================================

	progress.report(90, "Writing run summary")

	if !req.DryRun {
		summary := utils.RunSummary{
			RunID:     result.RunID,
			Kind:      KindImport,
			StartTime: start,
			EndTime:   o.Files.CurrentTime(),
			Inputs:    []string{ordersPath},
			Outputs:   []string{result.OutputPath},
			Warnings:  result.Warnings,
		}
		stats := out.Stats
		summary.AddStat("Input rows", stats.InputRows)
		summary.AddStat("Orders", stats.Orders)
		summary.AddStat("Fees resolved", feeStats.Matched)
		summary.AddStat("Fee rows added", stats.FeeRows)
		summary.AddStat("Tax rows added", stats.TaxRows)
		summary.AddStat("Rows removed", stats.Removed)
		summary.AddStat("Exempt orders", stats.ExemptOrders)
		summary.AddStat("Sales receipt orders", stats.MainOrders)
		summary.AddStat("Credit memo orders", stats.CreditOrders)
		summary.AddStat("Validation errors", stats.ValidationErrors)

		path, err := o.Files.WriteSummaryLog(summary)
		if err != nil {
			logger.Warn("Failed to write run summary: %v", err)
		} else {
			result.SummaryPath = path
		}
	}

	progress.report(100, "Import complete")
	return result, nil
}

// ordersPath returns the requested path or the newest input file.
func (o *Orchestrator) ordersPath(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	files, err := o.Files.DiscoverInputFiles()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no CSV or XLSX files in %s", ErrNoInput, o.Files.InputDir)
	}
	return files[0], nil
}

// =============================================================================
// TIE-OUT
// =============================================================================

// TieOutRequest describes one tie-out run. Every path is optional; an absent
// ledger produces a diagnostic row in its comparison.
type TieOutRequest struct {
	QBPath      string
	QBCMPath    string
	SFDCPath    string
	SFDCCMPath  string
	AvalaraPath string

	// Import is an import result of the same session. Its sales receipts
	// stand in for SFDC and its credit memos for SFDC CM when those paths
	// are empty.
	Import *ImportResult
}

// TieOutResult is the outcome of a tie-out run.
type TieOutResult struct {
	RunID       string
	Comparisons []reconcile.Comparison
	OutputPath  string
	SummaryPath string
	Archived    []string
	Warnings    []string
}

// RunTieOut reconciles the ledgers and writes the tie-out workbook.
func (o *Orchestrator) RunTieOut(ctx context.Context, req TieOutRequest) (*TieOutResult, error) {
	start := o.Files.CurrentTime()
	result := &TieOutResult{RunID: uuid.New().String()}
	logger := logging.ForRun(o.Logger, result.RunID)
	progress := newProgress(o.Progress)

	progress.report(0, "Starting sales receipt tie out")

	// =========================================================================
	// STEP 1: LOAD LEDGERS
	// =========================================================================

	progress.report(10, "Loading QuickBooks data")

	qb, err := o.loadTable(logger, req.QBPath, SheetQB, false)
	if err != nil {
		return nil, err
	}
	qbCM, err := o.loadTable(logger, req.QBCMPath, SheetQBCM, false)
	if err != nil {
		return nil, err
	}

	progress.report(25, "Loading Salesforce data")

	sfdc, sfdcCM, err := o.loadSalesforce(logger, req)
	if err != nil {
		return nil, err
	}

	progress.report(40, "Loading Avalara data")

	avalara, err := o.loadTable(logger, req.AvalaraPath, SheetAvalara, false)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 2: COMPARE
	// =========================================================================

	progress.report(55, "Comparing ledgers")

	tieOut := reconcile.TieOut{
		RowDifferences: o.Config.TieOut.EagerDifferences(),
		ProcessorName:  o.Config.TieOut.ProcessorName,
		FeeSKU:         o.Rules.FeeSKU,
	}
	result.Comparisons = tieOut.Run(reconcile.Input{
		SFDC:    sfdc,
		SFDCCM:  sfdcCM,
		QB:      qb,
		QBCM:    qbCM,
		Avalara: avalara,
	})
	for _, c := range result.Comparisons {
		if c.IsDiagnostic() {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", c.Name, c.Rows[0].Message))
			logger.Warn("%s: %s", c.Name, c.Rows[0].Message)
			continue
		}
		logger.Info("%s: %d matched, %d %s only, %d %s only",
			c.Name, c.Count(reconcile.RowMatched),
			c.Count(reconcile.RowLeftOnly), c.Left.Name,
			c.Count(reconcile.RowRightOnly), c.Right.Name)
	}

	// =========================================================================
	// STEP 3: WRITE WORKBOOK
	// =========================================================================

	progress.report(70, "Writing tie out workbook")

	if err := o.Files.EnsureDirectories(); err != nil {
		return nil, err
	}
	name := o.Files.GenerateOutputFileName(o.Config.OutputNameFormat, map[string]string{
		"kind": KindTieOut,
		"run":  result.RunID,
	})
	result.OutputPath = o.Files.OutputPath(name)

	tables := []*types.Table{qb, qbCM, sfdc, sfdcCM, avalara}
	if err := report.WriteTieOut(result.OutputPath, nonNil(tables), result.Comparisons); err != nil {
		return nil, err
	}
	logger.Info("Wrote tie out workbook to %s", result.OutputPath)

	inputs := nonEmpty(req.QBPath, req.QBCMPath, req.SFDCPath, req.SFDCCMPath, req.AvalaraPath)
	if o.Config.ArchiveInputs {
		result.Archived, result.Warnings = o.archive(result.RunID, result.Warnings, inputs...)
	}

	summary := utils.RunSummary{
		RunID:     result.RunID,
		Kind:      KindTieOut,
		StartTime: start,
		EndTime:   o.Files.CurrentTime(),
		Inputs:    inputs,
		Outputs:   []string{result.OutputPath},
		Warnings:  result.Warnings,
	}
	for _, c := range result.Comparisons {
		if c.IsDiagnostic() {
			continue
		}
		summary.AddStat(c.Name+" matched", c.Count(reconcile.RowMatched))
		summary.AddStat(c.Name+" unmatched", c.Count(reconcile.RowLeftOnly)+c.Count(reconcile.RowRightOnly))
		if totals, ok := c.Totals(); ok && totals.Difference.Valid {
			summary.AddStat(c.Name+" difference", totals.Difference.Decimal.StringFixed(2))
		}
	}
	if path, err := o.Files.WriteSummaryLog(summary); err != nil {
		logger.Warn("Failed to write run summary: %v", err)
	} else {
		result.SummaryPath = path
	}

	progress.report(100, "Tie out complete")
	return result, nil
}

// loadSalesforce returns the SFDC and SFDC CM tables.
//
// SFDC comes from SFDCPath, else from the sales receipts of req.Import.
// SFDC CM comes from SFDCCMPath, else from the credit memos of req.Import,
// else from the SFDC rows whose source sheet looks like a credit sheet. Rows
// taken that last way are removed from SFDC.
func (o *Orchestrator) loadSalesforce(logger logging.Logger, req TieOutRequest) (*types.Table, *types.Table, error) {
	var sfdc *types.Table
	switch {
	case req.SFDCPath != "":
		table, err := o.loadTable(logger, req.SFDCPath, SheetSFDC, true)
		if err != nil {
			return nil, nil, err
		}
		sfdc = table
	case req.Import != nil && req.Import.Result != nil:
		sfdc = sources.ItemsTable(SheetSFDC, report.ImportColumns(req.Import.Columns), req.Import.Result.Main)
	}

	if req.SFDCCMPath != "" {
		cm, err := o.loadTable(logger, req.SFDCCMPath, SheetSFDCCM, true)
		return sfdc, cm, err
	}
	if req.Import != nil && req.Import.Result.HasCredits() {
		cm := sources.ItemsTable(SheetSFDCCM, report.ImportColumns(req.Import.Columns), req.Import.Result.Credit)
		return sfdc, cm, nil
	}

	sales, cm := splitCreditSheets(sfdc)
	return sales, cm, nil
}

// splitCreditSheets moves the rows of credit sheets out of a unioned table.
func splitCreditSheets(table *types.Table) (*types.Table, *types.Table) {
	if table == nil || !table.HasColumn(xlsxparser.SourceSheetColumn) {
		return table, nil
	}

	sales := &types.Table{Name: table.Name, Headers: table.Headers, SourceFile: table.SourceFile}
	cm := &types.Table{Name: SheetSFDCCM, Headers: table.Headers, SourceFile: table.SourceFile}
	for _, row := range table.Rows {
		if creditSheetPattern.MatchString(row[xlsxparser.SourceSheetColumn]) {
			cm.Rows = append(cm.Rows, row)
		} else {
			sales.Rows = append(sales.Rows, row)
		}
	}

	if cm.IsEmpty() {
		return table, nil
	}
	return sales, cm
}

// loadTable reads an optional ledger. An empty path yields nil. Salesforce
// ledgers are renamed through the column mapping.
func (o *Orchestrator) loadTable(logger logging.Logger, path, name string, salesforce bool) (*types.Table, error) {
	if path == "" {
		return nil, nil
	}

	table, err := sources.LoadTable(path, o.Config.CSVSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s data: %w", name, err)
	}
	if salesforce {
		table = sources.Rename(table, o.Config.Columns)
	}
	table.Name = name

	logger.Debug("Loaded %d %s rows from %s", len(table.Rows), name, path)
	return table, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// archive copies the inputs into the archive. Failures become warnings.
func (o *Orchestrator) archive(runID string, warnings []string, paths ...string) ([]string, []string) {
	logger := logging.ForRun(o.Logger, runID)
	var archived []string
	for _, path := range paths {
		dst, err := o.Files.ArchiveInputFile(runID, path)
		if err != nil {
			logger.Warn("Failed to archive %s: %v", path, err)
			warnings = append(warnings, fmt.Sprintf("failed to archive %s: %v", path, err))
			continue
		}
		archived = append(archived, dst)
	}
	return archived, warnings
}

func nonNil(tables []*types.Table) []*types.Table {
	var out []*types.Table
	for _, t := range tables {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// progress keeps reported percentages from going backwards.
type progress struct {
	fn   ProgressFunc
	last int
}

func newProgress(fn ProgressFunc) *progress {
	return &progress{fn: fn}
}

func (p *progress) report(percent int, message string) {
	if percent < p.last {
		percent = p.last
	}
	p.last = percent
	if p.fn != nil {
		p.fn(percent, message)
	}
}
