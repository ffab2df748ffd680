// =============================================================================
// Sales Receipt Reconciler - Rule Pipeline
// =============================================================================
//
// This module turns the normalized order ledger into the rows imported into
// the accounting system as sales receipts and credit memos.
//
// PIPELINE STAGES (fixed order, each consumes the previous stage's output):
//   1. Inject processor fee rows
//   2. Filter removed rows, remap SKUs of admin fee orders
//   3. Apply field transforms
//   4. Synthesize tax rows
//   5. Validate the surviving rows (reporting only)
//   6. Split credit orders from sales orders
//   7. Force credit quantities and prices positive
//   8. Recompute grand totals per partition
//   9. Fix the final numeric types
//
// ORDERING:
//   Rows are held in groups by order id, in order of first appearance. The
//   last row of a group is the one that carries the grand total, so insertion
//   order is preserved through every stage.
//
// CONCURRENCY:
//   A Pipeline holds no state between runs. The FeeMap is only read, so one
//   map may be shared by concurrent runs.
//
// =============================================================================

package pipeline

import (
	"fmt"
	"time"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/logging"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/validation"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result is the output of one pipeline run.
type Result struct {
	// Main holds the sales receipt rows.
	Main []types.LineItem

	// Credit holds the credit memo rows. It is nil when there are none.
	Credit []types.LineItem

	// Errors holds one entry per row that failed validation. It is nil when
	// every row passed.
	Errors []validation.ValidationError

	Stats Stats
}

// HasCredits reports whether the run produced credit memo rows.
func (r *Result) HasCredits() bool {
	return r != nil && len(r.Credit) > 0
}

// Stats contains counters about a pipeline run.
type Stats struct {
	InputRows    int
	Orders       int
	FeeRows      int
	TaxRows      int
	Removed      int
	ExemptOrders int
	Remapped     int

	MainOrders   int
	CreditOrders int

	ValidationErrors int
	Duration         time.Duration
}

// =============================================================================
// PIPELINE STRUCTURE
// =============================================================================

// Pipeline applies the import rules to a ledger.
type Pipeline struct {
	Rules     config.RuleSet
	Validator *validation.Validator
	Logger    logging.Logger
}

// New creates a Pipeline for a rule set. The rule set is copied so callers
// can keep editing their own value.
func New(rules config.RuleSet, logger logging.Logger) *Pipeline {
	rules = rules.Clone()
	return &Pipeline{
		Rules:     rules,
		Validator: validation.NewValidator(rules),
		Logger:    logging.OrNop(logger),
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes every stage over the items.
//
// PARAMETERS:
//   - items: The normalized ledger rows in input order. They are not modified.
//   - fees: Processor fees by payment id. May be nil.
//
// RETURNS:
//   - The partitioned rows and validation findings.
//   - An error if the rule set is invalid.
func (p *Pipeline) Run(items []types.LineItem, fees types.FeeMap) (*Result, error) {
	startTime := time.Now()

	if err := p.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}

	// Defaults are filled on a copy so a shared Pipeline is never written.
	if p.Logger == nil || p.Validator == nil {
		run := *p
		run.Logger = logging.OrNop(p.Logger)
		if run.Validator == nil {
			run.Validator = validation.NewValidator(p.Rules)
		}
		p = &run
	}

	result := &Result{}
	gs := newGroupSet(items)
	result.Stats.InputRows = len(items)
	result.Stats.Orders = len(gs.groups)

	p.Logger.Info("Running rule pipeline over %d rows in %d orders", len(items), len(gs.groups))

	// =========================================================================
	// STEP 1: INJECT FEES
	// =========================================================================

	result.Stats.FeeRows = p.injectFees(gs, fees)
	p.Logger.Debug("Injected %d fee rows", result.Stats.FeeRows)

	// =========================================================================
	// STEP 2: FILTER REMOVALS
	// =========================================================================
	// Orders with the admin fee SKU keep every row; their hosting and
	// enterprise rows are remapped instead.

	removal := p.filterRemovals(gs)
	result.Stats.Removed = removal.removed
	result.Stats.ExemptOrders = removal.exempt
	result.Stats.Remapped = removal.remapped
	p.Logger.Debug("Removed %d rows, %d orders exempt, %d SKUs remapped",
		removal.removed, removal.exempt, removal.remapped)

	// =========================================================================
	// STEP 3: FIELD TRANSFORMS
	// =========================================================================

	NewTransformer(p.Rules).TransformAll(gs)

	// =========================================================================
	// STEP 4: SYNTHESIZE TAX ROWS
	// =========================================================================

	result.Stats.TaxRows = p.synthesizeTaxRows(gs)
	p.Logger.Debug("Synthesized %d tax rows", result.Stats.TaxRows)

	// =========================================================================
	// STEP 5: VALIDATE
	// =========================================================================
	// Findings are reported; rows are never dropped here.

	result.Errors = p.Validator.ValidateAll(gs.flatten())
	result.Stats.ValidationErrors = len(result.Errors)
	for _, verr := range result.Errors {
		p.Logger.Warn("Validation error: %s", verr.Error())
	}

	// =========================================================================
	// STEP 6: SPLIT CREDITS
	// =========================================================================

	credit, main := gs.partition(p.isCredit)
	result.Stats.MainOrders = len(main.groups)
	result.Stats.CreditOrders = len(credit.groups)

	// =========================================================================
	// STEP 7: NORMALIZE CREDIT SIGNS
	// =========================================================================

	absoluteCredits(credit)

	// =========================================================================
	// STEP 8: RECOMPUTE GRAND TOTALS
	// =========================================================================

	recomputeTotals(main)
	recomputeTotals(credit)

	// =========================================================================
	// STEP 9: FINAL TYPING
	// =========================================================================

	result.Main = main.flatten()
	finalizeRows(result.Main)

	if len(credit.groups) > 0 {
		result.Credit = credit.flatten()
		finalizeRows(result.Credit)
	}

	// =========================================================================
	// COMPLETE
	// =========================================================================

	result.Stats.Duration = time.Since(startTime)
	p.Logger.Info("Rule pipeline produced %d sales rows and %d credit rows (%d validation errors)",
		len(result.Main), len(result.Credit), len(result.Errors))

	return result, nil
}
