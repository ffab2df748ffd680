package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/normalize"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// Tie-out sheet names.
const (
	SheetSFDCToQB    = "SFDC to QB Tie Out"
	SheetQBToAvalara = "QB to Avalara Tie Out"
)

// The three ledgers compared by the tie-outs.
var (
	SideSFDC    = Side{Name: "SFDC", KeyHeader: "SFDC Order #", AmountHeader: "SFDC Amount"}
	SideQB      = Side{Name: "QB", KeyHeader: "QB Order #", AmountHeader: "QB Amount"}
	SideAvalara = Side{Name: "Avalara", KeyHeader: "Avalara PO NUMBER", AmountHeader: "Avalara Amount"}
)

// =============================================================================
// INPUT
// =============================================================================

// Input holds the loosely typed sheets of a tie-out. Any of them may be nil.
type Input struct {
	SFDC   *types.Table
	SFDCCM *types.Table
	QB     *types.Table
	QBCM   *types.Table

	// Avalara is nil when no tax engine export was supplied.
	Avalara *types.Table
}

// TieOut runs the two tie-out comparisons.
type TieOut struct {
	// RowDifferences is passed through to Match.
	RowDifferences bool

	// ProcessorName prefixes the fee netting note.
	ProcessorName string

	// FeeSKU identifies processor fee rows in the SFDC sheet.
	FeeSKU string
}

// Run builds the order fee map and returns both comparisons.
func (t TieOut) Run(in Input) []Comparison {
	orderFees := BuildOrderFeeMap(in.SFDC, t.FeeSKU)
	return []Comparison{
		t.SFDCToQB(in),
		t.QBToAvalara(in, orderFees),
	}
}

// =============================================================================
// SFDC TO QB
// =============================================================================

// SFDCToQB compares the order totals of the SFDC sheets with the QB sheets.
// Credit memo sheets are appended to their main sheet.
func (t TieOut) SFDCToQB(in Input) Comparison {
	opts := Options{Left: SideSFDC, Right: SideQB, RowDifferences: t.RowDifferences}

	sfdc, missing := sfdcEntries(in.SFDC)
	if len(missing) > 0 {
		return named(SheetSFDCToQB, Diagnostic(opts, missingMessage(SideSFDC, missing)))
	}
	if cm, cmMissing := sfdcEntries(in.SFDCCM); len(cmMissing) == 0 {
		sfdc = append(sfdc, cm...)
	}

	qb, comparison, ok := t.qbSide(in, opts)
	if !ok {
		return named(SheetSFDCToQB, comparison)
	}

	return named(SheetSFDCToQB, Match(sfdc, qb, opts))
}

// =============================================================================
// QB TO AVALARA
// =============================================================================

// QBToAvalara compares fee-netted QB amounts with the tax engine's order
// totals (amount + tax).
//
// PARAMETERS:
//   - in: The tie-out sheets.
//   - orderFees: Processor fees by compare key, as built by BuildOrderFeeMap.
func (t TieOut) QBToAvalara(in Input, orderFees map[string]decimal.Decimal) Comparison {
	opts := Options{Left: SideQB, Right: SideAvalara, RowDifferences: t.RowDifferences}

	if in.Avalara == nil {
		return named(SheetQBToAvalara, Diagnostic(opts, "No Avalara data available. Connect to Avalara API first."))
	}
	if in.Avalara.IsEmpty() {
		return named(SheetQBToAvalara, Diagnostic(opts, "Avalara data is empty for this date range."))
	}

	avalara, missing := avalaraEntries(in.Avalara)
	if len(missing) > 0 {
		return named(SheetQBToAvalara, Diagnostic(opts, missingMessage(SideAvalara, missing)))
	}

	qb, comparison, ok := t.qbSide(in, opts)
	if !ok {
		return named(SheetQBToAvalara, comparison)
	}
	qb = NetFees(qb, orderFees, t.ProcessorName)

	return named(SheetQBToAvalara, Match(qb, avalara, opts))
}

// qbSide reads the QB and QB CM sheets. When the QB columns cannot be found
// it returns the diagnostic comparison and false.
func (t TieOut) qbSide(in Input, opts Options) ([]Entry, Comparison, bool) {
	qb, missing := qbEntries(in.QB)
	if len(missing) > 0 {
		return nil, Diagnostic(opts, missingMessage(SideQB, missing)), false
	}
	if cm, cmMissing := qbEntries(in.QBCM); len(cmMissing) == 0 {
		qb = append(qb, cm...)
	}
	return qb, Comparison{}, true
}

func named(name string, c Comparison) Comparison {
	c.Name = name
	return c
}

func missingMessage(side Side, missing []string) string {
	return fmt.Sprintf("Cannot find required columns in %s data. Missing: %s", side.Name, strings.Join(missing, ", "))
}

// =============================================================================
// FEE NETTING
// =============================================================================

// BuildOrderFeeMap sums the unit prices of the processor fee rows of the SFDC
// sheet per order. Keys are compare keys. Fee rows carry negative prices.
func BuildOrderFeeMap(sfdc *types.Table, feeSKU string) map[string]decimal.Decimal {
	fees := make(map[string]decimal.Decimal)
	if sfdc.IsEmpty() {
		return fees
	}

	orderCol := findHeader(sfdc.Headers, containsHeader("webstore order"))
	skuCol := findHeader(sfdc.Headers, exactHeader("sku"))
	priceCol := findHeader(sfdc.Headers, exactHeader("unit price"))
	if orderCol == "" || skuCol == "" || priceCol == "" {
		return fees
	}

	for _, row := range sfdc.Rows {
		order := strings.TrimSpace(row[orderCol])
		if order == "" || !normalize.EqualFold(row[skuCol], feeSKU) {
			continue
		}
		fee := normalize.CleanAmount(row[priceCol])
		if fee.IsZero() {
			continue
		}
		key := normalize.CompareKey(order)
		fees[key] = fees[key].Add(fee)
	}

	return fees
}

// NetFees adds back a negative processor fee to each entry's amount and
// notes the deduction. Entries without a fee are returned unchanged. The
// input slice is not modified.
func NetFees(entries []Entry, orderFees map[string]decimal.Decimal, processor string) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e
		fee, ok := orderFees[normalize.CompareKey(e.Key)]
		if !ok || !fee.IsNegative() {
			continue
		}
		out[i].Amount = e.Amount.Sub(fee)
		out[i].Note = fmt.Sprintf("%s Fee Deducted: $%s", processor, fee.StringFixed(2))
	}
	return out
}

// =============================================================================
// ENTRY EXTRACTION
// =============================================================================

// sfdcEntries reads order totals from an SFDC sheet. Rows with a zero amount
// are skipped. A nil table yields no entries and no missing columns.
func sfdcEntries(table *types.Table) ([]Entry, []string) {
	if table == nil {
		return nil, nil
	}

	orderCol := findHeader(table.Headers, containsHeader("webstore order"))
	amountCol := findHeader(table.Headers, containsHeader("grand total"))
	if amountCol == "" {
		amountCol = findHeader(table.Headers, containsHeader("amount"))
	}

	var missing []string
	if orderCol == "" {
		missing = append(missing, types.ColOrderID)
	}
	if amountCol == "" {
		missing = append(missing, types.ColGrandTotal)
	}
	if len(missing) > 0 {
		return nil, missing
	}

	var entries []Entry
	for _, row := range table.Rows {
		order := strings.TrimSpace(row[orderCol])
		amount := normalize.CleanAmount(row[amountCol])
		if order == "" || amount.IsZero() {
			continue
		}
		entries = append(entries, Entry{Key: order, Amount: amount})
	}
	return entries, nil
}

// qbEntries reads order amounts from a QB sheet. Every row with an order
// number is kept, including zero amounts.
func qbEntries(table *types.Table) ([]Entry, []string) {
	if table == nil {
		return nil, nil
	}

	orderCol := findHeader(table.Headers, exactHeader("num"))
	amountCol := findHeader(table.Headers, exactHeader("amount"))

	var missing []string
	if orderCol == "" {
		missing = append(missing, "Num")
	}
	if amountCol == "" {
		missing = append(missing, "Amount")
	}
	if len(missing) > 0 {
		return nil, missing
	}

	var entries []Entry
	for _, row := range table.Rows {
		order := strings.TrimSpace(row[orderCol])
		if order == "" {
			continue
		}
		entries = append(entries, Entry{Key: order, Amount: normalize.CleanAmount(row[amountCol])})
	}
	return entries, nil
}

// avalaraEntries reads order totals from a tax engine export. The amount is
// the transaction amount plus its tax; rows where that is zero are skipped.
func avalaraEntries(table *types.Table) ([]Entry, []string) {
	poCol := findHeader(table.Headers, func(h string) bool {
		return compactHeader(h) == "purchaseorderno" || h == "po number"
	})
	amountCol := findHeader(table.Headers, func(h string) bool {
		return compactHeader(h) == "totalamount" || h == "amount"
	})
	taxCol := findHeader(table.Headers, func(h string) bool {
		return compactHeader(h) == "totaltax" || h == "tax"
	})

	var missing []string
	if poCol == "" {
		missing = append(missing, "purchaseOrderNo (or PO Number)")
	}
	if amountCol == "" {
		missing = append(missing, "totalAmount (or Amount)")
	}
	if taxCol == "" {
		missing = append(missing, "totalTax (or Tax)")
	}
	if len(missing) > 0 {
		return nil, missing
	}

	var entries []Entry
	for _, row := range table.Rows {
		po := strings.TrimSpace(row[poCol])
		amount := normalize.CleanAmount(row[amountCol]).Add(normalize.CleanAmount(row[taxCol]))
		if po == "" || amount.IsZero() {
			continue
		}
		entries = append(entries, Entry{Key: po, Amount: amount})
	}
	return entries, nil
}

// =============================================================================
// HEADER MATCHING
// =============================================================================

// findHeader returns the first header accepted by match. Headers are passed
// to match trimmed and lower-cased.
func findHeader(headers []string, match func(string) bool) string {
	for _, h := range headers {
		if match(strings.ToLower(strings.TrimSpace(h))) {
			return h
		}
	}
	return ""
}

func containsHeader(token string) func(string) bool {
	return func(h string) bool { return strings.Contains(h, token) }
}

func exactHeader(name string) func(string) bool {
	return func(h string) bool { return h == name }
}

// compactHeader drops the separators of camel or snake cased headers.
func compactHeader(h string) string {
	return strings.NewReplacer("_", "", " ", "").Replace(h)
}
