// =============================================================================
// Sales Receipt Reconciler - Reconciliation Matcher
// =============================================================================
//
// This module lines up the orders of two ledgers and reports the amounts side
// by side. It is the engine behind both tie-out sheets.
//
// MATCHING:
//   1. Both sides are keyed by the case-folded normalized order id
//   2. Both sides are sorted stably by that key
//   3. Each left entry is paired with the first unconsumed right entry of the
//      same key
//   4. Matched rows come first, then left-only rows, then right-only rows
//   5. A totals row closes the comparison
//
// DIAGNOSTICS:
//   A comparison that cannot run (empty or unreadable source) is reported as a
//   single diagnostic row rather than an empty table.
//
// =============================================================================

package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/normalize"
)

// TotalLabel is the key shown on the totals row.
const TotalLabel = "Total"

// =============================================================================
// TYPES
// =============================================================================

// Entry is one order amount from a ledger.
type Entry struct {
	// Key is the order id as it appears in the source.
	Key string

	// Label is an optional display value; Key is shown when it is empty.
	Label string

	Amount decimal.Decimal

	// Note is carried onto the output row.
	Note string
}

// Display returns the value shown in the order column.
func (e Entry) Display() string {
	if e.Label != "" {
		return e.Label
	}
	return e.Key
}

// Side names one ledger of a comparison.
type Side struct {
	// Name is the ledger name used in messages, e.g. "QB".
	Name string

	// KeyHeader and AmountHeader are the report column titles.
	KeyHeader    string
	AmountHeader string
}

// Options control Match.
type Options struct {
	Left  Side
	Right Side

	// RowDifferences computes the difference of every row. When false the
	// difference is left null and the report writes a formula instead. The
	// totals row is always computed.
	RowDifferences bool
}

// RowKind classifies a reconciliation row.
type RowKind int

const (
	RowMatched RowKind = iota
	RowLeftOnly
	RowRightOnly
	RowTotal
	RowDiagnostic
)

// String returns the kind's name.
func (k RowKind) String() string {
	switch k {
	case RowMatched:
		return "matched"
	case RowLeftOnly:
		return "left-only"
	case RowRightOnly:
		return "right-only"
	case RowTotal:
		return "total"
	case RowDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Row is one line of a reconciliation table. Rows are never modified after
// Match returns them.
type Row struct {
	Kind RowKind

	LeftKey     string
	LeftAmount  decimal.NullDecimal
	RightKey    string
	RightAmount decimal.NullDecimal
	Difference  decimal.NullDecimal
	Notes       string

	// Message is the text of a diagnostic row.
	Message string
}

// Comparison is the result of matching two ledgers.
type Comparison struct {
	// Name is the report sheet name.
	Name string

	Left  Side
	Right Side

	// Rows ends with the totals row unless the comparison is a diagnostic.
	Rows []Row
}

// Headers returns the report column titles.
func (c Comparison) Headers() []string {
	return []string{
		c.Left.KeyHeader,
		c.Left.AmountHeader,
		c.Right.KeyHeader,
		c.Right.AmountHeader,
		"Difference",
		"Notes",
	}
}

// Totals returns the totals row.
func (c Comparison) Totals() (Row, bool) {
	if n := len(c.Rows); n > 0 && c.Rows[n-1].Kind == RowTotal {
		return c.Rows[n-1], true
	}
	return Row{}, false
}

// IsDiagnostic reports whether the comparison holds only a diagnostic row.
func (c Comparison) IsDiagnostic() bool {
	return len(c.Rows) == 1 && c.Rows[0].Kind == RowDiagnostic
}

// Count returns the number of rows of a kind.
func (c Comparison) Count(kind RowKind) int {
	n := 0
	for _, row := range c.Rows {
		if row.Kind == kind {
			n++
		}
	}
	return n
}

// Diagnostic returns a comparison holding a single diagnostic row.
func Diagnostic(opts Options, message string) Comparison {
	return Comparison{
		Left:  opts.Left,
		Right: opts.Right,
		Rows:  []Row{{Kind: RowDiagnostic, Message: message}},
	}
}

// =============================================================================
// MATCHING
// =============================================================================

type keyedEntry struct {
	Entry
	key      string
	consumed bool
}

func keyEntries(entries []Entry) []keyedEntry {
	out := make([]keyedEntry, len(entries))
	for i, e := range entries {
		out[i] = keyedEntry{Entry: e, key: normalize.CompareKey(e.Key)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Match pairs the entries of two ledgers.
//
// PARAMETERS:
//   - left, right: The entries of each ledger, in any order.
//   - opts: Side names and the row difference mode.
//
// RETURNS:
//   - The reconciliation rows followed by a totals row, or a single
//     diagnostic row when the right side is empty.
func Match(left, right []Entry, opts Options) Comparison {
	if len(right) == 0 {
		return Diagnostic(opts, opts.Right.Name+" data is empty for this date range.")
	}

	ls := keyEntries(left)
	rs := keyEntries(right)
	rows := make([]Row, 0, len(ls)+len(rs)+1)

	// Both sides are sorted, so the first unconsumed right entry of a key is
	// always at or after j.
	j := 0
	for i := range ls {
		for j < len(rs) && rs[j].key < ls[i].key {
			j++
		}
		if j < len(rs) && rs[j].key == ls[i].key {
			ls[i].consumed = true
			rs[j].consumed = true
			rows = append(rows, opts.row(RowMatched, &ls[i].Entry, &rs[j].Entry))
			j++
		}
	}

	for i := range ls {
		if !ls[i].consumed {
			rows = append(rows, opts.row(RowLeftOnly, &ls[i].Entry, nil))
		}
	}
	for j := range rs {
		if !rs[j].consumed {
			rows = append(rows, opts.row(RowRightOnly, nil, &rs[j].Entry))
		}
	}

	rows = append(rows, totalsRow(left, right))

	return Comparison{Left: opts.Left, Right: opts.Right, Rows: rows}
}

// row builds an output row. A nil side is left blank.
func (o Options) row(kind RowKind, left, right *Entry) Row {
	row := Row{Kind: kind}
	leftAmount, rightAmount := decimal.Zero, decimal.Zero

	if left != nil {
		row.LeftKey = left.Display()
		row.LeftAmount = decimal.NewNullDecimal(left.Amount)
		row.Notes = left.Note
		leftAmount = left.Amount
	}
	if right != nil {
		row.RightKey = right.Display()
		row.RightAmount = decimal.NewNullDecimal(right.Amount)
		if row.Notes == "" {
			row.Notes = right.Note
		}
		rightAmount = right.Amount
	}

	if o.RowDifferences {
		row.Difference = decimal.NewNullDecimal(normalize.Money(leftAmount.Sub(rightAmount)))
	}
	return row
}

// totalsRow sums the absolute amounts of each side.
func totalsRow(left, right []Entry) Row {
	leftTotal := sumAbs(left)
	rightTotal := sumAbs(right)
	return Row{
		Kind:        RowTotal,
		LeftKey:     TotalLabel,
		LeftAmount:  decimal.NewNullDecimal(leftTotal),
		RightAmount: decimal.NewNullDecimal(rightTotal),
		Difference:  decimal.NewNullDecimal(normalize.Money(leftTotal.Sub(rightTotal))),
	}
}

func sumAbs(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount.Abs())
	}
	return normalize.Money(total)
}
