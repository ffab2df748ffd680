package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func entry(key, amount string) Entry {
	return Entry{Key: key, Amount: dec(amount)}
}

var testOpts = Options{Left: SideSFDC, Right: SideQB, RowDifferences: true}

func TestMatchIsCaseInsensitive(t *testing.T) {
	c := Match([]Entry{entry("A", "10.00")}, []Entry{entry("a", "10.00")}, testOpts)

	require.Len(t, c.Rows, 2)
	row := c.Rows[0]
	assert.Equal(t, RowMatched, row.Kind)
	assert.Equal(t, "A", row.LeftKey)
	assert.Equal(t, "a", row.RightKey)
	assert.True(t, row.Difference.Valid)
	assert.True(t, row.Difference.Decimal.IsZero())

	totals, ok := c.Totals()
	require.True(t, ok)
	assert.Equal(t, TotalLabel, totals.LeftKey)
	assert.True(t, totals.Difference.Decimal.IsZero())
}

func TestMatchStripsOrderDecorations(t *testing.T) {
	c := Match([]Entry{entry("#W100", "5")}, []Entry{entry("w100", "5")}, testOpts)
	assert.Equal(t, 1, c.Count(RowMatched))
}

func TestMatchDisjointKeys(t *testing.T) {
	left := []Entry{entry("B", "-2.50"), entry("A", "10")}
	right := []Entry{entry("C", "4"), entry("D", "1")}

	c := Match(left, right, testOpts)
	require.Len(t, c.Rows, 5)

	assert.Equal(t, 0, c.Count(RowMatched))
	assert.Equal(t, 2, c.Count(RowLeftOnly))
	assert.Equal(t, 2, c.Count(RowRightOnly))

	assert.Equal(t, "A", c.Rows[0].LeftKey)
	assert.Equal(t, "B", c.Rows[1].LeftKey)
	assert.False(t, c.Rows[1].RightAmount.Valid)
	assert.Equal(t, "C", c.Rows[2].RightKey)
	assert.False(t, c.Rows[2].LeftAmount.Valid)

	totals, _ := c.Totals()
	assert.True(t, totals.LeftAmount.Decimal.Equal(dec("12.50")))
	assert.True(t, totals.RightAmount.Decimal.Equal(dec("5")))
	assert.True(t, totals.Difference.Decimal.Equal(dec("7.50")))
}

func TestMatchOrdering(t *testing.T) {
	left := []Entry{entry("z", "1"), entry("m", "2"), entry("b", "3")}
	right := []Entry{entry("m", "2"), entry("x", "9"), entry("b", "1")}

	c := Match(left, right, testOpts)
	kinds := make([]RowKind, len(c.Rows))
	keys := make([]string, len(c.Rows))
	for i, row := range c.Rows {
		kinds[i] = row.Kind
		keys[i] = row.LeftKey + "|" + row.RightKey
	}

	assert.Equal(t, []RowKind{RowMatched, RowMatched, RowLeftOnly, RowRightOnly, RowTotal}, kinds)
	assert.Equal(t, []string{"b|b", "m|m", "z|", "|x", "Total|"}, keys)
	assert.True(t, c.Rows[0].Difference.Decimal.Equal(dec("2")))
}

func TestMatchDuplicateKeysPairInOrder(t *testing.T) {
	left := []Entry{{Key: "W1", Label: "first", Amount: dec("1")}, {Key: "W1", Label: "second", Amount: dec("2")}}
	right := []Entry{entry("w1", "1")}

	c := Match(left, right, testOpts)
	require.Len(t, c.Rows, 3)
	assert.Equal(t, RowMatched, c.Rows[0].Kind)
	assert.Equal(t, "first", c.Rows[0].LeftKey)
	assert.Equal(t, RowLeftOnly, c.Rows[1].Kind)
	assert.Equal(t, "second", c.Rows[1].LeftKey)
	assert.True(t, c.Rows[1].Difference.Decimal.Equal(dec("2")))
}

func TestMatchEmptyRightIsDiagnostic(t *testing.T) {
	c := Match([]Entry{entry("A", "1")}, nil, testOpts)

	require.Len(t, c.Rows, 1)
	assert.True(t, c.IsDiagnostic())
	assert.Equal(t, "QB data is empty for this date range.", c.Rows[0].Message)
	_, ok := c.Totals()
	assert.False(t, ok)
}

func TestMatchDeferredDifferences(t *testing.T) {
	opts := testOpts
	opts.RowDifferences = false

	c := Match([]Entry{entry("A", "10")}, []Entry{entry("A", "8")}, opts)
	assert.False(t, c.Rows[0].Difference.Valid)

	totals, _ := c.Totals()
	assert.True(t, totals.Difference.Valid)
	assert.True(t, totals.Difference.Decimal.Equal(dec("2")))
}

func TestComparisonHeaders(t *testing.T) {
	c := Match(nil, []Entry{entry("A", "1")}, Options{Left: SideQB, Right: SideAvalara})
	assert.Equal(t, []string{"QB Order #", "QB Amount", "Avalara PO NUMBER", "Avalara Amount", "Difference", "Notes"}, c.Headers())
}
