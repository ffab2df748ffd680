package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

func table(name string, headers []string, rows ...[]string) *types.Table {
	t := &types.Table{Name: name, Headers: headers}
	for _, values := range rows {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = values[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

var sfdcHeaders = []string{"Webstore Order #", "SKU", "Unit Price", "Order Amount (Grand Total)"}

func testTieOut() TieOut {
	return TieOut{RowDifferences: true, ProcessorName: "WooCommerce", FeeSKU: "WooCommerce Fees"}
}

func TestBuildOrderFeeMap(t *testing.T) {
	sfdc := table("SFDC", sfdcHeaders,
		[]string{"W1", "PROD", "100.00", "0"},
		[]string{"W1", "woocommerce fees", "-3.20", "96.80"},
		[]string{"W2", "WooCommerce Fees", "-1.00", "0"},
		[]string{"W2", "WooCommerce Fees", "($0.50)", "48.50"},
		[]string{"W3", "WooCommerce Fees", "", "10"},
	)

	fees := BuildOrderFeeMap(sfdc, "WooCommerce Fees")
	require.Len(t, fees, 2)
	assert.True(t, fees["w1"].Equal(dec("-3.20")))
	assert.True(t, fees["w2"].Equal(dec("-1.50")))
}

func TestBuildOrderFeeMapMissingColumns(t *testing.T) {
	sfdc := table("SFDC", []string{"Webstore Order #"}, []string{"W1"})
	assert.Empty(t, BuildOrderFeeMap(sfdc, "WooCommerce Fees"))
	assert.Empty(t, BuildOrderFeeMap(nil, "WooCommerce Fees"))
}

func TestNetFees(t *testing.T) {
	entries := []Entry{entry("W1", "96.80"), entry("W2", "10")}
	fees := map[string]decimal.Decimal{"w1": dec("-3.20"), "w2": dec("1.00")}

	netted := NetFees(entries, fees, "WooCommerce")
	assert.True(t, netted[0].Amount.Equal(dec("100")))
	assert.Equal(t, "WooCommerce Fee Deducted: $-3.20", netted[0].Note)
	assert.True(t, netted[1].Amount.Equal(dec("10")))
	assert.Empty(t, netted[1].Note)

	assert.True(t, entries[0].Amount.Equal(dec("96.80")), "input is not modified")
}

func TestSFDCToQB(t *testing.T) {
	in := Input{
		SFDC: table("SFDC", sfdcHeaders,
			[]string{"W1", "PROD", "100", "0"},
			[]string{"W1", "WooCommerce Fees", "-3.20", "96.80"},
			[]string{"W2", "PROD", "20", "20.00"},
		),
		SFDCCM: table("SFDC CM", sfdcHeaders, []string{"W3-RMA", "PROD", "5", "5.00"}),
		QB:     table("QB", []string{"Date", "Num", "Amount"}, []string{"1/1", "w1", "96.80"}, []string{"1/1", "W9", "0"}),
		QBCM:   table("QB CM", []string{"num", "amount"}, []string{"W3-RMA", "-5.00"}),
	}

	c := testTieOut().SFDCToQB(in)
	assert.Equal(t, SheetSFDCToQB, c.Name)
	assert.Equal(t, 2, c.Count(RowMatched))
	assert.Equal(t, 1, c.Count(RowLeftOnly))
	assert.Equal(t, 1, c.Count(RowRightOnly))

	totals, ok := c.Totals()
	require.True(t, ok)
	assert.True(t, totals.LeftAmount.Decimal.Equal(dec("121.80")))
	assert.True(t, totals.RightAmount.Decimal.Equal(dec("101.80")))
}

func TestSFDCToQBMissingColumns(t *testing.T) {
	in := Input{
		SFDC: table("SFDC", sfdcHeaders, []string{"W1", "PROD", "1", "1"}),
		QB:   table("QB", []string{"Order", "Total"}, []string{"W1", "1"}),
	}

	c := testTieOut().SFDCToQB(in)
	require.True(t, c.IsDiagnostic())
	assert.Equal(t, "Cannot find required columns in QB data. Missing: Num, Amount", c.Rows[0].Message)
}

func TestSFDCToQBEmptyQB(t *testing.T) {
	in := Input{SFDC: table("SFDC", sfdcHeaders, []string{"W1", "PROD", "1", "1"})}

	c := testTieOut().SFDCToQB(in)
	require.True(t, c.IsDiagnostic())
	assert.Equal(t, "QB data is empty for this date range.", c.Rows[0].Message)
}

func TestQBToAvalaraNetsFees(t *testing.T) {
	in := Input{
		QB: table("QB", []string{"Num", "Amount"}, []string{"W1", "96.80"}, []string{"W2", "53.00"}),
		Avalara: table("Avalara", []string{"purchaseOrderNo", "totalAmount", "total_tax"},
			[]string{"W1", "92.00", "8.00"},
			[]string{"W2", "50.00", "3.00"},
			[]string{"W3", "0", "0"},
		),
	}
	fees := map[string]decimal.Decimal{"w1": dec("-3.20")}

	c := testTieOut().QBToAvalara(in, fees)
	assert.Equal(t, SheetQBToAvalara, c.Name)
	require.Len(t, c.Rows, 3)

	w1 := c.Rows[0]
	assert.Equal(t, RowMatched, w1.Kind)
	assert.True(t, w1.LeftAmount.Decimal.Equal(dec("100")))
	assert.True(t, w1.RightAmount.Decimal.Equal(dec("100")))
	assert.True(t, w1.Difference.Decimal.IsZero())
	assert.Equal(t, "WooCommerce Fee Deducted: $-3.20", w1.Notes)

	assert.Equal(t, RowTotal, c.Rows[2].Kind)
}

func TestQBToAvalaraAlternateHeaders(t *testing.T) {
	in := Input{
		QB:      table("QB", []string{"Num", "Amount"}, []string{"W1", "10"}),
		Avalara: table("Avalara", []string{"PO Number", "Total Amount", "Tax"}, []string{"W1", "9", "1"}),
	}

	c := testTieOut().QBToAvalara(in, nil)
	assert.Equal(t, 1, c.Count(RowMatched))
}

func TestQBToAvalaraDiagnostics(t *testing.T) {
	qb := table("QB", []string{"Num", "Amount"}, []string{"W1", "10"})

	absent := testTieOut().QBToAvalara(Input{QB: qb}, nil)
	require.True(t, absent.IsDiagnostic())
	assert.Equal(t, "No Avalara data available. Connect to Avalara API first.", absent.Rows[0].Message)

	empty := testTieOut().QBToAvalara(Input{QB: qb, Avalara: table("Avalara", []string{"PO Number"})}, nil)
	require.True(t, empty.IsDiagnostic())
	assert.Equal(t, "Avalara data is empty for this date range.", empty.Rows[0].Message)

	noCols := testTieOut().QBToAvalara(Input{
		QB:      qb,
		Avalara: table("Avalara", []string{"PO Number", "Date"}, []string{"W1", "1/1"}),
	}, nil)
	require.True(t, noCols.IsDiagnostic())
	assert.Equal(t,
		"Cannot find required columns in Avalara data. Missing: totalAmount (or Amount), totalTax (or Tax)",
		noCols.Rows[0].Message)
}

func TestTieOutRun(t *testing.T) {
	in := Input{
		SFDC: table("SFDC", sfdcHeaders,
			[]string{"W1", "PROD", "100", "0"},
			[]string{"W1", "WooCommerce Fees", "-3.20", "96.80"},
		),
		QB:      table("QB", []string{"Num", "Amount"}, []string{"W1", "96.80"}),
		Avalara: table("Avalara", []string{"purchaseOrderNo", "totalAmount", "totalTax"}, []string{"W1", "100", "0"}),
	}

	comparisons := testTieOut().Run(in)
	require.Len(t, comparisons, 2)
	assert.Equal(t, 1, comparisons[0].Count(RowMatched))
	assert.True(t, comparisons[1].Rows[0].Difference.Decimal.IsZero())
}
