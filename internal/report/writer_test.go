package report

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/pipeline"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/reconcile"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/validation"
)

func openWorkbook(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func rawRows(t *testing.T, f *excelize.File, sheet string) [][]string {
	t.Helper()
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return rows
}

func columnIndex(columns []string, name string) int {
	for i, col := range columns {
		if col == name {
			return i
		}
	}
	return -1
}

func item(order, sku string, price, total string) types.LineItem {
	return types.LineItem{
		OrderID:    order,
		SKU:        sku,
		Quantity:   1,
		UnitPrice:  decimal.RequireFromString(price),
		GrandTotal: decimal.RequireFromString(total),
		Fields: map[string]string{
			types.ColOrderID: order,
			types.ColSKU:     sku,
			"source_sheet":   "Orders",
		},
	}
}

func TestImportColumns(t *testing.T) {
	columns := ImportColumns([]string{types.ColSKU, "source_sheet", types.ColOrderID, "Notes"})
	assert.Equal(t, types.LedgerColumns, columns[:len(types.LedgerColumns)])
	assert.Equal(t, []string{"source_sheet", "Notes"}, columns[len(types.LedgerColumns):])
}

func TestWriteImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.xlsx")
	result := &pipeline.Result{
		Main: []types.LineItem{
			item("W1", "PROD", "100.00", "0"),
			item("W1", "WooCommerce Fees", "-3.20", "96.80"),
		},
		Credit: []types.LineItem{item("W2-RMA", "PROD", "5", "5")},
		Errors: []validation.ValidationError{{
			OrderID:     "W1",
			AccountName: "Acme",
			RowNumber:   1,
			Issues:      []validation.Issue{{Field: "Account Name", Message: "Exceeded character limit (42 chars)"}},
		}},
	}

	require.NoError(t, WriteImport(path, []string{"source_sheet"}, result))

	f := openWorkbook(t, path)
	assert.Equal(t, []string{SheetSalesReceipts, SheetCreditMemos, SheetErrors}, f.GetSheetList())

	columns := ImportColumns([]string{"source_sheet"})
	rows := rawRows(t, f, SheetSalesReceipts)
	require.Len(t, rows, 3)
	assert.Equal(t, columns, rows[0])

	fee := rows[2]
	assert.Equal(t, "WooCommerce Fees", fee[columnIndex(columns, types.ColSKU)])
	assert.Equal(t, "-3.2", fee[columnIndex(columns, types.ColUnitPrice)])
	assert.Equal(t, "96.8", fee[columnIndex(columns, types.ColGrandTotal)])
	assert.Equal(t, "Orders", fee[columnIndex(columns, "source_sheet")])

	errs := rawRows(t, f, SheetErrors)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrorColumns, errs[0])
	assert.Equal(t, []string{"W1", "Acme", "1", "Account Name: Exceeded character limit (42 chars)"}, errs[1])
}

func TestWriteImportOmitsEmptyPartitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.xlsx")
	require.NoError(t, WriteImport(path, nil, &pipeline.Result{}))

	f := openWorkbook(t, path)
	assert.Equal(t, []string{SheetSalesReceipts}, f.GetSheetList())
	assert.Len(t, rawRows(t, f, SheetSalesReceipts), 1)
}

func TestWriteTieOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tieout.xlsx")
	qb := &types.Table{
		Name:    "QB",
		Headers: []string{"Num", "Amount"},
		Rows:    []map[string]string{{"Num": "W1", "Amount": "96.80"}},
	}
	empty := &types.Table{Name: "QB CM", Headers: []string{"Num", "Amount"}}

	deferred := reconcile.Match(
		[]reconcile.Entry{{Key: "W1", Amount: decimal.RequireFromString("96.80")}},
		[]reconcile.Entry{{Key: "w1", Amount: decimal.RequireFromString("96.80")}},
		reconcile.Options{Left: reconcile.SideSFDC, Right: reconcile.SideQB},
	)
	deferred.Name = reconcile.SheetSFDCToQB

	diagnostic := reconcile.Diagnostic(
		reconcile.Options{Left: reconcile.SideQB, Right: reconcile.SideAvalara},
		"No Avalara data available. Connect to Avalara API first.",
	)
	diagnostic.Name = reconcile.SheetQBToAvalara

	require.NoError(t, WriteTieOut(path, []*types.Table{qb, empty}, []reconcile.Comparison{deferred, diagnostic}))

	f := openWorkbook(t, path)
	assert.Equal(t, []string{"QB", reconcile.SheetSFDCToQB, reconcile.SheetQBToAvalara}, f.GetSheetList())

	rows := rawRows(t, f, reconcile.SheetSFDCToQB)
	require.Len(t, rows, 3)
	assert.Equal(t, deferred.Headers(), rows[0])
	assert.Equal(t, "W1", rows[1][0])
	assert.Equal(t, reconcile.TotalLabel, rows[2][0])

	formula, err := f.GetCellFormula(reconcile.SheetSFDCToQB, "E2")
	require.NoError(t, err)
	assert.Contains(t, formula, "N(B2)-N(D2)")

	totalsFormula, err := f.GetCellFormula(reconcile.SheetSFDCToQB, "E3")
	require.NoError(t, err)
	assert.Empty(t, totalsFormula)

	diag := rawRows(t, f, reconcile.SheetQBToAvalara)
	require.Len(t, diag, 2)
	assert.Equal(t, "No Avalara data available. Connect to Avalara API first.", diag[1][0])
}

func TestSheetNamesAreSanitizedAndUnique(t *testing.T) {
	w, err := newWorkbook()
	require.NoError(t, err)
	defer w.close()

	assert.Equal(t, "a_b", w.sheetName("a/b"))
	long := strings.Repeat("x", 40)
	first := w.sheetName(long)
	second := w.sheetName(long)
	assert.Len(t, first, maxSheetNameLength)
	assert.Len(t, second, maxSheetNameLength)
	assert.True(t, strings.HasSuffix(second, " (2)"))
	assert.Equal(t, "Sheet", w.sheetName("  "))
}
