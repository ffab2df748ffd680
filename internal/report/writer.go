// =============================================================================
// Sales Receipt Reconciler - Report Writer
// =============================================================================
//
// This module writes the run outputs as Excel workbooks.
//
// IMPORT WORKBOOK:
//   Sales Receipts  - The sales partition of the rule pipeline
//   Credit Memos    - The credit partition (only when there are credits)
//   Errors          - Validation findings (only when there are findings)
//
// TIE-OUT WORKBOOK:
//   One sheet per source ledger, followed by one sheet per comparison. Rows
//   whose difference was deferred get a spreadsheet formula instead of a
//   value. The totals row always carries its computed difference.
//
// =============================================================================

package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/pipeline"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/reconcile"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// Import workbook sheet names.
const (
	SheetSalesReceipts = "Sales Receipts"
	SheetCreditMemos   = "Credit Memos"
	SheetErrors        = "Errors"
)

// ErrorColumns are the headers of the Errors sheet.
var ErrorColumns = []string{"Order #", "Account Name", "Row", "Issues"}

const (
	maxSheetNameLength = 31
	maxColumnWidth     = 50
)

// =============================================================================
// IMPORT WORKBOOK
// =============================================================================

// ImportColumns returns the output columns of the import sheets: the ledger
// columns followed by any other source columns in source order.
func ImportColumns(sourceColumns []string) []string {
	columns := append([]string(nil), types.LedgerColumns...)
	known := make(map[string]bool, len(columns))
	for _, col := range columns {
		known[col] = true
	}
	for _, col := range sourceColumns {
		if !known[col] {
			known[col] = true
			columns = append(columns, col)
		}
	}
	return columns
}

// WriteImport writes the pipeline result to an import workbook.
//
// PARAMETERS:
//   - path: The output .xlsx path.
//   - sourceColumns: The renamed headers of the order ledger; extra columns
//     are carried to the output after the ledger columns.
//   - result: The pipeline result.
func WriteImport(path string, sourceColumns []string, result *pipeline.Result) error {
	w, err := newWorkbook()
	if err != nil {
		return err
	}
	defer w.close()

	columns := ImportColumns(sourceColumns)

	if err := w.writeSheet(SheetSalesReceipts, columns, itemRows(columns, result.Main), moneyColumns(columns)); err != nil {
		return err
	}

	if result.HasCredits() {
		if err := w.writeSheet(SheetCreditMemos, columns, itemRows(columns, result.Credit), moneyColumns(columns)); err != nil {
			return err
		}
	}

	if len(result.Errors) > 0 {
		rows := make([][]interface{}, len(result.Errors))
		for i, verr := range result.Errors {
			rows[i] = []interface{}{verr.OrderID, verr.AccountName, verr.RowNumber, verr.IssueText()}
		}
		if err := w.writeSheet(SheetErrors, ErrorColumns, rows, nil); err != nil {
			return err
		}
	}

	return w.save(path)
}

func itemRows(columns []string, items []types.LineItem) [][]interface{} {
	rows := make([][]interface{}, len(items))
	for i, item := range items {
		values := make([]interface{}, len(columns))
		for j, col := range columns {
			switch col {
			case types.ColQuantity:
				values[j] = item.Quantity
			case types.ColUnitPrice:
				values[j] = item.UnitPrice.InexactFloat64()
			case types.ColTax:
				values[j] = item.Tax.InexactFloat64()
			case types.ColGrandTotal:
				values[j] = item.GrandTotal.InexactFloat64()
			default:
				values[j] = item.Fields[col]
			}
		}
		rows[i] = values
	}
	return rows
}

func moneyColumns(columns []string) []int {
	var out []int
	for i, col := range columns {
		switch col {
		case types.ColUnitPrice, types.ColTax, types.ColGrandTotal:
			out = append(out, i)
		}
	}
	return out
}

// =============================================================================
// TIE-OUT WORKBOOK
// =============================================================================

// WriteTieOut writes the source sheets and the comparisons to a workbook.
// Empty source sheets are skipped.
func WriteTieOut(path string, sources []*types.Table, comparisons []reconcile.Comparison) error {
	w, err := newWorkbook()
	if err != nil {
		return err
	}
	defer w.close()

	for _, table := range sources {
		if table.IsEmpty() {
			continue
		}
		rows := make([][]interface{}, len(table.Rows))
		for i, row := range table.Rows {
			values := make([]interface{}, len(table.Headers))
			for j, h := range table.Headers {
				values[j] = row[h]
			}
			rows[i] = values
		}
		if err := w.writeSheet(table.Name, table.Headers, rows, nil); err != nil {
			return err
		}
	}

	for _, c := range comparisons {
		if err := w.writeComparison(c); err != nil {
			return err
		}
	}

	return w.save(path)
}

func (w *workbook) writeComparison(c reconcile.Comparison) error {
	rows := make([][]interface{}, len(c.Rows))
	for i, row := range c.Rows {
		if row.Kind == reconcile.RowDiagnostic {
			rows[i] = []interface{}{row.Message, "", "", "", "", ""}
			continue
		}
		rows[i] = []interface{}{
			row.LeftKey,
			nullable(row.LeftAmount),
			row.RightKey,
			nullable(row.RightAmount),
			nullable(row.Difference),
			row.Notes,
		}
	}

	sheet, err := w.writeSheetNamed(c.Name, c.Headers(), rows, []int{1, 3, 4})
	if err != nil {
		return err
	}

	// Deferred differences become a formula over the two amount columns.
	for i, row := range c.Rows {
		if row.Kind == reconcile.RowDiagnostic || row.Difference.Valid {
			continue
		}
		r := i + 2
		cell, err := excelize.CoordinatesToCellName(5, r)
		if err != nil {
			return err
		}
		if err := w.file.SetCellFormula(sheet, cell, fmt.Sprintf("=N(B%d)-N(D%d)", r, r)); err != nil {
			return fmt.Errorf("failed to write formula in %s!%s: %w", sheet, cell, err)
		}
	}

	return nil
}

func nullable(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return ""
	}
	return d.Decimal.InexactFloat64()
}

// =============================================================================
// WORKBOOK HELPERS
// =============================================================================

type workbook struct {
	file        *excelize.File
	headerStyle int
	moneyStyle  int
	used        map[string]bool
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#CCCCCC"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// Built-in format 4 is "#,##0.00".
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}

	return &workbook{
		file:        f,
		headerStyle: headerStyle,
		moneyStyle:  moneyStyle,
		used:        make(map[string]bool),
	}, nil
}

func (w *workbook) writeSheet(name string, headers []string, rows [][]interface{}, money []int) error {
	_, err := w.writeSheetNamed(name, headers, rows, money)
	return err
}

// writeSheetNamed adds a sheet and returns the name it was given.
func (w *workbook) writeSheetNamed(name string, headers []string, rows [][]interface{}, money []int) (string, error) {
	sheet := w.sheetName(name)

	// The first sheet reuses the default sheet of a new file.
	if len(w.used) == 1 {
		if err := w.file.SetSheetName("Sheet1", sheet); err != nil {
			return "", fmt.Errorf("failed to name sheet %s: %w", sheet, err)
		}
	} else if _, err := w.file.NewSheet(sheet); err != nil {
		return "", fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := w.file.SetSheetRow(sheet, "A1", &header); err != nil {
		return "", fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}
	if len(headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		if err := w.file.SetCellStyle(sheet, "A1", last, w.headerStyle); err != nil {
			return "", err
		}
	}

	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := w.file.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return "", fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}

	if len(rows) > 0 {
		for _, col := range money {
			top, _ := excelize.CoordinatesToCellName(col+1, 2)
			bottom, _ := excelize.CoordinatesToCellName(col+1, len(rows)+1)
			if err := w.file.SetCellStyle(sheet, top, bottom, w.moneyStyle); err != nil {
				return "", err
			}
		}
	}

	if err := w.fitColumns(sheet, headers, rows); err != nil {
		return "", err
	}

	return sheet, nil
}

// fitColumns sizes each column to its longest value, capped at
// maxColumnWidth.
func (w *workbook) fitColumns(sheet string, headers []string, rows [][]interface{}) error {
	for i, h := range headers {
		width := utf8.RuneCountInString(h)
		for _, row := range rows {
			if i < len(row) {
				if n := utf8.RuneCountInString(fmt.Sprint(row[i])); n > width {
					width = n
				}
			}
		}
		width += 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}

		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.file.SetColWidth(sheet, col, col, float64(width)); err != nil {
			return err
		}
	}
	return nil
}

// sheetName makes a valid, unused sheet name and reserves it.
func (w *workbook) sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = "Sheet"
	}
	name = truncate(name, maxSheetNameLength)

	candidate := name
	for n := 2; w.used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(name, maxSheetNameLength-len(suffix)) + suffix
	}
	w.used[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (w *workbook) save(path string) error {
	w.file.SetActiveSheet(0)
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func (w *workbook) close() {
	_ = w.file.Close()
}
