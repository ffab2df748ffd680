// =============================================================================
// Sales Receipt Reconciler - XLSX Workbook Parser
// =============================================================================
//
// This module reads XLSX exports into types.Table values. Each sheet becomes
// one table; Parse unions every sheet of a workbook into a single table.
//
// WORKBOOK CONVENTIONS:
//   - The first row of a sheet is its header row.
//   - A sheet named "Change Log" is documentation and is never read.
//   - When a workbook has several sheets, every row of the union carries a
//     "source_sheet" column naming the sheet it came from.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// SourceSheetColumn names the column added to unioned multi-sheet tables.
const SourceSheetColumn = "source_sheet"

const changeLogSheet = "change log"

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads every sheet of a workbook and returns their union.
//
// PARAMETERS:
//   - path: The path to the XLSX file.
//
// RETURNS:
//   - A table holding the union of headers (first-seen order) and the rows
//     of every sheet in workbook order.
//   - An error if the file cannot be opened or has no readable sheets.
func Parse(path string) (*types.Table, error) {
	sheets, err := ReadWorkbook(path)
	if err != nil {
		return nil, err
	}

	table := Union(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), sheets)
	table.SourceFile = path
	return table, nil
}

// ReadWorkbook reads each sheet of a workbook as its own table.
func ReadWorkbook(path string) ([]*types.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets, err := ReadSheets(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	for _, sheet := range sheets {
		sheet.SourceFile = path
	}

	return sheets, nil
}

// ReadSheets reads every sheet of an open workbook except "Change Log".
// Sheets without a header row are skipped.
func ReadSheets(f *excelize.File) ([]*types.Table, error) {
	var tables []*types.Table

	for _, name := range f.GetSheetList() {
		if strings.EqualFold(strings.TrimSpace(name), changeLogSheet) {
			continue
		}

		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read rows of sheet %q: %w", name, err)
		}
		if len(rows) == 0 {
			continue
		}

		headers := cleanHeaders(rows[0])
		tables = append(tables, &types.Table{
			Name:    name,
			Headers: headers,
			Rows:    extractDataRows(rows[1:], headers),
		})
	}

	if len(tables) == 0 {
		return nil, fmt.Errorf("no valid sheets found in workbook")
	}

	return tables, nil
}

// Union merges sheets into one table. With more than one sheet, each row is
// tagged with SourceSheetColumn.
func Union(name string, sheets []*types.Table) *types.Table {
	out := &types.Table{Name: name}
	if len(sheets) == 1 {
		out.Headers = append([]string(nil), sheets[0].Headers...)
		out.Rows = sheets[0].Rows
		return out
	}

	seen := make(map[string]bool)
	addHeader := func(h string) {
		if !seen[h] {
			seen[h] = true
			out.Headers = append(out.Headers, h)
		}
	}

	for _, sheet := range sheets {
		for _, h := range sheet.Headers {
			addHeader(h)
		}
	}
	addHeader(SourceSheetColumn)

	for _, sheet := range sheets {
		for _, row := range sheet.Rows {
			merged := make(map[string]string, len(out.Headers))
			for _, h := range out.Headers {
				merged[h] = row[h]
			}
			merged[SourceSheetColumn] = sheet.Name
			out.Rows = append(out.Rows, merged)
		}
	}

	return out
}

// FindSheet returns the first sheet whose name contains any of the
// case-insensitive hints.
func FindSheet(sheets []*types.Table, hints ...string) *types.Table {
	for _, sheet := range sheets {
		lower := strings.ToLower(sheet.Name)
		for _, hint := range hints {
			if strings.Contains(lower, strings.ToLower(hint)) {
				return sheet
			}
		}
	}
	return nil
}

// =============================================================================
// ROW HELPERS
// =============================================================================

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// extractDataRows converts rows to maps. GetRows trims trailing empty cells,
// so short rows are padded.
func extractDataRows(rows [][]string, headers []string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		if isRowEmpty(row) {
			continue
		}
		m := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				m[h] = strings.TrimSpace(row[i])
			} else {
				m[h] = ""
			}
		}
		out = append(out, m)
	}
	return out
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
