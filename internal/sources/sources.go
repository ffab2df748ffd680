// Package sources loads ledger exports from disk and maps the primary order
// ledger onto line items.
package sources

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/csvparser"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/logging"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/normalize"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/xlsxparser"
)

// ErrMissingColumn is returned when the order ledger lacks a column the
// pipeline depends on.
var ErrMissingColumn = errors.New("missing required column")

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// RequiredColumns are the ledger columns the pipeline reads. The remaining
// expected columns are optional and default to blank.
var RequiredColumns = []string{
	types.ColAccountName,
	types.ColOrderID,
	types.ColBillingLine1,
	types.ColBillingCity,
	types.ColBillingState,
	types.ColBillingZip,
	types.ColShippingLine1,
	types.ColShippingCity,
	types.ColShippingState,
	types.ColShippingCountry,
	types.ColShippingZip,
	types.ColTaxReason,
	types.ColPaymentID,
	types.ColSKU,
	types.ColQuantity,
	types.ColUnitPrice,
	types.ColTax,
	types.ColGrandTotal,
	types.ColProductType,
}

// Ledger is the primary order ledger after renaming.
type Ledger struct {
	// Columns are the renamed headers in source order.
	Columns []string
	Items   []types.LineItem
}

// LoadTable reads a CSV or XLSX file. Workbooks are unioned across sheets.
func LoadTable(path string, settings config.CSVSettings) (*types.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return csvparser.Parse(path, settings)
	case ".xlsx", ".xlsm":
		return xlsxparser.Parse(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// LoadSheets reads a file as a list of sheets. A CSV file is a single sheet.
func LoadSheets(path string, settings config.CSVSettings) ([]*types.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return xlsxparser.ReadWorkbook(path)
	default:
		table, err := LoadTable(path, settings)
		if err != nil {
			return nil, err
		}
		return []*types.Table{table}, nil
	}
}

// Rename returns a copy of the table with headers renamed through the column
// mapping. Headers that already carry an expected name pass through.
func Rename(table *types.Table, columns map[string]string) *types.Table {
	if table == nil {
		return nil
	}

	out := &types.Table{Name: table.Name, SourceFile: table.SourceFile}
	renamed := make(map[string]string, len(table.Headers))
	for _, h := range table.Headers {
		to := h
		if mapped, ok := columns[h]; ok {
			to = mapped
		}
		renamed[h] = to
		out.Headers = append(out.Headers, to)
	}

	out.Rows = make([]map[string]string, len(table.Rows))
	for i, row := range table.Rows {
		m := make(map[string]string, len(row))
		for k, v := range row {
			if to, ok := renamed[k]; ok {
				m[to] = v
			} else {
				m[k] = v
			}
		}
		out.Rows[i] = m
	}

	return out
}

// LoadLineItems renames the table and maps each row onto a LineItem.
//
// A missing required column is a data-shape error and is returned wrapped in
// ErrMissingColumn. Rows without an order id are kept and logged.
func LoadLineItems(table *types.Table, columns map[string]string, logger logging.Logger) (*Ledger, error) {
	logger = logging.OrNop(logger)
	if table == nil {
		return nil, fmt.Errorf("%w: no order data", ErrMissingColumn)
	}

	renamed := Rename(table, columns)

	var missing []string
	for _, col := range RequiredColumns {
		if !renamed.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	ledger := &Ledger{
		Columns: renamed.Headers,
		Items:   make([]types.LineItem, 0, len(renamed.Rows)),
	}

	for i, row := range renamed.Rows {
		item := lineItemFromRow(row)
		item.RowNumber = i + 1
		if item.Key == "" {
			logger.Warn("row %d of %s has no order id", item.RowNumber, table.Name)
		}
		ledger.Items = append(ledger.Items, item)
	}

	return ledger, nil
}

func lineItemFromRow(row map[string]string) types.LineItem {
	fields := make(map[string]string, len(row))
	for k, v := range row {
		fields[k] = v
	}

	orderID := strings.TrimSpace(row[types.ColOrderID])

	return types.LineItem{
		OrderID:     orderID,
		Key:         normalize.NormalizeOrderID(orderID),
		AccountName: row[types.ColAccountName],
		DatePaid:    row[types.ColDatePaid],
		SKU:         row[types.ColSKU],
		ProductType: row[types.ColProductType],
		PaymentID:   strings.TrimSpace(row[types.ColPaymentID]),
		Class:       row[types.ColClass],
		TaxReason:   row[types.ColTaxReason],
		Quantity:    normalize.CleanQuantity(row[types.ColQuantity]),
		UnitPrice:   normalize.CleanAmount(row[types.ColUnitPrice]),
		Tax:         normalize.CleanAmount(row[types.ColTax]),
		GrandTotal:  normalize.CleanAmount(row[types.ColGrandTotal]),
		Billing: types.Address{
			Line1: row[types.ColBillingLine1],
			Line2: row[types.ColBillingLine2],
			City:  row[types.ColBillingCity],
			State: row[types.ColBillingState],
			Zip:   row[types.ColBillingZip],
		},
		Shipping: types.Address{
			Line1: row[types.ColShippingLine1],
			Line2: row[types.ColShippingLine2],
			City:  row[types.ColShippingCity],
			State: row[types.ColShippingState],
			Zip:   row[types.ColShippingZip],
		},
		ShippingCountry: row[types.ColShippingCountry],
		Fields:          fields,
	}
}

// BillablePaymentIDs returns the distinct payment ids carrying the billable
// prefix, in first-seen order.
func BillablePaymentIDs(items []types.LineItem, prefix string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, item := range items {
		id := item.PaymentID
		if id == "" || !strings.HasPrefix(id, prefix) || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// ItemsTable renders line items as a table with the given columns. Columns
// missing from an item's Fields are blank. Nil columns mean LedgerColumns.
func ItemsTable(name string, columns []string, items []types.LineItem) *types.Table {
	if columns == nil {
		columns = types.LedgerColumns
	}

	table := &types.Table{
		Name:    name,
		Headers: append([]string(nil), columns...),
		Rows:    make([]map[string]string, len(items)),
	}
	for i, item := range items {
		row := make(map[string]string, len(columns))
		for _, col := range columns {
			row[col] = item.Fields[col]
		}
		table.Rows[i] = row
	}
	return table
}
