package fees

import (
	"context"
	"fmt"
	"strings"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/normalize"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/sources"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// TableSource serves a fee export file in pages.
type TableSource struct {
	records []types.FeeRecord
}

// NewTableSource reads fee records from a loaded export.
func NewTableSource(table *types.Table, settings config.FeeFileSettings) (*TableSource, error) {
	if table == nil {
		return nil, fmt.Errorf("fee file: no data")
	}

	var missing []string
	for _, col := range []string{settings.PaymentIDColumn, settings.FeeColumn} {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("fee file %s: %w: %s", table.Name, sources.ErrMissingColumn, strings.Join(missing, ", "))
	}

	records := make([]types.FeeRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		fee := normalize.CleanAmount(row[settings.FeeColumn])
		if settings.AmountsInCents {
			fee = fee.Div(hundred)
		}
		currency := strings.ToUpper(strings.TrimSpace(row[settings.CurrencyColumn]))
		if currency == "" {
			currency = "USD"
		}
		records = append(records, types.FeeRecord{
			PaymentID: strings.TrimSpace(row[settings.PaymentIDColumn]),
			Fee:       normalize.Money(fee),
			Currency:  currency,
		})
	}

	return &TableSource{records: records}, nil
}

// LoadTableSource reads a fee export from disk.
func LoadTableSource(settings config.FeeFileSettings, csv config.CSVSettings) (*TableSource, error) {
	if strings.TrimSpace(settings.Path) == "" {
		return nil, fmt.Errorf("fee file: %w: fees.file.path", config.ErrInvalidConfig)
	}
	table, err := sources.LoadTable(settings.Path, csv)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee file: %w", err)
	}
	return NewTableSource(table, settings)
}

// Len returns the number of records in the export.
func (s *TableSource) Len() int {
	return len(s.records)
}

// FetchPage implements PageSource.
func (s *TableSource) FetchPage(ctx context.Context, page, pageSize int) ([]types.FeeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("fee file: invalid page %d of size %d", page, pageSize)
	}

	start := (page - 1) * pageSize
	if start >= len(s.records) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(s.records) {
		end = len(s.records)
	}
	return s.records[start:end], nil
}
