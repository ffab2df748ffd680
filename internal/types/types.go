// =============================================================================
// Sales Receipt Reconciler - Shared Types
// =============================================================================
//
// This package contains the types shared by the loaders, the rule pipeline,
// the fee resolver and the report writer. Keeping them here avoids import
// cycles between those packages.
//
// LIFECYCLE:
//   LineItems are loaded, normalized, mutated in place by the rule pipeline
//   and finally partitioned. A FeeMap is written once per run and is read-only
//   after that.
//
// =============================================================================

package types

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER COLUMNS
// =============================================================================

// Expected column names of the primary order ledger. Source exports that use
// other names are renamed to these by the configured column mapping.
const (
	ColAccountName     = "Account Name"
	ColDatePaid        = "Date Paid"
	ColOrderID         = "Webstore Order #"
	ColClass           = "Class"
	ColBillingLine1    = "Billing Address Line 1"
	ColBillingLine2    = "Billing Address Line 2"
	ColBillingCity     = "Billing City"
	ColBillingState    = "Billing State/Province (text only)"
	ColBillingZip      = "Billing Zip/Postal Code"
	ColShippingLine1   = "Shipping Address Line 1"
	ColShippingLine2   = "Shipping Address Line 2"
	ColShippingCity    = "Shipping City"
	ColShippingState   = "Shipping State/Province (text only)"
	ColShippingCountry = "Shipping Country"
	ColShippingZip     = "Shipping Zip/Postal Code"
	ColTaxReason       = "Sales Tax (Reason)"
	ColPaymentID       = "Payment ID"
	ColSKU             = "SKU"
	ColQuantity        = "Quantity"
	ColUnitPrice       = "Unit Price"
	ColTax             = "Tax"
	ColGrandTotal      = "Order Amount (Grand Total)"
	ColProductType     = "Product Type"
)

// LedgerColumns lists the expected columns in output order.
var LedgerColumns = []string{
	ColAccountName,
	ColDatePaid,
	ColOrderID,
	ColClass,
	ColBillingLine1,
	ColBillingLine2,
	ColBillingCity,
	ColBillingState,
	ColBillingZip,
	ColShippingLine1,
	ColShippingLine2,
	ColShippingCity,
	ColShippingState,
	ColShippingCountry,
	ColShippingZip,
	ColTaxReason,
	ColPaymentID,
	ColSKU,
	ColQuantity,
	ColUnitPrice,
	ColTax,
	ColGrandTotal,
	ColProductType,
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// Synthetic row markers.
const (
	SyntheticFee = "fee"
	SyntheticTax = "tax"
)

// Address is one billing or shipping address block.
type Address struct {
	Line1 string
	Line2 string
	City  string
	State string
	Zip   string
}

// LineItem is one row of the primary order ledger.
// Many LineItems share one order id; together they form an order group.
type LineItem struct {
	// OrderID is the order identifier as it appeared in the source.
	// It is kept for display.
	OrderID string

	// Key is the normalized order identifier used for grouping and matching.
	Key string

	AccountName string
	DatePaid    string
	SKU         string
	ProductType string
	PaymentID   string
	Class       string

	// TaxReason is the "Sales Tax (Reason)" column; the pipeline rewrites it
	// to a tax label for taxable states.
	TaxReason string

	Quantity  int
	UnitPrice decimal.Decimal
	Tax       decimal.Decimal

	// GrandTotal is order level. Only the last row of a group carries it.
	GrandTotal decimal.Decimal

	Billing         Address
	Shipping        Address
	ShippingCountry string

	// Synthetic is empty for source rows, SyntheticFee or SyntheticTax for
	// rows added by the pipeline.
	Synthetic string

	// RowNumber is the 1-indexed data row in the source file, 0 for
	// synthesized rows.
	RowNumber int

	// Fields holds every source column by its expected name so columns the
	// pipeline does not interpret still reach the output.
	Fields map[string]string
}

// Clone returns a deep copy of the line item.
func (li LineItem) Clone() LineItem {
	out := li
	if li.Fields != nil {
		out.Fields = make(map[string]string, len(li.Fields))
		for k, v := range li.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// LineTotal returns quantity x unit price.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// =============================================================================
// FEES
// =============================================================================

// FeeRecord is one record of the payment processor's fee ledger.
type FeeRecord struct {
	PaymentID string
	Fee       decimal.Decimal
	Currency  string
}

// FeeMap maps payment identifiers to processor fees.
// It is built once per run and must not be modified afterwards.
type FeeMap map[string]decimal.Decimal

// Lookup returns the fee for a payment id, or zero when it is absent.
func (m FeeMap) Lookup(paymentID string) (decimal.Decimal, bool) {
	fee, ok := m[paymentID]
	return fee, ok
}

// =============================================================================
// TABLES
// =============================================================================

// Table is a loosely typed tabular source: a CSV file, a workbook sheet or
// the union of a workbook's sheets. Values are kept as text.
type Table struct {
	// Name is the sheet name or the file's base name.
	Name string

	// Headers are the column names in source order.
	Headers []string

	// Rows maps header -> value for each non-empty data row.
	Rows []map[string]string

	// SourceFile is the path the table was read from, if any.
	SourceFile string
}

// IsEmpty reports whether the table is nil or has no data rows.
func (t *Table) IsEmpty() bool {
	return t == nil || len(t.Rows) == 0
}

// HasColumn reports whether the table has the exact header.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}
