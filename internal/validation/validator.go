// =============================================================================
// Sales Receipt Reconciler - Validation Engine
// =============================================================================
//
// This module checks the rows that survive the rule pipeline against the
// accounting system's import limits:
//   - Account name length
//   - Address field lengths
//   - Required address fields for domestic shipments
//
// ERROR HANDLING:
//   Validation never removes rows and never fails the run. Findings are
//   collected into one ValidationError per offending row and written to the
//   Errors sheet for review.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// USAddressField labels the issue raised for incomplete domestic addresses.
const USAddressField = "US Address Fields"

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// Issue is a single finding on a row.
type Issue struct {
	Field   string
	Message string
}

// String renders the issue as "Field: message".
func (i Issue) String() string {
	return i.Field + ": " + i.Message
}

// ValidationError collects every issue found on one row.
type ValidationError struct {
	OrderID     string
	AccountName string

	// RowNumber is the source data row, 0 for synthesized rows.
	RowNumber int

	Issues []Issue
}

// IssueText joins the issues with "; ".
func (e ValidationError) IssueText() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return strings.Join(parts, "; ")
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("order %s (%s): %s", e.OrderID, e.AccountName, e.IssueText())
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks line items against character limits and address rules.
type Validator struct {
	AccountNameLimit int
	AddressLimit     int

	// IsDomestic decides whether the required address check applies.
	IsDomestic func(country string) bool
}

// NewValidator builds a validator from a rule set.
func NewValidator(rules config.RuleSet) *Validator {
	return &Validator{
		AccountNameLimit: rules.AccountNameLimit,
		AddressLimit:     rules.AddressLimit,
		IsDomestic:       rules.IsDomestic,
	}
}

// ValidateAll validates every item and returns one error per offending row,
// in row order. The result is nil when every row passes.
func (v *Validator) ValidateAll(items []types.LineItem) []ValidationError {
	var errs []ValidationError
	for _, item := range items {
		if verr := v.ValidateItem(item); verr != nil {
			errs = append(errs, *verr)
		}
	}
	return errs
}

// ValidateItem returns the issues on one row, or nil.
func (v *Validator) ValidateItem(item types.LineItem) *ValidationError {
	var issues []Issue

	if n := utf8.RuneCountInString(item.AccountName); v.AccountNameLimit > 0 && n > v.AccountNameLimit {
		issues = append(issues, Issue{
			Field:   types.ColAccountName,
			Message: fmt.Sprintf("Exceeded character limit (%d chars)", n),
		})
	}

	for _, field := range addressFields(item) {
		if n := utf8.RuneCountInString(field.value); v.AddressLimit > 0 && n > v.AddressLimit {
			issues = append(issues, Issue{
				Field:   field.name,
				Message: fmt.Sprintf("Exceeded character limit (%d chars)", n),
			})
		}
	}

	if v.IsDomestic != nil && v.IsDomestic(item.ShippingCountry) && missingRequired(item) {
		issues = append(issues, Issue{
			Field:   USAddressField,
			Message: "Missing required field(s) for US address",
		})
	}

	if len(issues) == 0 {
		return nil
	}

	return &ValidationError{
		OrderID:     item.OrderID,
		AccountName: item.AccountName,
		RowNumber:   item.RowNumber,
		Issues:      issues,
	}
}

type namedValue struct {
	name  string
	value string
}

func addressFields(item types.LineItem) []namedValue {
	return []namedValue{
		{types.ColBillingLine1, item.Billing.Line1},
		{types.ColBillingLine2, item.Billing.Line2},
		{types.ColBillingCity, item.Billing.City},
		{types.ColBillingState, item.Billing.State},
		{types.ColBillingZip, item.Billing.Zip},
		{types.ColShippingLine1, item.Shipping.Line1},
		{types.ColShippingLine2, item.Shipping.Line2},
		{types.ColShippingCity, item.Shipping.City},
		{types.ColShippingState, item.Shipping.State},
		{types.ColShippingZip, item.Shipping.Zip},
	}
}

// missingRequired reports whether any of the eight required address fields
// is blank.
func missingRequired(item types.LineItem) bool {
	required := []string{
		item.Billing.Line1, item.Billing.City, item.Billing.State, item.Billing.Zip,
		item.Shipping.Line1, item.Shipping.City, item.Shipping.State, item.Shipping.Zip,
	}
	for _, value := range required {
		if strings.TrimSpace(value) == "" {
			return true
		}
	}
	return false
}

// =============================================================================
// REPORTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errs []ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d error(s):\n\n", len(errs)))
	for i, err := range errs {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}
