package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/normalize"
)

// =============================================================================
// RULE SET STRUCTURE
// =============================================================================

// RuleSet holds every business rule the pipeline applies. A RuleSet is a
// value: each run works on its own copy (see Clone), so concurrent runs may
// use different rules.
type RuleSet struct {
	// =========================================================================
	// FEES
	// =========================================================================

	// FeeSKU is the SKU given to synthesized processor fee rows.
	FeeSKU string `yaml:"fee_sku"`

	// BillablePaymentPrefix marks payment ids that can carry a processor fee.
	BillablePaymentPrefix string `yaml:"billable_payment_prefix"`

	// =========================================================================
	// REMOVAL
	// =========================================================================

	// AdminFeeSKU exempts an order from removal. Compared trimmed and
	// upper-cased.
	AdminFeeSKU string `yaml:"admin_fee_sku"`

	// AdminFeeMappings remap the SKU of rows in exempt orders whose product
	// type contains Match. The first match wins.
	AdminFeeMappings []SKUMapping `yaml:"admin_fee_mappings"`

	// RemovalSKUs are substrings; a row whose SKU contains one is removed.
	RemovalSKUs []string `yaml:"removal_skus"`

	// CarveOuts are substrings that keep a row even when a removal SKU
	// matches.
	CarveOuts []string `yaml:"carve_outs"`

	// RemovalProductTypes are substrings matched against the product type.
	RemovalProductTypes []string `yaml:"removal_product_types"`

	// =========================================================================
	// FIELD TRANSFORMS
	// =========================================================================

	// TaxStates maps domestic shipping states to their tax labels.
	TaxStates []TaxState `yaml:"tax_states"`

	// DomesticCountries are compared case-insensitively with the shipping
	// country.
	DomesticCountries []string `yaml:"domestic_countries"`

	// DefaultClass is forced on every row.
	DefaultClass string `yaml:"default_class"`

	// SKUReplacements are applied in order; the first match wins.
	SKUReplacements []SKUMapping `yaml:"sku_replacements"`

	// =========================================================================
	// VALIDATION AND CREDIT
	// =========================================================================

	AccountNameLimit int `yaml:"account_name_limit"`
	AddressLimit     int `yaml:"address_limit"`

	// CreditMarker in a normalized order id marks a credit order.
	CreditMarker string `yaml:"credit_marker"`
}

// SKUMapping replaces a SKU when Match is found.
type SKUMapping struct {
	Match string `yaml:"match"`
	SKU   string `yaml:"sku"`
}

// TaxState is one taxable state and its label.
type TaxState struct {
	State string `yaml:"state"`
	Label string `yaml:"label"`
}

// DefaultRuleSet returns the built-in rules.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		FeeSKU:                "WooCommerce Fees",
		BillablePaymentPrefix: "pi_",

		AdminFeeSKU: "ADMINFEE",
		AdminFeeMappings: []SKUMapping{
			{Match: "QBES", SKU: "ENTERPRISE"},
			{Match: "Hosting", SKU: "QBH-DS"},
		},
		RemovalSKUs: []string{
			"QBO", "FL-CX", "FCX", "FSI-CS", "QBH", "SWKACMRECCO", "INT-MS",
			"42643", "498415", "498422", "498014", "498414", "498108", "498080",
		},
		CarveOuts:           []string{"QBOSP"},
		RemovalProductTypes: []string{"QBES GNS", "QBES RENEWAL"},

		TaxStates: []TaxState{
			{State: "Texas", Label: "Texas"},
			{State: "Colorado", Label: "CO Sales Tax"},
			{State: "Georgia", Label: "GA Sales Tax"},
			{State: "Nevada", Label: "NV Sales Tax"},
			{State: "Virginia", Label: "VA Sales Tax"},
		},
		DomesticCountries: []string{"united states", "us", "usa"},
		DefaultClass:      "02 - Sales",
		SKUReplacements: []SKUMapping{
			{Match: "REC", SKU: "FL-SVC-DEP"},
		},

		AccountNameLimit: 41,
		AddressLimit:     41,
		CreditMarker:     "RMA",
	}
}

// LoadRuleSet loads a rule set from a YAML file. Keys missing from the file
// keep their default values. An empty path returns the defaults.
func LoadRuleSet(path string) (RuleSet, error) {
	rules := DefaultRuleSet()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return RuleSet{}, err
	}

	return rules, nil
}

// Validate checks that the identifiers the pipeline depends on are present.
func (r RuleSet) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"fee_sku", r.FeeSKU},
		{"admin_fee_sku", r.AdminFeeSKU},
		{"credit_marker", r.CreditMarker},
		{"default_class", r.DefaultClass},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, field.name)
		}
	}

	if r.AccountNameLimit <= 0 || r.AddressLimit <= 0 {
		return fmt.Errorf("%w: character limits must be positive", ErrInvalidConfig)
	}

	for _, ts := range r.TaxStates {
		if ts.State == "" || ts.Label == "" {
			return fmt.Errorf("%w: tax state entries need a state and a label", ErrInvalidConfig)
		}
	}
	for _, m := range append(append([]SKUMapping{}, r.AdminFeeMappings...), r.SKUReplacements...) {
		if m.Match == "" || m.SKU == "" {
			return fmt.Errorf("%w: sku mappings need a match and a sku", ErrInvalidConfig)
		}
	}

	return nil
}

// Clone returns a copy that shares no slices with r.
func (r RuleSet) Clone() RuleSet {
	out := r
	out.AdminFeeMappings = append([]SKUMapping(nil), r.AdminFeeMappings...)
	out.RemovalSKUs = append([]string(nil), r.RemovalSKUs...)
	out.CarveOuts = append([]string(nil), r.CarveOuts...)
	out.RemovalProductTypes = append([]string(nil), r.RemovalProductTypes...)
	out.TaxStates = append([]TaxState(nil), r.TaxStates...)
	out.DomesticCountries = append([]string(nil), r.DomesticCountries...)
	out.SKUReplacements = append([]SKUMapping(nil), r.SKUReplacements...)
	return out
}

// =============================================================================
// RULE LOOKUPS
// =============================================================================

// IsDomestic reports whether a shipping country is one of the domestic
// countries.
func (r RuleSet) IsDomestic(country string) bool {
	for _, c := range r.DomesticCountries {
		if normalize.EqualFold(country, c) {
			return true
		}
	}
	return false
}

// TaxLabel returns the tax label for a state.
func (r RuleSet) TaxLabel(state string) (string, bool) {
	state = strings.TrimSpace(state)
	for _, ts := range r.TaxStates {
		if ts.State == state {
			return ts.Label, true
		}
	}
	return "", false
}

// IsTaxLabel reports whether a tax reason is one of the configured labels.
func (r RuleSet) IsTaxLabel(reason string) bool {
	for _, ts := range r.TaxStates {
		if ts.Label == reason {
			return true
		}
	}
	return false
}

// IsAdminFee reports whether a SKU is the admin fee SKU.
func (r RuleSet) IsAdminFee(sku string) bool {
	return strings.ToUpper(strings.TrimSpace(sku)) == strings.ToUpper(strings.TrimSpace(r.AdminFeeSKU))
}

// AdminFeeSKUFor returns the replacement SKU for a product type in an exempt
// order.
func (r RuleSet) AdminFeeSKUFor(productType string) (string, bool) {
	return firstMapping(r.AdminFeeMappings, productType)
}

// ReplaceSKU applies the SKU replacements.
func (r RuleSet) ReplaceSKU(sku string) string {
	if replacement, ok := firstMapping(r.SKUReplacements, sku); ok {
		return replacement
	}
	return sku
}

// ShouldRemove reports whether a row of a non-exempt order is removed.
// A zero unit price is checked by the caller.
func (r RuleSet) ShouldRemove(sku, productType string) bool {
	if containsAny(productType, r.RemovalProductTypes) {
		return true
	}
	if containsAny(sku, r.RemovalSKUs) {
		return !containsAny(sku, r.CarveOuts)
	}
	return false
}

func firstMapping(mappings []SKUMapping, value string) (string, bool) {
	for _, m := range mappings {
		if strings.Contains(value, m.Match) {
			return m.SKU, true
		}
	}
	return "", false
}

func containsAny(value string, tokens []string) bool {
	for _, token := range tokens {
		if token != "" && strings.Contains(value, token) {
			return true
		}
	}
	return false
}
