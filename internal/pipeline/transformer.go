// =============================================================================
// Sales Receipt Reconciler - Field Transformer
// =============================================================================
//
// This module applies the per-row field rewrites that prepare a line item for
// the accounting import:
//   - State backfill for foreign addresses
//   - Tax reason labels for taxable domestic states
//   - The fixed sales class
//   - SKU substring replacements
//
// Every rewrite is driven by the rule set. Nothing here adds or removes rows.
//
// =============================================================================

package pipeline

import (
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/normalize"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer rewrites line item fields according to a rule set.
type Transformer struct {
	rules config.RuleSet
}

// NewTransformer creates a Transformer for the given rules.
func NewTransformer(rules config.RuleSet) *Transformer {
	return &Transformer{rules: rules}
}

// TransformLineItem applies every field rewrite to one row.
//
// PARAMETERS:
//   - item: The row to rewrite in place.
//
// ORDER:
//   1. Backfill empty states of foreign addresses with the shipping country
//   2. Relabel the tax reason of taxable domestic rows
//   3. Force the default class
//   4. Replace the SKU (first matching replacement wins)
func (t *Transformer) TransformLineItem(item *types.LineItem) {
	if t.rules.IsDomestic(item.ShippingCountry) {
		if label, ok := t.rules.TaxLabel(item.Shipping.State); ok {
			item.TaxReason = label
		}
	} else {
		backfillState(&item.Billing, item.ShippingCountry)
		backfillState(&item.Shipping, item.ShippingCountry)
	}

	item.Class = t.rules.DefaultClass
	item.SKU = t.rules.ReplaceSKU(item.SKU)
}

// TransformAll applies TransformLineItem to every row of every group.
func (t *Transformer) TransformAll(gs *groupSet) {
	for _, g := range gs.groups {
		for i := range g.rows {
			t.TransformLineItem(&g.rows[i])
		}
	}
}

// backfillState fills an empty state with the country.
func backfillState(addr *types.Address, country string) {
	if normalize.IsBlank(addr.State) {
		addr.State = country
	}
}
