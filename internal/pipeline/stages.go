package pipeline

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/normalize"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// =============================================================================
// STAGE 1: FEE INJECTION
// =============================================================================

// injectFees appends one fee row per distinct billable payment id that has a
// positive fee. The fee row copies the first row carrying the payment id.
//
// RETURNS:
//   - The number of fee rows added.
func (p *Pipeline) injectFees(gs *groupSet, fees types.FeeMap) int {
	if len(fees) == 0 {
		return 0
	}

	added := 0
	for _, g := range gs.groups {
		seen := make(map[string]bool)
		var feeRows []types.LineItem

		for _, row := range g.rows {
			id := row.PaymentID
			if id == "" || seen[id] || !strings.HasPrefix(id, p.Rules.BillablePaymentPrefix) {
				continue
			}
			seen[id] = true

			fee, ok := fees.Lookup(id)
			if !ok || !fee.IsPositive() {
				continue
			}

			feeRow := row.Clone()
			feeRow.SKU = p.Rules.FeeSKU
			feeRow.Quantity = 1
			feeRow.UnitPrice = fee.Neg()
			feeRow.Synthetic = types.SyntheticFee
			feeRow.RowNumber = 0
			feeRows = append(feeRows, feeRow)
		}

		for _, feeRow := range feeRows {
			g.append(feeRow)
			added++
		}
	}

	return added
}

// =============================================================================
// STAGE 2: REMOVAL FILTERING
// =============================================================================

// removalStats counts the work done by filterRemovals.
type removalStats struct {
	removed  int
	exempt   int
	remapped int
}

// filterRemovals drops excluded rows from non-exempt orders and remaps SKUs
// in exempt orders. The qty x price of the removed rows is subtracted once
// from the order's carried grand total.
func (p *Pipeline) filterRemovals(gs *groupSet) removalStats {
	var stats removalStats

	for _, g := range gs.groups {
		if p.isExempt(g) {
			stats.exempt++
			for i := range g.rows {
				if sku, ok := p.Rules.AdminFeeSKUFor(g.rows[i].ProductType); ok {
					g.rows[i].SKU = sku
					stats.remapped++
				}
			}
			continue
		}

		carried := g.total()
		removedTotal := decimal.Zero
		kept := g.rows[:0]

		for _, row := range g.rows {
			if p.shouldRemove(row) {
				removedTotal = removedTotal.Add(row.LineTotal())
				stats.removed++
				p.Logger.Debug("Removed row %d of order %s (SKU %q)", row.RowNumber, row.OrderID, row.SKU)
				continue
			}
			kept = append(kept, row)
		}

		if len(kept) == len(g.rows) {
			continue
		}
		g.rows = kept
		g.setTotal(carried.Sub(removedTotal))
	}

	gs.prune()
	return stats
}

// isExempt reports whether an order carries the admin fee SKU.
func (p *Pipeline) isExempt(g *group) bool {
	for _, row := range g.rows {
		if p.Rules.IsAdminFee(row.SKU) {
			return true
		}
	}
	return false
}

func (p *Pipeline) shouldRemove(row types.LineItem) bool {
	if row.UnitPrice.IsZero() {
		return true
	}
	return p.Rules.ShouldRemove(row.SKU, row.ProductType)
}

// =============================================================================
// STAGE 4: TAX ROW SYNTHESIS
// =============================================================================

// synthesizeTaxRows appends a tax row to every group whose last row has a
// configured tax label and a non-zero tax.
//
// RETURNS:
//   - The number of tax rows added.
func (p *Pipeline) synthesizeTaxRows(gs *groupSet) int {
	added := 0
	for _, g := range gs.groups {
		last := g.rows[len(g.rows)-1]
		if !p.Rules.IsTaxLabel(last.TaxReason) || last.Tax.IsZero() {
			continue
		}

		taxRow := last.Clone()
		taxRow.SKU = last.TaxReason
		taxRow.Quantity = 1
		taxRow.UnitPrice = last.Tax
		taxRow.Synthetic = types.SyntheticTax
		taxRow.RowNumber = 0
		g.append(taxRow)
		added++
	}
	return added
}

// =============================================================================
// STAGES 6 AND 7: CREDIT SPLIT
// =============================================================================

// isCredit reports whether a group is a credit memo: its order id carries
// the credit marker or its grand total is negative.
func (p *Pipeline) isCredit(g *group) bool {
	if p.Rules.CreditMarker != "" && strings.Contains(strings.ToUpper(g.key), strings.ToUpper(p.Rules.CreditMarker)) {
		return true
	}
	return g.total().IsNegative()
}

// absoluteCredits forces quantity and unit price positive.
func absoluteCredits(gs *groupSet) {
	for _, g := range gs.groups {
		for i := range g.rows {
			if g.rows[i].Quantity < 0 {
				g.rows[i].Quantity = -g.rows[i].Quantity
			}
			g.rows[i].UnitPrice = g.rows[i].UnitPrice.Abs()
		}
	}
}

// =============================================================================
// STAGE 8: GRAND TOTAL NORMALIZATION
// =============================================================================

// recomputeTotals writes round(sum(qty x price), 2) to each group's last row
// and zero to every other row.
func recomputeTotals(gs *groupSet) {
	for _, g := range gs.groups {
		g.setTotal(normalize.Money(g.lineTotal()))
	}
}

// =============================================================================
// STAGE 9: FINAL TYPING
// =============================================================================

// finalizeRows rounds tax and grand total to cents and writes every
// interpreted field back to Fields in canonical text. Unit prices keep their
// precision so each grand total still equals its rounded line sum.
func finalizeRows(rows []types.LineItem) {
	for i := range rows {
		row := &rows[i]
		row.Tax = normalize.Money(row.Tax)
		row.GrandTotal = normalize.Money(row.GrandTotal)
		syncFields(row)
	}
}

// syncFields copies the typed values of a row into its Fields map.
func syncFields(row *types.LineItem) {
	if row.Fields == nil {
		row.Fields = make(map[string]string, len(types.LedgerColumns))
	}

	f := row.Fields
	f[types.ColAccountName] = row.AccountName
	f[types.ColDatePaid] = row.DatePaid
	f[types.ColOrderID] = row.OrderID
	f[types.ColClass] = row.Class
	f[types.ColBillingLine1] = row.Billing.Line1
	f[types.ColBillingLine2] = row.Billing.Line2
	f[types.ColBillingCity] = row.Billing.City
	f[types.ColBillingState] = row.Billing.State
	f[types.ColBillingZip] = row.Billing.Zip
	f[types.ColShippingLine1] = row.Shipping.Line1
	f[types.ColShippingLine2] = row.Shipping.Line2
	f[types.ColShippingCity] = row.Shipping.City
	f[types.ColShippingState] = row.Shipping.State
	f[types.ColShippingCountry] = row.ShippingCountry
	f[types.ColShippingZip] = row.Shipping.Zip
	f[types.ColTaxReason] = row.TaxReason
	f[types.ColPaymentID] = row.PaymentID
	f[types.ColSKU] = row.SKU
	f[types.ColProductType] = row.ProductType
	f[types.ColQuantity] = strconv.Itoa(row.Quantity)
	f[types.ColUnitPrice] = row.UnitPrice.String()
	f[types.ColTax] = row.Tax.StringFixed(2)
	f[types.ColGrandTotal] = row.GrandTotal.StringFixed(2)
}
