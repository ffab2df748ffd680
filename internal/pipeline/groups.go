package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// =============================================================================
// ORDER GROUPS
// =============================================================================

// group is every row sharing one normalized order id, in input order.
// The last row carries the order's grand total; every other row carries zero.
type group struct {
	key  string
	rows []types.LineItem
}

// total returns the grand total carried by the last row.
func (g *group) total() decimal.Decimal {
	if len(g.rows) == 0 {
		return decimal.Zero
	}
	return g.rows[len(g.rows)-1].GrandTotal
}

// setTotal writes the grand total to the last row and zero to the others.
func (g *group) setTotal(total decimal.Decimal) {
	for i := range g.rows {
		g.rows[i].GrandTotal = decimal.Zero
	}
	if len(g.rows) > 0 {
		g.rows[len(g.rows)-1].GrandTotal = total
	}
}

// append adds a row to the end of the group and moves the carried total
// onto it.
func (g *group) append(item types.LineItem) {
	carried := g.total()
	item.GrandTotal = decimal.Zero
	g.rows = append(g.rows, item)
	g.setTotal(carried)
}

// lineTotal returns the sum of qty x price over the group's rows.
func (g *group) lineTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, row := range g.rows {
		sum = sum.Add(row.LineTotal())
	}
	return sum
}

// groupSet holds the groups in order of first appearance. Rows of one order
// that are not adjacent in the input still land in the same group.
type groupSet struct {
	groups []*group
	index  map[string]int
}

// newGroupSet groups items by their normalized order id.
//
// The source's grand total is order level and may be repeated on every row of
// the order. The value on the group's last input row is kept and moved there;
// the rows before it are zeroed.
func newGroupSet(items []types.LineItem) *groupSet {
	gs := &groupSet{index: make(map[string]int)}

	for _, item := range items {
		idx, ok := gs.index[item.Key]
		if !ok {
			idx = len(gs.groups)
			gs.index[item.Key] = idx
			gs.groups = append(gs.groups, &group{key: item.Key})
		}
		gs.groups[idx].rows = append(gs.groups[idx].rows, item.Clone())
	}

	for _, g := range gs.groups {
		g.setTotal(g.total())
	}

	return gs
}

// rowCount returns the number of rows across all groups.
func (gs *groupSet) rowCount() int {
	n := 0
	for _, g := range gs.groups {
		n += len(g.rows)
	}
	return n
}

// flatten returns the rows group by group.
func (gs *groupSet) flatten() []types.LineItem {
	out := make([]types.LineItem, 0, gs.rowCount())
	for _, g := range gs.groups {
		out = append(out, g.rows...)
	}
	return out
}

// partition splits the set in two, keeping group order in both halves.
func (gs *groupSet) partition(pred func(*group) bool) (matched, rest *groupSet) {
	matched = &groupSet{index: make(map[string]int)}
	rest = &groupSet{index: make(map[string]int)}
	for _, g := range gs.groups {
		target := rest
		if pred(g) {
			target = matched
		}
		target.index[g.key] = len(target.groups)
		target.groups = append(target.groups, g)
	}
	return matched, rest
}

// prune drops groups that have no rows left.
func (gs *groupSet) prune() {
	kept := gs.groups[:0]
	gs.index = make(map[string]int)
	for _, g := range gs.groups {
		if len(g.rows) == 0 {
			continue
		}
		gs.index[g.key] = len(kept)
		kept = append(kept, g)
	}
	gs.groups = kept
}
