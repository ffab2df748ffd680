package fees

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// pagedLedger is an in-memory fee ledger that counts page fetches.
type pagedLedger struct {
	records []types.FeeRecord
	calls   []int
	failAt  int
}

func (l *pagedLedger) FetchPage(ctx context.Context, page, pageSize int) ([]types.FeeRecord, error) {
	l.calls = append(l.calls, page)
	if l.failAt != 0 && page == l.failAt {
		return nil, errors.New("connection refused")
	}
	start := (page - 1) * pageSize
	if start >= len(l.records) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(l.records) {
		end = len(l.records)
	}
	return l.records[start:end], nil
}

func fee(id, amount string) types.FeeRecord {
	return types.FeeRecord{PaymentID: id, Fee: decimal.RequireFromString(amount), Currency: "USD"}
}

// fillerLedger returns n records with ids that are never targeted.
func fillerLedger(n int) []types.FeeRecord {
	out := make([]types.FeeRecord, n)
	for i := range out {
		out[i] = fee(fmt.Sprintf("pi_filler_%d", i), "1.00")
	}
	return out
}

func TestResolveStopsAfterFirstPageWhenAllMatched(t *testing.T) {
	records := fillerLedger(300)
	records[5] = fee("pi_a", "3.20")
	records[40] = fee("pi_b", "1.10")
	records[99] = fee("pi_c", "0.50")
	ledger := &pagedLedger{records: records}

	r := &Resolver{Source: ledger, PageSize: 100, MaxPages: 100}
	fees, stats := r.Resolve(context.Background(), []string{"pi_a", "pi_b", "pi_c"})

	assert.Equal(t, []int{1}, ledger.calls)
	assert.Equal(t, 1, stats.PagesFetched)
	assert.Equal(t, 3, stats.Matched)
	assert.Empty(t, stats.Unmatched)
	assert.True(t, fees["pi_a"].Equal(decimal.RequireFromString("3.20")))
}

func TestResolveStopsOnShortPage(t *testing.T) {
	records := fillerLedger(150)
	ledger := &pagedLedger{records: records}

	r := &Resolver{Source: ledger, PageSize: 100, MaxPages: 100}
	fees, stats := r.Resolve(context.Background(), []string{"pi_missing"})

	assert.Equal(t, []int{1, 2}, ledger.calls)
	assert.Empty(t, fees)
	assert.Equal(t, []string{"pi_missing"}, stats.Unmatched)
	assert.NoError(t, stats.Err)
}

func TestResolveRespectsMaxPages(t *testing.T) {
	ledger := &pagedLedger{records: fillerLedger(1000)}

	r := &Resolver{Source: ledger, PageSize: 10, MaxPages: 3}
	_, stats := r.Resolve(context.Background(), []string{"pi_missing"})

	assert.Equal(t, []int{1, 2, 3}, ledger.calls)
	assert.Equal(t, 3, stats.PagesFetched)
}

func TestResolveFirstOccurrenceWins(t *testing.T) {
	records := fillerLedger(20)
	records[3] = fee("pi_dup", "2.00")
	records[15] = fee("pi_dup", "9.99")
	records[19] = fee("pi_other", "1.00")
	ledger := &pagedLedger{records: records}

	r := &Resolver{Source: ledger, PageSize: 10}
	fees, _ := r.Resolve(context.Background(), []string{"pi_dup", "pi_other"})

	assert.True(t, fees["pi_dup"].Equal(decimal.RequireFromString("2.00")))
}

func TestResolveIgnoresZeroFees(t *testing.T) {
	records := []types.FeeRecord{fee("pi_zero", "0"), fee("pi_zero", "0.75")}
	ledger := &pagedLedger{records: records}

	r := &Resolver{Source: ledger, PageSize: 10}
	fees, stats := r.Resolve(context.Background(), []string{"pi_zero"})

	assert.True(t, fees["pi_zero"].Equal(decimal.RequireFromString("0.75")))
	assert.Empty(t, stats.Unmatched)
}

func TestResolveUnreachableSourceYieldsEmptyMap(t *testing.T) {
	ledger := &pagedLedger{records: fillerLedger(10), failAt: 1}

	r := &Resolver{Source: ledger, PageSize: 10}
	fees, stats := r.Resolve(context.Background(), []string{"pi_a", "pi_b"})

	assert.Empty(t, fees)
	require.Error(t, stats.Err)
	assert.Equal(t, 0, stats.PagesFetched)
	assert.Equal(t, []string{"pi_a", "pi_b"}, stats.Unmatched)
}

func TestResolveKeepsPartialResultOnLaterError(t *testing.T) {
	records := fillerLedger(30)
	records[2] = fee("pi_a", "1.50")
	ledger := &pagedLedger{records: records, failAt: 2}

	r := &Resolver{Source: ledger, PageSize: 10}
	fees, stats := r.Resolve(context.Background(), []string{"pi_a", "pi_b"})

	assert.Len(t, fees, 1)
	assert.True(t, fees["pi_a"].Equal(decimal.RequireFromString("1.50")))
	require.Error(t, stats.Err)
	assert.Equal(t, []string{"pi_b"}, stats.Unmatched)
}

func TestResolveHonoursCancelledContext(t *testing.T) {
	ledger := &pagedLedger{records: fillerLedger(10)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Resolver{Source: ledger, PageSize: 10}
	fees, stats := r.Resolve(ctx, []string{"pi_a"})

	assert.Empty(t, fees)
	assert.Empty(t, ledger.calls)
	assert.ErrorIs(t, stats.Err, context.Canceled)
}

func TestResolveTimeout(t *testing.T) {
	slow := PageSourceFunc(func(ctx context.Context, page, pageSize int) ([]types.FeeRecord, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return fillerLedger(pageSize), nil
		}
	})

	r := &Resolver{Source: slow, PageSize: 10, Timeout: 20 * time.Millisecond}
	fees, stats := r.Resolve(context.Background(), []string{"pi_a"})

	assert.Empty(t, fees)
	assert.ErrorIs(t, stats.Err, context.DeadlineExceeded)
}

func TestResolveWithoutTargetsFetchesNothing(t *testing.T) {
	ledger := &pagedLedger{records: fillerLedger(10)}

	r := &Resolver{Source: ledger}
	fees, stats := r.Resolve(context.Background(), []string{"", ""})

	assert.Empty(t, fees)
	assert.Empty(t, ledger.calls)
	assert.Equal(t, 0, stats.PagesFetched)
}

func TestResolveWithoutSource(t *testing.T) {
	r := &Resolver{}
	fees, stats := r.Resolve(context.Background(), []string{"pi_a"})

	assert.Empty(t, fees)
	assert.Equal(t, []string{"pi_a"}, stats.Unmatched)
}
