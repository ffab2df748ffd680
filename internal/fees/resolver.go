// =============================================================================
// Sales Receipt Reconciler - Fee Resolver
// =============================================================================
//
// The resolver looks up processor fees for a set of payment ids by walking a
// paginated fee ledger. Pages are fetched strictly one after another so the
// walk can stop the moment every id has been found.
//
// STOP CONDITIONS (first one wins):
//   1. Every target id is matched
//   2. A page comes back shorter than the page size (end of data)
//   3. MaxPages pages have been fetched
//   4. The context is cancelled or Timeout elapses
//   5. A page fails to load
//
// Fee data enriches the ledger but is never required: an unreachable source
// yields an empty map and the run carries on with zero fees.
//
// =============================================================================

package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/logging"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// Defaults used when the resolver fields are zero.
const (
	DefaultPageSize = 100
	DefaultMaxPages = 100
)

// ErrMissingCredentials is returned when the selected fee source lacks a
// credential.
var ErrMissingCredentials = errors.New("missing fee source credentials")

// PageSource serves one page of the fee ledger. Pages are numbered from 1.
type PageSource interface {
	FetchPage(ctx context.Context, page, pageSize int) ([]types.FeeRecord, error)
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc func(ctx context.Context, page, pageSize int) ([]types.FeeRecord, error)

// FetchPage calls f.
func (f PageSourceFunc) FetchPage(ctx context.Context, page, pageSize int) ([]types.FeeRecord, error) {
	return f(ctx, page, pageSize)
}

// Stats describe one resolution.
type Stats struct {
	PagesFetched int
	Matched      int

	// Unmatched are the target ids without a fee, in target order.
	Unmatched []string

	// Err is the error that stopped the walk early, if any.
	Err error
}

// Resolver matches payment ids to fees.
type Resolver struct {
	Source   PageSource
	PageSize int
	MaxPages int

	// Timeout bounds the whole walk. Zero means no bound beyond ctx.
	Timeout time.Duration

	Logger logging.Logger
}

// Resolve returns the fee for every target id found in the ledger.
//
// PARAMETERS:
//   - ctx: Cancels the walk between and during page fetches.
//   - targetIDs: The payment ids to look up. Blanks and duplicates are ignored.
//
// RETURNS:
//   - The fee map. Only non-zero fees are recorded; the first occurrence in
//     page order wins.
//   - Stats for reporting. Resolve never fails: errors are logged and kept
//     in Stats.Err.
func (r *Resolver) Resolve(ctx context.Context, targetIDs []string) (fees types.FeeMap, stats Stats) {
	logger := logging.OrNop(r.Logger)
	fees = make(types.FeeMap)

	unmatched := make(map[string]struct{}, len(targetIDs))
	var order []string
	for _, id := range targetIDs {
		if id == "" {
			continue
		}
		if _, dup := unmatched[id]; dup {
			continue
		}
		unmatched[id] = struct{}{}
		order = append(order, id)
	}

	defer func() {
		stats.Matched = len(fees)
		for _, id := range order {
			if _, ok := unmatched[id]; ok {
				stats.Unmatched = append(stats.Unmatched, id)
			}
		}
	}()

	if len(unmatched) == 0 {
		return fees, stats
	}
	if r.Source == nil {
		logger.Warn("no fee source configured, %d payment ids resolve to zero fees", len(unmatched))
		return fees, stats
	}

	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxPages := r.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	for page := 1; page <= maxPages && len(unmatched) > 0; page++ {
		if err := ctx.Err(); err != nil {
			stats.Err = err
			logger.Warn("fee lookup stopped before page %d: %v", page, err)
			break
		}

		records, err := r.Source.FetchPage(ctx, page, pageSize)
		if err != nil {
			stats.Err = fmt.Errorf("failed to fetch fee page %d: %w", page, err)
			if page == 1 {
				logger.Warn("fee source unreachable, continuing with zero fees: %v", err)
			} else {
				logger.Warn("fee lookup stopped at page %d, keeping %d fees: %v", page, len(fees), err)
			}
			break
		}
		stats.PagesFetched++

		found := 0
		for _, rec := range records {
			if _, ok := unmatched[rec.PaymentID]; !ok || rec.Fee.IsZero() {
				continue
			}
			fees[rec.PaymentID] = rec.Fee
			delete(unmatched, rec.PaymentID)
			found++
		}
		logger.Debug("fee page %d: %d records, %d matched, %d still unmatched", page, len(records), found, len(unmatched))

		if len(records) < pageSize {
			break
		}
	}

	if len(unmatched) > 0 {
		logger.Info("%d payment ids have no fee after %d pages", len(unmatched), stats.PagesFetched)
	} else {
		logger.Info("all %d payment ids matched after %d pages", len(fees), stats.PagesFetched)
	}

	return fees, stats
}
