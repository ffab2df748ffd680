package fees

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/normalize"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

const stripeMaxLimit = 100

// BalanceTransactionLister returns one page of balance transactions and
// whether more pages follow. The Stripe client satisfies it through
// NewStripeSource; tests inject fakes.
type BalanceTransactionLister func(params *stripe.BalanceTransactionListParams) ([]*stripe.BalanceTransaction, bool, error)

// StripeSource serves Stripe balance transactions as numbered pages.
//
// Stripe paginates with cursors, so pages must be requested in order: the
// cursor for page N+1 is the last id of page N.
type StripeSource struct {
	list    BalanceTransactionLister
	account string

	mu      sync.Mutex
	cursors map[int]string
	done    map[int]bool
}

// NewStripeSource builds a source from the configured API key.
func NewStripeSource(cfg config.StripeSettings, backends *stripe.Backends) (*StripeSource, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("stripe: %w: %s", ErrMissingCredentials, config.EnvStripeAPIKey)
	}

	sc := client.New(apiKey, backends)
	lister := func(params *stripe.BalanceTransactionListParams) ([]*stripe.BalanceTransaction, bool, error) {
		params.Single = true
		it := sc.BalanceTransactions.List(params)

		var out []*stripe.BalanceTransaction
		for it.Next() {
			out = append(out, it.BalanceTransaction())
		}
		if err := it.Err(); err != nil {
			return nil, false, err
		}

		hasMore := false
		if page := it.BalanceTransactionList(); page != nil {
			hasMore = page.HasMore
		}
		return out, hasMore, nil
	}

	return NewStripeSourceWithLister(lister, cfg.Account), nil
}

// NewStripeSourceWithLister builds a source around any lister.
func NewStripeSourceWithLister(list BalanceTransactionLister, account string) *StripeSource {
	return &StripeSource{
		list:    list,
		account: strings.TrimSpace(account),
		cursors: map[int]string{},
		done:    map[int]bool{},
	}
}

// FetchPage implements PageSource.
func (s *StripeSource) FetchPage(ctx context.Context, page, pageSize int) ([]types.FeeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Page 1 starts a new walk.
	if page == 1 {
		clear(s.cursors)
		clear(s.done)
	}
	if page > 1 && s.done[page-1] {
		return nil, nil
	}
	cursor, ok := s.cursors[page]
	if page > 1 && !ok {
		return nil, fmt.Errorf("stripe: page %d requested before page %d", page, page-1)
	}

	if pageSize > stripeMaxLimit {
		pageSize = stripeMaxLimit
	}

	params := &stripe.BalanceTransactionListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(pageSize))
	params.AddExpand("data.source")
	if cursor != "" {
		params.StartingAfter = stripe.String(cursor)
	}
	if s.account != "" {
		params.SetStripeAccount(s.account)
	}

	transactions, hasMore, err := s.list(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: list balance transactions: %w", err)
	}

	if len(transactions) > 0 {
		s.cursors[page+1] = transactions[len(transactions)-1].ID
	}
	if !hasMore {
		s.done[page] = true
	}

	records := make([]types.FeeRecord, 0, len(transactions))
	for _, tx := range transactions {
		if tx == nil {
			continue
		}
		records = append(records, types.FeeRecord{
			PaymentID: paymentIntentID(tx),
			Fee:       normalize.Money(decimal.New(tx.Fee, -2)),
			Currency:  strings.ToUpper(string(tx.Currency)),
		})
	}

	return records, nil
}

// paymentIntentID returns the payment intent behind a charge transaction, or
// "" for transactions that are not charges.
func paymentIntentID(tx *stripe.BalanceTransaction) string {
	if tx.Source == nil || tx.Source.Charge == nil || tx.Source.Charge.PaymentIntent == nil {
		return ""
	}
	return tx.Source.Charge.PaymentIntent.ID
}
