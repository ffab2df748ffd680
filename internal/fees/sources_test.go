package fees

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/sources"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// =============================================================================
// WOOPAYMENTS
// =============================================================================

func newWooServer(t *testing.T, handler http.HandlerFunc) *WooPaymentsSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	source, err := NewWooPaymentsSource(config.WooPaymentsSettings{
		StoreURL:       srv.URL + "/",
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
	}, srv.Client())
	require.NoError(t, err)
	return source
}

func TestWooPaymentsFetchPageArrayBody(t *testing.T) {
	source := newWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wooTransactionsPath, r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"), "per_page is capped")

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck", user)
		assert.Equal(t, "cs", pass)

		fmt.Fprint(w, `[{"payment_id":"pi_1","fees":320,"currency":"usd"},{"payment_id":"pi_2","fees":"466"}]`)
	})

	records, err := source.FetchPage(context.Background(), 2, 500)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "pi_1", records[0].PaymentID)
	assert.True(t, records[0].Fee.Equal(decimal.RequireFromString("3.20")))
	assert.Equal(t, "USD", records[0].Currency)
	assert.True(t, records[1].Fee.Equal(decimal.RequireFromString("4.66")))
}

func TestWooPaymentsFetchPageEnvelopeBody(t *testing.T) {
	source := newWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"payment_id":"pi_9","fees":5}]}`)
	})

	records, err := source.FetchPage(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Fee.Equal(decimal.RequireFromString("0.05")))
}

func TestWooPaymentsHTTPError(t *testing.T) {
	source := newWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	_, err := source.FetchPage(context.Background(), 1, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestWooPaymentsWithResolverFetchesOnePage(t *testing.T) {
	calls := 0
	source := newWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"data":[{"payment_id":"pi_1","fees":320},{"payment_id":"pi_2","fees":110}]}`)
	})

	r := &Resolver{Source: source, PageSize: 100}
	fees, stats := r.Resolve(context.Background(), []string{"pi_1", "pi_2"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, stats.Matched)
	assert.True(t, fees["pi_1"].Equal(decimal.RequireFromString("3.20")))
}

func TestNewWooPaymentsSourceRequiresCredentials(t *testing.T) {
	_, err := NewWooPaymentsSource(config.WooPaymentsSettings{StoreURL: "https://shop.example.com"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredentials))
	assert.Contains(t, err.Error(), config.EnvWooConsumerKey)
}

// =============================================================================
// STRIPE
// =============================================================================

func balanceTx(id, paymentIntent string, fee int64) *stripe.BalanceTransaction {
	tx := &stripe.BalanceTransaction{ID: id, Fee: fee, Currency: stripe.CurrencyUSD}
	if paymentIntent != "" {
		tx.Source = &stripe.BalanceTransactionSource{
			Charge: &stripe.Charge{PaymentIntent: &stripe.PaymentIntent{ID: paymentIntent}},
		}
	}
	return tx
}

func TestStripeSourceWalksCursors(t *testing.T) {
	pages := [][]*stripe.BalanceTransaction{
		{balanceTx("txn_1", "pi_1", 320), balanceTx("txn_2", "", 0)},
		{balanceTx("txn_3", "pi_3", 45)},
	}
	var cursors []string

	lister := func(params *stripe.BalanceTransactionListParams) ([]*stripe.BalanceTransaction, bool, error) {
		cursor := ""
		if params.StartingAfter != nil {
			cursor = *params.StartingAfter
		}
		cursors = append(cursors, cursor)
		assert.Equal(t, int64(2), *params.Limit)
		assert.Contains(t, params.Expand, stripe.String("data.source"))

		if cursor == "" {
			return pages[0], true, nil
		}
		return pages[1], false, nil
	}

	source := NewStripeSourceWithLister(lister, "")

	first, err := source.FetchPage(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "pi_1", first[0].PaymentID)
	assert.True(t, first[0].Fee.Equal(decimal.RequireFromString("3.20")))
	assert.Equal(t, "", first[1].PaymentID)

	second, err := source.FetchPage(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "pi_3", second[0].PaymentID)

	third, err := source.FetchPage(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Empty(t, third)

	assert.Equal(t, []string{"", "txn_2"}, cursors)
}

func TestStripeSourceRestartsAtPageOne(t *testing.T) {
	calls := 0
	lister := func(params *stripe.BalanceTransactionListParams) ([]*stripe.BalanceTransaction, bool, error) {
		calls++
		switch calls {
		case 1:
			return []*stripe.BalanceTransaction{balanceTx("txn_1", "pi_1", 100)}, false, nil
		case 2:
			return []*stripe.BalanceTransaction{balanceTx("txn_1", "pi_1", 100)}, true, nil
		default:
			require.NotNil(t, params.StartingAfter)
			assert.Equal(t, "txn_1", *params.StartingAfter)
			return []*stripe.BalanceTransaction{balanceTx("txn_9", "pi_9", 50)}, false, nil
		}
	}
	source := NewStripeSourceWithLister(lister, "")

	_, err := source.FetchPage(context.Background(), 1, 10)
	require.NoError(t, err)
	empty, err := source.FetchPage(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// A later walk sees more data and must not reuse the finished state.
	_, err = source.FetchPage(context.Background(), 1, 10)
	require.NoError(t, err)
	second, err := source.FetchPage(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "pi_9", second[0].PaymentID)
	assert.Equal(t, 3, calls)
}

func TestStripeSourceRejectsOutOfOrderPages(t *testing.T) {
	source := NewStripeSourceWithLister(func(*stripe.BalanceTransactionListParams) ([]*stripe.BalanceTransaction, bool, error) {
		return nil, false, nil
	}, "")

	_, err := source.FetchPage(context.Background(), 3, 10)
	require.Error(t, err)
}

func TestNewStripeSourceRequiresKey(t *testing.T) {
	_, err := NewStripeSource(config.StripeSettings{}, nil)
	assert.True(t, errors.Is(err, ErrMissingCredentials))
}

// =============================================================================
// FEE FILE
// =============================================================================

func TestTableSourcePages(t *testing.T) {
	table := &types.Table{
		Name:    "fees",
		Headers: []string{"payment_id", "fees", "currency"},
		Rows: []map[string]string{
			{"payment_id": "pi_1", "fees": "320", "currency": "usd"},
			{"payment_id": "pi_2", "fees": "110", "currency": ""},
			{"payment_id": "pi_3", "fees": "5", "currency": "cad"},
		},
	}
	settings := config.DefaultMainConfig().Fees.File
	settings.AmountsInCents = true

	source, err := NewTableSource(table, settings)
	require.NoError(t, err)
	assert.Equal(t, 3, source.Len())

	page, err := source.FetchPage(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "pi_3", page[0].PaymentID)
	assert.True(t, page[0].Fee.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, "CAD", page[0].Currency)

	page, err = source.FetchPage(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestTableSourceMissingColumns(t *testing.T) {
	table := &types.Table{Name: "fees", Headers: []string{"id"}}
	_, err := NewTableSource(table, config.DefaultMainConfig().Fees.File)
	assert.True(t, errors.Is(err, sources.ErrMissingColumn))
}

func TestNewPageSourceNone(t *testing.T) {
	source, err := NewPageSource(config.FeeSettings{Source: config.FeeSourceNone}, config.CSVSettings{}, nil)
	require.NoError(t, err)
	assert.Nil(t, source)
}

func TestNewPageSourceMissingCredentialsIsFatal(t *testing.T) {
	source, err := NewPageSource(config.FeeSettings{Source: config.FeeSourceStripe}, config.CSVSettings{}, nil)
	assert.Nil(t, source)
	assert.True(t, errors.Is(err, ErrMissingCredentials))
}
