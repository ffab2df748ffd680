package fees

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/normalize"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

const (
	wooTransactionsPath = "/wp-json/wc/v3/payments/reports/transactions"
	wooMaxPerPage       = 100
)

var hundred = decimal.NewFromInt(100)

// WooPaymentsSource pages through the WooPayments transaction report.
type WooPaymentsSource struct {
	endpoint string
	key      string
	secret   string
	client   *http.Client
}

// NewWooPaymentsSource builds a source for a store. A nil client gets a
// client with a 30 second timeout.
func NewWooPaymentsSource(cfg config.WooPaymentsSettings, client *http.Client) (*WooPaymentsSource, error) {
	storeURL := strings.TrimRight(strings.TrimSpace(cfg.StoreURL), "/")
	key := strings.TrimSpace(cfg.ConsumerKey)
	secret := strings.TrimSpace(cfg.ConsumerSecret)

	var missing []string
	if storeURL == "" {
		missing = append(missing, config.EnvWooStoreURL)
	}
	if key == "" {
		missing = append(missing, config.EnvWooConsumerKey)
	}
	if secret == "" {
		missing = append(missing, config.EnvWooConsumerSecret)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("woopayments: %w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if _, err := url.Parse(storeURL); err != nil {
		return nil, fmt.Errorf("woopayments: invalid store url: %w", err)
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &WooPaymentsSource{
		endpoint: storeURL + wooTransactionsPath,
		key:      key,
		secret:   secret,
		client:   client,
	}, nil
}

// wooTransaction is the subset of a report row the resolver needs.
type wooTransaction struct {
	PaymentID string      `json:"payment_id"`
	Fees      json.Number `json:"fees"`
	Currency  string      `json:"currency"`
}

// FetchPage implements PageSource. Fees arrive in cents and are returned in
// dollars.
func (s *WooPaymentsSource) FetchPage(ctx context.Context, page, pageSize int) ([]types.FeeRecord, error) {
	if pageSize > wooMaxPerPage {
		pageSize = wooMaxPerPage
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("woopayments: build request: %w", err)
	}
	req.SetBasicAuth(s.key, s.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("woopayments: request page %d: %w", page, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("woopayments: read page %d: %w", page, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		return nil, fmt.Errorf("woopayments: page %d: HTTP %d: %s", page, resp.StatusCode, snippet)
	}

	transactions, err := decodeWooTransactions(body)
	if err != nil {
		return nil, fmt.Errorf("woopayments: decode page %d: %w", page, err)
	}

	records := make([]types.FeeRecord, 0, len(transactions))
	for _, tx := range transactions {
		currency := tx.Currency
		if currency == "" {
			currency = "USD"
		}
		records = append(records, types.FeeRecord{
			PaymentID: strings.TrimSpace(tx.PaymentID),
			Fee:       normalize.Money(normalize.CleanAmount(tx.Fees).Div(hundred)),
			Currency:  strings.ToUpper(currency),
		})
	}

	return records, nil
}

// decodeWooTransactions accepts either a bare array or {"data": [...]}.
func decodeWooTransactions(body []byte) ([]wooTransaction, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var transactions []wooTransaction
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &transactions); err != nil {
			return nil, err
		}
		return transactions, nil
	}

	var envelope struct {
		Data []wooTransaction `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}
