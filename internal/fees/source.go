package fees

import (
	"fmt"
	"net/http"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/logging"
)

// NewPageSource builds the page source selected by cfg.Source. The "none"
// source returns a nil PageSource and no error.
func NewPageSource(cfg config.FeeSettings, csv config.CSVSettings, httpClient *http.Client) (PageSource, error) {
	switch cfg.Source {
	case config.FeeSourceNone, "":
		return nil, nil
	case config.FeeSourceFile:
		source, err := LoadTableSource(cfg.File, csv)
		if err != nil {
			return nil, err
		}
		return source, nil
	case config.FeeSourceWooPayments:
		source, err := NewWooPaymentsSource(cfg.WooPayments, httpClient)
		if err != nil {
			return nil, err
		}
		return source, nil
	case config.FeeSourceStripe:
		source, err := NewStripeSource(cfg.Stripe, nil)
		if err != nil {
			return nil, err
		}
		return source, nil
	default:
		return nil, fmt.Errorf("%w: unknown fee source %q", config.ErrInvalidConfig, cfg.Source)
	}
}

// NewResolver builds a resolver from the fee settings.
func NewResolver(source PageSource, cfg config.FeeSettings, logger logging.Logger) *Resolver {
	return &Resolver{
		Source:   source,
		PageSize: cfg.PageSize,
		MaxPages: cfg.MaxPages,
		Timeout:  cfg.Timeout,
		Logger:   logger,
	}
}
