// =============================================================================
// Sales Receipt Reconciler - Configuration Module
// =============================================================================
//
// This module loads the main application configuration and the business rule
// set used by the pipeline.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): directories, logging, fee source, tie-out
//   2. Rule Set (rules.yaml): removal lists, tax states, limits (see rules.go)
//
// CREDENTIALS:
//   Fee source credentials are read from the environment and override any
//   value in config.yaml. They are never written back.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// DefaultConfigPath is used when no --config flag is given. A missing file at
// this path is not an error.
const DefaultConfigPath = "config.yaml"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Fee source names.
const (
	FeeSourceNone        = "none"
	FeeSourceFile        = "file"
	FeeSourceWooPayments = "woopayments"
	FeeSourceStripe      = "stripe"
)

// Environment variables holding fee source credentials.
const (
	EnvWooStoreURL       = "WOO_STORE_URL"
	EnvWooConsumerKey    = "WOO_CONSUMER_KEY"
	EnvWooConsumerSecret = "WOO_CONSUMER_SECRET"
	EnvStripeAPIKey      = "STRIPE_API_KEY"
	EnvStripeAccount     = "STRIPE_ACCOUNT"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is where ledger exports are expected.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir is where import and tie-out workbooks are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// ArchiveDir receives processed inputs when ArchiveInputs is set.
	// Default: "./archive"
	ArchiveDir string `yaml:"archive_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional file that receives log output in addition to
	// stderr.
	LogFile string `yaml:"log_file"`

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "console" or "json".
	// Default: "console"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines output workbook names.
	// Placeholders:
	//   {kind}      - "import" or "tieout"
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {uuid}      - A random UUID
	//   {run}       - The run id
	// Default: "{kind}_{timestamp}.xlsx"
	OutputNameFormat string `yaml:"output_name_format"`

	// ArchiveInputs moves input files to ArchiveDir after a successful run.
	ArchiveInputs bool `yaml:"archive_inputs"`

	// RulesFile is the rule set to load. Empty means the built-in rules.
	RulesFile string `yaml:"rules_file"`

	// =========================================================================
	// SOURCE SETTINGS
	// =========================================================================

	CSVSettings CSVSettings `yaml:"csv_settings"`

	// Columns renames source headers to the expected ledger column names.
	// Keys are source names, values are expected names.
	Columns map[string]string `yaml:"columns"`

	Fees FeeSettings `yaml:"fees"`

	TieOut TieOutSettings `yaml:"tieout"`
}

// CSVSettings controls how CSV exports are read.
type CSVSettings struct {
	// Delimiter is a single character or one of "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is "utf-8", "windows-1252" or "iso-8859-1".
	// Default: "utf-8"
	Encoding string `yaml:"encoding"`
}

// FeeSettings selects and configures the payment processor fee source.
type FeeSettings struct {
	// Source is one of "none", "file", "woopayments", "stripe".
	// Default: "none"
	Source string `yaml:"source"`

	// PageSize is the number of records requested per page.
	// Default: 100
	PageSize int `yaml:"page_size"`

	// MaxPages bounds the number of pages fetched per run.
	// Default: 100
	MaxPages int `yaml:"max_pages"`

	// Timeout bounds the whole fee lookup. Zero means no bound.
	// Default: 2m
	Timeout time.Duration `yaml:"timeout"`

	WooPayments WooPaymentsSettings `yaml:"woopayments"`
	Stripe      StripeSettings      `yaml:"stripe"`
	File        FeeFileSettings     `yaml:"file"`
}

// WooPaymentsSettings are the REST credentials of the store.
type WooPaymentsSettings struct {
	StoreURL       string `yaml:"store_url"`
	ConsumerKey    string `yaml:"-"`
	ConsumerSecret string `yaml:"-"`
}

// StripeSettings are the Stripe API credentials.
type StripeSettings struct {
	APIKey string `yaml:"-"`

	// Account is an optional connected account id.
	Account string `yaml:"account"`
}

// FeeFileSettings describe a fee export file.
type FeeFileSettings struct {
	Path string `yaml:"path"`

	// Column names. Defaults: "payment_id", "fees", "currency".
	PaymentIDColumn string `yaml:"payment_id_column"`
	FeeColumn       string `yaml:"fee_column"`
	CurrencyColumn  string `yaml:"currency_column"`

	// AmountsInCents marks fees given in minor units.
	AmountsInCents bool `yaml:"amounts_in_cents"`
}

// TieOutSettings control the reconciliation reports.
type TieOutSettings struct {
	// RowDifferences computes per-row differences. When false, the report
	// writes a spreadsheet formula instead.
	// Default: true
	RowDifferences *bool `yaml:"row_differences"`

	// ProcessorName prefixes fee netting notes.
	// Default: "WooCommerce"
	ProcessorName string `yaml:"processor_name"`
}

// EagerDifferences reports whether row differences are computed up front.
func (t TieOutSettings) EagerDifferences() bool {
	return t.RowDifferences == nil || *t.RowDifferences
}

// =============================================================================
// MAIN CONFIGURATION LOADING
// =============================================================================

// DefaultMainConfig returns the configuration used when no file exists.
func DefaultMainConfig() *MainConfig {
	config := &MainConfig{}
	applyMainConfigDefaults(config)
	return config
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the config.yaml file.
//
// RETURNS:
//   - A pointer to the loaded MainConfig.
//   - An error if the file cannot be read or the configuration is invalid.
//
// A missing file at DefaultConfigPath yields the defaults. Environment
// credentials are applied last.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && configPath == DefaultConfigPath:
		// Run on defaults.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyMainConfigDefaults(&config)
	applyEnv(&config, os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.ArchiveDir == "" {
		config.ArchiveDir = "./archive"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "console"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{kind}_{timestamp}.xlsx"
	}
	if config.CSVSettings.Delimiter == "" {
		config.CSVSettings.Delimiter = ","
	}
	if config.CSVSettings.Encoding == "" {
		config.CSVSettings.Encoding = "utf-8"
	}
	if config.Columns == nil {
		config.Columns = DefaultColumnMapping()
	}

	fees := &config.Fees
	if fees.Source == "" {
		fees.Source = FeeSourceNone
	}
	if fees.PageSize == 0 {
		fees.PageSize = 100
	}
	if fees.MaxPages == 0 {
		fees.MaxPages = 100
	}
	if fees.Timeout == 0 {
		fees.Timeout = 2 * time.Minute
	}
	if fees.File.PaymentIDColumn == "" {
		fees.File.PaymentIDColumn = "payment_id"
	}
	if fees.File.FeeColumn == "" {
		fees.File.FeeColumn = "fees"
	}
	if fees.File.CurrencyColumn == "" {
		fees.File.CurrencyColumn = "currency"
	}

	if config.TieOut.ProcessorName == "" {
		config.TieOut.ProcessorName = "WooCommerce"
	}
}

// applyEnv copies credentials from the environment over the file values.
func applyEnv(config *MainConfig, lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	set(&config.Fees.WooPayments.StoreURL, EnvWooStoreURL)
	set(&config.Fees.WooPayments.ConsumerKey, EnvWooConsumerKey)
	set(&config.Fees.WooPayments.ConsumerSecret, EnvWooConsumerSecret)
	set(&config.Fees.Stripe.APIKey, EnvStripeAPIKey)
	set(&config.Fees.Stripe.Account, EnvStripeAccount)
}

// Validate checks the configuration. Every failure wraps ErrInvalidConfig.
// Credentials are checked when a fee source is built, since the source can
// be overridden per run.
func (c *MainConfig) Validate() error {
	switch c.Fees.Source {
	case FeeSourceNone, FeeSourceFile, FeeSourceWooPayments, FeeSourceStripe:
	default:
		return fmt.Errorf("%w: unknown fee source %q", ErrInvalidConfig, c.Fees.Source)
	}

	if c.Fees.PageSize < 1 {
		return fmt.Errorf("%w: fees.page_size must be positive", ErrInvalidConfig)
	}
	if c.Fees.MaxPages < 1 {
		return fmt.Errorf("%w: fees.max_pages must be positive", ErrInvalidConfig)
	}
	if c.Fees.Timeout < 0 {
		return fmt.Errorf("%w: fees.timeout must not be negative", ErrInvalidConfig)
	}

	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	}

	if !strings.HasSuffix(strings.ToLower(c.OutputNameFormat), ".xlsx") {
		return fmt.Errorf("%w: output_name_format must end in .xlsx", ErrInvalidConfig)
	}

	for from, to := range c.Columns {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return fmt.Errorf("%w: column mapping entries must not be blank", ErrInvalidConfig)
		}
	}

	return nil
}

// =============================================================================
// COLUMN MAPPING
// =============================================================================

// DefaultColumnMapping maps Salesforce report API names to the expected
// ledger column names.
func DefaultColumnMapping() map[string]string {
	return map[string]string{
		"ACCOUNT_NAME":                      types.ColAccountName,
		"Order.Date_Paid__c":                types.ColDatePaid,
		"Order.Webstore_Order__c":           types.ColOrderID,
		"Order.Class__c":                    types.ColClass,
		"ORDER_BILLING_LINE1":               types.ColBillingLine1,
		"ORDER_BILLING_LINE2":               types.ColBillingLine2,
		"ORDER_BILLING_CITY":                types.ColBillingCity,
		"ORDER_BILLING_STATE":               types.ColBillingState,
		"ORDER_BILLING_ZIP":                 types.ColBillingZip,
		"ORDER_SHIPPING_LINE1":              types.ColShippingLine1,
		"ORDER_SHIPPING_LINE2":              types.ColShippingLine2,
		"ORDER_SHIPPING_CITY":               types.ColShippingCity,
		"ORDER_SHIPPING_STATE":              types.ColShippingState,
		"ORDER_SHIPPING_COUNTRY_CODE":       types.ColShippingCountry,
		"ORDER_SHIPPING_ZIP":                types.ColShippingZip,
		"Order.Sales_Tax__c":                types.ColTaxReason,
		"Order.Payment_ID__c":               types.ColPaymentID,
		"OrderItem.SKU__c":                  types.ColSKU,
		"ORDER_ITEM_QUANTITY":               types.ColQuantity,
		"ORDER_ITEM_UNITPRICE":              types.ColUnitPrice,
		"Order.Tax__c":                      types.ColTax,
		"Order.Order_Amount_Grand_Total__c": types.ColGrandTotal,
		"OrderItem.Product_Type__c":         types.ColProductType,
	}
}
