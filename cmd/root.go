// =============================================================================
// Sales Receipt Reconciler - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (reconciler)
//   ├── importCmd   (reconciler import)
//   ├── tieoutCmd   (reconciler tieout)
//   ├── rulesCmd    (reconciler rules)
//   ├── validateCmd (reconciler validate)
//   └── versionCmd  (reconciler version)
//
// CONFIGURATION:
//   The root command owns the global flags (--config, --verbose). Commands
//   load the configuration, the rule set and the logger through setup().
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Sales Receipt Reconciler - Build sales receipt imports and tie them out",
	Long: `Sales Receipt Reconciler turns a Salesforce order export into an
accounting import workbook and reconciles it against QuickBooks and Avalara.

Key Features:
  - Processor fee lookup (WooPayments, Stripe or a fee export file)
  - Configurable business rules for removals, tax rows and SKU remaps
  - Sales receipt and credit memo partitions with validation findings
  - Order-level tie out between SFDC, QB and Avalara

Example Usage:
  reconciler import --orders ./input/orders.csv
  reconciler tieout --qb qb.xlsx --qb-cm qb_cm.xlsx --sfdc import.xlsx
  reconciler rules                     # Print the effective rule set
  reconciler validate                  # Check config and rules without processing`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultConfigPath,
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// environment is what every processing command needs.
type environment struct {
	config *config.MainConfig
	rules  config.RuleSet
	logger *logging.ZapLogger
}

// setup loads the configuration and rule set and builds the logger.
//
// PARAMETERS:
//   - override: Applied to the loaded configuration before validation. May
//     be nil.
func setup(override func(*config.MainConfig)) (*environment, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	rules, err := config.LoadRuleSet(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	return &environment{config: cfg, rules: rules, logger: logger}, nil
}

// printProgress writes progress updates to stdout.
func printProgress(percent int, message string) {
	fmt.Printf("[%3d%%] %s\n", percent, message)
}
