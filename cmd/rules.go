// =============================================================================
// Sales Receipt Reconciler - Rules and Validate Commands
// =============================================================================
//
// COMMAND USAGE:
//   reconciler rules      Print the effective rule set as YAML
//   reconciler validate   Load and check config.yaml and the rules file
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective rule set",
	Long: `Print the rule set the pipeline would apply, as YAML. The output can be
saved and edited, then referenced from config.yaml with rules_file.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(nil)
		if err != nil {
			return err
		}
		defer env.logger.Sync()

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(env.rules); err != nil {
			return fmt.Errorf("failed to encode rules: %w", err)
		}
		return enc.Close()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration without processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadMainConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load main config: %w", err)
		}
		fmt.Printf("Config:     %s OK\n", cfgFile)

		rules, err := config.LoadRuleSet(cfg.RulesFile)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		if err := rules.Validate(); err != nil {
			return err
		}
		if cfg.RulesFile == "" {
			fmt.Println("Rules:      built-in OK")
		} else {
			fmt.Printf("Rules:      %s OK\n", cfg.RulesFile)
		}

		fmt.Printf("Fee source: %s\n", cfg.Fees.Source)
		fmt.Printf("Input dir:  %s\n", cfg.InputDir)
		fmt.Printf("Output dir: %s\n", cfg.OutputDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(validateCmd)
}
