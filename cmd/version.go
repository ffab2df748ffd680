// =============================================================================
// Sales Receipt Reconciler - Version Command
// =============================================================================
//
// This file defines the 'version' command. It reports the reconciler build
// and the Stripe API version fee lookups are pinned to, which is what a
// support request about mismatched fees usually needs first.
//
// COMMAND USAGE:
//   reconciler version
//
// OUTPUT:
//   reconciler 1.4.2 (commit 3f9c2ab, built 2024-06-01)
//   go1.24.0 linux/amd64
//   stripe api 2023-10-16
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v78"
)

// =============================================================================
// BUILD INFORMATION
// =============================================================================
// Release builds stamp these through ldflags:
//   go build -ldflags "-X '.../cmd.Version=1.4.2' -X '.../cmd.BuildDate=2024-06-01'"
// where ... is github.com/ginjaninja78/sales-receipt-reconciler. Commit falls
// back to the VCS revision the toolchain embeds.

var (
	Version   = "dev"
	Commit    = ""
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the reconciler build",
	Long:  `Show the reconciler version, commit, build date, Go runtime and the Stripe API version used for fee lookups.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(versionText(Version, buildCommit(), BuildDate))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func versionText(version, commit, built string) string {
	if commit == "" {
		commit = "unknown"
	}
	return fmt.Sprintf("reconciler %s (commit %s, built %s)\n%s %s/%s\nstripe api %s\n",
		version, commit, built, runtime.Version(), runtime.GOOS, runtime.GOARCH, stripe.APIVersion)
}

// buildCommit returns Commit, or the short VCS revision from the binary.
func buildCommit() string {
	if Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return ""
}
