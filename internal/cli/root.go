// Package cli wires the daemon's cobra command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ammd",
	Short: "goAMMd - constant-product market maker daemon",
	Long: `goAMMd runs a constant-product automated market maker: markets pair a
base currency with a token, liquidity providers earn transferable pool
shares, and traders swap against the reserves over JSON-RPC with a
websocket event stream.`,
	Version: "0.1.0-dev",
}

// Execute runs the command tree. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable normally suppressed debug logging")
}
