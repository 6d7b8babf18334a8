package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradebot",
	Short: "An LLM-driven trading cycle engine for equities and crypto",
	Long: `Tradebot periodically decides whether to open, hold, or close positions
in a compliance-filtered universe of instruments, delegating the decision
itself to an external reasoning provider.

It provides:
  - A slow, market-hours profile for equities and a fast 24/7 profile for crypto
  - Streaming and polled market data with rolling-window technical indicators
  - Hard risk limits: per-position caps, daily loss halt, compliance gating
  - A durable per-cycle audit trail with crash recovery`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
