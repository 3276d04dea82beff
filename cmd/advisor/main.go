package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "FX signal advisor: technical indicators plus a language-model second opinion",
	Long: `advisor fetches OHLC bars for currency pairs, computes RSI, ADX, EMA and
Bollinger Bands, classifies a deterministic technical signal and asks a
language model for a BUY / SELL / WAIT advisory with a confidence and reason.

Advisories are journaled and summarized into a daily CSV.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeSystem()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file")
	rootCmd.AddCommand(
		newOnceCmd(),
		newRunCmd(),
		newServeCmd(),
		newEODCmd(),
		newVersionCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
