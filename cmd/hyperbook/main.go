package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (default: ./.env)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tradesCmd)
	rootCmd.AddCommand(benchCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hyperbook",
	Short: "Price-time priority limit order book exchange",
	Long: `hyperbook runs one matching engine per symbol behind a REST and WebSocket
API. Fills are persisted to pebble and optionally streamed to Kafka; resting
orders are checkpointed and restored on restart.

Configuration comes from the environment and an optional .env file.`,
	SilenceUsage: true,
}
