package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/hyperbook/params"
	"github.com/uhyunpark/hyperbook/pkg/storage"
)

var tradesLimit int

var tradesCmd = &cobra.Command{
	Use:   "trades [symbol]",
	Short: "Print the most recent stored fills of a symbol as JSON lines, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  printTrades,
}

func init() {
	tradesCmd.Flags().IntVar(&tradesLimit, "limit", 50, "maximum number of fills (0 = all)")
}

// printTrades reads the pebble store directly; the node must not be running.
func printTrades(cmd *cobra.Command, args []string) error {
	cfg, err := params.LoadFromEnv(envFile)
	if err != nil {
		return err
	}
	if cfg.Storage.DataDir == "" {
		return errors.New("DATA_DIR is not set")
	}
	store, err := storage.NewPebbleStore(filepath.Join(cfg.Storage.DataDir, "db"))
	if err != nil {
		return err
	}
	defer store.Close()

	fills, err := store.LoadRecentTrades(args[0], tradesLimit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, f := range fills {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}
