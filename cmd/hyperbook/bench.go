package main

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/hyperbook/pkg/app/core/market"
	"github.com/uhyunpark/hyperbook/pkg/app/exchange"
)

var (
	benchOrders   int
	benchSymbols  string
	benchAccounts int
	benchSeed     int64
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Push synthetic order flow through an in-memory exchange and report throughput",
	Args:  cobra.NoArgs,
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchOrders, "orders", 100_000, "number of requests to submit")
	benchCmd.Flags().StringVar(&benchSymbols, "symbols", "BTC-USDT", "comma-separated symbols")
	benchCmd.Flags().IntVar(&benchAccounts, "accounts", 500, "number of simulated traders")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 1, "random seed (0 = time based)")
}

func runBench(cmd *cobra.Command, args []string) error {
	app := exchange.New(market.NewRegistry(market.DefaultParams), exchange.Options{})
	defer app.Close()

	cfg := exchange.HighLoadConfig()
	cfg.Symbols = strings.Split(benchSymbols, ",")
	cfg.NumAccounts = benchAccounts
	cfg.Seed = benchSeed

	st := app.RunBurst(cmd.Context(), cfg, benchOrders)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "orders=%d cancels=%d fills=%d rejects=%d elapsed=%s rate=%.0f/s\n",
		st.Orders, st.Cancels, st.Fills, st.Rejects, st.Elapsed, st.OrdersPerSec())
	for _, m := range app.Registry().List() {
		if err := m.Engine.Check(); err != nil {
			return errors.Wrapf(err, "%s", m.Symbol)
		}
		fmt.Fprintf(out, "%s resting=%d last=%d\n", m.Symbol, m.Engine.OpenOrderCount(), m.Engine.LastPrice())
	}
	return nil
}
