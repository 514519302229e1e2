package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperbook/params"
	"github.com/uhyunpark/hyperbook/pkg/api"
	"github.com/uhyunpark/hyperbook/pkg/app/core/market"
	"github.com/uhyunpark/hyperbook/pkg/app/exchange"
	"github.com/uhyunpark/hyperbook/pkg/broker"
	"github.com/uhyunpark/hyperbook/pkg/metrics"
	"github.com/uhyunpark/hyperbook/pkg/storage"
	"github.com/uhyunpark/hyperbook/pkg/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the exchange and its API until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := params.LoadFromEnv(envFile)
	if err != nil {
		return err
	}

	logger, err := util.NewLoggerWithFile(cfg.Log.File, util.ParseLevel(cfg.Log.Level))
	if err != nil {
		return errors.Wrap(err, "logger")
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Log.File, "level", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New("hyperbook")
	app, err := buildApp(ctx, cfg, m, sugar)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			sugar.Errorw("close_failed", "err", err)
		}
	}()

	// Sinks outlive every order source so the final checkpoint and the
	// publisher drain see the last fill.
	sinkCtx, stopSinks := context.WithCancel(context.Background())
	defer stopSinks()
	var sinks, sources sync.WaitGroup
	run := func(wg *sync.WaitGroup, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	run(&sinks, func() { app.RunPublisher(sinkCtx) })
	run(&sinks, func() { app.RunCheckpoints(sinkCtx, cfg.Storage.CheckpointInterval) })

	// ---- Order feeder (optional) ----
	// Enable with: ENABLE_FEEDER=true FEEDER_MODE=default|high
	if cfg.Feeder.Enabled {
		fc := exchange.DefaultFeederConfig()
		if cfg.Feeder.Mode == "high" {
			fc = exchange.HighLoadConfig()
		}
		fc.Symbols = cfg.Markets.Symbols
		run(&sources, func() { app.RunFeeder(ctx, fc) })
	}

	sugar.Infow("node_starting",
		"api_addr", cfg.API.Addr,
		"data_dir", cfg.Storage.DataDir,
		"markets", cfg.Markets.Symbols,
		"self_trade", cfg.Markets.Defaults.SelfTrade,
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)

	srv := api.NewServer(app, m, sugar, cfg.API.CORSOrigins)
	err = srv.Start(ctx, cfg.API.Addr)
	stop()
	sources.Wait()
	stopSinks()
	sinks.Wait()
	sugar.Infow("node_stopped")
	return err
}

// buildApp wires storage, the fill stream and the registry, restores any
// checkpointed books and opens the configured markets.
func buildApp(ctx context.Context, cfg params.Config, m *metrics.Metrics, log *zap.SugaredLogger) (*exchange.App, error) {
	var store storage.Store = storage.NewInMemoryStore()
	if cfg.Storage.DataDir != "" {
		ps, err := storage.NewPebbleStore(filepath.Join(cfg.Storage.DataDir, "db"))
		if err != nil {
			return nil, err
		}
		store = ps
	}

	var journal storage.Journal = storage.NewNopJournal()
	if cfg.Storage.JournalFile != "" {
		fj, err := storage.NewFileJournal(cfg.Storage.JournalFile)
		if err != nil {
			store.Close()
			return nil, err
		}
		journal = fj
	}

	var pub broker.Publisher = broker.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = broker.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	}

	app := exchange.New(market.NewRegistry(cfg.Markets.Defaults), exchange.Options{
		Store:       store,
		Publisher:   pub,
		Journal:     journal,
		Metrics:     m,
		Logger:      log,
		StatsWindow: cfg.Markets.StatsWindow,
	})
	if err := app.Restore(ctx); err != nil {
		app.Close()
		return nil, errors.Wrap(err, "restore")
	}
	for _, sym := range cfg.Markets.Symbols {
		if _, created, err := app.Registry().GetOrCreate(sym); err != nil {
			app.Close()
			return nil, err
		} else if created {
			log.Infow("market_opened", "symbol", sym)
		}
	}
	return app, nil
}
