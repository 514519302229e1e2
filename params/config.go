package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	"github.com/uhyunpark/hyperbook/pkg/app/core/engine"
	"github.com/uhyunpark/hyperbook/pkg/app/core/market"
)

type API struct {
	Addr        string
	CORSOrigins []string
}

type Storage struct {
	// DataDir holds the pebble database; empty keeps everything in memory.
	DataDir string
	// JournalFile receives one JSON line per accepted request; empty disables it.
	JournalFile        string
	CheckpointInterval time.Duration
}

type Kafka struct {
	Brokers []string // empty disables the fill stream
	Topic   string
}

type Log struct {
	File  string
	Level string
}

type Markets struct {
	// Symbols are created at startup; others are created on first order.
	Symbols     []string
	Defaults    market.Params
	StatsWindow time.Duration
}

type Feeder struct {
	Enabled bool
	Mode    string // "default" or "high"
}

type Config struct {
	API     API
	Storage Storage
	Kafka   Kafka
	Log     Log
	Markets Markets
	Feeder  Feeder
}

func Default() Config {
	return Config{
		API: API{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Storage: Storage{
			CheckpointInterval: 5 * time.Second,
		},
		Kafka: Kafka{Topic: "hyperbook.fills"},
		Log:   Log{Level: "info"},
		Markets: Markets{
			Symbols:     []string{"BTC-USDT"},
			Defaults:    market.DefaultParams,
			StatsWindow: 24 * time.Hour,
		},
		Feeder: Feeder{Mode: "default"},
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and the
// environment. Priority: ENV > .env file > defaults. An empty envPath means
// ".env" in the current directory.
func LoadFromEnv(envPath string) (Config, error) {
	if envPath == "" {
		envPath = ".env"
	}
	file, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrapf(err, "read %s", envPath)
	}
	return Parse(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return file[key]
	})
}

// Parse builds a Config from getenv, leaving defaults for unset keys.
func Parse(getenv func(string) string) (Config, error) {
	cfg := Default()
	p := parser{getenv: getenv}

	cfg.API.Addr = p.str("API_ADDR", cfg.API.Addr)
	cfg.API.CORSOrigins = p.list("CORS_ORIGINS", cfg.API.CORSOrigins)

	cfg.Storage.DataDir = p.str("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.JournalFile = p.str("JOURNAL_FILE", cfg.Storage.JournalFile)
	cfg.Storage.CheckpointInterval = p.millis("CHECKPOINT_INTERVAL_MS", cfg.Storage.CheckpointInterval)

	cfg.Kafka.Brokers = p.list("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = p.str("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Log.File = p.str("LOG_FILE", cfg.Log.File)
	cfg.Log.Level = p.str("LOG_LEVEL", cfg.Log.Level)

	cfg.Markets.Symbols = p.list("MARKETS", cfg.Markets.Symbols)
	cfg.Markets.StatsWindow = time.Duration(p.int64("STATS_WINDOW_SEC", int64(cfg.Markets.StatsWindow/time.Second))) * time.Second
	d := &cfg.Markets.Defaults
	d.SlippageBps = p.int64("MARKET_SLIPPAGE_BPS", d.SlippageBps)
	d.MakerFeeBps = p.int64("MAKER_FEE_BPS", d.MakerFeeBps)
	d.TakerFeeBps = p.int64("TAKER_FEE_BPS", d.TakerFeeBps)
	if v := getenv("SELF_TRADE_POLICY"); v != "" {
		policy, err := engine.ParseSelfTradePolicy(v)
		if err != nil {
			p.fail("SELF_TRADE_POLICY", err)
		}
		d.SelfTrade = policy
	}

	cfg.Feeder.Enabled = p.bool("ENABLE_FEEDER", cfg.Feeder.Enabled)
	cfg.Feeder.Mode = p.str("FEEDER_MODE", cfg.Feeder.Mode)

	if len(p.errs) > 0 {
		return Config{}, errors.Newf("invalid config: %s", strings.Join(p.errs, "; "))
	}
	return cfg, cfg.Validate()
}

// Validate checks values that parse but cannot run.
func (c Config) Validate() error {
	for _, s := range c.Markets.Symbols {
		if _, _, err := market.ParseSymbol(s); err != nil {
			return errors.Wrap(err, "MARKETS")
		}
	}
	if c.Markets.StatsWindow <= 0 {
		return errors.New("STATS_WINDOW_SEC must be positive")
	}
	if c.Storage.CheckpointInterval <= 0 {
		return errors.New("CHECKPOINT_INTERVAL_MS must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("KAFKA_TOPIC is required with KAFKA_BROKERS")
	}
	switch c.Feeder.Mode {
	case "default", "high":
	default:
		return errors.Newf("unknown FEEDER_MODE %q", c.Feeder.Mode)
	}
	return nil
}

// parser collects every malformed value instead of stopping at the first.
type parser struct {
	getenv func(string) string
	errs   []string
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, key+": "+err.Error())
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) list(key string, def []string) []string {
	v := p.getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (p *parser) int64(key string, def int64) int64 {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) millis(key string, def time.Duration) time.Duration {
	return time.Duration(p.int64(key, int64(def/time.Millisecond))) * time.Millisecond
}

func (p *parser) bool(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}
