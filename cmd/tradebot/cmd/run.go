package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebot/agent"
	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/broker/binance"
	"github.com/rustyeddy/tradebot/broker/sim"
	"github.com/rustyeddy/tradebot/compliance"
	"github.com/rustyeddy/tradebot/config"
	"github.com/rustyeddy/tradebot/engine"
	"github.com/rustyeddy/tradebot/indicators"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/risk"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading cycle engine",
	Long: `Start the engine with the configured profile and run until interrupted.

Examples:
  tradebot run --config tradebot.yaml
  tradebot run --config tradebot.yaml --once`,
	RunE: runEngine,
}

var (
	runConfigPath string
	runEnvPath    string
	runProfile    string
	runOnce       bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to config file (default: built-in defaults)")
	runCmd.Flags().StringVarP(&runEnvPath, "env", "e", ".env", "path to .env file with secrets")
	runCmd.Flags().StringVarP(&runProfile, "profile", "p", "", "override the configured profile (fast or slow)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single cycle and exit")
}

func runEngine(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotenv(runEnvPath); err != nil {
		return err
	}
	cfg := config.Default()
	if runConfigPath != "" {
		var err error
		cfg, err = config.LoadFromFile(runConfigPath)
		if err != nil {
			return err
		}
	}
	if runProfile != "" {
		cfg.Profile.Name = runProfile
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("profile", cfg.Profile.Name)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Journal
	jrnl, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jrnl.Close()

	var mirror journal.Sink
	if cfg.Journal.CSVPath != "" {
		mirror, err = journal.NewCSV(cfg.Journal.CSVPath)
		if err != nil {
			return fmt.Errorf("open audit mirror: %w", err)
		}
		defer mirror.Close()
	}

	// Market data and venue
	capacity := market.DefaultWindowCapacity
	if cfg.Profile.LookbackBars > capacity {
		capacity = cfg.Profile.LookbackBars
	}
	store := market.NewWindowStore(capacity)

	client := binance.NewClient(cfg.Venue.APIKey(), cfg.Venue.SecretKey(), cfg.Venue.Testnet)

	var venue broker.Venue = client
	if cfg.Venue.Type == "sim" {
		venue = newPaperVenue(ctx, client, cfg.Profile.Universe, log)
	}

	var data broker.MarketData = client
	var latestPrice func(string) (float64, bool)
	if cfg.Profile.Name == "fast" {
		// Stream closed candles into the window; poll only for the backfill.
		if err := backfill(ctx, client, store, cfg.Profile.Universe, cfg.Profile.LookbackBars, log); err != nil {
			log.Warn("history backfill incomplete", "err", err)
		}
		stream := binance.NewStream(cfg.Profile.Universe, store, cfg.Venue.Testnet, log)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("stream stopped", "err", err)
			}
		}()
		latestPrice = stream.LatestPrice
		data = nil
	}

	// Risk
	dayFn := risk.CalendarDay
	loc := time.UTC
	if cfg.Profile.Name == "slow" {
		loc, err = time.LoadLocation(cfg.Profile.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone: %w", err)
		}
		dayFn = risk.SessionDay(loc)
	}
	ledger := risk.NewLedger(risk.Limits{
		MaxPositionPct: cfg.Risk.MaxPositionPct,
		DailyLossLimit: cfg.Risk.DailyLossLimit,
	}, dayFn, log)

	// Compliance
	cache := compliance.NewCache(
		compliance.NewStaticScreener(),
		time.Duration(cfg.Compliance.TTLMinutes)*time.Minute, log)

	// Reasoning provider
	var provider agent.Provider = agent.HoldProvider{}
	if cfg.Agent.Provider == "openai" {
		provider = agent.NewLLMProvider(agent.LLMConfig{
			BaseURL: cfg.Agent.BaseURL,
			APIKey:  cfg.Agent.APIKey(),
			Model:   cfg.Agent.Model,
			Timeout: cfg.Agent.Timeout(),
		}, log)
	}

	class := market.Crypto
	if cfg.Profile.Name == "slow" {
		class = market.Equity
	}
	orch := engine.New(
		engine.Config{
			Profile:         cfg.Profile.Name,
			Lookback:        cfg.Profile.LookbackBars,
			MaxPositionPct:  cfg.Risk.MaxPositionPct,
			ProviderTimeout: cfg.Agent.Timeout(),
		},
		engine.Deps{
			Universe:    market.NewUniverse(class, cfg.Profile.Universe...),
			Store:       store,
			Data:        data,
			Indicators:  indicators.NewEngine(0),
			Compliance:  cache,
			Ledger:      ledger,
			Provider:    provider,
			Venue:       venue,
			Journal:     jrnl,
			Mirror:      mirror,
			Day:         dayFn,
			LatestPrice: latestPrice,
			Log:         log,
		},
	)
	if err := orch.Restore(); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := engine.ServeMetrics(cfg.Metrics.Addr); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	if runOnce {
		return orch.RunCycle(ctx)
	}

	var schedErr error
	if cfg.Profile.Name == "fast" {
		s := engine.NewFastScheduler(orch, time.Duration(cfg.Profile.IntervalSec)*time.Second, log)
		schedErr = s.Run(ctx)
	} else {
		s := engine.NewSlowScheduler(orch, cfg.Profile.IntervalMin, loc, log)
		schedErr = s.Run(ctx)
	}
	if schedErr != nil && ctx.Err() != nil {
		log.Info("shutdown complete")
		return nil
	}
	return schedErr
}

// backfill seeds each instrument's window from REST history so the first
// cycle has warmed indicators instead of waiting for the stream.
func backfill(ctx context.Context, data broker.MarketData, store *market.WindowStore, universe []string, lookback int, log *slog.Logger) error {
	for _, id := range universe {
		bars, err := data.History(ctx, id, lookback)
		if err != nil {
			return err
		}
		for _, bar := range bars {
			if err := store.Append(id, bar); err != nil {
				return err
			}
		}
		log.Info("window backfilled", "instrument", id, "bars", len(bars))
	}
	return nil
}

// newPaperVenue builds a sim venue seeded with live prices, so paper runs
// fill at realistic levels.
func newPaperVenue(ctx context.Context, data broker.MarketData, universe []string, log *slog.Logger) *sim.Engine {
	venue := sim.NewEngine(100_000)
	for _, id := range universe {
		bar, err := data.LatestBar(ctx, id)
		if err != nil {
			log.Warn("no seed price for paper venue", "instrument", id, "err", err)
			continue
		}
		venue.SetPrice(id, bar.Close)
	}
	return venue
}
