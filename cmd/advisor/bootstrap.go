package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"llm-fx-advisor/internal/api"
	"llm-fx-advisor/internal/engine"
	"llm-fx-advisor/internal/engine/engineobs"
	"llm-fx-advisor/internal/eod"
	"llm-fx-advisor/internal/eod/eodobs"
	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/journal"
	"llm-fx-advisor/internal/llm"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/marketdata"
	"llm-fx-advisor/internal/marketdata/marketdataobs"
	"llm-fx-advisor/internal/metrics"
	"llm-fx-advisor/internal/news"
	"llm-fx-advisor/internal/scheduler"
	"llm-fx-advisor/internal/store"
	"llm-fx-advisor/internal/trace"
	"llm-fx-advisor/internal/types"
)

// app is everything a command needs, built once from config.
type app struct {
	cfg      *store.Config
	registry *prometheus.Registry
	oracle   interfaces.Oracle
	advisor  interfaces.Advisor
	sessions *engine.SessionStore
	journal  interfaces.Journal
	eod      interfaces.EodSummarizer
}

// initializeSystem loads .env and starts logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	// stdout carries command output
	lc := logger.LoadConfigFromEnv()
	lc.Output = os.Stderr
	if err := logger.InitWithConfig(lc); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(version); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func initializeMarketData(ctx context.Context, cfg *store.Config) (interfaces.MarketDataSource, error) {
	src, err := marketdata.New(ctx, marketdata.Params{
		Provider: cfg.MarketData.Provider,
		TTL:      cfg.TTL(),
		Redis: marketdata.RedisParams{
			Addr:     cfg.MarketData.Redis.Addr,
			Password: cfg.MarketData.Redis.Password,
			DB:       cfg.MarketData.Redis.DB,
		},
		Yahoo: marketdata.YahooParams{
			BaseURL:   cfg.MarketData.BaseURL,
			SymbolMap: cfg.MarketData.SymbolMap,
			Retry: &api.RetryConfig{
				MaxAttempts: cfg.MarketData.Retry.MaxAttempts,
				InitialWait: time.Duration(cfg.MarketData.Retry.InitialWaitMs) * time.Millisecond,
				MaxWait:     time.Duration(cfg.MarketData.Retry.MaxWaitMs) * time.Millisecond,
			},
		},
		Kite: marketdata.KiteParams{
			APIKey:      os.Getenv("KITE_API_KEY"),
			AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
			Exchange:    cfg.MarketData.Exchange,
		},
	})
	if err != nil {
		return nil, err
	}

	if cfg.MarketData.Provider == "static" {
		logger.Warn(ctx, "Using STATIC bars - signals are for testing only")
	} else {
		logger.Info(ctx, "Market data provider ready", "provider", src.Name(), "ttl", cfg.TTL())
	}
	return marketdataobs.Wrap(src), nil
}

func initializeHeadlines(ctx context.Context, cfg *store.Config) interfaces.HeadlineProvider {
	if !cfg.News.Enabled {
		return nil
	}
	sources := make([]news.Source, 0, len(cfg.News.Sources))
	for _, s := range cfg.News.Sources {
		sources = append(sources, news.Source{Name: s.Name, URL: s.URL, Container: s.Container, Title: s.Title})
	}
	scraper := news.NewScraper(sources, time.Duration(cfg.News.TimeoutSeconds)*time.Second)
	logger.Info(ctx, "Headline enrichment enabled", "max", cfg.News.MaxHeadlines, "cache_minutes", cfg.News.CacheMinutes)
	return news.NewService(scraper, news.ServiceConfig{
		Enabled:       true,
		MaxHeadlines:  cfg.News.MaxHeadlines,
		CacheDuration: time.Duration(cfg.News.CacheMinutes) * time.Minute,
	})
}

// buildApp wires data source, oracle, journal, metrics and engine from cfg.
func buildApp(ctx context.Context, cfg *store.Config) (*app, error) {
	src, err := initializeMarketData(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("market data: %w", err)
	}

	jrn, err := journal.New(journal.Params{
		Backend:    cfg.Journal.Backend,
		Dir:        cfg.Journal.Dir,
		SQLitePath: cfg.Journal.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	reg := prometheus.NewRegistry()
	oracle := llm.New(ctx, cfg)

	opts := []engine.Option{
		engine.WithJournal(jrn),
		engine.WithMetrics(metrics.New(reg)),
	}
	if h := initializeHeadlines(ctx, cfg); h != nil {
		opts = append(opts, engine.WithHeadlines(h))
	}

	eng, err := engine.New(cfg, src, oracle, opts...)
	if err != nil {
		_ = jrn.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}

	summarizer, err := newSummarizer(cfg)
	if err != nil {
		_ = jrn.Close()
		return nil, fmt.Errorf("eod: %w", err)
	}

	logger.Info(ctx, "Advisor ready",
		"strategy", eng.Strategy().Name(),
		"min_bars", eng.MinBars(),
		"oracle", oracle.Name(),
		"journal", cfg.Journal.Backend,
	)

	return &app{
		cfg:      cfg,
		registry: reg,
		oracle:   oracle,
		advisor:  engineobs.Wrap(eng),
		sessions: engine.NewSessionStore(),
		journal:  jrn,
		eod:      summarizer,
	}, nil
}

func newSummarizer(cfg *store.Config) (interfaces.EodSummarizer, error) {
	s, err := eod.NewSummarizer(eod.Params{
		JournalDir: cfg.Journal.Dir,
		OutDir:     cfg.EOD.Dir,
		CutoffUTC:  cfg.EOD.CutoffUTC,
	})
	if err != nil {
		return nil, err
	}
	return eodobs.Wrap(s), nil
}

func (a *app) scheduler(ctx context.Context, advise bool) *scheduler.Scheduler {
	p := scheduler.Params{
		Schedule:  a.cfg.Refresh.Schedule,
		Advise:    advise,
		Symbols:   a.cfg.Symbols,
		Timeframe: types.Timeframe(a.cfg.Timeframe),
		Period:    types.Period(a.cfg.Period),
	}
	// compression and the daily CSV both read the JSONL files
	if a.cfg.Journal.Backend == "jsonl" {
		p.JournalDir = a.cfg.Journal.Dir
		p.RetentionDays = a.cfg.Journal.RetentionDays
		return scheduler.New(ctx, a.advisor, a.sessions, a.eod, p)
	}
	return scheduler.New(ctx, a.advisor, a.sessions, nil, p)
}

func (a *app) close(ctx context.Context) {
	if err := a.journal.Close(); err != nil {
		logger.Warn(ctx, "Failed to close journal", "error", err)
	}
	if err := trace.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Failed to shut down tracer", "error", err)
	}
}
