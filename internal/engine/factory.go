package engine

import (
	"fmt"
	"time"

	"llm-fx-advisor/internal/advisory"
	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/journal"
	"llm-fx-advisor/internal/metrics"
	"llm-fx-advisor/internal/signal"
	"llm-fx-advisor/internal/store"
	"llm-fx-advisor/internal/ta"
	"llm-fx-advisor/internal/types"
)

// Option customizes an Engine.
type Option func(*Engine)

// WithHeadlines adds news headlines to advisory prompts.
func WithHeadlines(h interfaces.HeadlineProvider) Option {
	return func(e *Engine) { e.headlines = h }
}

// WithJournal records every advisory outcome.
func WithJournal(j interfaces.Journal) Option {
	return func(e *Engine) {
		if j != nil {
			e.journal = j
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithOracleTimeout overrides llm.timeout_seconds.
func WithOracleTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New wires the stages from cfg around a market data source and an oracle.
func New(cfg *store.Config, src interfaces.MarketDataSource, oracle interfaces.Oracle, opts ...Option) (*Engine, error) {
	strategy, err := signal.New(cfg.Signal.Strategy, signal.Thresholds{
		RSIOversold:       cfg.Signal.RSIOversold,
		RSIOverbought:     cfg.Signal.RSIOverbought,
		ADXTrendThreshold: cfg.Signal.ADXTrendThreshold,
	})
	if err != nil {
		return nil, err
	}

	enabled, err := types.ParseIndicatorSet(cfg.Indicators.Enabled)
	if err != nil {
		return nil, fmt.Errorf("indicators.enabled: %w", err)
	}
	for k := range strategy.Indicators() {
		enabled[k] = true
	}

	var chartTF types.Timeframe
	if cfg.ChartTimeframe != "" {
		if chartTF, err = types.ParseTimeframe(cfg.ChartTimeframe); err != nil {
			return nil, fmt.Errorf("chart_timeframe: %w", err)
		}
	}

	fields := advisory.FieldNames{
		Signal:     cfg.Advisory.Fields.Signal,
		Confidence: cfg.Advisory.Fields.Confidence,
		Reason:     cfg.Advisory.Fields.Reason,
	}

	e := &Engine{
		source:   src,
		oracle:   oracle,
		strategy: strategy,
		ta: ta.NewEngine(ta.Params{
			RSILength: cfg.Indicators.RSIPeriod,
			ADXLength: cfg.Indicators.ADXPeriod,
			EMALength: cfg.Indicators.EMAPeriod,
			BBLength:  cfg.Indicators.BBWindow,
			BBStdDev:  cfg.Indicators.BBStdDev,
		}),
		indicators: enabled,
		builder: advisory.NewBuilder(advisory.BuilderConfig{
			RecentBars:    cfg.Advisory.RecentBars,
			PriceDecimals: cfg.Advisory.PriceDecimals,
			Persona:       cfg.Advisory.Persona,
			Fields:        fields,
		}),
		parser: advisory.NewParser(advisory.ParserConfig{
			Fields:       fields,
			MaxReasonLen: cfg.Advisory.MaxReasonLen,
		}),
		chartTF:      chartTF,
		maxHeadlines: cfg.News.MaxHeadlines,
		timeout:      cfg.LLMTimeout(),
		journal:      journal.Noop{},
		inflight:     make(map[string]struct{}),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}
