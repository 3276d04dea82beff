package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"llm-fx-advisor/internal/advisory"
	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/metrics"
	"llm-fx-advisor/internal/ta"
	"llm-fx-advisor/internal/types"
)

// Engine runs bars -> indicators -> technical signal -> prompt -> oracle -> result.
// Apart from the per-session in-flight guard it keeps no state between calls.
type Engine struct {
	source     interfaces.MarketDataSource
	oracle     interfaces.Oracle
	strategy   interfaces.Strategy
	ta         *ta.Engine
	indicators types.IndicatorSet
	builder    *advisory.Builder
	parser     *advisory.Parser
	headlines  interfaces.HeadlineProvider
	journal    interfaces.Journal
	metrics    *metrics.Metrics

	chartTF      types.Timeframe
	maxHeadlines int
	timeout      time.Duration
	now          func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

var _ interfaces.Advisor = (*Engine)(nil)

func (e *Engine) Strategy() interfaces.Strategy { return e.strategy }

// MinBars is how many bars the configured indicators need for one complete row.
func (e *Engine) MinBars() int { return e.ta.MinBars(e.indicators) }

// Analyze is the deterministic half: fetch, compute indicators, classify.
func (e *Engine) Analyze(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.Analysis, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return types.Analysis{}, fmt.Errorf("empty symbol: %w", types.ErrDataUnavailable)
	}
	logger.Debug(ctx, "Starting analysis", "symbol", symbol, "timeframe", tf, "period", period)

	start := e.now()
	series, err := e.source.Fetch(ctx, symbol, tf, period)
	e.metrics.ObserveStage("fetch", e.now().Sub(start))
	if err != nil {
		e.metrics.Refresh(symbol, outcome(err))
		return types.Analysis{}, err
	}
	logger.Debug(ctx, "Bars fetched", "symbol", symbol, "count", series.Len())

	start = e.now()
	rows, err := e.ta.Compute(series, e.indicators)
	e.metrics.ObserveStage("indicators", e.now().Sub(start))
	if err != nil {
		e.metrics.Refresh(symbol, outcome(err))
		return types.Analysis{}, fmt.Errorf("%s %s/%s: %w", symbol, tf, period, err)
	}

	snap, ok := rows.Snapshot()
	if !ok {
		err := fmt.Errorf("%s %s/%s: no complete indicator row: %w", symbol, tf, period, types.ErrInsufficientData)
		e.metrics.Refresh(symbol, outcome(err))
		return types.Analysis{}, err
	}
	technical := e.strategy.Classify(snap)

	a := types.Analysis{
		Symbol:    symbol,
		Timeframe: tf,
		Period:    period,
		Series:    rows,
		Snapshot:  snap,
		Technical: technical,
		FetchedAt: e.now(),
	}
	if e.chartTF != "" && e.chartTF != tf {
		chart, err := e.source.Fetch(ctx, symbol, e.chartTF, period)
		if err != nil {
			logger.Warn(ctx, "Chart data unavailable", "symbol", symbol, "timeframe", e.chartTF, "error", err)
		} else {
			a.Chart = &chart
		}
	}

	e.metrics.Refresh(symbol, "ok")
	e.metrics.Analysis(a)
	logger.Info(ctx, "Technical signal",
		"symbol", symbol,
		"price", snap.Price,
		"rsi", snap.RSI,
		"action", technical.Action,
		"rule", technical.Rule,
	)
	return a, nil
}

// Advise asks the oracle about an analysis. Oracle and parse failures come back as an ERROR
// result, not as an error; the only error is ErrAdvisoryInFlight.
func (e *Engine) Advise(ctx context.Context, sessionID string, a types.Analysis) (types.AdvisoryRequest, types.AdvisoryResult, error) {
	if !e.acquire(sessionID) {
		e.metrics.InFlightRejected()
		return types.AdvisoryRequest{}, types.AdvisoryResult{}, fmt.Errorf("session %s: %w", sessionID, types.ErrAdvisoryInFlight)
	}
	defer e.release(sessionID)

	var headlines []string
	if e.headlines != nil {
		headlines = e.headlines.Headlines(ctx, a.Symbol, e.maxHeadlines)
	}
	req := e.builder.Build(a, headlines)

	start := e.now()
	result := e.consult(ctx, req)
	latency := e.now().Sub(start)
	e.metrics.ObserveStage("oracle", latency)
	e.metrics.Advisory(a.Symbol, result)

	logger.Advisory(ctx, a.Symbol, string(result.Signal), result.Confidence, result.Reason,
		"request_id", req.ID,
		"session_id", sessionID,
		"technical", a.Technical.Action,
		"latency_ms", latency.Milliseconds(),
	)

	entry := types.JournalEntry{
		Time:          e.now(),
		SessionID:     sessionID,
		RequestID:     req.ID,
		Symbol:        a.Symbol,
		Timeframe:     a.Timeframe,
		Price:         a.Snapshot.Price,
		RSI:           a.Snapshot.RSI,
		ADX:           a.Snapshot.ADX,
		Technical:     a.Technical.Action,
		TechnicalRule: a.Technical.Rule,
		Signal:        result.Signal,
		Confidence:    result.Confidence,
		Reason:        result.Reason,
		Oracle:        e.oracle.Name(),
		LatencyMs:     latency.Milliseconds(),
	}
	if err := e.journal.Record(ctx, entry); err != nil {
		logger.Warn(ctx, "Failed to journal advisory", "symbol", a.Symbol, "error", err)
	}

	return req, result, nil
}

func (e *Engine) consult(ctx context.Context, req types.AdvisoryRequest) types.AdvisoryResult {
	octx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		octx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.oracle.Complete(octx, req.Prompt)
	if err != nil {
		if errors.Is(octx.Err(), context.DeadlineExceeded) {
			return types.ErrorResult(fmt.Sprintf("advisory oracle timed out after %s", e.timeout))
		}
		logger.Warn(ctx, "Advisory oracle failed", "request_id", req.ID, "error", err)
		return types.ErrorResult(types.ErrOracleUnavailable.Error())
	}

	result, perr := e.parser.Decode(raw)
	if perr != nil {
		logger.Warn(ctx, "Advisory response rejected", "request_id", req.ID, "error", perr)
		return e.parser.Parse(raw)
	}
	return result
}

func (e *Engine) acquire(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[sessionID]; busy {
		return false
	}
	e.inflight[sessionID] = struct{}{}
	return true
}

func (e *Engine) release(sessionID string) {
	e.mu.Lock()
	delete(e.inflight, sessionID)
	e.mu.Unlock()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, types.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, types.ErrDataUnavailable):
		return "data_unavailable"
	default:
		return "error"
	}
}
