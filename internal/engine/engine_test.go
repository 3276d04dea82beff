package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-fx-advisor/internal/store"
	"llm-fx-advisor/internal/types"
)

type fakeSource struct {
	mu    sync.Mutex
	bars  int
	err   error
	calls []types.Timeframe
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.BarSeries, error) {
	f.mu.Lock()
	f.calls = append(f.calls, tf)
	f.mu.Unlock()
	if f.err != nil {
		return types.BarSeries{}, f.err
	}
	return fallingSeries(symbol, tf, period, f.bars), nil
}

func fallingSeries(symbol string, tf types.Timeframe, period types.Period, n int) types.BarSeries {
	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, n)
	for i := range bars {
		c := 1.2000 - 0.0010*float64(i)
		bars[i] = types.Bar{
			Time:  start.Add(time.Duration(i) * time.Hour),
			Open:  c + 0.0004,
			High:  c + 0.0006,
			Low:   c - 0.0005,
			Close: c,
		}
	}
	return types.BarSeries{Symbol: symbol, Timeframe: tf, Period: period, Bars: bars}
}

type fakeOracle struct {
	reply   string
	err     error
	block   chan struct{}
	entered chan struct{}
	prompts []string
	mu      sync.Mutex
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

type memJournal struct {
	mu      sync.Mutex
	entries []types.JournalEntry
}

func (m *memJournal) Record(_ context.Context, e types.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memJournal) Close() error { return nil }

type staticHeadlines []string

func (s staticHeadlines) Headlines(context.Context, string, int) []string { return s }

func newTestEngine(t *testing.T, src *fakeSource, oracle *fakeOracle, opts ...Option) *Engine {
	t.Helper()
	e, err := New(store.Default(), src, oracle, opts...)
	require.NoError(t, err)
	return e
}

func TestEndToEnd_FallingSeriesIsBuy(t *testing.T) {
	src := &fakeSource{bars: 30}
	oracle := &fakeOracle{reply: "```json\n{\"signal\": \"BUY\", \"confidence\": 78, \"reason\": \"Deeply oversold after a steady decline\"}\n```"}
	j := &memJournal{}
	e := newTestEngine(t, src, oracle, WithJournal(j))

	a, err := e.Analyze(context.Background(), "eurusd", types.TF1h, types.Period("5d"))
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", a.Symbol)
	assert.Less(t, a.Snapshot.RSI, 30.0)
	assert.Equal(t, types.ActionBuy, a.Technical.Action)
	assert.Equal(t, "rsi_threshold", a.Technical.Rule)
	require.Len(t, a.Series.Rows, 30-e.MinBars()+1)
	last := a.Series.Rows[len(a.Series.Rows)-1]
	assert.Equal(t, last.Close, a.Snapshot.Price)
	assert.Equal(t, last.Time, a.Snapshot.Time)
	assert.Nil(t, a.Chart)

	req, res, err := e.Advise(context.Background(), "s1", a)
	require.NoError(t, err)
	assert.Equal(t, types.AdvisoryResult{
		Signal:     types.SignalBuy,
		Confidence: 78,
		Reason:     "Deeply oversold after a steady decline",
	}, res)
	assert.NotEmpty(t, req.ID)
	assert.Len(t, req.RecentBars, 10)
	require.Len(t, oracle.prompts, 1)
	assert.Equal(t, req.Prompt, oracle.prompts[0])

	require.Len(t, j.entries, 1)
	assert.Equal(t, types.SignalBuy, j.entries[0].Signal)
	assert.Equal(t, types.ActionBuy, j.entries[0].Technical)
	assert.Equal(t, req.ID, j.entries[0].RequestID)
	assert.Equal(t, "s1", j.entries[0].SessionID)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	e := newTestEngine(t, &fakeSource{bars: 10}, &fakeOracle{})

	_, err := e.Analyze(context.Background(), "EURUSD", types.TF1h, types.Period("1d"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientData)

	var ide *types.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, e.MinBars(), ide.Need)
	assert.Equal(t, 10, ide.Have)
}

func TestAnalyze_DataUnavailable(t *testing.T) {
	e := newTestEngine(t, &fakeSource{err: types.ErrDataUnavailable}, &fakeOracle{})

	_, err := e.Analyze(context.Background(), "XXXYYY", types.TF1h, types.Period("1d"))
	assert.ErrorIs(t, err, types.ErrDataUnavailable)

	_, err = e.Analyze(context.Background(), "  ", types.TF1h, types.Period("1d"))
	assert.ErrorIs(t, err, types.ErrDataUnavailable)
}

func TestAnalyze_ChartTimeframe(t *testing.T) {
	cfg := store.Default()
	cfg.ChartTimeframe = "5m"
	src := &fakeSource{bars: 40}
	e, err := New(cfg, src, &fakeOracle{})
	require.NoError(t, err)

	a, err := e.Analyze(context.Background(), "EURUSD", types.TF1h, types.Period("5d"))
	require.NoError(t, err)
	require.NotNil(t, a.Chart)
	assert.Equal(t, types.TF5m, a.Chart.Timeframe)
	assert.Equal(t, []types.Timeframe{types.TF1h, types.TF5m}, src.calls)
}

func TestAdvise_OracleFailureIsErrorResult(t *testing.T) {
	oracle := &fakeOracle{err: errors.New(`POST https://api.example.com/v1/chat: 401 {"error":"bad key sk-live-123"}`)}
	j := &memJournal{}
	e := newTestEngine(t, &fakeSource{bars: 30}, oracle, WithJournal(j))

	a, err := e.Analyze(context.Background(), "EURUSD", types.TF1h, types.Period("5d"))
	require.NoError(t, err)

	_, res, err := e.Advise(context.Background(), "s1", a)
	require.NoError(t, err)
	assert.Equal(t, types.SignalError, res.Signal)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, types.ErrOracleUnavailable.Error(), res.Reason)
	assert.NotContains(t, res.Reason, "sk-live")
	assert.Equal(t, types.ActionBuy, a.Technical.Action)
	require.Len(t, j.entries, 1)
	assert.Equal(t, types.SignalError, j.entries[0].Signal)
}

func TestAdvise_MalformedReply(t *testing.T) {
	e := newTestEngine(t, &fakeSource{bars: 30}, &fakeOracle{reply: "I think you should buy."})

	a, err := e.Analyze(context.Background(), "EURUSD", types.TF1h, types.Period("5d"))
	require.NoError(t, err)

	_, res, err := e.Advise(context.Background(), "s1", a)
	require.NoError(t, err)
	assert.Equal(t, types.SignalError, res.Signal)
	assert.NotEmpty(t, res.Reason)
}

func TestAdvise_Timeout(t *testing.T) {
	oracle := &fakeOracle{block: make(chan struct{})}
	e := newTestEngine(t, &fakeSource{bars: 30}, oracle, WithOracleTimeout(50*time.Millisecond))

	a, err := e.Analyze(context.Background(), "EURUSD", types.TF1h, types.Period("5d"))
	require.NoError(t, err)

	_, res, err := e.Advise(context.Background(), "s1", a)
	require.NoError(t, err)
	assert.Equal(t, types.SignalError, res.Signal)
	assert.Contains(t, res.Reason, "timed out")
}

func TestAdvise_OneInFlightPerSession(t *testing.T) {
	oracle := &fakeOracle{
		reply:   `{"signal":"WAIT","confidence":10,"reason":"quiet"}`,
		block:   make(chan struct{}),
		entered: make(chan struct{}, 4),
	}
	e := newTestEngine(t, &fakeSource{bars: 30}, oracle)

	a, err := e.Analyze(context.Background(), "EURUSD", types.TF1h, types.Period("5d"))
	require.NoError(t, err)

	done := make(chan types.AdvisoryResult, 1)
	go func() {
		_, res, _ := e.Advise(context.Background(), "s1", a)
		done <- res
	}()
	<-oracle.entered

	_, _, err = e.Advise(context.Background(), "s1", a)
	assert.ErrorIs(t, err, types.ErrAdvisoryInFlight)

	close(oracle.block)
	res := <-done
	assert.Equal(t, types.SignalWait, res.Signal)

	_, res, err = e.Advise(context.Background(), "s1", a)
	require.NoError(t, err)
	assert.Equal(t, types.SignalWait, res.Signal)
}

func TestAdvise_HeadlinesInPrompt(t *testing.T) {
	oracle := &fakeOracle{reply: `{"signal":"WAIT","confidence":50,"reason":"news pending"}`}
	e := newTestEngine(t, &fakeSource{bars: 30}, oracle, WithHeadlines(staticHeadlines{"ECB holds rates steady"}))

	a, err := e.Analyze(context.Background(), "EURUSD", types.TF1h, types.Period("5d"))
	require.NoError(t, err)

	req, _, err := e.Advise(context.Background(), "s1", a)
	require.NoError(t, err)
	assert.Equal(t, []string{"ECB holds rates steady"}, req.Headlines)
	assert.Contains(t, req.Prompt, "ECB holds rates steady")
}

func TestNew_UnknownStrategy(t *testing.T) {
	cfg := store.Default()
	cfg.Signal.Strategy = "macd"
	_, err := New(cfg, &fakeSource{}, &fakeOracle{})
	assert.Error(t, err)
}
