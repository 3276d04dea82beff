package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-fx-advisor/internal/engine"
	"llm-fx-advisor/internal/store"
	"llm-fx-advisor/internal/types"
)

type fakeAdvisor struct {
	mu         sync.Mutex
	analyzeErr error
	adviseErr  error
	result     types.AdvisoryResult
	analyzed   []string
}

func (f *fakeAdvisor) Analyze(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.Analysis, error) {
	f.mu.Lock()
	f.analyzed = append(f.analyzed, fmt.Sprintf("%s/%s/%s", symbol, tf, period))
	f.mu.Unlock()
	if f.analyzeErr != nil {
		return types.Analysis{}, f.analyzeErr
	}
	return types.Analysis{
		Symbol:    symbol,
		Timeframe: tf,
		Period:    period,
		Technical: types.TechnicalSignal{Action: types.ActionBuy, Rule: "rsi", Indicator: "RSI", Value: 12.5, Threshold: 30},
		FetchedAt: time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeAdvisor) Advise(ctx context.Context, sessionID string, a types.Analysis) (types.AdvisoryRequest, types.AdvisoryResult, error) {
	if f.adviseErr != nil {
		return types.AdvisoryRequest{}, types.AdvisoryResult{}, f.adviseErr
	}
	return types.AdvisoryRequest{ID: "req-1", Symbol: a.Symbol, Timeframe: a.Timeframe, Prompt: "p"}, f.result, nil
}

type fakeHistory struct {
	symbol string
	limit  int
}

func (h *fakeHistory) Recent(ctx context.Context, symbol string, limit int) ([]types.JournalEntry, error) {
	h.symbol, h.limit = symbol, limit
	return []types.JournalEntry{{Symbol: symbol, Signal: types.SignalBuy, Confidence: 70}}, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, adv *fakeAdvisor, opts ...Option) *Server {
	t.Helper()
	cfg := store.Default()
	return New(cfg, adv, engine.NewSessionStore(), opts...)
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeAdvisor{}, WithOracleName("noop/none"))
	rec, env := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "noop/none", data["oracle"])
}

func TestSignalUsesConfigDefaults(t *testing.T) {
	adv := &fakeAdvisor{}
	s := newTestServer(t, adv)

	rec, env := do(t, s, http.MethodGet, "/api/v1/signal/EURUSD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"EURUSD/1m/1d"}, adv.analyzed)

	var a types.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, types.ActionBuy, a.Technical.Action)
	assert.Equal(t, "rsi", a.Technical.Rule)
}

func TestSignalQueryOverrides(t *testing.T) {
	adv := &fakeAdvisor{}
	s := newTestServer(t, adv)

	rec, _ := do(t, s, http.MethodGet, "/api/v1/signal/GBPUSD?timeframe=1h&period=5d", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"GBPUSD/1h/5d"}, adv.analyzed)
}

func TestSignalRejectsBadTimeframe(t *testing.T) {
	adv := &fakeAdvisor{}
	s := newTestServer(t, adv)

	rec, env := do(t, s, http.MethodGet, "/api/v1/signal/EURUSD?timeframe=2m", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, adv.analyzed)

	var errs []ValidationError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_ONEOF", errs[0].Code)
	assert.Equal(t, "Timeframe", errs[0].Field)
}

func TestSignalErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient", &types.InsufficientDataError{Need: 15, Have: 5}, http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"},
		{"unavailable", fmt.Errorf("yahoo: %w", types.ErrDataUnavailable), http.StatusNotFound, "ERR_DATA_UNAVAILABLE"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, &fakeAdvisor{analyzeErr: tc.err})
			rec, env := do(t, s, http.MethodGet, "/api/v1/signal/EURUSD", "")
			require.Equal(t, tc.status, rec.Code)

			var errs []AppError
			require.NoError(t, json.Unmarshal(env.Data, &errs))
			require.Len(t, errs, 1)
			assert.Equal(t, tc.code, errs[0].Code)
		})
	}
}

func TestInsufficientDataCarriesCounts(t *testing.T) {
	s := newTestServer(t, &fakeAdvisor{analyzeErr: &types.InsufficientDataError{Need: 15, Have: 5}})
	_, env := do(t, s, http.MethodGet, "/api/v1/signal/EURUSD", "")

	var errs []AppError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.EqualValues(t, 15, errs[0].Params["need"])
	assert.EqualValues(t, 5, errs[0].Params["have"])
}

func TestAdviceCreatesAndReusesSession(t *testing.T) {
	adv := &fakeAdvisor{result: types.AdvisoryResult{Signal: types.SignalBuy, Confidence: 72, Reason: "oversold bounce"}}
	s := newTestServer(t, adv)

	rec, env := do(t, s, http.MethodPost, "/api/v1/advice", `{"session_id":"desk-1","symbol":"eurusd"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess engine.Session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Equal(t, "desk-1", sess.ID)
	assert.Equal(t, "EURUSD", sess.Symbol)
	assert.Equal(t, engine.StatusAdvised, sess.Status)
	require.NotNil(t, sess.Advisory)
	assert.Equal(t, types.SignalBuy, sess.Advisory.Signal)
	assert.Equal(t, 72, sess.Advisory.Confidence)

	_, _ = do(t, s, http.MethodPost, "/api/v1/advice", `{"session_id":"desk-1","symbol":"EURUSD"}`)
	rec, env = do(t, s, http.MethodGet, "/api/v1/sessions/desk-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Equal(t, 2, sess.Refreshes)
}

func TestAdviceWithoutSessionIDGetsOne(t *testing.T) {
	adv := &fakeAdvisor{result: types.AdvisoryResult{Signal: types.SignalWait, Reason: "flat"}}
	s := newTestServer(t, adv)

	rec, env := do(t, s, http.MethodPost, "/api/v1/advice", `{"symbol":"USDJPY"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess engine.Session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.NotEmpty(t, sess.ID)

	rec, env = do(t, s, http.MethodGet, "/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []engine.Session
	require.NoError(t, json.Unmarshal(env.Data, &all))
	require.Len(t, all, 1)
	assert.Equal(t, sess.ID, all[0].ID)
}

func TestAdviceInFlightIsConflict(t *testing.T) {
	adv := &fakeAdvisor{adviseErr: fmt.Errorf("session s1: %w", types.ErrAdvisoryInFlight)}
	s := newTestServer(t, adv)

	rec, env := do(t, s, http.MethodPost, "/api/v1/advice", `{"session_id":"s1","symbol":"EURUSD"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var errs []AppError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	assert.Equal(t, "ERR_IN_FLIGHT", errs[0].Code)

	sess, ok := s.sessions.Get("s1")
	require.True(t, ok)
	assert.Equal(t, engine.StatusReady, sess.Status)
}

func TestAdviceDataFailureIsRecordedOnSession(t *testing.T) {
	adv := &fakeAdvisor{analyzeErr: fmt.Errorf("kite: %w", types.ErrDataUnavailable)}
	s := newTestServer(t, adv)

	rec, _ := do(t, s, http.MethodPost, "/api/v1/advice", `{"session_id":"s2","symbol":"EURUSD"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	sess, ok := s.sessions.Get("s2")
	require.True(t, ok)
	assert.Equal(t, engine.StatusFailed, sess.Status)
	assert.Contains(t, sess.LastError, "market data unavailable")
}

func TestAdviceRequiresSymbol(t *testing.T) {
	s := newTestServer(t, &fakeAdvisor{})
	rec, _ := do(t, s, http.MethodPost, "/api/v1/advice", `{"session_id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t, &fakeAdvisor{})
	rec, _ := do(t, s, http.MethodGet, "/api/v1/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModels(t *testing.T) {
	s := newTestServer(t, &fakeAdvisor{})
	rec, env := do(t, s, http.MethodGet, "/api/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "gemini", data["provider"])
}

func TestHistory(t *testing.T) {
	t.Run("without sqlite", func(t *testing.T) {
		s := newTestServer(t, &fakeAdvisor{})
		rec, _ := do(t, s, http.MethodGet, "/api/v1/history/EURUSD", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("default limit", func(t *testing.T) {
		h := &fakeHistory{}
		s := newTestServer(t, &fakeAdvisor{}, WithHistory(h))
		rec, env := do(t, s, http.MethodGet, "/api/v1/history/eurusd", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "EURUSD", h.symbol)
		assert.Equal(t, 20, h.limit)

		var rows []types.JournalEntry
		require.NoError(t, json.Unmarshal(env.Data, &rows))
		require.Len(t, rows, 1)
	})

	t.Run("limit capped", func(t *testing.T) {
		s := newTestServer(t, &fakeAdvisor{}, WithHistory(&fakeHistory{}))
		rec, _ := do(t, s, http.MethodGet, "/api/v1/history/EURUSD?limit=500", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	s := newTestServer(t, &fakeAdvisor{}, WithRegistry(reg))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "advisor_test_total 1")
}

func TestAdviceDisabledStopsAtAnalysis(t *testing.T) {
	adv := &fakeAdvisor{result: types.AdvisoryResult{Signal: types.SignalBuy, Confidence: 90, Reason: "x"}}
	cfg := store.Default()
	cfg.Advisory.Enabled = false
	s := New(cfg, adv, nil)

	rec, env := do(t, s, http.MethodPost, "/api/v1/advice", `{"session_id":"s3","symbol":"EURUSD"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess engine.Session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Equal(t, engine.StatusAnalyzed, sess.Status)
	assert.Nil(t, sess.Advisory)
}
