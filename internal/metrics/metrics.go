package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"llm-fx-advisor/internal/types"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	RefreshesTotal  *prometheus.CounterVec   // labels: symbol, outcome
	AdvisoriesTotal *prometheus.CounterVec   // labels: symbol, signal
	TechnicalTotal  *prometheus.CounterVec   // labels: symbol, action
	StageDuration   *prometheus.HistogramVec // labels: stage
	LastPrice       *prometheus.GaugeVec     // labels: symbol
	LastRSI         *prometheus.GaugeVec     // labels: symbol
	InFlightRejects prometheus.Counter
}

// New registers every collector on reg. Passing nil creates a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RefreshesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_refreshes_total",
			Help: "Pipeline refreshes by outcome (ok, data_unavailable, insufficient_data, error)",
		}, []string{"symbol", "outcome"}),
		AdvisoriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_advisories_total",
			Help: "Advisory results by signal, ERROR included",
		}, []string{"symbol", "signal"}),
		TechnicalTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_technical_signals_total",
			Help: "Deterministic technical signals by action",
		}, []string{"symbol", "action"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "advisor_stage_duration_seconds",
			Help:    "Latency of each pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		LastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "advisor_last_price",
			Help: "Close of the newest bar used for a signal",
		}, []string{"symbol"}),
		LastRSI: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "advisor_last_rsi",
			Help: "RSI at the newest bar",
		}, []string{"symbol"}),
		InFlightRejects: f.NewCounter(prometheus.CounterOpts{
			Name: "advisor_inflight_rejections_total",
			Help: "Advise calls rejected because the session already had one in flight",
		}),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) Refresh(symbol, outcome string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(symbol, outcome).Inc()
}

func (m *Metrics) Analysis(a types.Analysis) {
	if m == nil {
		return
	}
	m.TechnicalTotal.WithLabelValues(a.Symbol, string(a.Technical.Action)).Inc()
	m.LastPrice.WithLabelValues(a.Symbol).Set(a.Snapshot.Price)
	m.LastRSI.WithLabelValues(a.Symbol).Set(a.Snapshot.RSI)
}

func (m *Metrics) Advisory(symbol string, r types.AdvisoryResult) {
	if m == nil {
		return
	}
	m.AdvisoriesTotal.WithLabelValues(symbol, string(r.Signal)).Inc()
}

func (m *Metrics) InFlightRejected() {
	if m == nil {
		return
	}
	m.InFlightRejects.Inc()
}
