package types

import "time"

// Analysis is the deterministic half of the pipeline: bars, indicators and the technical call.
type Analysis struct {
	Symbol    string            `json:"symbol"`
	Timeframe Timeframe         `json:"timeframe"`
	Period    Period            `json:"period"`
	Series    IndicatorSeries   `json:"-"`
	Snapshot  IndicatorSnapshot `json:"snapshot"`
	Technical TechnicalSignal   `json:"technical"`
	// Chart is an optional second fetch at a finer interval for display; it never feeds the signal.
	Chart     *BarSeries `json:"chart,omitempty"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// JournalEntry is one recorded advisory outcome.
type JournalEntry struct {
	Time          time.Time      `json:"time"`
	SessionID     string         `json:"session_id"`
	RequestID     string         `json:"request_id"`
	Symbol        string         `json:"symbol"`
	Timeframe     Timeframe      `json:"timeframe"`
	Price         float64        `json:"price"`
	RSI           float64        `json:"rsi"`
	ADX           *float64       `json:"adx,omitempty"`
	Technical     Action         `json:"technical"`
	TechnicalRule string         `json:"technical_rule"`
	Signal        AdvisorySignal `json:"signal"`
	Confidence    int            `json:"confidence"`
	Reason        string         `json:"reason"`
	Oracle        string         `json:"oracle"`
	LatencyMs     int64          `json:"latency_ms"`
}
