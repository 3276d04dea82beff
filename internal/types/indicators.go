package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// IndicatorKind names one computable indicator.
type IndicatorKind string

const (
	IndicatorRSI IndicatorKind = "rsi"
	IndicatorADX IndicatorKind = "adx"
	IndicatorEMA IndicatorKind = "ema"
	IndicatorBB  IndicatorKind = "bb"
)

// IndicatorSet is the requested set of indicators.
type IndicatorSet map[IndicatorKind]bool

// NewIndicatorSet builds a set; RSI is always included.
func NewIndicatorSet(kinds ...IndicatorKind) IndicatorSet {
	set := IndicatorSet{IndicatorRSI: true}
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

// ParseIndicatorSet parses names like "rsi", "adx", "ema", "bb".
func ParseIndicatorSet(names []string) (IndicatorSet, error) {
	kinds := make([]IndicatorKind, 0, len(names))
	for _, n := range names {
		k := IndicatorKind(strings.ToLower(strings.TrimSpace(n)))
		switch k {
		case IndicatorRSI, IndicatorADX, IndicatorEMA, IndicatorBB:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unknown indicator %q", n)
		}
	}
	return NewIndicatorSet(kinds...), nil
}

func (s IndicatorSet) Has(k IndicatorKind) bool {
	return s[k]
}

// IndicatorRow is a bar with its indicator columns. Columns that were not requested are NaN.
type IndicatorRow struct {
	Bar
	RSI      float64 `json:"rsi"`
	ADX      float64 `json:"adx"`
	EMA      float64 `json:"ema"`
	BBUpper  float64 `json:"bb_upper"`
	BBMiddle float64 `json:"bb_middle"`
	BBLower  float64 `json:"bb_lower"`
}

// IndicatorSeries holds only rows where every requested indicator is defined.
type IndicatorSeries struct {
	Symbol    string       `json:"symbol"`
	Timeframe Timeframe    `json:"timeframe"`
	Requested IndicatorSet `json:"-"`
	Rows      []IndicatorRow
	// Source keeps the full bar series so the prompt can include bars from the warm-up region.
	Source BarSeries `json:"-"`
}

// IndicatorSnapshot is the latest row reduced to what the classifier and prompt need.
type IndicatorSnapshot struct {
	Time    time.Time `json:"time"`
	Price   float64   `json:"price"`
	RSI     float64   `json:"rsi"`
	ADX     *float64  `json:"adx,omitempty"`
	EMA     *float64  `json:"ema,omitempty"`
	BBLower *float64  `json:"bb_lower,omitempty"`
	BBUpper *float64  `json:"bb_upper,omitempty"`
}

// Snapshot reduces the last row of the series.
func (s IndicatorSeries) Snapshot() (IndicatorSnapshot, bool) {
	if len(s.Rows) == 0 {
		return IndicatorSnapshot{}, false
	}
	last := s.Rows[len(s.Rows)-1]
	snap := IndicatorSnapshot{
		Time:  last.Time,
		Price: last.Close,
		RSI:   last.RSI,
	}
	if s.Requested.Has(IndicatorADX) {
		snap.ADX = defined(last.ADX)
	}
	if s.Requested.Has(IndicatorEMA) {
		snap.EMA = defined(last.EMA)
	}
	if s.Requested.Has(IndicatorBB) {
		snap.BBLower = defined(last.BBLower)
		snap.BBUpper = defined(last.BBUpper)
	}
	return snap, true
}

func defined(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
