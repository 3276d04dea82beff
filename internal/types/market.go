package types

import (
	"fmt"
	"strings"
	"time"
)

// Bar is one OHLC(V) period. Vol is 0 when the provider has no volume (most FX feeds).
type Bar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Vol   float64   `json:"vol,omitempty"`
}

// Timeframe is the bar interval, in the provider-neutral form "1m", "5m", "1h", "1d".
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF1d:  24 * time.Hour,
}

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Duration of one bar.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// Period is the lookback window requested from the provider: "1d", "5d", "1mo", "3mo", "6mo", "1y".
type Period string

var periodDurations = map[Period]time.Duration{
	"1d":  24 * time.Hour,
	"5d":  5 * 24 * time.Hour,
	"1mo": 30 * 24 * time.Hour,
	"3mo": 90 * 24 * time.Hour,
	"6mo": 180 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}

// ParsePeriod validates a lookback period string.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := periodDurations[p]; !ok {
		return "", fmt.Errorf("unsupported period %q", s)
	}
	return p, nil
}

// Duration of the lookback window.
func (p Period) Duration() time.Duration {
	return periodDurations[p]
}

// BarSeries is an ordered, de-duplicated run of bars for one symbol/timeframe.
type BarSeries struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Period    Period    `json:"period"`
	Bars      []Bar     `json:"bars"`
}

func (s BarSeries) Len() int {
	return len(s.Bars)
}

// Last returns the most recent bar.
func (s BarSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Tail copies the last n bars.
func (s BarSeries) Tail(n int) []Bar {
	if n <= 0 {
		return nil
	}
	if n > len(s.Bars) {
		n = len(s.Bars)
	}
	out := make([]Bar, n)
	copy(out, s.Bars[len(s.Bars)-n:])
	return out
}

func (s BarSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

func (s BarSeries) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

func (s BarSeries) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}
