package marketdata

import (
	"fmt"
	"math"
	"sort"

	"llm-fx-advisor/internal/types"
)

// Normalize turns provider rows into a canonical series: rows with missing or non-finite
// prices are dropped, the rest sorted by time, and duplicate timestamps collapsed so the
// last row for a timestamp wins.
func Normalize(symbol string, tf types.Timeframe, period types.Period, rows []types.Bar) (types.BarSeries, error) {
	bars := make([]types.Bar, 0, len(rows))
	for _, b := range rows {
		if validBar(b) {
			bars = append(bars, b)
		}
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}

	if len(out) == 0 {
		return types.BarSeries{}, fmt.Errorf("%s %s/%s: no usable rows: %w", symbol, tf, period, types.ErrDataUnavailable)
	}

	return types.BarSeries{Symbol: symbol, Timeframe: tf, Period: period, Bars: out}, nil
}

func validBar(b types.Bar) bool {
	if b.Time.IsZero() {
		return false
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	if math.IsNaN(b.Vol) || math.IsInf(b.Vol, 0) {
		return false
	}
	return b.High >= b.Low
}
