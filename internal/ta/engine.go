package ta

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"llm-fx-advisor/internal/types"
)

// Params are the indicator lengths. Zero values fall back to DefaultParams.
type Params struct {
	RSILength int
	ADXLength int
	EMALength int
	BBLength  int
	BBStdDev  float64
}

func DefaultParams() Params {
	return Params{RSILength: 14, ADXLength: 14, EMALength: 20, BBLength: 20, BBStdDev: 2.0}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.RSILength <= 0 {
		p.RSILength = d.RSILength
	}
	if p.ADXLength <= 0 {
		p.ADXLength = d.ADXLength
	}
	if p.EMALength <= 0 {
		p.EMALength = d.EMALength
	}
	if p.BBLength <= 0 {
		p.BBLength = d.BBLength
	}
	if p.BBStdDev <= 0 {
		p.BBStdDev = d.BBStdDev
	}
	return p
}

// Engine computes indicator columns over a bar series. It holds no state between calls.
type Engine struct {
	p Params
}

func NewEngine(p Params) *Engine {
	return &Engine{p: p.withDefaults()}
}

func (e *Engine) Params() Params {
	return e.p
}

// Lookback is the number of leading bars for which indicator k is undefined.
func (e *Engine) Lookback(k types.IndicatorKind) int {
	switch k {
	case types.IndicatorRSI:
		return e.p.RSILength
	case types.IndicatorADX:
		return 2*e.p.ADXLength - 1
	case types.IndicatorEMA:
		return e.p.EMALength - 1
	case types.IndicatorBB:
		return e.p.BBLength - 1
	}
	return 0
}

// MinBars is the smallest series length that yields at least one complete row for set.
func (e *Engine) MinBars(set types.IndicatorSet) int {
	need := 0
	for k, on := range set {
		if on && e.Lookback(k) > need {
			need = e.Lookback(k)
		}
	}
	return need + 1
}

// Compute attaches the requested indicators to series and drops every row where one of them
// is still warming up. RSI is always computed.
func (e *Engine) Compute(series types.BarSeries, set types.IndicatorSet) (types.IndicatorSeries, error) {
	requested := types.NewIndicatorSet()
	for k, on := range set {
		if on {
			requested[k] = true
		}
	}

	n := series.Len()
	if need := e.MinBars(requested); n < need {
		return types.IndicatorSeries{}, &types.InsufficientDataError{Need: need, Have: n}
	}

	closes := series.Closes()
	rsi := RSI(closes, e.p.RSILength)

	adx := nanSeries(n)
	if requested.Has(types.IndicatorADX) {
		adx = maskWarmup(talib.Adx(series.Highs(), series.Lows(), closes, e.p.ADXLength), e.Lookback(types.IndicatorADX))
	}

	ema := nanSeries(n)
	if requested.Has(types.IndicatorEMA) {
		ema = maskWarmup(talib.Ema(closes, e.p.EMALength), e.Lookback(types.IndicatorEMA))
	}

	bbUp, bbMid, bbLow := nanSeries(n), nanSeries(n), nanSeries(n)
	if requested.Has(types.IndicatorBB) {
		up, mid, low := talib.BBands(closes, e.p.BBLength, e.p.BBStdDev, e.p.BBStdDev, talib.SMA)
		lb := e.Lookback(types.IndicatorBB)
		bbUp, bbMid, bbLow = maskWarmup(up, lb), maskWarmup(mid, lb), maskWarmup(low, lb)
	}

	rows := make([]types.IndicatorRow, 0, n)
	for i, bar := range series.Bars {
		row := types.IndicatorRow{
			Bar:      bar,
			RSI:      rsi[i],
			ADX:      adx[i],
			EMA:      ema[i],
			BBUpper:  bbUp[i],
			BBMiddle: bbMid[i],
			BBLower:  bbLow[i],
		}
		if complete(row, requested) {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return types.IndicatorSeries{}, fmt.Errorf("no complete indicator rows for %s: %w",
			series.Symbol, &types.InsufficientDataError{Need: e.MinBars(requested), Have: n})
	}

	return types.IndicatorSeries{
		Symbol:    series.Symbol,
		Timeframe: series.Timeframe,
		Requested: requested,
		Rows:      rows,
		Source:    series,
	}, nil
}

func complete(row types.IndicatorRow, set types.IndicatorSet) bool {
	if isUndefined(row.RSI) {
		return false
	}
	if set.Has(types.IndicatorADX) && isUndefined(row.ADX) {
		return false
	}
	if set.Has(types.IndicatorEMA) && isUndefined(row.EMA) {
		return false
	}
	if set.Has(types.IndicatorBB) && (isUndefined(row.BBUpper) || isUndefined(row.BBMiddle) || isUndefined(row.BBLower)) {
		return false
	}
	return true
}
