package ta

import "math"

// RSI returns Wilder's RSI for every close. The first n values are NaN.
// A flat window (no gains, no losses) reads 50; a window with no losses reads 100.
func RSI(closes []float64, n int) []float64 {
	out := nanSeries(len(closes))
	if n <= 0 || len(closes) < n+1 {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= n; i++ {
		g, l := split(closes[i] - closes[i-1])
		avgGain += g
		avgLoss += l
	}
	avgGain /= float64(n)
	avgLoss /= float64(n)
	out[n] = rsiValue(avgGain, avgLoss)

	for i := n + 1; i < len(closes); i++ {
		g, l := split(closes[i] - closes[i-1])
		avgGain = (avgGain*float64(n-1) + g) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + l) / float64(n)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// maskWarmup copies src and sets the first lookback values to NaN.
// talib pads its warm-up with zeros, which are indistinguishable from real values.
func maskWarmup(src []float64, lookback int) []float64 {
	out := make([]float64, len(src))
	copy(out, src)
	for i := 0; i < lookback && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func isUndefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
