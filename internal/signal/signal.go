package signal

import (
	"fmt"
	"strings"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/types"
)

// Thresholds configure every strategy in this package.
type Thresholds struct {
	RSIOversold       float64
	RSIOverbought     float64
	ADXTrendThreshold float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{RSIOversold: 30, RSIOverbought: 70, ADXTrendThreshold: 25}
}

// New returns the named strategy: "rsi" (default), "bollinger" or "rsi_adx".
func New(name string, th Thresholds) (interfaces.Strategy, error) {
	rsi := RSIThreshold{Oversold: th.RSIOversold, Overbought: th.RSIOverbought}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rsi":
		return rsi, nil
	case "bollinger", "bb":
		return BollingerBreach{}, nil
	case "rsi_adx", "adx_gated":
		return ADXGated{Inner: rsi, MaxADX: th.ADXTrendThreshold}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// RSIThreshold is the mean-reversion rule: below Oversold is BUY, above Overbought is SELL.
// Both comparisons are strict, so a reading exactly on a threshold is NEUTRAL.
type RSIThreshold struct {
	Oversold   float64
	Overbought float64
}

var _ interfaces.Strategy = RSIThreshold{}

func (s RSIThreshold) Name() string { return "rsi_threshold" }

func (s RSIThreshold) Indicators() types.IndicatorSet {
	return types.NewIndicatorSet()
}

func (s RSIThreshold) Classify(snap types.IndicatorSnapshot) types.TechnicalSignal {
	sig := types.TechnicalSignal{Action: types.ActionNeutral, Rule: s.Name(), Indicator: "rsi", Value: snap.RSI}
	switch {
	case snap.RSI < s.Oversold:
		sig.Action = types.ActionBuy
		sig.Threshold = s.Oversold
	case snap.RSI > s.Overbought:
		sig.Action = types.ActionSell
		sig.Threshold = s.Overbought
	}
	return sig
}

// BollingerBreach calls BUY on a close below the lower band and SELL above the upper band.
type BollingerBreach struct{}

var _ interfaces.Strategy = BollingerBreach{}

func (BollingerBreach) Name() string { return "bollinger_breach" }

func (BollingerBreach) Indicators() types.IndicatorSet {
	return types.NewIndicatorSet(types.IndicatorBB)
}

func (b BollingerBreach) Classify(snap types.IndicatorSnapshot) types.TechnicalSignal {
	sig := types.TechnicalSignal{Action: types.ActionNeutral, Rule: b.Name(), Indicator: "close", Value: snap.Price}
	if snap.BBLower == nil || snap.BBUpper == nil {
		return sig
	}
	switch {
	case snap.Price < *snap.BBLower:
		sig.Action = types.ActionBuy
		sig.Threshold = *snap.BBLower
	case snap.Price > *snap.BBUpper:
		sig.Action = types.ActionSell
		sig.Threshold = *snap.BBUpper
	}
	return sig
}

// ADXGated suppresses the inner strategy's calls while ADX says the market is trending,
// since mean-reversion calls are unreliable there. Without an ADX reading the inner call stands.
type ADXGated struct {
	Inner  interfaces.Strategy
	MaxADX float64
}

var _ interfaces.Strategy = ADXGated{}

func (g ADXGated) Name() string { return g.Inner.Name() + "+adx_gate" }

func (g ADXGated) Indicators() types.IndicatorSet {
	set := types.NewIndicatorSet(types.IndicatorADX)
	for k, on := range g.Inner.Indicators() {
		if on {
			set[k] = true
		}
	}
	return set
}

func (g ADXGated) Classify(snap types.IndicatorSnapshot) types.TechnicalSignal {
	sig := g.Inner.Classify(snap)
	sig.Rule = g.Name()
	if sig.Action == types.ActionNeutral || snap.ADX == nil {
		return sig
	}
	if *snap.ADX > g.MaxADX {
		return types.TechnicalSignal{
			Action:    types.ActionNeutral,
			Rule:      g.Name(),
			Indicator: "adx",
			Value:     *snap.ADX,
			Threshold: g.MaxADX,
		}
	}
	return sig
}
