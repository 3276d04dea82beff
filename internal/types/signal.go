package types

// Action is the deterministic technical call.
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionNeutral Action = "NEUTRAL"
)

// TechnicalSignal is a pure function of an IndicatorSnapshot.
type TechnicalSignal struct {
	Action    Action  `json:"action"`
	Rule      string  `json:"rule"`
	Indicator string  `json:"indicator"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}
