package types

import "time"

// AdvisorySignal is the oracle's call, or ERROR when it could not be obtained or validated.
type AdvisorySignal string

const (
	SignalBuy   AdvisorySignal = "BUY"
	SignalSell  AdvisorySignal = "SELL"
	SignalWait  AdvisorySignal = "WAIT"
	SignalError AdvisorySignal = "ERROR"
)

// Valid reports whether s is one of the three calls an oracle may return.
func (s AdvisorySignal) Valid() bool {
	return s == SignalBuy || s == SignalSell || s == SignalWait
}

// AdvisoryRequest is the bounded prompt sent to the oracle plus the inputs it was built from.
type AdvisoryRequest struct {
	ID         string            `json:"id"`
	Symbol     string            `json:"symbol"`
	Timeframe  Timeframe         `json:"timeframe"`
	Snapshot   IndicatorSnapshot `json:"snapshot"`
	Technical  TechnicalSignal   `json:"technical"`
	RecentBars []Bar             `json:"recent_bars"`
	Headlines  []string          `json:"headlines,omitempty"`
	Prompt     string            `json:"prompt"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AdvisoryResult is either a fully validated call or the ERROR sentinel.
type AdvisoryResult struct {
	Signal     AdvisorySignal `json:"signal"`
	Confidence int            `json:"confidence"`
	Reason     string         `json:"reason"`
}

// ErrorResult builds the ERROR sentinel with a diagnostic reason.
func ErrorResult(reason string) AdvisoryResult {
	return AdvisoryResult{Signal: SignalError, Confidence: 0, Reason: reason}
}

func (r AdvisoryResult) IsError() bool {
	return r.Signal == SignalError
}
