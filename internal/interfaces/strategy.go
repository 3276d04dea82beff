package interfaces

import "llm-fx-advisor/internal/types"

// Strategy turns an indicator snapshot into a deterministic technical signal.
type Strategy interface {
	Name() string
	// Indicators lists what Classify reads from the snapshot.
	Indicators() types.IndicatorSet
	Classify(snap types.IndicatorSnapshot) types.TechnicalSignal
}
