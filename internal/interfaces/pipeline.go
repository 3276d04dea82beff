package interfaces

import (
	"context"

	"llm-fx-advisor/internal/types"
)

// Advisor runs the snapshot-to-signal pipeline.
type Advisor interface {
	Analyze(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.Analysis, error)
	Advise(ctx context.Context, sessionID string, analysis types.Analysis) (types.AdvisoryRequest, types.AdvisoryResult, error)
}
