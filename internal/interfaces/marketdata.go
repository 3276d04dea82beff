package interfaces

import (
	"context"

	"llm-fx-advisor/internal/types"
)

// MarketDataSource fetches canonical bars. Implementations return types.ErrDataUnavailable
// when the provider has no rows for the symbol.
type MarketDataSource interface {
	Fetch(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.BarSeries, error)
	Name() string
}
