package marketdataobs

import (
	"context"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/trace"
	"llm-fx-advisor/internal/types"
)

// observableSource wraps a MarketDataSource with logging & tracing
type observableSource struct {
	src interfaces.MarketDataSource
}

var _ interfaces.MarketDataSource = (*observableSource)(nil)

// Wrap wraps a source with observability middleware
func Wrap(src interfaces.MarketDataSource) interfaces.MarketDataSource {
	return &observableSource{src: src}
}

func (o *observableSource) Name() string { return o.src.Name() }

func (o *observableSource) Fetch(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.BarSeries, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.Fetch")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching bars",
		"provider", o.src.Name(),
		"symbol", symbol,
		"timeframe", tf,
		"period", period,
	)

	series, err := o.src.Fetch(ctx, symbol, tf, period)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch bars", err,
			"provider", o.src.Name(),
			"symbol", symbol,
			"timeframe", tf,
		)
		return types.BarSeries{}, err
	}

	last, _ := series.Last()
	logger.DebugSkip(ctx, 1, "Bars fetched",
		"provider", o.src.Name(),
		"symbol", symbol,
		"bars", series.Len(),
		"last_close", last.Close,
		"last_time", last.Time,
	)
	return series, nil
}
