package engineobs

import (
	"context"
	"time"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/trace"
	"llm-fx-advisor/internal/types"
)

type observableAdvisor struct {
	advisor interfaces.Advisor
}

var _ interfaces.Advisor = (*observableAdvisor)(nil)

func Wrap(adv interfaces.Advisor) interfaces.Advisor {
	return &observableAdvisor{advisor: adv}
}

func (o *observableAdvisor) Analyze(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.Analysis, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Analyze")
	defer span.End()

	start := time.Now()
	a, err := o.advisor.Analyze(ctx, symbol, tf, period)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Analysis failed", err,
			"symbol", symbol,
			"timeframe", tf,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return a, err
	}

	logger.DebugSkip(ctx, 1, "Analysis completed",
		"symbol", a.Symbol,
		"rows", len(a.Series.Rows),
		"action", a.Technical.Action,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return a, nil
}

func (o *observableAdvisor) Advise(ctx context.Context, sessionID string, a types.Analysis) (types.AdvisoryRequest, types.AdvisoryResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Advise")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting advisory cycle",
		"symbol", a.Symbol,
		"session_id", sessionID,
	)

	req, res, err := o.advisor.Advise(ctx, sessionID, a)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Advisory cycle rejected", err,
			"symbol", a.Symbol,
			"session_id", sessionID,
		)
		return req, res, err
	}

	logger.InfoSkip(ctx, 1, "Advisory cycle completed",
		"symbol", a.Symbol,
		"request_id", req.ID,
		"signal", res.Signal,
		"confidence", res.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return req, res, nil
}
