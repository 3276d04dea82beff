package llmobs

import (
	"context"
	"time"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/trace"
)

// observableOracle wraps an Oracle with logging and tracing
type observableOracle struct {
	oracle interfaces.Oracle
}

var _ interfaces.Oracle = (*observableOracle)(nil)

// Wrap wraps an oracle with observability middleware
func Wrap(oracle interfaces.Oracle) interfaces.Oracle {
	return &observableOracle{oracle: oracle}
}

func (o *observableOracle) Name() string { return o.oracle.Name() }

func (o *observableOracle) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "oracle.Complete")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting advisory",
		"oracle", o.oracle.Name(),
		"prompt_length", len(prompt),
	)

	start := time.Now()
	raw, err := o.oracle.Complete(ctx, prompt)
	latency := time.Since(start)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Advisory oracle failed", err,
			"oracle", o.oracle.Name(),
			"latency_ms", latency.Milliseconds(),
		)
		return "", err
	}

	logger.DebugSkip(ctx, 1, "Advisory response received",
		"oracle", o.oracle.Name(),
		"response_length", len(raw),
		"latency_ms", latency.Milliseconds(),
	)
	return raw, nil
}
