// Package eodobs wraps an EodSummarizer with a span and a log line per call.
package eodobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/trace"
)

type summarizer struct {
	inner interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*summarizer)(nil)

func Wrap(s interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &summarizer{inner: s}
}

func (s *summarizer) SummarizeDay(ctx context.Context, day time.Time) (string, error) {
	date := day.UTC().Format("2006-01-02")
	ctx, span := trace.StartSpan(ctx, "eod.SummarizeDay")
	span.SetAttributes(attribute.String("date", date))
	defer span.End()

	start := time.Now()
	path, err := s.inner.SummarizeDay(ctx, day)
	took := time.Since(start).Milliseconds()

	switch {
	case err != nil:
		logger.ErrorWithErrSkip(ctx, 1, "Daily advisory summary failed", err, "date", date)
	case path == "":
		logger.InfoSkip(ctx, 1, "No advisories journaled, summary skipped", "date", date)
	default:
		span.SetAttributes(attribute.String("csv_path", path))
		logger.InfoSkip(ctx, 1, "Daily advisory summary written", "date", date, "csv_path", path, "duration_ms", took)
	}
	return path, err
}

func (s *summarizer) SummarizeToday(ctx context.Context) (string, error) {
	ctx, span := trace.StartSpan(ctx, "eod.SummarizeToday")
	defer span.End()

	path, err := s.inner.SummarizeToday(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Today's advisory summary failed", err)
	} else if path != "" {
		logger.InfoSkip(ctx, 1, "Today's advisory summary written", "csv_path", path)
	}
	return path, err
}

// ShouldRunNow is polled every minute, so it only logs in detailed mode.
func (s *summarizer) ShouldRunNow() (bool, string) {
	due, path := s.inner.ShouldRunNow()
	logger.DebugSkip(context.Background(), 1, "EOD due check", "due", due, "csv_path", path)
	return due, path
}
