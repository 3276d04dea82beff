package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"llm-fx-advisor/internal/engine"
	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/journal"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/types"
)

// Params describe what to refresh and how often.
type Params struct {
	Schedule      string
	Advise        bool
	Symbols       []string
	Timeframe     types.Timeframe
	Period        types.Period
	JournalDir    string
	RetentionDays int
}

// Scheduler re-runs the pipeline per symbol on a cron schedule. A symbol whose previous
// refresh is still running is skipped, so a session never has two advisories in flight.
type Scheduler struct {
	cron     *cron.Cron
	advisor  interfaces.Advisor
	sessions *engine.SessionStore
	eod      interfaces.EodSummarizer
	p        Params
	ctx      context.Context
}

// SessionID is the session a scheduled symbol refreshes into.
func SessionID(symbol string) string {
	return "sched-" + strings.ToUpper(symbol)
}

func New(ctx context.Context, adv interfaces.Advisor, sessions *engine.SessionStore, eod interfaces.EodSummarizer, p Params) *Scheduler {
	l := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		advisor:  adv,
		sessions: sessions,
		eod:      eod,
		p:        p,
		ctx:      ctx,
	}
}

// RegisterAll adds one refresh job per symbol, the EOD check and journal compression.
func (s *Scheduler) RegisterAll() error {
	for _, sym := range s.p.Symbols {
		sym := sym
		if _, err := s.cron.AddFunc(s.p.Schedule, func() { s.refresh(sym) }); err != nil {
			return fmt.Errorf("register refresh %s on %q: %w", sym, s.p.Schedule, err)
		}
	}
	if s.eod != nil {
		if _, err := s.cron.AddFunc("@every 1m", s.eodCheck); err != nil {
			return fmt.Errorf("register eod check: %w", err)
		}
	}
	if s.p.JournalDir != "" && s.p.RetentionDays > 0 {
		if _, err := s.cron.AddFunc("@daily", s.compress); err != nil {
			return fmt.Errorf("register journal compression: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info(s.ctx, "Scheduler started", "symbols", s.p.Symbols, "schedule", s.p.Schedule, "advise", s.p.Advise)
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info(s.ctx, "Scheduler stopped")
}

// RunNow refreshes every symbol once, in order.
func (s *Scheduler) RunNow() {
	for _, sym := range s.p.Symbols {
		s.refresh(sym)
	}
}

func (s *Scheduler) refresh(symbol string) {
	id := SessionID(symbol)
	sess := s.sessions.GetOrCreate(id, func() engine.Session {
		return engine.NewSession(id, symbol, s.p.Timeframe, s.p.Period)
	})

	next, err := engine.Refresh(s.ctx, s.advisor, sess, s.p.Advise)
	// an in-flight advisory owns the session; it stores its own result
	if !errors.Is(err, types.ErrAdvisoryInFlight) {
		s.sessions.Put(next)
	}
	if err != nil {
		logger.Warn(s.ctx, "Scheduled refresh failed", "symbol", symbol, "session_id", id, "error", err)
	}
}

func (s *Scheduler) eodCheck() {
	if ok, _ := s.eod.ShouldRunNow(); !ok {
		return
	}
	if _, err := s.eod.SummarizeToday(s.ctx); err != nil {
		logger.Warn(s.ctx, "EOD summary failed", "error", err)
	}
}

func (s *Scheduler) compress() {
	if err := journal.CompressOlder(s.p.JournalDir, s.p.RetentionDays, time.Now()); err != nil {
		logger.Warn(s.ctx, "Failed to compress old journal files", "error", err)
	}
}
