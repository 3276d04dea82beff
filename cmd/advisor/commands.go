package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"llm-fx-advisor/internal/engine"
	"llm-fx-advisor/internal/journal"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/scheduler"
	"llm-fx-advisor/internal/server"
	"llm-fx-advisor/internal/types"
)

func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return nil, err
	}
	return buildApp(ctx, cfg)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newOnceCmd() *cobra.Command {
	var noAdvise bool
	cmd := &cobra.Command{
		Use:   "once [SYMBOL...]",
		Short: "Refresh each symbol once and print the sessions as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			symbols := a.cfg.Symbols
			if len(args) > 0 {
				symbols = args
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			var failed int
			for _, sym := range symbols {
				sess := engine.NewSession(scheduler.SessionID(sym), sym, types.Timeframe(a.cfg.Timeframe), types.Period(a.cfg.Period))
				next, err := engine.Refresh(ctx, a.advisor, sess, !noAdvise && a.cfg.Advisory.Enabled)
				if err != nil {
					logger.Warn(ctx, "Refresh failed", "symbol", sym, "error", err)
					failed++
				}
				if err := enc.Encode(next); err != nil {
					return err
				}
			}
			if failed == len(symbols) {
				return fmt.Errorf("all %d symbols failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noAdvise, "no-advise", false, "skip the oracle and print the technical signal only")
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Refresh every configured symbol on the schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			sched := a.scheduler(ctx, a.cfg.Refresh.Advise && a.cfg.Advisory.Enabled)
			if err := sched.RegisterAll(); err != nil {
				return err
			}
			sched.RunNow()
			sched.Start()

			<-ctx.Done()
			logger.Info(context.Background(), "Shutting down...")
			sched.Stop()
			a.finalSummary()
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var addr string
	var withScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, optionally with the refresh schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			opts := []server.Option{
				server.WithRegistry(a.registry),
				server.WithOracleName(a.oracle.Name()),
			}
			if h, ok := a.journal.(*journal.SQLite); ok {
				opts = append(opts, server.WithHistory(h))
			}
			srv := server.New(a.cfg, a.advisor, a.sessions, opts...)

			var sched *scheduler.Scheduler
			if withScheduler {
				sched = a.scheduler(ctx, a.cfg.Refresh.Advise && a.cfg.Advisory.Enabled)
				if err := sched.RegisterAll(); err != nil {
					return err
				}
				sched.Start()
			}

			errc := make(chan error, 1)
			go func() { errc <- srv.Start(addr) }()

			select {
			case err = <-errc:
			case <-ctx.Done():
				logger.Info(context.Background(), "Shutting down...")
				err = srv.Stop(context.Background())
			}
			if sched != nil {
				sched.Stop()
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().BoolVar(&withScheduler, "schedule", true, "also refresh configured symbols on the schedule")
	return cmd
}

func newEODCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "eod",
		Short: "Write the end-of-day CSV for a journal day",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, configPath)
			if err != nil {
				return err
			}

			day := time.Now().UTC()
			if date != "" {
				if day, err = time.Parse("2006-01-02", date); err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}

			summarizer, err := newSummarizer(cfg)
			if err != nil {
				return err
			}
			path, err := summarizer.SummarizeDay(ctx, day)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "no advisories journaled on %s\n", day.Format("2006-01-02"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "UTC day to summarize, YYYY-MM-DD (default today)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "advisor %s\n", version)
		},
	}
}

// finalSummary writes today's CSV on shutdown, as the scheduled check may not have fired yet.
func (a *app) finalSummary() {
	if a.cfg.Journal.Backend != "jsonl" {
		return
	}
	ctx := context.Background()
	if p, err := a.eod.SummarizeToday(ctx); err != nil {
		logger.Warn(ctx, "EOD summary failed", "error", err)
	} else if p != "" {
		logger.Info(ctx, "EOD CSV written", "path", p)
	}
}
