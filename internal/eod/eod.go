package eod

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/journal"
	"llm-fx-advisor/internal/types"
)

// Params locate the journal and the report directory. CutoffUTC is "HH:MM".
type Params struct {
	JournalDir string
	OutDir     string
	CutoffUTC  string
}

type aggRow struct {
	Symbol     string
	Counts     map[types.AdvisorySignal]int
	ConfSum    int
	ConfN      int
	LastPrice  float64
	LastSignal types.AdvisorySignal
	LastTime   time.Time
}

type summarizer struct {
	journalDir string
	outDir     string
	cutoffH    int
	cutoffM    int
	now        func() time.Time
}

var _ interfaces.EodSummarizer = (*summarizer)(nil)

func NewSummarizer(p Params) (interfaces.EodSummarizer, error) {
	return newSummarizer(p)
}

func newSummarizer(p Params) (*summarizer, error) {
	if p.CutoffUTC == "" {
		p.CutoffUTC = "21:30"
	}
	cut, err := time.Parse("15:04", p.CutoffUTC)
	if err != nil {
		return nil, fmt.Errorf("eod cutoff %q: %w", p.CutoffUTC, err)
	}
	if p.OutDir == "" {
		p.OutDir = filepath.Join(p.JournalDir, "eod")
	}
	return &summarizer{
		journalDir: p.JournalDir,
		outDir:     p.OutDir,
		cutoffH:    cut.Hour(),
		cutoffM:    cut.Minute(),
		now:        time.Now,
	}, nil
}

func (s *summarizer) csvPath(t time.Time) string {
	return filepath.Join(s.outDir, t.UTC().Format("2006-01-02")+".csv")
}

// SummarizeDay aggregates the day's journal per symbol. No entries means no file and an empty path.
func (s *summarizer) SummarizeDay(ctx context.Context, t time.Time) (string, error) {
	entries, err := journal.ReadDay(s.journalDir, t)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	aggs := map[string]*aggRow{}
	for _, e := range entries {
		row := aggs[e.Symbol]
		if row == nil {
			row = &aggRow{Symbol: e.Symbol, Counts: map[types.AdvisorySignal]int{}}
			aggs[e.Symbol] = row
		}
		row.Counts[e.Signal]++
		if e.Signal != types.SignalError {
			row.ConfSum += e.Confidence
			row.ConfN++
		}
		if !e.Time.Before(row.LastTime) {
			row.LastTime = e.Time
			row.LastPrice = e.Price
			row.LastSignal = e.Signal
		}
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := s.csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"symbol", "buy", "sell", "wait", "error", "total", "avg_confidence", "last_signal", "last_price"}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	total := &aggRow{Counts: map[types.AdvisorySignal]int{}}
	for _, k := range keys {
		r := aggs[k]
		if err := w.Write(record(r.Symbol, r, string(r.LastSignal), strconv.FormatFloat(r.LastPrice, 'f', 5, 64))); err != nil {
			return "", err
		}
		for sig, n := range r.Counts {
			total.Counts[sig] += n
		}
		total.ConfSum += r.ConfSum
		total.ConfN += r.ConfN
	}
	if err := w.Write(record("TOTAL", total, "", "")); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

func record(label string, r *aggRow, lastSignal, lastPrice string) []string {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	avg := 0.0
	if r.ConfN > 0 {
		avg = float64(r.ConfSum) / float64(r.ConfN)
	}
	return []string{
		label,
		strconv.Itoa(r.Counts[types.SignalBuy]),
		strconv.Itoa(r.Counts[types.SignalSell]),
		strconv.Itoa(r.Counts[types.SignalWait]),
		strconv.Itoa(r.Counts[types.SignalError]),
		strconv.Itoa(n),
		fmt.Sprintf("%.1f", avg),
		lastSignal,
		lastPrice,
	}
}

func (s *summarizer) SummarizeToday(ctx context.Context) (string, error) {
	return s.SummarizeDay(ctx, s.now().UTC())
}

// ShouldRunNow is true after the UTC cutoff once per day, until the report exists.
func (s *summarizer) ShouldRunNow() (bool, string) {
	now := s.now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), s.cutoffH, s.cutoffM, 0, 0, time.UTC)
	outPath := s.csvPath(now)
	if now.After(cutoff) {
		if _, err := os.Stat(outPath); errors.Is(err, os.ErrNotExist) {
			return true, outPath
		}
	}
	return false, outPath
}
