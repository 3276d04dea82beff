package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-fx-advisor/internal/types"
)

func entry(ts time.Time, sig types.AdvisorySignal, conf int) types.JournalEntry {
	adx := 18.5
	return types.JournalEntry{
		Time:       ts,
		SessionID:  "s1",
		RequestID:  "r1",
		Symbol:     "EURUSD",
		Timeframe:  types.TF1h,
		Price:      1.08421,
		RSI:        27.3,
		ADX:        &adx,
		Technical:  types.ActionBuy,
		Signal:     sig,
		Confidence: conf,
		Reason:     "oversold",
		Oracle:     "noop",
	}
}

func TestJSONL_RecordAndReadDay(t *testing.T) {
	dir := t.TempDir()
	j := NewJSONL(dir)
	day := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(context.Background(), entry(day, types.SignalBuy, 70)))
	require.NoError(t, j.Record(context.Background(), entry(day.Add(time.Hour), types.SignalWait, 40)))
	require.NoError(t, j.Record(context.Background(), entry(day.AddDate(0, 0, 1), types.SignalSell, 60)))

	got, err := ReadDay(dir, day)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.SignalBuy, got[0].Signal)
	assert.Equal(t, 70, got[0].Confidence)
	require.NotNil(t, got[0].ADX)
	assert.InDelta(t, 18.5, *got[0].ADX, 1e-9)
	assert.Equal(t, types.SignalWait, got[1].Signal)

	assert.FileExists(t, filepath.Join(dir, "2024-03-05.jsonl"))
}

func TestReadDay_MissingFileIsEmpty(t *testing.T) {
	got, err := ReadDay(t.TempDir(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCompressOlder_ReadableAfterwards(t *testing.T) {
	dir := t.TempDir()
	j := NewJSONL(dir)
	day := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.Record(context.Background(), entry(day, types.SignalBuy, 55)))

	p := DayPath(dir, day)
	old := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(p, old, old))

	require.NoError(t, CompressOlder(dir, 7, time.Now()))
	assert.NoFileExists(t, p)
	assert.FileExists(t, p+".gz")

	got, err := ReadDay(dir, day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 55, got[0].Confidence)
}

func TestCompressOlder_KeepsRecent(t *testing.T) {
	dir := t.TempDir()
	j := NewJSONL(dir)
	now := time.Now()
	require.NoError(t, j.Record(context.Background(), entry(now, types.SignalWait, 10)))

	require.NoError(t, CompressOlder(dir, 7, now))
	assert.FileExists(t, DayPath(dir, now))
}

func TestSQLite_RecordAndRecent(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "advisor.db"))
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, entry(base, types.SignalBuy, 70)))
	require.NoError(t, s.Record(ctx, entry(base.Add(time.Hour), types.SignalError, 0)))
	other := entry(base, types.SignalSell, 80)
	other.Symbol = "GBPUSD"
	other.ADX = nil
	require.NoError(t, s.Record(ctx, other))

	got, err := s.Recent(ctx, "EURUSD", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.SignalError, got[0].Signal)
	assert.Equal(t, base.Add(time.Hour), got[0].Time)
	assert.Equal(t, types.SignalBuy, got[1].Signal)
	assert.Equal(t, types.TF1h, got[1].Timeframe)

	gbp, err := s.Recent(ctx, "GBPUSD", 10)
	require.NoError(t, err)
	require.Len(t, gbp, 1)
	assert.Nil(t, gbp[0].ADX)
}

func TestNew_Backends(t *testing.T) {
	j, err := New(Params{Backend: "jsonl", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &JSONL{}, j)

	j, err = New(Params{Backend: "noop"})
	require.NoError(t, err)
	assert.NoError(t, j.Record(context.Background(), types.JournalEntry{}))

	_, err = New(Params{Backend: "kafka"})
	assert.Error(t, err)
}
