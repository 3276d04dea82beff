package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, c LogConfig) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	c.Output = &buf
	c.Format = "json"
	require.NoError(t, InitWithConfig(c))
	t.Cleanup(func() { _ = InitWithConfig(LogConfig{Level: "ERROR", Output: &bytes.Buffer{}}) })
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		out = append(out, m)
	}
	return out
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LogConfig{Level: "WARN"})
	ctx := context.Background()

	Info(ctx, "hidden")
	Warn(ctx, "shown", "symbol", "EURUSD")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0]["msg"])
	assert.Equal(t, "EURUSD", got[0]["symbol"])
}

func TestDebugNeedsDetailed(t *testing.T) {
	buf := capture(t, LogConfig{Level: "DEBUG"})
	Debug(context.Background(), "quiet")
	assert.Empty(t, buf.String())

	buf = capture(t, LogConfig{Level: "DEBUG", Detailed: true})
	Debug(context.Background(), "loud")
	got := lines(t, buf)
	require.Len(t, got, 1)
	src, ok := got[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, src["function"], "TestDebugNeedsDetailed")
}

func TestErrorWithErr(t *testing.T) {
	buf := capture(t, LogConfig{Level: "INFO"})
	ErrorWithErr(context.Background(), "fetch failed", errors.New("boom"), "symbol", "GBPUSD")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "ERROR", got[0]["level"])
	assert.Equal(t, "boom", got[0]["error"])
}

func TestAdvisoryLine(t *testing.T) {
	buf := capture(t, LogConfig{Level: "INFO"})
	Advisory(context.Background(), "EURUSD", "BUY", 72, "oversold", "oracle", "noop")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "ADVISORY", got[0]["type"])
	assert.Equal(t, "BUY", got[0]["signal"])
	assert.EqualValues(t, 72, got[0]["confidence"])
	assert.Equal(t, "noop", got[0]["oracle"])
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_DETAILED", "true")

	c := LoadConfigFromEnv()
	assert.Equal(t, "debug", c.Level)
	assert.Equal(t, "text", c.Format)
	assert.True(t, c.Detailed)
}
