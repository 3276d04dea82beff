package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	c, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, []string{"EURUSD"}, c.Symbols)
	assert.Equal(t, "1m", c.Timeframe)
	assert.Equal(t, "yahoo", c.MarketData.Provider)
	assert.Equal(t, 14, c.Indicators.RSIPeriod)
	assert.Equal(t, 30.0, c.Signal.RSIOversold)
	assert.Equal(t, 70.0, c.Signal.RSIOverbought)
	assert.Equal(t, 10, c.Advisory.RecentBars)
	assert.Equal(t, "confidence", c.Advisory.Fields.Confidence)
	assert.True(t, c.Advisory.Enabled)
	assert.Equal(t, "gemini", c.LLM.Provider)
	assert.Empty(t, c.LLM.Model)
	assert.Len(t, c.LLM.Models, 3)
	assert.Equal(t, "@every 60s", c.Refresh.Schedule)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
symbols: [GBPUSD, USDJPY]
timeframe: 5m
market_data:
  provider: static
  ttl_seconds: 0
signal:
  strategy: rsi_adx
  rsi_oversold: 25
advisory:
  enabled: false
  fields:
    confidence: conf
`)
	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"GBPUSD", "USDJPY"}, c.Symbols)
	assert.Equal(t, "5m", c.Timeframe)
	assert.Equal(t, "static", c.MarketData.Provider)
	assert.Equal(t, 0, c.MarketData.TTLSeconds, "explicit zero disables the cache")
	assert.Equal(t, 25.0, c.Signal.RSIOversold)
	assert.Equal(t, 70.0, c.Signal.RSIOverbought)
	assert.False(t, c.Advisory.Enabled)
	assert.Equal(t, "conf", c.Advisory.Fields.Confidence)
	assert.Equal(t, 3, c.MarketData.Retry.MaxAttempts)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("ADVISOR_SYMBOLS", "eurusd, audusd")
	t.Setenv("ADVISOR_LLM_PROVIDER", "NOOP")
	t.Setenv("ADVISOR_TTL_SECONDS", "5")

	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "AUDUSD"}, c.Symbols)
	assert.Equal(t, "noop", c.LLM.Provider)
	assert.Equal(t, 5, c.MarketData.TTLSeconds)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad timeframe", "timeframe: 2m"},
		{"bad provider", "market_data: {provider: bloomberg}"},
		{"inverted thresholds", "signal: {rsi_oversold: 80, rsi_overbought: 20}"},
		{"too many recent bars", "advisory: {recent_bars: 50}"},
		{"too few recent bars", "advisory: {recent_bars: 2}"},
		{"duplicate field names", "advisory: {fields: {confidence: signal}}"},
		{"empty symbols", "symbols: []"},
		{"bad cutoff", "eod: {cutoff_utc: '9pm00'}"},
		{"news source without url", "news: {sources: [{name: x, container: li, title: a}]}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation failed")
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
