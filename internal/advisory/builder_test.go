package advisory

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-fx-advisor/internal/types"
)

func testAnalysis(n int) types.Analysis {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, n)
	for i := range bars {
		c := 1.085 - float64(i)*0.0001
		bars[i] = types.Bar{Time: start.Add(time.Duration(i) * time.Minute), Open: c + 0.00005, High: c + 0.0002, Low: c - 0.0002, Close: c}
	}
	series := types.BarSeries{Symbol: "EURUSD", Timeframe: types.TF1m, Bars: bars}
	adx := 18.456
	return types.Analysis{
		Symbol:    "EURUSD",
		Timeframe: types.TF1m,
		Series:    types.IndicatorSeries{Symbol: "EURUSD", Source: series},
		Snapshot:  types.IndicatorSnapshot{Price: 1.08523, RSI: 22.4139, ADX: &adx},
		Technical: types.TechnicalSignal{Action: types.ActionBuy, Rule: "rsi_threshold", Indicator: "rsi", Value: 22.4139, Threshold: 30},
	}
}

func TestBuildTruncatesToRecentBars(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	a := testAnalysis(300)

	req := b.Build(a, nil)
	require.Len(t, req.RecentBars, 10)
	assert.Equal(t, a.Series.Source.Bars[290], req.RecentBars[0])
	assert.Equal(t, a.Series.Source.Bars[299], req.RecentBars[9])
	assert.Contains(t, req.Prompt, "Last 10 bars")
	assert.NotEmpty(t, req.ID)
}

func TestBuildRecentBarsBounds(t *testing.T) {
	assert.Len(t, NewBuilder(BuilderConfig{RecentBars: 5}).Build(testAnalysis(30), nil).RecentBars, 5)
	assert.Len(t, NewBuilder(BuilderConfig{RecentBars: 50}).Build(testAnalysis(30), nil).RecentBars, 10)
	assert.Len(t, NewBuilder(BuilderConfig{}).Build(testAnalysis(3), nil).RecentBars, 3)
}

func TestBuildPromptContent(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	b.newID = func() string { return "01TESTID" }
	b.now = func() time.Time { return time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC) }

	req := b.Build(testAnalysis(30), []string{"ECB holds rates"})

	assert.Equal(t, "01TESTID", req.ID)
	assert.Equal(t, time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), req.CreatedAt)
	assert.Contains(t, req.Prompt, "Current price: 1.08523")
	assert.Contains(t, req.Prompt, "RSI: 22.41")
	assert.Contains(t, req.Prompt, "ADX: 18.46")
	assert.Contains(t, req.Prompt, "Technical signal: BUY (rsi_threshold: rsi 22.41 < 30.00)")
	assert.Contains(t, req.Prompt, "- ECB holds rates")
	assert.Contains(t, req.Prompt, "BUY, SELL, or WAIT")
	assert.Contains(t, req.Prompt, `{"signal": "BUY|SELL|WAIT", "confidence": <integer 0-100>, "reason": "<one short sentence>"}`)
	assert.NotContains(t, req.Prompt, "EMA:")

	for _, line := range strings.Split(req.Prompt, "\n") {
		if strings.HasPrefix(line, "2025-") {
			fields := strings.Fields(line)
			require.Len(t, fields, 5)
			for _, f := range fields[1:] {
				parts := strings.Split(f, ".")
				require.Len(t, parts, 2)
				assert.Len(t, parts[1], 5, "price %s", f)
			}
		}
	}
}

func TestDescribeGateVeto(t *testing.T) {
	b := NewBuilder(BuilderConfig{})

	tests := []struct {
		name string
		sig  types.TechnicalSignal
		want string
	}{
		{
			name: "veto",
			sig:  types.TechnicalSignal{Action: types.ActionNeutral, Rule: "rsi_threshold+adx_gate", Indicator: "adx", Value: 31.2, Threshold: 25},
			want: "rsi_threshold+adx_gate: adx 31.20 > 25.00, call suppressed",
		},
		{
			name: "veto with zero gate",
			sig:  types.TechnicalSignal{Action: types.ActionNeutral, Rule: "rsi_threshold+adx_gate", Indicator: "adx", Value: 4.5},
			want: "rsi_threshold+adx_gate: adx 4.50 > 0.00, call suppressed",
		},
		{
			name: "neutral with a threshold set",
			sig:  types.TechnicalSignal{Action: types.ActionNeutral, Rule: "rsi_threshold", Indicator: "rsi", Value: 50, Threshold: 30},
			want: "rsi_threshold: rsi 50.00 within thresholds",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.describe(tt.sig))
		})
	}
}

func TestBuildConfiguredFieldNames(t *testing.T) {
	b := NewBuilder(BuilderConfig{Fields: FieldNames{Confidence: "conf"}})
	req := b.Build(testAnalysis(12), nil)
	assert.Contains(t, req.Prompt, `"conf": <integer 0-100>`)
}

func TestBuildCapsHeadlines(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	req := b.Build(testAnalysis(12), []string{"a", "b", "c", "d", "e", "f", "g"})
	assert.Len(t, req.Headlines, 5)
}

func TestBuildThenParseRoundTrip(t *testing.T) {
	b := NewBuilder(BuilderConfig{Fields: FieldNames{Confidence: "conf"}})
	p := NewParser(ParserConfig{Fields: FieldNames{Confidence: "conf"}})

	req := b.Build(testAnalysis(12), nil)
	require.Contains(t, req.Prompt, `"conf"`)

	got := p.Parse("```json\n{\"signal\":\"BUY\",\"conf\":70,\"reason\":\"RSI indicates oversold\"}\n```")
	assert.Equal(t, types.AdvisoryResult{Signal: types.SignalBuy, Confidence: 70, Reason: "RSI indicates oversold"}, got)
}
