package advisory

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"llm-fx-advisor/internal/types"
)

const (
	MinRecentBars = 5
	MaxRecentBars = 10
	maxHeadlines  = 5
)

const defaultPersona = "Act as a professional Forex trader. Analyze the market snapshot below."

// BuilderConfig controls prompt size and wording.
type BuilderConfig struct {
	RecentBars    int
	PriceDecimals int
	Persona       string
	Fields        FieldNames
}

// Builder assembles a bounded prompt from the deterministic half of the pipeline.
type Builder struct {
	cfg   BuilderConfig
	now   func() time.Time
	newID func() string
}

func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.RecentBars < MinRecentBars || cfg.RecentBars > MaxRecentBars {
		cfg.RecentBars = MaxRecentBars
	}
	if cfg.PriceDecimals <= 0 {
		cfg.PriceDecimals = 5
	}
	if strings.TrimSpace(cfg.Persona) == "" {
		cfg.Persona = defaultPersona
	}
	cfg.Fields = cfg.Fields.withDefaults()
	return &Builder{
		cfg:   cfg,
		now:   time.Now,
		newID: func() string { return ulid.Make().String() },
	}
}

// Build produces the request for one analysis. Only the last RecentBars bars are included,
// whatever the series length.
func (b *Builder) Build(a types.Analysis, headlines []string) types.AdvisoryRequest {
	recent := a.Series.Source.Tail(b.cfg.RecentBars)
	if len(headlines) > maxHeadlines {
		headlines = headlines[:maxHeadlines]
	}

	req := types.AdvisoryRequest{
		ID:         b.newID(),
		Symbol:     a.Symbol,
		Timeframe:  a.Timeframe,
		Snapshot:   a.Snapshot,
		Technical:  a.Technical,
		RecentBars: recent,
		Headlines:  headlines,
		CreatedAt:  b.now().UTC(),
	}
	req.Prompt = b.prompt(req)
	return req
}

func (b *Builder) prompt(req types.AdvisoryRequest) string {
	snap := req.Snapshot
	var sb strings.Builder

	sb.WriteString(b.cfg.Persona)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Symbol: %s (timeframe %s)\n", req.Symbol, req.Timeframe)
	fmt.Fprintf(&sb, "Current price: %s\n", b.price(snap.Price))
	fmt.Fprintf(&sb, "RSI: %s\n", fixed(snap.RSI, 2))
	if snap.ADX != nil {
		fmt.Fprintf(&sb, "ADX: %s\n", fixed(*snap.ADX, 2))
	}
	if snap.EMA != nil {
		fmt.Fprintf(&sb, "EMA: %s\n", b.price(*snap.EMA))
	}
	if snap.BBLower != nil && snap.BBUpper != nil {
		fmt.Fprintf(&sb, "Bollinger Bands: lower %s upper %s\n", b.price(*snap.BBLower), b.price(*snap.BBUpper))
	}
	fmt.Fprintf(&sb, "Technical signal: %s (%s)\n", req.Technical.Action, b.describe(req.Technical))

	if len(req.RecentBars) > 0 {
		fmt.Fprintf(&sb, "\nLast %d bars (time, open, high, low, close):\n", len(req.RecentBars))
		for _, bar := range req.RecentBars {
			fmt.Fprintf(&sb, "%s %s %s %s %s\n",
				bar.Time.UTC().Format(time.RFC3339),
				b.price(bar.Open), b.price(bar.High), b.price(bar.Low), b.price(bar.Close))
		}
	}

	if len(req.Headlines) > 0 {
		sb.WriteString("\nRecent headlines:\n")
		for _, h := range req.Headlines {
			fmt.Fprintf(&sb, "- %s\n", strings.TrimSpace(h))
		}
	}

	f := b.cfg.Fields
	sb.WriteString("\nGive a trading call of exactly one of BUY, SELL, or WAIT.\n")
	sb.WriteString("Respond with ONLY a JSON object and no markdown, in this exact shape:\n")
	fmt.Fprintf(&sb, `{"%s": "BUY|SELL|WAIT", "%s": <integer 0-100>, "%s": "<one short sentence>"}`,
		f.Signal, f.Confidence, f.Reason)
	sb.WriteString("\n")
	return sb.String()
}

func (b *Builder) price(v float64) string {
	return fixed(v, b.cfg.PriceDecimals)
}

func (b *Builder) describe(sig types.TechnicalSignal) string {
	places := 2
	if sig.Indicator == "close" {
		places = b.cfg.PriceDecimals
	}
	value, threshold := fixed(sig.Value, places), fixed(sig.Threshold, places)
	switch {
	case sig.Action == types.ActionBuy:
		return fmt.Sprintf("%s: %s %s < %s", sig.Rule, sig.Indicator, value, threshold)
	case sig.Action == types.ActionSell:
		return fmt.Sprintf("%s: %s %s > %s", sig.Rule, sig.Indicator, value, threshold)
	case sig.Indicator == "adx":
		// the trend gate vetoed the call
		return fmt.Sprintf("%s: %s %s > %s, call suppressed", sig.Rule, sig.Indicator, value, threshold)
	default:
		return fmt.Sprintf("%s: %s %s within thresholds", sig.Rule, sig.Indicator, value)
	}
}

func fixed(v float64, places int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(int32(places))
}
