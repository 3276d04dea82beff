package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/types"
)

const maxStaticBars = 2000

// Static generates a deterministic random walk per symbol. It backs dry runs and tests.
type Static struct {
	now func() time.Time
}

var _ interfaces.MarketDataSource = (*Static)(nil)

func NewStatic() *Static {
	return &Static{now: time.Now}
}

// NewStaticAt pins the clock so repeated fetches return the same series.
func NewStaticAt(now time.Time) *Static {
	return &Static{now: func() time.Time { return now }}
}

func (s *Static) Name() string { return "static" }

var staticBasePrices = map[string]float64{
	"EURUSD": 1.0850,
	"GBPUSD": 1.2700,
	"USDJPY": 150.20,
	"AUDUSD": 0.6550,
	"USDINR": 83.10,
	"BTCUSD": 65000,
}

func (s *Static) Fetch(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.BarSeries, error) {
	sym := strings.ToUpper(symbol)
	step := tf.Duration()
	if step <= 0 {
		step = time.Minute
	}
	n := int(period.Duration() / step)
	if n > maxStaticBars {
		n = maxStaticBars
	}
	if n <= 0 {
		n = 100
	}

	base, ok := staticBasePrices[sym]
	if !ok {
		base = 1.0
	}

	h := fnv.New64a()
	h.Write([]byte(sym + string(tf)))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	end := s.now().UTC().Truncate(step)
	price := base
	vol := base * 0.0004
	rows := make([]types.Bar, 0, n)
	for i := n - 1; i >= 0; i-- {
		open := price
		price = math.Max(price+rng.NormFloat64()*vol, base*0.01)
		high := math.Max(open, price) + math.Abs(rng.NormFloat64())*vol/2
		low := math.Min(open, price) - math.Abs(rng.NormFloat64())*vol/2
		rows = append(rows, types.Bar{
			Time:  end.Add(-time.Duration(i) * step),
			Open:  open,
			High:  high,
			Low:   math.Max(low, base*0.005),
			Close: price,
		})
	}
	return Normalize(sym, tf, period, rows)
}
