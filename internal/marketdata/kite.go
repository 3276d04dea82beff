package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/types"
)

const kiteExchangeCDS = "CDS"

// KiteParams configure the Zerodha Kite Connect source.
type KiteParams struct {
	APIKey      string
	AccessToken string
	Exchange    string // CDS for currency derivatives
	BaseURI     string
}

// Kite reads historical candles from Kite Connect. Plain pairs like USDINR resolve to the
// nearest-expiry future on the configured exchange.
type Kite struct {
	client   *kiteconnect.Client
	exchange string
	mapper   *instrumentMapper
	now      func() time.Time
}

var _ interfaces.MarketDataSource = (*Kite)(nil)

func NewKite(p KiteParams) (*Kite, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, fmt.Errorf("kite source needs KITE_API_KEY and KITE_ACCESS_TOKEN")
	}
	if p.Exchange == "" {
		p.Exchange = kiteExchangeCDS
	}
	client := kiteconnect.New(p.APIKey)
	client.SetAccessToken(p.AccessToken)
	if p.BaseURI != "" {
		client.SetBaseURI(p.BaseURI)
	}
	return &Kite{
		client:   client,
		exchange: p.Exchange,
		mapper:   newInstrumentMapper(),
		now:      time.Now,
	}, nil
}

func (k *Kite) Name() string { return "kite" }

var kiteIntervals = map[types.Timeframe]string{
	types.TF1m:  "minute",
	types.TF5m:  "5minute",
	types.TF15m: "15minute",
	types.TF30m: "30minute",
	types.TF1h:  "60minute",
	types.TF1d:  "day",
}

func (k *Kite) Fetch(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.BarSeries, error) {
	interval, ok := kiteIntervals[tf]
	if !ok {
		return types.BarSeries{}, fmt.Errorf("kite: unsupported timeframe %s", tf)
	}

	token, err := k.resolve(ctx, symbol)
	if err != nil {
		return types.BarSeries{}, err
	}

	to := k.now()
	from := to.Add(-period.Duration())
	candles, err := k.client.GetHistoricalData(token, interval, from, to, false, false)
	if err != nil {
		return types.BarSeries{}, fmt.Errorf("kite historical %s: %w: %w", symbol, types.ErrDataUnavailable, err)
	}

	rows := make([]types.Bar, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, types.Bar{
			Time:  c.Date.Time.UTC(),
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
			Vol:   float64(c.Volume),
		})
	}
	return Normalize(strings.ToUpper(symbol), tf, period, rows)
}

func (k *Kite) resolve(ctx context.Context, symbol string) (int, error) {
	sym := strings.ToUpper(symbol)
	if token, ok := k.mapper.getToken(sym); ok {
		return token, nil
	}

	instruments, err := k.client.GetInstrumentsByExchange(k.exchange)
	if err != nil {
		return 0, fmt.Errorf("kite instruments %s: %w: %w", k.exchange, types.ErrDataUnavailable, err)
	}

	inst, ok := pickInstrument(instruments, sym, k.now())
	if !ok {
		return 0, fmt.Errorf("kite: no %s instrument for %s: %w", k.exchange, sym, types.ErrDataUnavailable)
	}
	logger.Debug(ctx, "Resolved kite instrument", "symbol", sym, "tradingsymbol", inst.Tradingsymbol, "token", inst.InstrumentToken)
	k.mapper.addMapping(sym, inst.InstrumentToken)
	return inst.InstrumentToken, nil
}

// pickInstrument prefers an exact trading symbol, else the nearest unexpired future on the underlying.
func pickInstrument(all kiteconnect.Instruments, symbol string, now time.Time) (kiteconnect.Instrument, bool) {
	var futures []kiteconnect.Instrument
	for _, inst := range all {
		if strings.EqualFold(inst.Tradingsymbol, symbol) {
			return inst, true
		}
		if strings.EqualFold(inst.Name, symbol) && inst.InstrumentType == "FUT" && !inst.Expiry.Time.Before(now.Truncate(24*time.Hour)) {
			futures = append(futures, inst)
		}
	}
	if len(futures) == 0 {
		return kiteconnect.Instrument{}, false
	}
	sort.Slice(futures, func(i, j int) bool { return futures[i].Expiry.Time.Before(futures[j].Expiry.Time) })
	return futures[0], true
}

// instrumentMapper caches symbol to instrument token lookups.
type instrumentMapper struct {
	symbolToToken map[string]int
	mu            sync.RWMutex
}

func newInstrumentMapper() *instrumentMapper {
	return &instrumentMapper{symbolToToken: make(map[string]int)}
}

func (im *instrumentMapper) addMapping(symbol string, token int) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.symbolToToken[symbol] = token
}

func (im *instrumentMapper) getToken(symbol string) (int, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	token, ok := im.symbolToToken[symbol]
	return token, ok
}
