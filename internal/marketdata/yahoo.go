package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"llm-fx-advisor/internal/api"
	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/types"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooParams configure the Yahoo Finance chart source.
type YahooParams struct {
	BaseURL   string
	Timeout   time.Duration
	Retry     *api.RetryConfig
	SymbolMap map[string]string
}

// the chart endpoint rejects requests without a browser user agent
var yahooHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "application/json",
	"Accept-Language": "en-US,en;q=0.9",
	"Referer":         "https://finance.yahoo.com/",
}

// Yahoo reads bars from the public v8 chart endpoint.
type Yahoo struct {
	client    *api.Client
	retry     *api.RetryConfig
	symbolMap map[string]string
}

var _ interfaces.MarketDataSource = (*Yahoo)(nil)

func NewYahoo(p YahooParams) *Yahoo {
	if p.BaseURL == "" {
		p.BaseURL = yahooBaseURL
	}
	if p.Timeout <= 0 {
		p.Timeout = 15 * time.Second
	}
	symbolMap := map[string]string{
		"SPX500": "^GSPC",
		"GOLD":   "GC=F",
		"XAUUSD": "GC=F",
	}
	for k, v := range p.SymbolMap {
		symbolMap[strings.ToUpper(k)] = v
	}
	return &Yahoo{
		client: api.NewClient(
			api.WithBaseURL(strings.TrimRight(p.BaseURL, "/")),
			api.WithTimeout(p.Timeout),
			api.WithHeaders(yahooHeaders),
			api.WithLogging(true),
		),
		retry:     p.Retry,
		symbolMap: symbolMap,
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

// yahooSymbol maps a plain currency pair like EURUSD to Yahoo's EURUSD=X form.
func (y *Yahoo) yahooSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if mapped, ok := y.symbolMap[s]; ok {
		return mapped
	}
	if len(s) == 6 && isLetters(s) {
		return s + "=X"
	}
	return s
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func yahooInterval(tf types.Timeframe) string {
	if tf == types.TF1h {
		return "60m"
	}
	return string(tf)
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []any `json:"open"`
					High   []any `json:"high"`
					Low    []any `json:"low"`
					Close  []any `json:"close"`
					Volume []any `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) Fetch(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.BarSeries, error) {
	ticker := y.yahooSymbol(symbol)
	req := api.NewRequest(ctx, http.MethodGet, "/v8/finance/chart/"+url.PathEscape(ticker)).
		WithQuery("interval", yahooInterval(tf)).
		WithQuery("range", string(period)).
		WithQuery("includePrePost", "false")

	resp, err := y.client.DoWithRetry(req, y.retry)
	if err != nil {
		return types.BarSeries{}, fmt.Errorf("yahoo fetch %s: %w: %w", ticker, types.ErrDataUnavailable, err)
	}

	var chart yahooChart
	if err := json.Unmarshal(resp.Body, &chart); err != nil {
		return types.BarSeries{}, fmt.Errorf("yahoo decode %s: %w: %w", ticker, types.ErrDataUnavailable, err)
	}
	if chart.Chart.Error != nil {
		return types.BarSeries{}, fmt.Errorf("yahoo %s: %s: %w", ticker, chart.Chart.Error.Description, types.ErrDataUnavailable)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return types.BarSeries{}, fmt.Errorf("yahoo %s: empty result: %w", ticker, types.ErrDataUnavailable)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	rows := make([]types.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		vol := at(quote.Volume, i)
		if math.IsNaN(vol) {
			vol = 0
		}
		rows = append(rows, types.Bar{
			Time:  time.Unix(ts, 0).UTC(),
			Open:  at(quote.Open, i),
			High:  at(quote.High, i),
			Low:   at(quote.Low, i),
			Close: at(quote.Close, i),
			Vol:   vol,
		})
	}

	return Normalize(strings.ToUpper(symbol), tf, period, rows)
}

// at reads a nullable numeric column; null or missing reads NaN so Normalize drops the row.
func at(col []any, i int) float64 {
	if i >= len(col) || col[i] == nil {
		return math.NaN()
	}
	switch n := col[i].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return math.NaN()
	}
}
