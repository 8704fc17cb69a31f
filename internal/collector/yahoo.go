package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"DipSentinel/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps friendly aliases to Yahoo tickers
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	return &YahooFetcher{
		BaseURL: yahooBaseURL,
		Client:  newHTTPClient(proxyURL),
		SymbolMap: map[string]string{
			"KOSPI":  "^KS11",
			"KOSDAQ": "^KQ11",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset            int    `json:"gmtoffset"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// exchangeLocation resolves the listing's timezone, falling back to its fixed offset.
func exchangeLocation(name string, offset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone(name, offset)
}

// collapseSameDay folds rows that share an exchange date into one bar. Yahoo
// sometimes appends the live quote as a second row on today's date; the later
// row supplies the close.
func collapseSameDay(bars model.PriceHistory) model.PriceHistory {
	out := make(model.PriceHistory, 0, len(bars))
	for _, b := range bars {
		n := len(out)
		if n == 0 || dateOf(out[n-1].Time) != dateOf(b.Time) {
			out = append(out, b)
			continue
		}
		day := &out[n-1]
		day.High = max(day.High, b.High)
		if b.Low > 0 && (day.Low == 0 || b.Low < day.Low) {
			day.Low = b.Low
		}
		day.Close = b.Close
		day.Volume = max(day.Volume, b.Volume)
	}
	return out
}

func dateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

func quoteAt(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}

// yahooRange picks the smallest chart range that covers the requested number of daily bars.
func yahooRange(days int) string {
	switch {
	case days <= 5:
		return "5d"
	case days <= 21:
		return "1mo"
	case days <= 63:
		return "3mo"
	case days <= 126:
		return "6mo"
	case days <= 252:
		return "1y"
	case days <= 504:
		return "2y"
	case days <= 1260:
		return "5y"
	default:
		return "10y"
	}
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) (model.PriceHistory, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), interval, rng)

	var chart yahooChart
	err := getJSON(ctx, f.Client, f.Name(), endpoint, http.Header{"User-Agent": {"Mozilla/5.0"}}, &chart)
	var se *StatusError
	if errors.As(err, &se) {
		// Yahoo explains most failures in the body.
		if json.Unmarshal(se.Body, &chart) == nil && chart.Chart.Error != nil {
			return nil, fmt.Errorf("yahoo api error (status %d): %s", se.Code, chart.Chart.Error.Description)
		}
	}
	if err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	loc := exchangeLocation(result.Meta.ExchangeTimezoneName, result.Meta.GMTOffset)
	bars := make(model.PriceHistory, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c, ok := quoteAt(quote.Close, i)
		if !ok {
			continue // holidays and halts come back as nulls
		}
		o, _ := quoteAt(quote.Open, i)
		h, _ := quoteAt(quote.High, i)
		l, _ := quoteAt(quote.Low, i)
		v, _ := quoteAt(quote.Volume, i)
		bars = append(bars, model.OHLCV{Time: time.Unix(ts, 0).In(loc), Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	return bars, nil
}

// FetchDailyBars returns up to days of the most recent daily bars.
func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) (model.PriceHistory, error) {
	bars, err := f.fetchChart(ctx, symbol, "1d", yahooRange(days))
	if err != nil {
		return nil, err
	}
	return tail(collapseSameDay(tail(bars, 0)), days), nil
}
