package collector

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"DipSentinel/internal/model"
)

// VsTraderFetcher reads daily bars from a self-hosted vstrader gateway.
type VsTraderFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewVsTraderFetcher(baseURL, apiKey, proxyURL string) *VsTraderFetcher {
	return &VsTraderFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *VsTraderFetcher) Name() string { return "vstrader" }

type vsBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (b vsBar) ohlcv() model.OHLCV {
	return model.OHLCV{
		Time:   time.Unix(b.Timestamp, 0),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

// FetchDailyBars returns up to days bars. The gateway does not guarantee order.
func (f *VsTraderFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) (model.PriceHistory, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(days))
	endpoint := f.BaseURL + "/api/v1/bars/daily?" + q.Encode()

	header := http.Header{}
	if f.APIKey != "" {
		header.Set("Authorization", "Bearer "+f.APIKey)
	}

	var raw []vsBar
	if err := getJSON(ctx, f.Client, f.Name(), endpoint, header, &raw); err != nil {
		return nil, err
	}
	bars := make(model.PriceHistory, len(raw))
	for i, b := range raw {
		bars[i] = b.ohlcv()
	}
	return tail(bars, days), nil
}
