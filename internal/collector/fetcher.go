package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"DipSentinel/internal/model"
)

// Fetcher is the daily history provider. Implementations return bars in
// ascending date order with the in-progress bar last.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, days int) (model.PriceHistory, error)
	Name() string
}

// StatusError is a non-200 provider response.
type StatusError struct {
	Provider string
	Code     int
	Body     []byte
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s: status %d, body: %s", e.Provider, e.Code, body)
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// getJSON issues a GET and decodes a 200 response into out.
func getJSON(ctx context.Context, client *http.Client, provider, endpoint string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: fetch: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Provider: provider, Code: resp.StatusCode, Body: body}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode: %w", provider, err)
	}
	return nil
}

// tail sorts bars by time and keeps the most recent n.
func tail(bars model.PriceHistory, n int) model.PriceHistory {
	slices.SortStableFunc(bars, func(a, b model.OHLCV) int { return a.Time.Compare(b.Time) })
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars
}
