package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceHistory is a daily bar series in ascending date order. The last bar is
// the live (still forming) bar, the one before it is the last confirmed close.
type PriceHistory []OHLCV

// Clone returns an independent copy of the series.
func (h PriceHistory) Clone() PriceHistory {
	if h == nil {
		return nil
	}
	out := make(PriceHistory, len(h))
	copy(out, h)
	return out
}

// Confirmed returns a copy of every bar except the live one.
func (h PriceHistory) Confirmed() PriceHistory {
	if len(h) == 0 {
		return nil
	}
	return h[:len(h)-1].Clone()
}

// Live returns the most recent bar.
func (h PriceHistory) Live() (OHLCV, bool) {
	if len(h) == 0 {
		return OHLCV{}, false
	}
	return h[len(h)-1], true
}

// Anchor returns the last confirmed bar.
func (h PriceHistory) Anchor() (OHLCV, bool) {
	if len(h) < 2 {
		return OHLCV{}, false
	}
	return h[len(h)-2], true
}

// Closes extracts the close column.
func (h PriceHistory) Closes() []float64 {
	closes := make([]float64, len(h))
	for i, b := range h {
		closes[i] = b.Close
	}
	return closes
}
