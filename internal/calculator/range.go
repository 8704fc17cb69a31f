package calculator

import (
	"errors"
	"math"

	"DipSentinel/internal/model"
)

// RecentWindow is the number of confirmed bars shown as recent context.
const RecentWindow = 60

// Range is the close high/low over a trailing window.
type Range struct {
	High float64
	Low  float64
	Bars int
}

// RecentRange scans the most recent `window` bars and returns the highest and lowest close.
func RecentRange(bars model.PriceHistory, window int) (Range, error) {
	if len(bars) == 0 {
		return Range{}, errors.New("no bars provided")
	}
	if window <= 0 {
		return Range{}, errors.New("window must be positive")
	}
	n := len(bars)
	start := n - window
	if start < 0 {
		start = 0
	}
	high := math.Inf(-1)
	low := math.Inf(1)
	for i := start; i < n; i++ {
		if bars[i].Close > high {
			high = bars[i].Close
		}
		if bars[i].Close < low {
			low = bars[i].Close
		}
	}
	return Range{High: high, Low: low, Bars: n - start}, nil
}

// PositionInRange returns where price sits within the range (0.0~1.0).
func PositionInRange(price float64, r Range) float64 {
	if r.High == r.Low {
		return 0.5
	}
	pos := (price - r.Low) / (r.High - r.Low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos
}
