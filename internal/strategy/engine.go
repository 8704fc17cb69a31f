package strategy

import (
	"fmt"
	"math"
	"time"

	"DipSentinel/internal/calculator"
	"DipSentinel/internal/model"
)

const (
	// MinBars is the shortest history the engine accepts.
	MinBars = 5
	// SigmaWidth is the band half-width in standard deviations.
	SigmaWidth = 2.0
)

// classify maps the live price to a band class. Ties go to the signal class.
func classify(live, buy, sell float64) model.Classification {
	switch {
	case live <= buy:
		return model.BelowBand
	case live >= sell:
		return model.AboveBand
	default:
		return model.WithinBand
	}
}

// Compute derives the band from the confirmed part of history and classifies
// the live bar against it. history is not modified.
func Compute(ticker string, history model.PriceHistory, status model.SessionStatus) (*model.BandResult, error) {
	if !status.IsOpen {
		return nil, NewAnalysisError(ErrMarketClosed, ticker, status.Reason)
	}
	if len(history) < MinBars {
		return nil, NewAnalysisError(ErrInsufficientHistory, ticker,
			fmt.Sprintf("need at least %d bars, got %d", MinBars, len(history)))
	}

	bars := history.Clone()
	if err := validate(ticker, bars); err != nil {
		return nil, err
	}

	anchor, _ := bars.Anchor()
	live, _ := bars.Live()

	// The live bar is still forming and never feeds the statistics.
	stats, err := calculator.CalculateReturnStats(bars.Confirmed())
	if err != nil {
		return nil, NewAnalysisError(ErrInsufficientHistory, ticker, err.Error())
	}

	buy := anchor.Close * (1 + stats.Mean - SigmaWidth*stats.Std)
	sell := anchor.Close * (1 + stats.Mean + SigmaWidth*stats.Std)

	return &model.BandResult{
		Ticker:         ticker,
		AnchorClose:    anchor.Close,
		AnchorDate:     anchor.Time,
		LivePrice:      live.Close,
		BuyTarget:      buy,
		SellTarget:     sell,
		Mean:           stats.Mean,
		Std:            stats.Std,
		Classification: classify(live.Close, buy, sell),
	}, nil
}

// validate rejects series that cannot be trusted rather than coercing them.
func validate(ticker string, bars model.PriceHistory) error {
	for i, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			return NewAnalysisError(ErrMalformedHistory, ticker,
				fmt.Sprintf("bar %d (%s): invalid close %v", i, b.Time.Format("2006-01-02"), b.Close))
		}
		if i == 0 {
			continue
		}
		prev := bars[i-1].Time
		if !b.Time.After(prev) {
			return NewAnalysisError(ErrMalformedHistory, ticker,
				fmt.Sprintf("bar %d (%s): dates not strictly ascending", i, b.Time.Format("2006-01-02")))
		}
		if sameDate(prev.In(b.Time.Location()), b.Time) {
			return NewAnalysisError(ErrMalformedHistory, ticker,
				fmt.Sprintf("bar %d: two bars on %s", i, b.Time.Format("2006-01-02")))
		}
	}
	return nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
