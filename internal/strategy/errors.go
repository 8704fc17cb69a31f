package strategy

import (
	"errors"
	"fmt"
)

// Analysis error kinds. Every failure of a single evaluation is one of these
// and is reported to the caller as-is.
var (
	ErrMarketClosed        = errors.New("market closed")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrMalformedHistory    = errors.New("malformed history")
)

// AnalysisError carries the kind of a failed evaluation plus a readable reason.
type AnalysisError struct {
	Kind   error
	Ticker string
	Reason string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%v [%s]: %s", e.Kind, e.Ticker, e.Reason)
}

func (e *AnalysisError) Unwrap() error {
	return e.Kind
}

// NewAnalysisError creates a new AnalysisError.
func NewAnalysisError(kind error, ticker, reason string) *AnalysisError {
	return &AnalysisError{Kind: kind, Ticker: ticker, Reason: reason}
}

// KindOf returns a short label for the error kind, used in logs and metrics.
func KindOf(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMarketClosed):
		return "market_closed"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrMalformedHistory):
		return "malformed_history"
	default:
		return "provider"
	}
}
