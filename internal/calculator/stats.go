package calculator

import (
	"errors"
	"math"

	"DipSentinel/internal/model"
)

// SimpleReturns computes close[i]/close[i-1] - 1 for i >= 1. The result has one
// fewer element than the input; the undefined first return is not represented.
func SimpleReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, errors.New("not enough closes for returns")
	}
	returns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return nil, errors.New("zero close in return series")
		}
		returns[i-1] = closes[i]/closes[i-1] - 1
	}
	return returns, nil
}

// Mean computes the arithmetic mean.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("mean of empty series")
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// SampleStdDev computes the Bessel-corrected standard deviation (divisor n-1).
func SampleStdDev(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, errors.New("not enough data for sample standard deviation")
	}
	mean, err := Mean(values)
	if err != nil {
		return 0, err
	}
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1)), nil
}

// CalculateReturnStats returns mean and sample std of simple returns over the bars.
func CalculateReturnStats(bars model.PriceHistory) (model.ReturnStats, error) {
	returns, err := SimpleReturns(bars.Closes())
	if err != nil {
		return model.ReturnStats{}, err
	}
	mean, err := Mean(returns)
	if err != nil {
		return model.ReturnStats{}, err
	}
	std, err := SampleStdDev(returns)
	if err != nil {
		return model.ReturnStats{}, err
	}
	return model.ReturnStats{Mean: mean, Std: std, Count: len(returns)}, nil
}
