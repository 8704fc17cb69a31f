package model

import "time"

// Classification places the live price relative to the band.
type Classification string

const (
	BelowBand  Classification = "BELOW_BAND"
	AboveBand  Classification = "ABOVE_BAND"
	WithinBand Classification = "WITHIN_BAND"
)

// Actionable is true for the two signal classes.
func (c Classification) Actionable() bool {
	return c == BelowBand || c == AboveBand
}

// ReturnStats holds the mean and sample standard deviation of simple daily returns.
type ReturnStats struct {
	Mean  float64
	Std   float64
	Count int
}

// BandResult is the output of the band engine.
type BandResult struct {
	Ticker         string
	AnchorClose    float64
	AnchorDate     time.Time
	LivePrice      float64
	BuyTarget      float64
	SellTarget     float64
	Mean           float64
	Std            float64
	Classification Classification
}

// BuyOffset is the band's lower edge as a fractional change from the anchor.
func (r *BandResult) BuyOffset() float64 { return r.Mean - 2*r.Std }

// SellOffset is the band's upper edge as a fractional change from the anchor.
func (r *BandResult) SellOffset() float64 { return r.Mean + 2*r.Std }
