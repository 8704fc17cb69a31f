// Package session decides whether a ticker's home market is in a window
// where live quotes are meaningful.
package session

import (
	"fmt"
	"strings"
	"time"

	"DipSentinel/internal/model"
)

// DefaultDomesticSuffixes are the exchange suffixes of domestic listings.
var DefaultDomesticSuffixes = []string{".KS", ".KQ"}

// Clock evaluates market sessions. It holds only static configuration and is
// safe for concurrent use.
type Clock struct {
	Location         *time.Location
	DomesticSuffixes []string
	Windows          map[model.MarketClass]model.SessionWindow
	// Now is the clock source for live evaluations.
	Now func() time.Time
}

// NewClock creates a Clock over the given windows.
func NewClock(loc *time.Location, suffixes []string, windows map[model.MarketClass]model.SessionWindow) *Clock {
	return &Clock{
		Location:         loc,
		DomesticSuffixes: suffixes,
		Windows:          windows,
		Now:              time.Now,
	}
}

// DefaultWindows returns the regular sessions of the domestic and US markets
// expressed in Korea Standard Time.
func DefaultWindows() map[model.MarketClass]model.SessionWindow {
	return map[model.MarketClass]model.SessionWindow{
		model.DomesticEquity: model.NewSessionWindow("Korean regular session",
			model.NewTimeOfDay(9, 20), model.NewTimeOfDay(15, 30)),
		model.ForeignEquity: model.NewSessionWindow("US regular session",
			model.NewTimeOfDay(23, 20), model.NewTimeOfDay(6, 0)),
	}
}

// Classify maps a ticker to its market class by suffix.
func (c *Clock) Classify(ticker string) model.MarketClass {
	upper := strings.ToUpper(strings.TrimSpace(ticker))
	for _, s := range c.DomesticSuffixes {
		if strings.HasSuffix(upper, strings.ToUpper(s)) {
			return model.DomesticEquity
		}
	}
	return model.ForeignEquity
}

// Evaluate gates a ticker at an instant. In live mode the instant comes from
// c.Now and is normalized into the reference timezone; at is ignored. In
// forced mode at is used verbatim.
func (c *Clock) Evaluate(ticker string, mode model.TriggerMode, at time.Time) model.SessionStatus {
	market := c.Classify(ticker)
	status := model.SessionStatus{Market: market, Mode: mode}

	var now time.Time
	if mode == model.TriggerForced {
		if at.IsZero() {
			status.Reason = "forced evaluation requires an explicit instant"
			return status
		}
		now = at
	} else {
		status.Mode = model.TriggerLive
		now = c.Now().In(c.Location)
	}
	status.At = now

	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		status.Reason = "market closed: weekend"
		return status
	}

	window, ok := c.Windows[market]
	if !ok {
		status.Reason = fmt.Sprintf("no session window configured for %s", market)
		return status
	}

	tod := model.TimeOfDayOf(now)
	if !window.Contains(tod) {
		status.Reason = fmt.Sprintf("outside %s (%s), now %s", window.Label, window, tod)
		return status
	}

	status.IsOpen = true
	status.Reason = window.Label + " open"
	if status.Mode == model.TriggerForced {
		status.Reason += " (forced)"
	}
	return status
}
