package model

import (
	"fmt"
	"time"
)

// MarketClass identifies a ticker's home market.
type MarketClass string

const (
	DomesticEquity MarketClass = "DOMESTIC_EQUITY"
	ForeignEquity  MarketClass = "FOREIGN_EQUITY"
)

// TriggerMode says where the evaluation instant came from.
type TriggerMode string

const (
	TriggerLive   TriggerMode = "LIVE"
	TriggerForced TriggerMode = "FORCED"
)

// TimeOfDay is an offset from local midnight.
type TimeOfDay time.Duration

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

// TimeOfDayOf returns the wall-clock offset of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()))
}

func (d TimeOfDay) String() string {
	total := time.Duration(d)
	return fmt.Sprintf("%02d:%02d", int(total.Hours()), int(total.Minutes())%60)
}

// SessionWindow is a trading window in the reference timezone. Both ends are inclusive.
type SessionWindow struct {
	Label         string
	Start         TimeOfDay
	End           TimeOfDay
	WrapsMidnight bool
}

// NewSessionWindow builds a window; it wraps midnight when start is after end.
func NewSessionWindow(label string, start, end TimeOfDay) SessionWindow {
	return SessionWindow{Label: label, Start: start, End: end, WrapsMidnight: start > end}
}

// Contains reports whether the time of day falls inside the window.
func (w SessionWindow) Contains(now TimeOfDay) bool {
	if w.WrapsMidnight {
		return now >= w.Start || now <= w.End
	}
	return w.Start <= now && now <= w.End
}

func (w SessionWindow) String() string {
	return w.Start.String() + "~" + w.End.String()
}

// SessionStatus is the result of one gate evaluation.
type SessionStatus struct {
	IsOpen bool
	Reason string
	Market MarketClass
	Mode   TriggerMode
	At     time.Time
}
