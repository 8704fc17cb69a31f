package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"DipSentinel/internal/model"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var kst = time.FixedZone("KST", 9*60*60)

// 2026-10-19 is a Monday, 2026-10-24 a Saturday.
func at(day, hour, minute, sec int) time.Time {
	return time.Date(2026, 10, day, hour, minute, sec, 0, kst)
}

func testClock() *Clock {
	c := NewClock(kst, DefaultDomesticSuffixes, DefaultWindows())
	c.Now = func() time.Time { return at(19, 10, 0, 0) }
	return c
}

func TestClassify(t *testing.T) {
	c := testClock()
	tests := []struct {
		ticker string
		want   model.MarketClass
	}{
		{"005930.KS", model.DomesticEquity},
		{"005930.ks", model.DomesticEquity},
		{"035720.KQ", model.DomesticEquity},
		{" 035720.kq ", model.DomesticEquity},
		{"QQQ", model.ForeignEquity},
		{"NVDA", model.ForeignEquity},
		{"7203.T", model.ForeignEquity},
		{"", model.ForeignEquity},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.ticker); got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.ticker, tt.want, got)
		}
	}
}

func TestEvaluate_WrappingWindowBoundaries(t *testing.T) {
	c := testClock()
	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"start", at(19, 23, 20, 0), true},
		{"before midnight", at(19, 23, 59, 0), true},
		{"midnight", at(20, 0, 0, 0), true},
		{"end", at(20, 6, 0, 0), true},
		{"one minute before start", at(19, 23, 19, 0), false},
		{"one minute after end", at(20, 6, 1, 0), false},
		{"seconds after end", at(20, 6, 0, 30), false},
		{"midday", at(20, 12, 0, 0), false},
	}
	for _, tt := range tests {
		st := c.Evaluate("NVDA", model.TriggerForced, tt.at)
		if st.IsOpen != tt.open {
			t.Errorf("%s: expected open=%v, got %v (%s)", tt.name, tt.open, st.IsOpen, st.Reason)
		}
	}
}

func TestEvaluate_DaytimeWindowBoundaries(t *testing.T) {
	c := testClock()
	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"start", at(19, 9, 20, 0), true},
		{"end", at(19, 15, 30, 0), true},
		{"before start", at(19, 9, 19, 0), false},
		{"after end", at(19, 15, 31, 0), false},
		{"night", at(19, 23, 30, 0), false},
	}
	for _, tt := range tests {
		st := c.Evaluate("005930.KS", model.TriggerForced, tt.at)
		if st.IsOpen != tt.open {
			t.Errorf("%s: expected open=%v, got %v (%s)", tt.name, tt.open, st.IsOpen, st.Reason)
		}
	}
}

func TestEvaluate_Reasons(t *testing.T) {
	c := testClock()

	st := c.Evaluate("005930.KS", model.TriggerForced, at(24, 10, 0, 0))
	if st.IsOpen || st.Reason != "market closed: weekend" {
		t.Errorf("weekend: unexpected status %+v", st)
	}

	st = c.Evaluate("005930.KS", model.TriggerForced, at(19, 16, 2, 0))
	if st.IsOpen {
		t.Fatal("expected closed after session end")
	}
	if !strings.Contains(st.Reason, "16:02") || !strings.Contains(st.Reason, "09:20~15:30") {
		t.Errorf("closed reason should carry window and time of day, got %q", st.Reason)
	}

	st = c.Evaluate("005930.KS", model.TriggerForced, at(19, 10, 0, 0))
	if !st.IsOpen || st.Reason != "Korean regular session open (forced)" {
		t.Errorf("forced open: unexpected status %+v", st)
	}
	if st.Market != model.DomesticEquity || st.Mode != model.TriggerForced {
		t.Errorf("forced open: unexpected market/mode %s/%s", st.Market, st.Mode)
	}

	st = c.Evaluate("005930.KS", model.TriggerForced, time.Time{})
	if st.IsOpen {
		t.Error("forced evaluation without an instant must be closed")
	}
}

func TestEvaluate_LiveNormalizesToReferenceZone(t *testing.T) {
	c := testClock()
	// 01:30 UTC on Monday is 10:30 KST.
	c.Now = func() time.Time { return time.Date(2026, 10, 19, 1, 30, 0, 0, time.UTC) }

	st := c.Evaluate("005930.KS", model.TriggerLive, time.Time{})
	if !st.IsOpen {
		t.Fatalf("expected open, got %q", st.Reason)
	}
	if st.Reason != "Korean regular session open" {
		t.Errorf("unexpected reason %q", st.Reason)
	}
	if st.At.Location() != kst || st.At.Hour() != 10 {
		t.Errorf("expected instant normalized to KST 10:30, got %v", st.At)
	}

	// Saturday 23:00 UTC is Sunday 08:00 KST: weekend in the reference zone.
	c.Now = func() time.Time { return time.Date(2026, 10, 24, 23, 0, 0, 0, time.UTC) }
	st = c.Evaluate("NVDA", model.TriggerLive, time.Time{})
	if st.IsOpen || st.Reason != "market closed: weekend" {
		t.Errorf("expected weekend in reference zone, got %+v", st)
	}
}

func TestEvaluate_LiveIgnoresSyntheticInstant(t *testing.T) {
	c := testClock()
	st := c.Evaluate("005930.KS", model.TriggerLive, at(24, 3, 0, 0))
	if !st.IsOpen {
		t.Errorf("live mode should use the clock source, got %q", st.Reason)
	}
}

func TestEvaluate_Concurrent(t *testing.T) {
	c := testClock()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticker := "NVDA"
			if i%2 == 0 {
				ticker = "005930.KS"
			}
			st := c.Evaluate(ticker, model.TriggerForced, at(19, 9+i%10, 30, 0))
			if st.Market != c.Classify(ticker) {
				t.Errorf("market mismatch for %s", ticker)
			}
		}(i)
	}
	wg.Wait()
}

func TestEvaluate_Properties(t *testing.T) {
	c := testClock()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("weekend is always closed", prop.ForAll(
		func(day, hour, minute int, domestic bool) bool {
			ticker := "NVDA"
			if domestic {
				ticker = "005930.KS"
			}
			return !c.Evaluate(ticker, model.TriggerForced, at(day, hour, minute, 0)).IsOpen
		},
		gen.IntRange(24, 25), gen.IntRange(0, 23), gen.IntRange(0, 59), gen.Bool(),
	))

	properties.Property("weekday membership follows the window", prop.ForAll(
		func(day, hour, minute int) bool {
			tod := hour*60 + minute
			wantForeign := tod >= 23*60+20 || tod <= 6*60
			wantDomestic := tod >= 9*60+20 && tod <= 15*60+30
			instant := at(day, hour, minute, 0)
			return c.Evaluate("NVDA", model.TriggerForced, instant).IsOpen == wantForeign &&
				c.Evaluate("005930.KS", model.TriggerForced, instant).IsOpen == wantDomestic
		},
		gen.IntRange(19, 23), gen.IntRange(0, 23), gen.IntRange(0, 59),
	))

	properties.TestingRun(t)
}

func TestSessionWindow_Contains(t *testing.T) {
	w := model.NewSessionWindow("x", model.NewTimeOfDay(23, 20), model.NewTimeOfDay(6, 0))
	if !w.WrapsMidnight {
		t.Fatal("expected wrapping window")
	}
	d := model.NewSessionWindow("y", model.NewTimeOfDay(9, 20), model.NewTimeOfDay(15, 30))
	if d.WrapsMidnight {
		t.Fatal("expected non-wrapping window")
	}
	if !d.Contains(model.NewTimeOfDay(12, 0)) || d.Contains(model.NewTimeOfDay(16, 0)) {
		t.Error("daytime window membership wrong")
	}
	if got := d.String(); got != "09:20~15:30" {
		t.Errorf("expected 09:20~15:30, got %s", got)
	}
}
