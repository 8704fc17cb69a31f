package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"DipSentinel/internal/model"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var openStatus = model.SessionStatus{IsOpen: true, Reason: "Korean regular session open", Market: model.DomesticEquity}

func history(closes ...float64) model.PriceHistory {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	bars := make(model.PriceHistory, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func TestCompute_WorkedExample(t *testing.T) {
	res, err := Compute("005930.KS", history(100, 101, 99, 100, 102, 100), openStatus)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AnchorClose != 102 || res.LivePrice != 100 {
		t.Errorf("expected anchor 102 / live 100, got %.2f / %.2f", res.AnchorClose, res.LivePrice)
	}
	if want := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC); !res.AnchorDate.Equal(want) {
		t.Errorf("expected anchor date %v, got %v", want, res.AnchorDate)
	}
	if math.Abs(res.Mean-0.005074757475747593) > 1e-12 {
		t.Errorf("unexpected mean %.12f", res.Mean)
	}
	if math.Abs(res.Std-0.01723500479714521) > 1e-12 {
		t.Errorf("unexpected std %.12f", res.Std)
	}
	if math.Abs(res.BuyTarget-102*(1+res.Mean-2*res.Std)) > 1e-9 {
		t.Errorf("buy target does not follow mean-2σ: %.6f", res.BuyTarget)
	}
	if math.Abs(res.BuyTarget-99.00168428390862) > 1e-6 || math.Abs(res.SellTarget-106.03356624114387) > 1e-6 {
		t.Errorf("unexpected band [%.6f, %.6f]", res.BuyTarget, res.SellTarget)
	}
	if res.Classification != model.WithinBand {
		t.Errorf("expected WITHIN_BAND, got %s", res.Classification)
	}
}

func TestCompute_LiveBarExcludedFromStats(t *testing.T) {
	a, err := Compute("QQQ", history(100, 101, 99, 100, 102, 100), openStatus)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute("QQQ", history(100, 101, 99, 100, 102, 500), openStatus)
	if err != nil {
		t.Fatal(err)
	}
	if a.Mean != b.Mean || a.Std != b.Std || a.BuyTarget != b.BuyTarget {
		t.Error("live bar must not influence the band")
	}
	if b.Classification != model.AboveBand {
		t.Errorf("expected ABOVE_BAND for live 500, got %s", b.Classification)
	}
}

func TestCompute_Classification(t *testing.T) {
	tests := []struct {
		live float64
		want model.Classification
	}{
		{90, model.BelowBand},
		{100, model.WithinBand},
		{110, model.AboveBand},
	}
	for _, tt := range tests {
		res, err := Compute("QQQ", history(100, 101, 99, 100, 102, tt.live), openStatus)
		if err != nil {
			t.Fatal(err)
		}
		if res.Classification != tt.want {
			t.Errorf("live %.0f: expected %s, got %s", tt.live, tt.want, res.Classification)
		}
	}
}

func TestCompute_BoundaryTiesGoToSignal(t *testing.T) {
	base, err := Compute("QQQ", history(100, 101, 99, 100, 102, 100), openStatus)
	if err != nil {
		t.Fatal(err)
	}

	atBuy := history(100, 101, 99, 100, 102, 100)
	atBuy[len(atBuy)-1].Close = base.BuyTarget
	res, err := Compute("QQQ", atBuy, openStatus)
	if err != nil {
		t.Fatal(err)
	}
	if res.LivePrice != res.BuyTarget || res.Classification != model.BelowBand {
		t.Errorf("live == buy target: expected BELOW_BAND, got %s", res.Classification)
	}

	atSell := history(100, 101, 99, 100, 102, 100)
	atSell[len(atSell)-1].Close = base.SellTarget
	res, err = Compute("QQQ", atSell, openStatus)
	if err != nil {
		t.Fatal(err)
	}
	if res.LivePrice != res.SellTarget || res.Classification != model.AboveBand {
		t.Errorf("live == sell target: expected ABOVE_BAND, got %s", res.Classification)
	}

	// Flat history collapses the band onto the anchor; the lower edge wins.
	res, err = Compute("QQQ", history(100, 100, 100, 100, 100, 100), openStatus)
	if err != nil {
		t.Fatal(err)
	}
	if res.Std != 0 || res.Classification != model.BelowBand {
		t.Errorf("flat history: expected BELOW_BAND with zero std, got %s (std=%v)", res.Classification, res.Std)
	}
}

func TestCompute_MarketClosed(t *testing.T) {
	closed := model.SessionStatus{IsOpen: false, Reason: "market closed: weekend"}

	// History validity is never inspected while closed.
	for _, h := range []model.PriceHistory{nil, history(1), history(-1, math.NaN(), 3, 4, 5, 6)} {
		_, err := Compute("005930.KS", h, closed)
		if !errors.Is(err, ErrMarketClosed) {
			t.Errorf("expected ErrMarketClosed, got %v", err)
		}
	}

	_, err := Compute("005930.KS", nil, closed)
	var ae *AnalysisError
	if !errors.As(err, &ae) || ae.Reason != "market closed: weekend" {
		t.Errorf("expected session reason to be carried, got %v", err)
	}
}

func TestCompute_InsufficientHistory(t *testing.T) {
	for n := 0; n < MinBars; n++ {
		closes := make([]float64, n)
		for i := range closes {
			closes[i] = 100 + float64(i)
		}
		_, err := Compute("QQQ", history(closes...), openStatus)
		if !errors.Is(err, ErrInsufficientHistory) {
			t.Errorf("%d bars: expected ErrInsufficientHistory, got %v", n, err)
		}
	}
	if _, err := Compute("QQQ", history(100, 101, 102, 103, 104), openStatus); err != nil {
		t.Errorf("%d bars should be enough, got %v", MinBars, err)
	}
}

func TestCompute_MalformedHistory(t *testing.T) {
	nan := history(100, 101, 99, 100, 102, 100)
	nan[2].Close = math.NaN()

	inf := history(100, 101, 99, 100, 102, 100)
	inf[1].Close = math.Inf(1)

	zero := history(100, 101, 99, 100, 102, 100)
	zero[0].Close = 0

	unordered := history(100, 101, 99, 100, 102, 100)
	unordered[3].Time, unordered[4].Time = unordered[4].Time, unordered[3].Time

	duplicate := history(100, 101, 99, 100, 102, 100)
	duplicate[5].Time = duplicate[4].Time

	// a separate intraday row on the last bar's date
	sameDay := history(100, 101, 99, 100, 102, 100)
	sameDay[5].Time = sameDay[4].Time.Add(95 * time.Minute)

	for name, h := range map[string]model.PriceHistory{
		"nan": nan, "inf": inf, "zero": zero, "unordered": unordered, "duplicate": duplicate, "same_day": sameDay,
	} {
		_, err := Compute("QQQ", h, openStatus)
		if !errors.Is(err, ErrMalformedHistory) {
			t.Errorf("%s: expected ErrMalformedHistory, got %v", name, err)
		}
	}
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	h := history(100, 101, 99, 100, 102, 100)
	before := h.Clone()
	if _, err := Compute("QQQ", h, openStatus); err != nil {
		t.Fatal(err)
	}
	for i := range h {
		if h[i] != before[i] {
			t.Fatalf("bar %d mutated", i)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{NewAnalysisError(ErrMarketClosed, "X", "r"), "market_closed"},
		{NewAnalysisError(ErrInsufficientHistory, "X", "r"), "insufficient_history"},
		{NewAnalysisError(ErrMalformedHistory, "X", "r"), "malformed_history"},
		{errors.New("yahoo: status 500"), "provider"},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

func TestCompute_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	closesGen := gen.SliceOfN(30, gen.Float64Range(50, 150))

	properties.Property("identical inputs give identical results", prop.ForAll(
		func(closes []float64) bool {
			a, errA := Compute("QQQ", history(closes...), openStatus)
			b, errB := Compute("QQQ", history(closes...), openStatus)
			return errA == nil && errB == nil && *a == *b
		},
		closesGen,
	))

	properties.Property("band brackets the anchor-scaled mean", prop.ForAll(
		func(closes []float64) bool {
			res, err := Compute("QQQ", history(closes...), openStatus)
			if err != nil {
				return false
			}
			mid := res.AnchorClose * (1 + res.Mean)
			return res.BuyTarget <= mid && mid <= res.SellTarget && res.Std >= 0
		},
		closesGen,
	))

	properties.Property("classification matches the closed intervals", prop.ForAll(
		func(closes []float64) bool {
			res, err := Compute("QQQ", history(closes...), openStatus)
			if err != nil {
				return false
			}
			switch res.Classification {
			case model.BelowBand:
				return res.LivePrice <= res.BuyTarget
			case model.AboveBand:
				return res.LivePrice >= res.SellTarget && res.LivePrice > res.BuyTarget
			default:
				return res.BuyTarget < res.LivePrice && res.LivePrice < res.SellTarget
			}
		},
		closesGen,
	))

	properties.TestingRun(t)
}
