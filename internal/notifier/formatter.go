package notifier

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"DipSentinel/internal/calculator"
	"DipSentinel/internal/collector"
	"DipSentinel/internal/model"
	"DipSentinel/internal/strategy"

	"github.com/dustin/go-humanize"
)

// FormatPrice renders a price with the precision customary for the market.
func FormatPrice(market model.MarketClass, v float64) string {
	if market == model.DomesticEquity {
		return humanize.Comma(int64(math.Round(v)))
	}
	return humanize.FormatFloat("#,###.##", v)
}

func percent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}

// Verdict is the one-line reading of a classification.
func Verdict(c model.Classification) string {
	switch c {
	case model.BelowBand:
		return "🚨 BUY ZONE: live price is at or below the statistical low"
	case model.AboveBand:
		return "📢 SELL ZONE: live price is at or above the statistical high"
	default:
		return "✅ live price is moving within the normal range"
	}
}

// FormatSessionStatus formats a gate result.
func FormatSessionStatus(ticker string, st model.SessionStatus) string {
	icon := "⏹️"
	if st.IsOpen {
		icon = "🟢"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s | %s\n", icon, ticker, st.Reason))
	if !st.At.IsZero() {
		b.WriteString(fmt.Sprintf("evaluated at %s (%s)\n", st.At.Format("2006-01-02 15:04 MST"), strings.ToLower(string(st.Mode))))
	}
	return b.String()
}

// FormatBandReport formats a successful evaluation.
func FormatBandReport(eval *collector.Evaluation) string {
	res := eval.Band
	market := eval.Session.Market
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 DipSentinel | %s | %s\n", eval.Ticker, eval.Session.At.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("🟢 %s\n\n", eval.Session.Reason))

	b.WriteString(fmt.Sprintf("Anchor (%s close): %s\n", res.AnchorDate.Format("2006-01-02"), FormatPrice(market, res.AnchorClose)))
	b.WriteString(fmt.Sprintf("Live price: %s\n", FormatPrice(market, res.LivePrice)))
	b.WriteString(fmt.Sprintf("🎯 Buy line (-2σ): %s (%s)\n", FormatPrice(market, res.BuyTarget), percent(res.BuyOffset())))
	b.WriteString(fmt.Sprintf("🚀 Sell line (+2σ): %s (%s)\n", FormatPrice(market, res.SellTarget), percent(res.SellOffset())))
	b.WriteString(fmt.Sprintf("Mean %s | σ %.2f%%\n", percent(res.Mean), res.Std*100))

	if eval.Recent.Bars > 0 {
		b.WriteString(fmt.Sprintf("%d-bar range: %s ~ %s (position %.0f%%)\n",
			eval.Recent.Bars,
			FormatPrice(market, eval.Recent.Low),
			FormatPrice(market, eval.Recent.High),
			calculator.PositionInRange(res.LivePrice, eval.Recent)*100))
	}

	b.WriteString("\n" + Verdict(res.Classification) + "\n")
	return b.String()
}

// FormatError renders a failed evaluation for the user.
func FormatError(ticker string, err error) string {
	var ae *strategy.AnalysisError
	reason := err.Error()
	if errors.As(err, &ae) {
		reason = ae.Reason
	}
	switch {
	case errors.Is(err, strategy.ErrMarketClosed):
		return fmt.Sprintf("⏹️ %s | %s", ticker, reason)
	case errors.Is(err, strategy.ErrInsufficientHistory):
		return fmt.Sprintf("⚠️ %s | not enough price history: %s", ticker, reason)
	case errors.Is(err, strategy.ErrMalformedHistory):
		return fmt.Sprintf("❌ %s | price history rejected: %s", ticker, reason)
	default:
		return fmt.Sprintf("❌ %s | data fetch failed: %s", ticker, reason)
	}
}
