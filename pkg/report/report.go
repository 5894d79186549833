// Package report renders an analysis into the plain-text block sent to chat
// and printed by the CLI. The layout is fixed: every line is always present
// and missing values read "N/A".
package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/bubble-lens/pkg/analyzer"
	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/extractor"
	"github.com/bubble-lens/pkg/token"
)

const (
	NA = "N/A"

	// CaptionLimit is Telegram's photo caption limit in characters.
	CaptionLimit = 1024

	maxHolderName = 32
	maxTokenName  = 64
)

func Format(r *analyzer.Report) string {
	var b strings.Builder
	md := r.Metadata
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	kind := "Token"
	if md.IsCollection {
		kind = "NFT Collection"
	}
	line("🪙 %s: %s (%s)", kind, Truncate(md.Name, maxTokenName), md.Symbol)
	line("⛓ Chain: %s", chainName(r.Query.Chain()))
	line("📍 Address: %s", r.Query.Address())
	b.WriteByte('\n')

	line("💰 Price: %s", Price(r.Market.PriceUSD))
	line("🏦 Market Cap: %s", USD(r.Market.MarketCapUSD))
	line("📊 24h Volume: %s", USD(r.Market.Volume24hUSD))
	line("📈 24h Change: %s", Change(r.Market.PriceChange24h))
	b.WriteByte('\n')

	line("🧭 Decentralization Score: %.0f/100 (%s)", r.Score, r.ScoreSource)
	line("🏛 In Exchanges: %s", Percent(md.PercentInExchanges))
	line("📜 In Contracts: %s", Percent(md.PercentInContracts))
	line("👥 Holders: %s", count(md.TotalHolderCount))
	b.WriteByte('\n')

	line("🏆 Top Holders:")
	if len(md.Holders) == 0 {
		line("%s", NA)
	}
	for i, h := range md.Holders {
		line("%d. %s", i+1, holderLine(h))
	}
	b.WriteByte('\n')

	line("🕒 Last Update: %s", orNA(md.LastUpdated))
	if r.Capture.OK() {
		b.WriteString("🫧 Bubblemap attached.")
	} else {
		fmt.Fprintf(&b, "🫧 Bubblemap could not be generated (%s).", r.Capture.Describe())
	}
	return b.String()
}

func holderLine(h token.Holder) string {
	name := h.DisplayName
	if name == "" {
		name = extractor.Abbrev(h.Address)
	}
	s := Truncate(name, maxHolderName)
	if h.IsContract {
		s += " 📜"
	}
	return s + " - " + Percent(h.Percentage)
}

// Price renders sub-cent prices with 8 decimals so they do not collapse to
// $0.00.
func Price(v *float64) string {
	if v == nil {
		return NA
	}
	if *v > 0 && *v < 0.01 {
		return "$" + decimal.NewFromFloat(*v).StringFixed(8)
	}
	return USD(v)
}

// USD renders a grouped amount with 2 decimals: $1,234.56.
func USD(v *float64) string {
	if v == nil {
		return NA
	}
	return "$" + humanize.FormatFloat("#,###.##", *v)
}

func Percent(v *float64) string {
	if v == nil {
		return NA
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func Change(v *float64) string {
	if v == nil {
		return NA
	}
	return fmt.Sprintf("%+.2f%%", *v)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func chainName(c config.Chain) string {
	if info, ok := config.LookupChain(string(c)); ok {
		return fmt.Sprintf("%s (%s)", info.Name, c)
	}
	return orNA(string(c))
}

func count(n int) string {
	if n <= 0 {
		return NA
	}
	return humanize.Comma(int64(n))
}

func orNA(s string) string {
	if s == "" {
		return NA
	}
	return s
}
