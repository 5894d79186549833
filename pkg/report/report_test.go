package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bubble-lens/pkg/analyzer"
	"github.com/bubble-lens/pkg/capture"
	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/score"
	"github.com/bubble-lens/pkg/token"
)

func f(v float64) *float64 { return &v }

func query(t *testing.T) token.Query {
	t.Helper()
	q, err := token.ParseQuery("0x6982508145454ce325ddbe47a25d4ec3d2311933", "arbi", config.ChainEthereum)
	require.NoError(t, err)
	return q
}

func TestPrice(t *testing.T) {
	assert.Equal(t, "N/A", Price(nil))
	assert.Equal(t, "$0.00000320", Price(f(0.0000032)))
	assert.Equal(t, "$0.00999000", Price(f(0.00999)))
	assert.Equal(t, "$0.01", Price(f(0.01)))
	assert.Equal(t, "$1,234.57", Price(f(1234.567)))
	assert.Equal(t, "$0.00", Price(f(0)))
}

func TestUSDAndPercent(t *testing.T) {
	assert.Equal(t, "$1,234,567.00", USD(f(1234567)))
	assert.Equal(t, "N/A", USD(nil))
	assert.Equal(t, "12.34%", Percent(f(12.344)))
	assert.Equal(t, "N/A", Percent(nil))
	assert.Equal(t, "+2.50%", Change(f(2.5)))
	assert.Equal(t, "-7.25%", Change(f(-7.25)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 32))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "🐸🐸…", Truncate("🐸🐸🐸🐸", 3), "counts runes, not bytes")
}

func TestFormat_AllAbsent(t *testing.T) {
	rep := &analyzer.Report{
		Query: query(t),
		Metadata: token.Metadata{
			Name:    "Unknown",
			Symbol:  "N/A",
			Holders: []token.Holder{{Address: "0x1111111111111111111111111111111111111111"}},
		},
		Capture:     capture.Degraded(capture.ReasonTimeout, nil),
		Score:       70,
		ScoreSource: score.SourceComputed,
	}

	out := Format(rep)

	for _, want := range []string{
		"🪙 Token: Unknown (N/A)",
		"⛓ Chain: Arbitrum (arbi)",
		"💰 Price: N/A",
		"🏦 Market Cap: N/A",
		"📊 24h Volume: N/A",
		"📈 24h Change: N/A",
		"🧭 Decentralization Score: 70/100 (computed)",
		"🏛 In Exchanges: N/A",
		"📜 In Contracts: N/A",
		"👥 Holders: N/A",
		"1. 0x1111...1111 - N/A",
		"🕒 Last Update: N/A",
	} {
		assert.Contains(t, out, want)
	}
	lines := strings.Split(out, "\n")
	assert.Equal(t, "🫧 Bubblemap could not be generated (timed out).", lines[len(lines)-1])
}

func TestFormat_Full(t *testing.T) {
	rep := &analyzer.Report{
		Query: query(t),
		Metadata: token.Metadata{
			Name:               "Milady",
			Symbol:             "LADY",
			IsCollection:       true,
			PercentInExchanges: f(3.5),
			PercentInContracts: f(41.129),
			LastUpdated:        "2024-03-01T10:00:00Z",
			TotalHolderCount:   12345,
			Holders: []token.Holder{
				{Address: "0xaaaa", DisplayName: "Uniswap V3: LADY-WETH pool with a very long label", IsContract: true, Percentage: f(22.5)},
				{Address: "0xbbbb", DisplayName: "whale.eth", Percentage: f(9)},
			},
		},
		Market:      token.Market{PriceUSD: f(2.5), MarketCapUSD: f(1e9), Volume24hUSD: f(12345.678), PriceChange24h: f(-1.2)},
		Capture:     capture.Success([]byte("png")),
		Score:       64,
		ScoreSource: score.SourceUpstream,
	}

	out := Format(rep)

	assert.Contains(t, out, "🪙 NFT Collection: Milady (LADY)")
	assert.Contains(t, out, "💰 Price: $2.50")
	assert.Contains(t, out, "🏦 Market Cap: $1,000,000,000.00")
	assert.Contains(t, out, "📊 24h Volume: $12,345.68")
	assert.Contains(t, out, "📈 24h Change: -1.20%")
	assert.Contains(t, out, "📜 In Contracts: 41.13%")
	assert.Contains(t, out, "👥 Holders: 12,345")
	assert.Contains(t, out, "1. Uniswap V3: LADY-WETH pool with… 📜 - 22.50%")
	assert.Contains(t, out, "2. whale.eth - 9.00%")
	assert.Contains(t, out, "(upstream)")
	assert.True(t, strings.HasSuffix(out, "🫧 Bubblemap attached."))
	assert.LessOrEqual(t, len([]rune(out)), CaptionLimit)
}

func TestFormat_Deterministic(t *testing.T) {
	rep := &analyzer.Report{
		Query:    query(t),
		Metadata: token.Metadata{Name: "X", Symbol: "X", Holders: []token.Holder{{Address: "0x1", Percentage: f(1)}}},
		Capture:  capture.Degraded(capture.ReasonBlank, capture.ErrBlank),
	}
	assert.Equal(t, Format(rep), Format(rep))
	assert.Contains(t, Format(rep), "(page rendered blank)")
}
