// Package console renders reports and the startup banner for terminals.
package console

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/bubble-lens/pkg/analyzer"
	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/report"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A855F7")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8891A5")).Width(14)

	cyan   = color.New(color.FgCyan, color.Bold)
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow)
)

// Render writes a terminal view of rep to w.
func Render(w io.Writer, rep *analyzer.Report) error {
	md := rep.Metadata
	kind := "Token"
	if md.IsCollection {
		kind = "NFT Collection"
	}
	title := fmt.Sprintf("%s %s (%s)\n%s · %s", kind, md.Name, md.Symbol, rep.Query.Chain(), rep.Query.Address())
	fmt.Fprintln(w, titleStyle.Render(title))

	kv := [][2]string{
		{"Price", report.Price(rep.Market.PriceUSD)},
		{"Market Cap", report.USD(rep.Market.MarketCapUSD)},
		{"24h Volume", report.USD(rep.Market.Volume24hUSD)},
		{"24h Change", report.Change(rep.Market.PriceChange24h)},
		{"Score", fmt.Sprintf("%.0f/100 (%s)", rep.Score, rep.ScoreSource)},
		{"In Exchanges", report.Percent(md.PercentInExchanges)},
		{"In Contracts", report.Percent(md.PercentInContracts)},
		{"Holders", fmt.Sprintf("%d", md.TotalHolderCount)},
	}
	for _, p := range kv {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(p[0]), p[1]))
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Holder", "Address", "Type", "Share"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, h := range md.Holders {
		typ := "wallet"
		if h.IsContract {
			typ = "contract"
		}
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			report.Truncate(h.DisplayName, 32),
			h.Address,
			typ,
			report.Percent(h.Percentage),
		})
	}
	table.Render()
	fmt.Fprintln(w)

	for _, warn := range md.Warnings {
		yellow.Fprintf(w, "⚠️  %s\n", warn)
	}
	if rep.Capture.OK() {
		green.Fprintf(w, "✅ Bubblemap captured (%d bytes)\n", len(rep.Capture.Image))
	} else {
		yellow.Fprintf(w, "🫧 Bubblemap could not be generated (%s)\n", rep.Capture.Describe())
	}
	fmt.Fprintf(w, "⏱  %s\n", rep.Duration.Round(time.Millisecond))
	return nil
}

// Banner prints the startup summary for the long-running mode.
func Banner(w io.Writer, cfg *config.Config, stats map[string]int64) {
	rule := strings.Repeat("═", 60)
	cyan.Fprintln(w, "\n"+rule)
	cyan.Fprintln(w, "  🫧 BUBBLE LENS - RUNNING")
	cyan.Fprintln(w, rule)

	codes := make([]string, 0)
	for _, c := range config.AllChains() {
		codes = append(codes, string(c))
	}
	fmt.Fprintf(w, "  Chains:    %s (default %s)\n", strings.Join(codes, ", "), cfg.DefaultChain)
	fmt.Fprintf(w, "  Score:     %s\n", cfg.ScorePolicy)
	fmt.Fprintf(w, "  Capture:   %s deadline, %d attempts\n", cfg.CaptureDeadline, cfg.Capture.Attempts)
	fmt.Fprintf(w, "  Dashboard: http://localhost:%d\n", cfg.DashboardPort)
	if stats != nil {
		fmt.Fprintf(w, "  DB: %d analyses, %d tokens\n", stats["analyses"], stats["distinct_tokens"])
	}
	cyan.Fprintln(w, rule+"\n")
}
