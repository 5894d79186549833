package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/bubble-lens/pkg/analyzer"
	"github.com/bubble-lens/pkg/artifact"
	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/extractor"
	"github.com/bubble-lens/pkg/report"
	"github.com/bubble-lens/pkg/token"
)

// Responder sends the single reply to one inbound message.
type Responder interface {
	Text(ctx context.Context, text string) error
	Photo(ctx context.Context, path, caption string) error
}

type Analyzer interface {
	Analyze(ctx context.Context, rawAddress, rawChain string) (*analyzer.Report, error)
}

type StatsSource interface {
	GetStats() (map[string]int64, error)
}

const (
	msgNotFound = "🔍 No bubblemap data found for %s on %s. Check the address and chain."
	msgInternal = "⚠️ Something went wrong while analyzing this token. Please try again later."
	msgUnknown  = "🤔 Unknown command /%s. Send /help for usage."
)

// Handler turns chat text into exactly one reply.
type Handler struct {
	cfg      *config.Config
	analyzer Analyzer
	stats    StatsSource
	sem      *semaphore.Weighted
}

// NewHandler wires the reply logic. limit is shared with the other surfaces
// that run analyses; nil gets a private one sized by cfg.MaxConcurrent.
func NewHandler(cfg *config.Config, a Analyzer, stats StatsSource, limit *semaphore.Weighted) *Handler {
	if limit == nil {
		limit = semaphore.NewWeighted(int64(max(cfg.MaxConcurrent, 1)))
	}
	return &Handler{
		cfg:      cfg,
		analyzer: a,
		stats:    stats,
		sem:      limit,
	}
}

func (h *Handler) Handle(ctx context.Context, text string, r Responder) error {
	cmd := extractor.Parse(text)
	switch cmd.Kind {
	case extractor.KindStart:
		return r.Text(ctx, welcomeText())
	case extractor.KindHelp:
		return r.Text(ctx, helpText(h.cfg.DefaultChain))
	case extractor.KindStats:
		return r.Text(ctx, h.statsText())
	case extractor.KindUnknown:
		return r.Text(ctx, fmt.Sprintf(msgUnknown, cmd.Name))
	}
	return h.analyze(ctx, cmd, r)
}

func (h *Handler) analyze(ctx context.Context, cmd extractor.Command, r Responder) error {
	// each analysis may hold a browser; queue rather than fan out
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	rep, err := func() (*analyzer.Report, error) {
		defer h.sem.Release(1)
		return h.analyzer.Analyze(ctx, cmd.Address, cmd.Chain)
	}()

	var verr *token.ValidationError
	switch {
	case errors.As(err, &verr):
		return r.Text(ctx, invalidText(verr))
	case errors.Is(err, analyzer.ErrNotFound):
		chain := cmd.Chain
		if chain == "" {
			chain = string(h.cfg.DefaultChain)
		}
		return r.Text(ctx, fmt.Sprintf(msgNotFound, extractor.Abbrev(strings.ToLower(cmd.Address)), chain))
	case err != nil:
		return r.Text(ctx, msgInternal)
	}

	text := report.Format(rep)
	if !rep.Capture.OK() {
		return r.Text(ctx, text)
	}

	f, err := artifact.Stash(h.cfg.ScreenshotDir, rep.Query.Address(), rep.Capture.Image)
	if err != nil {
		log.Warn().Err(err).Str("token", rep.Query.String()).Msg("stash screenshot failed, replying with text")
		return r.Text(ctx, text)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Str("file", f.Path).Msg("remove screenshot failed")
		}
	}()

	if err := r.Photo(ctx, f.Path, report.Truncate(text, report.CaptionLimit)); err != nil {
		log.Warn().Err(err).Str("token", rep.Query.String()).Msg("photo reply failed, falling back to text")
		return r.Text(ctx, text)
	}
	return nil
}

func (h *Handler) statsText() string {
	if h.stats == nil {
		return "📊 Stats are not available."
	}
	s, err := h.stats.GetStats()
	if err != nil {
		log.Warn().Err(err).Msg("load stats failed")
		return "📊 Stats are not available right now."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Analyses: %d (%d distinct tokens)\n", s["analyses"], s["distinct_tokens"])
	fmt.Fprintf(&b, "✅ With bubblemap: %d\n", s["complete"])
	fmt.Fprintf(&b, "🟡 Without bubblemap: %d\n", s["degraded"])
	fmt.Fprintf(&b, "🔍 Not found: %d\n", s["not_found"])
	fmt.Fprintf(&b, "❌ Invalid input: %d\n", s["invalid"])
	fmt.Fprintf(&b, "⚠️ Failed: %d", s["failed"])
	return b.String()
}

func invalidText(verr *token.ValidationError) string {
	if verr.Field == "chain" {
		return fmt.Sprintf("❌ Unsupported chain %q.\nSupported chains: %s", verr.Value, verr.SupportedList())
	}
	return fmt.Sprintf("❌ That does not look like a token address (%s).\nUsage: <address> [chain]\nSupported chains: %s",
		verr.Error(), verr.SupportedList())
}

func welcomeText() string {
	return "👋 Welcome to Bubble Lens!\n\n" +
		"Send me a token contract address and I will reply with its holder " +
		"distribution, market data, a decentralization score and a bubblemap " +
		"of the top holders.\n\n" +
		"Example: 0x6982508145454ce325ddbe47a25d4ec3d2311933 eth\n\n" +
		"Send /help for the list of chains."
}

func helpText(defaultChain config.Chain) string {
	var b strings.Builder
	b.WriteString("ℹ️ Usage: <address> [chain]\n")
	fmt.Fprintf(&b, "The chain defaults to %s. A bubblemaps.io token link works too.\n\n", defaultChain)
	b.WriteString("Supported chains:\n")
	for _, c := range config.AllChains() {
		info, _ := config.LookupChain(string(c))
		fmt.Fprintf(&b, "• %s (%s)\n", info.Code, info.Name)
	}
	b.WriteString("\n/stats shows how many tokens have been analyzed.")
	return b.String()
}
