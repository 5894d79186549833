package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/bubble-lens/pkg/analyzer"
	"github.com/bubble-lens/pkg/artifact"
	"github.com/bubble-lens/pkg/bubblemaps"
	"github.com/bubble-lens/pkg/capture"
	"github.com/bubble-lens/pkg/coingecko"
	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/console"
	"github.com/bubble-lens/pkg/dashboard"
	"github.com/bubble-lens/pkg/db"
	"github.com/bubble-lens/pkg/metrics"
	"github.com/bubble-lens/pkg/telegram"
)

func main() {
	analyze := flag.String("analyze", "", `one-shot analysis: "<address> [chain]"`)
	out := flag.String("out", "", "write the bubblemap PNG here (with -analyze)")
	mode := flag.String("mode", "bot", "bot (telegram + dashboard) or serve (dashboard only)")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	defer store.Close()

	m := metrics.New()
	an := analyzer.New(cfg, analyzer.Options{
		Metadata: bubblemaps.New(cfg),
		Market:   coingecko.New(cfg),
		Capturer: capture.New(cfg, capture.NewRodLauncher(cfg.Capture)),
		Recorder: store,
		Metrics:  m,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *analyze != "" {
		code := runOnce(ctx, an, *analyze, *out)
		cancel()
		store.Close()
		os.Exit(code)
	}

	log.Info().Str("mode", *mode).Msg("🫧 Bubble Lens starting...")

	sweeper, err := artifact.NewSweeper(cfg.ScreenshotDir, cfg.ArtifactTTL, cfg.ArtifactSweep, m.RecordSwept)
	if err != nil {
		log.Fatal().Err(err).Msg("artifact sweeper init failed")
	}
	sweeper.Start()
	defer sweeper.Stop()

	// bot and dashboard share one browser budget
	limit := semaphore.NewWeighted(int64(cfg.MaxConcurrent))

	errCh := make(chan error, 2)
	running := 1
	dash := dashboard.New(cfg, store, an, m, limit)
	go func() { errCh <- dash.Run(ctx) }()

	switch *mode {
	case "bot":
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("telegram settings incomplete")
		}
		bot := telegram.NewBot(cfg, telegram.NewHandler(cfg, an, store, limit))
		go func() { errCh <- bot.Run(ctx) }()
		running++
	case "serve":
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}

	stats, err := store.GetStats()
	if err != nil {
		log.Debug().Err(err).Msg("load stats for banner failed")
	}
	console.Banner(os.Stdout, cfg, stats)

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		running--
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("service stopped")
		}
		cancel()
	}
	// bot waits for in-flight replies
	for ; running > 0; running-- {
		<-errCh
	}
	log.Info().Msg("goodbye 👋")
}

func runOnce(ctx context.Context, an *analyzer.Analyzer, input, outPath string) int {
	fields := strings.Fields(input)
	var address, chain string
	if len(fields) > 0 {
		address = fields[0]
	}
	if len(fields) > 1 {
		chain = fields[1]
	}

	rep, err := an.Analyze(ctx, address, chain)
	if err != nil {
		log.Error().Err(err).Msg("analysis failed")
		return 1
	}
	if err := console.Render(os.Stdout, rep); err != nil {
		log.Error().Err(err).Msg("render failed")
		return 1
	}
	if outPath != "" && rep.Capture.OK() {
		if err := os.WriteFile(outPath, rep.Capture.Image, 0o644); err != nil {
			log.Error().Err(err).Str("path", outPath).Msg("write bubblemap failed")
			return 1
		}
		log.Info().Str("path", outPath).Msg("💾 Bubblemap saved")
	}
	return 0
}
