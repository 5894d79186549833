// Package analyzer coordinates one token analysis: metadata and market data
// are fetched concurrently, the bubblemap is captured under its own deadline,
// and the pieces are merged into a Report. Only invalid input and an unknown
// token prevent a report; every other failure degrades it.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bubble-lens/pkg/bubblemaps"
	"github.com/bubble-lens/pkg/capture"
	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/db"
	"github.com/bubble-lens/pkg/metrics"
	"github.com/bubble-lens/pkg/score"
	"github.com/bubble-lens/pkg/token"
)

var (
	ErrNotFound = bubblemaps.ErrNotFound
	ErrInternal = errors.New("internal error")
)

type MetadataFetcher interface {
	Fetch(ctx context.Context, q token.Query) (token.Metadata, error)
}

// MarketFetcher never fails; missing data comes back as absent fields.
type MarketFetcher interface {
	Fetch(ctx context.Context, q token.Query) token.Market
}

type Capturer interface {
	Capture(ctx context.Context, q token.Query) capture.Result
}

type Recorder interface {
	RecordAnalysis(a db.Analysis) (int64, error)
}

type Options struct {
	Metadata MetadataFetcher
	Market   MarketFetcher
	Capturer Capturer
	Recorder Recorder         // optional
	Metrics  *metrics.Metrics // optional
}

type Report struct {
	Query       token.Query
	Metadata    token.Metadata
	Market      token.Market
	Capture     capture.Result
	Score       float64
	ScoreSource score.Source
	Duration    time.Duration
}

type Analyzer struct {
	cfg  *config.Config
	opts Options
}

func New(cfg *config.Config, opts Options) *Analyzer {
	return &Analyzer{cfg: cfg, opts: opts}
}

// Analyze runs the full pipeline for a raw address and optional chain code.
// Errors are *token.ValidationError, ErrNotFound, a context error, or
// ErrInternal.
func (a *Analyzer) Analyze(ctx context.Context, rawAddress, rawChain string) (rep *Report, err error) {
	start := time.Now()
	defer a.opts.Metrics.Begin()()

	var q token.Query
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("💥 analysis panicked")
			rep, err = nil, ErrInternal
		}
		a.record(q, rawAddress, rawChain, rep, err, time.Since(start))
	}()

	q, err = token.ParseQuery(rawAddress, rawChain, a.cfg.DefaultChain)
	if err != nil {
		return nil, err
	}
	log.Info().Str("token", q.String()).Msg("🔍 Analyzing token")

	md, market, err := a.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	sc, src := score.Resolve(a.cfg.ScorePolicy, md)
	res := a.capture(ctx, q)

	return &Report{
		Query:       q,
		Metadata:    md,
		Market:      market,
		Capture:     res,
		Score:       sc,
		ScoreSource: src,
		Duration:    time.Since(start),
	}, nil
}

// fetch runs the two provider lookups concurrently. A missing token cancels
// the market lookup.
func (a *Analyzer) fetch(ctx context.Context, q token.Query) (token.Metadata, token.Market, error) {
	var (
		md     token.Metadata
		market token.Market
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard("metadata", func() error {
		t := time.Now()
		var err error
		md, err = a.opts.Metadata.Fetch(gctx, q)
		a.opts.Metrics.RecordProvider("bubblemaps", time.Since(t).Seconds(), err)
		return err
	}))
	g.Go(guard("market", func() error {
		t := time.Now()
		market = a.opts.Market.Fetch(gctx, q)
		var err error
		if market.IsEmpty() {
			err = errors.New("no market data")
		}
		a.opts.Metrics.RecordProvider("coingecko", time.Since(t).Seconds(), err)
		return nil
	}))

	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrInternal) {
			return md, market, ErrInternal
		}
		if ctx.Err() != nil {
			return md, market, ctx.Err()
		}
		if errors.Is(err, ErrNotFound) {
			log.Info().Str("token", q.String()).Msg("🤷 Token not found")
			return md, market, ErrNotFound
		}
		return md, market, fmt.Errorf("metadata: %w", err)
	}
	return md, market, nil
}

// guard turns a panic in a fetch goroutine into ErrInternal.
func guard(stage string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("stage", stage).Str("stack", string(debug.Stack())).Msg("💥 fetch panicked")
				err = ErrInternal
			}
		}()
		return fn()
	}
}

// capture runs the browser pass in its own goroutine. On deadline the report
// goes out without an image; the goroutine still owns its session and closes
// it as it unwinds.
func (a *Analyzer) capture(ctx context.Context, q token.Query) capture.Result {
	cctx, cancel := context.WithTimeout(ctx, a.cfg.CaptureDeadline)
	defer cancel()

	start := time.Now()
	done := make(chan capture.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("token", q.String()).Msg("💥 capture panicked")
				done <- capture.Degraded(capture.ReasonCaptureError, fmt.Errorf("capture panic: %v", r))
			}
		}()
		done <- a.opts.Capturer.Capture(cctx, q)
	}()

	var res capture.Result
	select {
	case res = <-done:
	case <-cctx.Done():
		select {
		case res = <-done:
		default:
			res = capture.Degraded(capture.ReasonTimeout, fmt.Errorf("capture deadline %s: %w", a.cfg.CaptureDeadline, cctx.Err()))
		}
	}

	a.opts.Metrics.RecordCapture(res.Status(), time.Since(start).Seconds())
	if !res.OK() {
		log.Warn().Str("token", q.String()).Str("reason", res.Status()).AnErr("cause", res.Err).Msg("📸 Bubblemap unavailable, sending report without it")
	}
	return res
}

// Outcome classifies a finished Analyze call.
func Outcome(rep *Report, err error) db.Outcome {
	var verr *token.ValidationError
	switch {
	case err == nil && rep != nil && rep.Capture.OK():
		return db.OutcomeComplete
	case err == nil && rep != nil:
		return db.OutcomeDegraded
	case errors.As(err, &verr):
		return db.OutcomeInvalid
	case errors.Is(err, ErrNotFound):
		return db.OutcomeNotFound
	default:
		return db.OutcomeFailed
	}
}

func (a *Analyzer) record(q token.Query, rawAddress, rawChain string, rep *Report, err error, took time.Duration) {
	outcome := Outcome(rep, err)
	a.opts.Metrics.RecordAnalysis(string(outcome), took.Seconds())

	row := db.Analysis{
		Address:    q.Address(),
		Chain:      q.Chain(),
		Outcome:    outcome,
		DurationMS: took.Milliseconds(),
	}
	if q.IsZero() {
		row.Address = strings.ToLower(strings.TrimSpace(rawAddress))
		row.Chain = config.Chain(strings.ToLower(strings.TrimSpace(rawChain)))
	}
	if rep != nil {
		sc := rep.Score
		row.Name = rep.Metadata.Name
		row.Symbol = rep.Metadata.Symbol
		row.Capture = rep.Capture.Status()
		row.Score = &sc
		row.ScoreSource = string(rep.ScoreSource)
	}

	ev := log.Info()
	if outcome == db.OutcomeFailed {
		ev = log.Error().Err(err)
	}
	ev.Str("address", row.Address).Str("chain", string(row.Chain)).Str("outcome", string(outcome)).
		Dur("took", took).Msg("📊 Analysis finished")

	if a.opts.Recorder == nil {
		return
	}
	if _, err := a.opts.Recorder.RecordAnalysis(row); err != nil {
		log.Warn().Err(err).Msg("record analysis failed")
	}
}
