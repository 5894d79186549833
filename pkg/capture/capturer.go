// Package capture renders a token's bubblemap page in a headless browser and
// returns a validated screenshot. The page gives no render-complete signal, so
// readiness is guessed from the presence of one of several selectors.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/token"
)

// Session is one browser instance driving one page.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor reports whether selector appeared within timeout.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) bool
	Scroll(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

type Capturer struct {
	cfg      *config.Config
	opts     config.Capture
	retry    RetryPolicy
	launcher Launcher
	clock    Clock
}

func New(cfg *config.Config, launcher Launcher) *Capturer {
	return &Capturer{
		cfg:      cfg,
		opts:     cfg.Capture,
		retry:    RetryPolicy{Attempts: cfg.Capture.Attempts, Backoff: cfg.Capture.Backoff},
		launcher: launcher,
		clock:    realClock{},
	}
}

func (c *Capturer) SetClock(clock Clock) { c.clock = clock }

// Capture runs the whole browser pass under ctx's deadline. It always returns
// a Result and always closes the session it opened.
func (c *Capturer) Capture(ctx context.Context, q token.Query) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Degraded(ReasonCaptureError, fmt.Errorf("capture panic: %v", r))
		}
		ev := log.Debug()
		if !res.OK() {
			ev = log.Warn().AnErr("cause", res.Err)
		}
		ev.Str("token", q.String()).Str("status", res.Status()).Dur("took", time.Since(start)).Msg("📸 capture finished")
	}()

	sess, err := c.launcher.Launch(ctx)
	if err != nil {
		return c.failed(ctx, "launch", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn().Err(err).Str("token", q.String()).Msg("browser close failed")
		}
	}()

	url := c.cfg.VisualizationURL(q.Chain(), q.Address())
	if err := sess.Navigate(ctx, url); err != nil {
		return c.failed(ctx, "navigate", err)
	}

	selector, err := c.waitForRender(ctx, sess)
	if err != nil {
		return c.failed(ctx, "wait", err)
	}

	settle := c.opts.SettleFound
	if selector == "" {
		settle = c.opts.SettleMissing
	}
	if err := c.clock.Sleep(ctx, settle); err != nil {
		return c.failed(ctx, "settle", err)
	}

	img, err := sess.Screenshot(ctx)
	if err != nil {
		return c.failed(ctx, "screenshot", err)
	}
	return Classify(img, c.opts.BlankThreshold)
}

// waitForRender returns the selector that matched, or "" once the fallback
// (scroll and a longer wait) has been applied. Errors are context errors.
func (c *Capturer) waitForRender(ctx context.Context, sess Session) (string, error) {
	var matched string
	ok, err := c.retry.Do(ctx, c.clock, func(attempt int) bool {
		for _, sel := range c.opts.Selectors {
			if sess.WaitFor(ctx, sel, c.opts.SelectorWait) {
				matched = sel
				return true
			}
			if ctx.Err() != nil {
				return false
			}
		}
		log.Debug().Int("attempt", attempt).Msg("no render indicator yet")
		return false
	})
	if err != nil {
		return "", err
	}
	if ok {
		return matched, nil
	}

	// widgets that lazy-render only the visible region need a nudge
	if err := sess.Scroll(ctx); err != nil {
		log.Debug().Err(err).Msg("fallback scroll failed")
	}
	if err := c.clock.Sleep(ctx, c.opts.FallbackWait); err != nil {
		return "", err
	}
	return "", nil
}

func (c *Capturer) failed(ctx context.Context, stage string, err error) Result {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return Degraded(ReasonTimeout, fmt.Errorf("%s: %w", stage, err))
	}
	return Degraded(ReasonCaptureError, fmt.Errorf("%s: %w", stage, err))
}
