package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/bubble-lens/pkg/config"
)

// RodLauncher starts a fresh local Chrome per capture. Sessions are never
// pooled.
type RodLauncher struct {
	cfg config.Capture
}

func NewRodLauncher(cfg config.Capture) *RodLauncher {
	return &RodLauncher{cfg: cfg}
}

func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ln := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("window-size", fmt.Sprintf("%d,%d", l.cfg.ViewportWidth, l.cfg.ViewportHeight)).
		Set("disable-blink-features", "AutomationControlled")
	if l.cfg.ChromeBin != "" {
		ln = ln.Bin(l.cfg.ChromeBin)
	}

	u, err := ln.Launch()
	if err != nil {
		// Cleanup blocks until the process exits, which never started
		ln.Kill()
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	s := &rodSession{launcher: ln}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	var page *rod.Page
	if l.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	s.page = page

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             l.cfg.ViewportWidth,
		Height:            l.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		log.Debug().Err(err).Msg("browser: set viewport failed")
	}
	return s, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	once     sync.Once
	closeErr error
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Debug().Err(err).Str("url", url).Msg("browser: wait load failed")
	}
	return nil
}

func (s *rodSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) bool {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := s.page.Context(wctx).Element(selector)
	return err == nil
}

func (s *rodSession) Scroll(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(`() => window.scrollBy(0, window.innerHeight / 2)`)
	return err
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close tears down the browser and the Chrome process. Safe to call more
// than once and after the capture context has expired.
func (s *rodSession) Close() error {
	s.once.Do(func() {
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
	})
	return s.closeErr
}
