// Package artifact manages the temporary PNG files handed to the uploader.
// A file lives only until its reply has been sent; the sweeper removes
// anything a crashed request left behind.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const prefix = "bubblemap_"

type File struct {
	Path string
	once sync.Once
}

// Stash writes png into dir under a name derived from address and returns a
// handle whose Close deletes it.
func Stash(dir, address string, png []byte) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	f, err := os.CreateTemp(dir, prefix+sanitize(address)+"_*.png")
	if err != nil {
		return nil, fmt.Errorf("artifact create: %w", err)
	}
	if _, err := f.Write(png); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("artifact write: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("artifact close: %w", err)
	}
	return &File{Path: f.Name()}, nil
}

func (f *File) Close() error {
	var err error
	f.once.Do(func() {
		err = os.Remove(f.Path)
		if os.IsNotExist(err) {
			err = nil
		}
	})
	return err
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, s)
	if len(s) > 48 {
		s = s[:48]
	}
	return s
}

// Sweep removes artifacts in dir older than ttl and returns how many went.
func Sweep(dir string, ttl time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < ttl {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", e.Name()).Msg("artifact sweep: remove failed")
			continue
		}
		removed++
	}
	return removed, nil
}

// Sweeper runs Sweep on a cron schedule.
type Sweeper struct {
	dir     string
	ttl     time.Duration
	cron    *cron.Cron
	onSwept func(n int)
}

func NewSweeper(dir string, ttl time.Duration, spec string, onSwept func(n int)) (*Sweeper, error) {
	s := &Sweeper{dir: dir, ttl: ttl, cron: cron.New(), onSwept: onSwept}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("artifact sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	log.Info().Str("dir", s.dir).Dur("ttl", s.ttl).Msg("🧹 Artifact sweeper started")
	s.run()
	s.cron.Start()
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	n, err := Sweep(s.dir, s.ttl, time.Now())
	if err != nil {
		log.Warn().Err(err).Msg("artifact sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("removed", n).Msg("🧹 Swept stale screenshots")
	}
	if s.onSwept != nil {
		s.onSwept(n)
	}
}
