package dashboard

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/bubble-lens/pkg/analyzer"
	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/db"
	"github.com/bubble-lens/pkg/metrics"
	"github.com/bubble-lens/pkg/report"
	"github.com/bubble-lens/pkg/token"
)

type Store interface {
	GetStats() (map[string]int64, error)
	RecentAnalyses(limit int) ([]db.Analysis, error)
	LastForToken(address, chain string) (*db.Analysis, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, rawAddress, rawChain string) (*analyzer.Report, error)
}

type Dashboard struct {
	cfg      *config.Config
	store    Store
	analyzer Analyzer
	metrics  *metrics.Metrics
	limit    *semaphore.Weighted
	app      *fiber.App
}

// New builds the HTTP app. limit caps analyses running at once and is
// normally shared with the bot; nil gets a private one sized by
// cfg.MaxConcurrent.
func New(cfg *config.Config, store Store, a Analyzer, m *metrics.Metrics, limit *semaphore.Weighted) *Dashboard {
	if limit == nil {
		limit = semaphore.NewWeighted(int64(max(cfg.MaxConcurrent, 1)))
	}
	d := &Dashboard{cfg: cfg, store: store, analyzer: a, metrics: m, limit: limit}

	app := fiber.New(fiber.Config{DisableStartupMessage: true, ErrorHandler: errorHandler})
	app.Use(recover.New())
	app.Use(cors)

	app.Get("/api/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/api/stats", d.handleStats)
	app.Get("/api/analyses", d.handleAnalyses)
	app.Get("/api/analyses/:chain/:address", d.handleLast)
	app.Get("/api/analyze", d.handleAnalyze)
	app.Get("/api/chains", d.handleChains)
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}
	app.Get("/", d.serveFrontend)

	d.app = app
	return d
}

func (d *Dashboard) App() *fiber.App { return d.app }

// Run serves until ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", d.cfg.DashboardPort)
	errCh := make(chan error, 1)
	go func() { errCh <- d.app.Listen(addr) }()
	log.Info().Str("addr", addr).Msg("🌐 Dashboard started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return d.app.Shutdown()
	}
}

func cors(c *fiber.Ctx) error {
	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Set("Access-Control-Allow-Headers", "Content-Type")
	if c.Method() == fiber.MethodOptions {
		return c.SendStatus(fiber.StatusOK)
	}
	return c.Next()
}

// errorHandler keeps every error response JSON.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("dashboard request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func (d *Dashboard) handleStats(c *fiber.Ctx) error {
	stats, err := d.store.GetStats()
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (d *Dashboard) handleAnalyses(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := d.store.RecentAnalyses(limit)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []db.Analysis{}
	}
	return c.JSON(rows)
}

func (d *Dashboard) handleLast(c *fiber.Ctx) error {
	a, err := d.store.LastForToken(strings.ToLower(c.Params("address")), strings.ToLower(c.Params("chain")))
	if err != nil {
		return err
	}
	if a == nil {
		return fiber.NewError(fiber.StatusNotFound, "never analyzed")
	}
	return c.JSON(a)
}

type chainView struct {
	Code     config.Chain `json:"code"`
	Name     string       `json:"name"`
	Platform string       `json:"platform"`
}

func (d *Dashboard) handleChains(c *fiber.Ctx) error {
	out := make([]chainView, 0)
	for _, code := range config.AllChains() {
		info, _ := config.LookupChain(string(code))
		out = append(out, chainView{Code: info.Code, Name: info.Name, Platform: info.Platform})
	}
	return c.JSON(out)
}

type analyzeResponse struct {
	Address     string         `json:"address"`
	Chain       config.Chain   `json:"chain"`
	Metadata    token.Metadata `json:"metadata"`
	Market      token.Market   `json:"market"`
	Score       float64        `json:"score"`
	ScoreSource string         `json:"score_source"`
	Capture     string         `json:"capture"` // "ok" or the degradation reason
	Image       string         `json:"image,omitempty"`
	Report      string         `json:"report"`
	DurationMS  int64          `json:"duration_ms"`
}

func (d *Dashboard) handleAnalyze(c *fiber.Ctx) error {
	// each analysis may hold a browser; shed load instead of queueing HTTP clients
	if !d.limit.TryAcquire(1) {
		c.Set(fiber.HeaderRetryAfter, "10")
		return fiber.NewError(fiber.StatusServiceUnavailable, "too many analyses running, retry later")
	}
	defer d.limit.Release(1)
	rep, err := d.analyzer.Analyze(c.UserContext(), c.Query("address"), c.Query("chain"))

	var verr *token.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     verr.Error(),
			"supported": verr.Supported,
		})
	case errors.Is(err, analyzer.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "token not found")
	case err != nil:
		log.Error().Err(err).Msg("dashboard analyze failed")
		return fiber.NewError(fiber.StatusInternalServerError, "analysis failed")
	}

	resp := analyzeResponse{
		Address:     rep.Query.Address(),
		Chain:       rep.Query.Chain(),
		Metadata:    rep.Metadata,
		Market:      rep.Market,
		Score:       rep.Score,
		ScoreSource: string(rep.ScoreSource),
		Capture:     rep.Capture.Status(),
		Report:      report.Format(rep),
		DurationMS:  rep.Duration.Milliseconds(),
	}
	if rep.Capture.OK() {
		resp.Image = base64.StdEncoding.EncodeToString(rep.Capture.Image)
	}
	return c.JSON(resp)
}
