package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Chain string

const (
	ChainEthereum  Chain = "eth"
	ChainBSC       Chain = "bsc"
	ChainFantom    Chain = "ftm"
	ChainAvalanche Chain = "avax"
	ChainPolygon   Chain = "poly"
	ChainArbitrum  Chain = "arbi"
	ChainBase      Chain = "base"
)

// ChainInfo describes how a chain code maps onto the providers and what an
// address on it looks like.
type ChainInfo struct {
	Code          Chain
	Name          string
	Platform      string // coingecko asset platform id
	AddressPrefix string
	AddressLength int
}

var chainTable = []ChainInfo{
	{ChainEthereum, "Ethereum", "ethereum", "0x", 42},
	{ChainBSC, "BNB Smart Chain", "binance-smart-chain", "0x", 42},
	{ChainFantom, "Fantom", "fantom", "0x", 42},
	{ChainAvalanche, "Avalanche", "avalanche", "0x", 42},
	{ChainPolygon, "Polygon", "polygon-pos", "0x", 42},
	{ChainArbitrum, "Arbitrum", "arbitrum-one", "0x", 42},
	{ChainBase, "Base", "base", "0x", 42},
}

// AllChains returns the supported chain codes in display order.
func AllChains() []Chain {
	out := make([]Chain, 0, len(chainTable))
	for _, c := range chainTable {
		out = append(out, c.Code)
	}
	return out
}

func LookupChain(code string) (ChainInfo, bool) {
	for _, c := range chainTable {
		if string(c.Code) == code {
			return c, true
		}
	}
	return ChainInfo{}, false
}

type ScorePolicy string

const (
	ScoreUpstream ScorePolicy = "upstream" // provider score wins, local formula as fallback
	ScoreLocal    ScorePolicy = "local"
)

type Capture struct {
	Selectors      []string
	Attempts       int
	Backoff        time.Duration
	SelectorWait   time.Duration
	FallbackWait   time.Duration
	SettleFound    time.Duration
	SettleMissing  time.Duration
	BlankThreshold float64
	ViewportWidth  int
	ViewportHeight int
	ChromeBin      string
	Stealth        bool
}

type Config struct {
	// Telegram (MTProto bot login)
	TelegramAPIID    int
	TelegramAPIHash  string
	TelegramBotToken string
	TelegramSession  string // session file path

	// Providers
	BubblemapsAPIURL string
	BubblemapsAppURL string
	CoinGeckoAPIURL  string
	CoinGeckoAPIKey  string

	DefaultChain  Chain
	TopHolders    int
	ScorePolicy   ScorePolicy
	MaxConcurrent int // analyses running at once; each owns a browser

	// Deadlines
	HTTPTimeout     time.Duration
	CaptureDeadline time.Duration
	Capture         Capture

	// Screenshot artifacts
	ScreenshotDir string
	ArtifactTTL   time.Duration
	ArtifactSweep string // cron spec

	// DB
	DBPath string

	// Dashboard
	DashboardPort int

	LogLevel string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramAPIHash:  os.Getenv("TELEGRAM_API_HASH"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramSession:  envOr("TELEGRAM_SESSION", "tg_session.json"),

		BubblemapsAPIURL: strings.TrimRight(envOr("BUBBLEMAPS_API_URL", "https://api-legacy.bubblemaps.io"), "/"),
		BubblemapsAppURL: strings.TrimRight(envOr("BUBBLEMAPS_APP_URL", "https://app.bubblemaps.io"), "/"),
		CoinGeckoAPIURL:  strings.TrimRight(envOr("COINGECKO_API_URL", "https://api.coingecko.com/api/v3"), "/"),
		CoinGeckoAPIKey:  os.Getenv("COINGECKO_API_KEY"),

		DefaultChain:  Chain(strings.ToLower(envOr("DEFAULT_CHAIN", string(ChainEthereum)))),
		TopHolders:    5,
		ScorePolicy:   ScorePolicy(strings.ToLower(envOr("SCORE_POLICY", string(ScoreUpstream)))),
		MaxConcurrent: envInt("MAX_CONCURRENT", 3),

		HTTPTimeout:     envSeconds("HTTP_TIMEOUT", 15),
		CaptureDeadline: envSeconds("CAPTURE_DEADLINE", 90),
		Capture: Capture{
			Selectors:      splitTrim(envOr("CAPTURE_SELECTORS", "canvas,.bubblemaps-canvas,.graph-container")),
			Attempts:       envInt("CAPTURE_ATTEMPTS", 3),
			Backoff:        envSeconds("CAPTURE_BACKOFF", 3),
			SelectorWait:   envSeconds("CAPTURE_SELECTOR_WAIT", 4),
			FallbackWait:   envSeconds("CAPTURE_FALLBACK_WAIT", 10),
			SettleFound:    envSeconds("CAPTURE_SETTLE_FOUND", 5),
			SettleMissing:  envSeconds("CAPTURE_SETTLE_MISSING", 10),
			BlankThreshold: envFloat("BLANK_THRESHOLD", 0.95),
			ViewportWidth:  envInt("VIEWPORT_WIDTH", 1920),
			ViewportHeight: envInt("VIEWPORT_HEIGHT", 1080),
			ChromeBin:      os.Getenv("CHROME_BIN"),
			Stealth:        envOr("BROWSER_STEALTH", "true") == "true",
		},

		ScreenshotDir: envOr("SCREENSHOT_DIR", "screenshots"),
		ArtifactTTL:   envDuration("ARTIFACT_TTL", 30*time.Minute),
		ArtifactSweep: envOr("ARTIFACT_SWEEP", "@every 10m"),

		DBPath:        envOr("DB_PATH", "bubble_lens.db"),
		DashboardPort: envInt("DASHBOARD_PORT", 8080),
		LogLevel:      envOr("LOG_LEVEL", "info"),
	}

	if v := os.Getenv("TELEGRAM_API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_API_ID: %w", err)
		}
		cfg.TelegramAPIID = id
	}

	if _, ok := LookupChain(string(cfg.DefaultChain)); !ok {
		return nil, fmt.Errorf("DEFAULT_CHAIN %q is not a supported chain", cfg.DefaultChain)
	}
	switch cfg.ScorePolicy {
	case ScoreUpstream, ScoreLocal:
	default:
		return nil, fmt.Errorf("SCORE_POLICY must be %q or %q, got %q", ScoreUpstream, ScoreLocal, cfg.ScorePolicy)
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if len(cfg.Capture.Selectors) == 0 {
		return nil, fmt.Errorf("CAPTURE_SELECTORS is empty")
	}
	return cfg, nil
}

// Validate checks the settings the Telegram bot cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.TelegramAPIID == 0 {
		missing = append(missing, "TELEGRAM_API_ID")
	}
	if c.TelegramAPIHash == "" {
		missing = append(missing, "TELEGRAM_API_HASH")
	}
	if c.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s in environment", strings.Join(missing, ", "))
	}
	return nil
}

// VisualizationURL is the canonical bubblemap page for a token.
func (c *Config) VisualizationURL(chain Chain, address string) string {
	return fmt.Sprintf("%s/%s/token/%s", c.BubblemapsAppURL, chain, address)
}

// helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

// envDuration accepts Go durations ("45m", "2h").
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
