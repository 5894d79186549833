package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/token"
)

// Client looks up market data by contract address. It is fail-open: any
// problem yields an empty snapshot, never an error.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

func New(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.CoinGeckoAPIURL,
		apiKey:  cfg.CoinGeckoAPIKey,
		timeout: cfg.HTTPTimeout,
		client:  &http.Client{},
	}
}

type usdValue struct {
	USD *float64 `json:"usd"`
}

type contractResponse struct {
	MarketData struct {
		CurrentPrice             usdValue `json:"current_price"`
		MarketCap                usdValue `json:"market_cap"`
		TotalVolume              usdValue `json:"total_volume"`
		PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

func (c *Client) Fetch(ctx context.Context, q token.Query) token.Market {
	info, ok := config.LookupChain(string(q.Chain()))
	if !ok || info.Platform == "" {
		return token.Market{}
	}

	m, err := c.fetch(ctx, info.Platform, q.Address())
	if err != nil {
		log.Debug().Err(err).Str("token", q.String()).Msg("coingecko lookup failed")
		return token.Market{}
	}
	return m
}

func (c *Client) fetch(ctx context.Context, platform, address string) (token.Market, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/coins/%s/contract/%s", c.baseURL, platform, address)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return token.Market{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return token.Market{}, fmt.Errorf("coingecko http err: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return token.Market{}, fmt.Errorf("coingecko status %d", resp.StatusCode)
	}

	var body contractResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&body); err != nil {
		return token.Market{}, fmt.Errorf("coingecko decode err: %w", err)
	}

	md := body.MarketData
	return token.Market{
		PriceUSD:       md.CurrentPrice.USD,
		MarketCapUSD:   md.MarketCap.USD,
		Volume24hUSD:   md.TotalVolume.USD,
		PriceChange24h: md.PriceChangePercentage24h,
	}, nil
}
