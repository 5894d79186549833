// Package bubblemaps fetches holder-distribution data from the bubblemaps
// legacy API. Every failure mode collapses to ErrNotFound; the cause is only
// logged.
package bubblemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/token"
)

var ErrNotFound = errors.New("token not found")

type Client struct {
	baseURL string
	timeout time.Duration
	topN    int
	client  *http.Client
}

func New(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.BubblemapsAPIURL,
		timeout: cfg.HTTPTimeout,
		topN:    cfg.TopHolders,
		client:  &http.Client{},
	}
}

type identifiedSupply struct {
	PercentInCEXs      *float64 `json:"percent_in_cexs"`
	PercentInContracts *float64 `json:"percent_in_contracts"`
}

type metadataResponse struct {
	Status                string           `json:"status"`
	Message               string           `json:"message"`
	DecentralisationScore *float64         `json:"decentralisation_score"`
	IdentifiedSupply      identifiedSupply `json:"identified_supply"`
	DtUpdate              json.RawMessage  `json:"dt_update"`
}

type node struct {
	Address    string   `json:"address"`
	Name       string   `json:"name"`
	IsContract bool     `json:"is_contract"`
	Percentage *float64 `json:"percentage"`
	Amount     float64  `json:"amount"`
}

type dataResponse struct {
	FullName string `json:"full_name"`
	Symbol   string `json:"symbol"`
	IsX721   bool   `json:"is_X721"`
	Nodes    []node `json:"nodes"`
}

// Fetch runs the metadata lookup and, only when it reports status OK, the
// data lookup. Each call gets its own timeout.
func (c *Client) Fetch(ctx context.Context, q token.Query) (token.Metadata, error) {
	var meta metadataResponse
	if err := c.get(ctx, "map-metadata", q, &meta); err != nil {
		log.Debug().Err(err).Str("token", q.String()).Msg("bubblemaps metadata lookup failed")
		return token.Metadata{}, ErrNotFound
	}
	if meta.Status != "OK" {
		log.Debug().Str("token", q.String()).Str("status", meta.Status).Str("message", meta.Message).Msg("bubblemaps metadata not OK")
		return token.Metadata{}, ErrNotFound
	}

	var data dataResponse
	if err := c.get(ctx, "map-data", q, &data); err != nil {
		log.Debug().Err(err).Str("token", q.String()).Msg("bubblemaps data lookup failed")
		return token.Metadata{}, ErrNotFound
	}
	if len(data.Nodes) == 0 {
		return token.Metadata{}, ErrNotFound
	}

	md := buildMetadata(meta, data, c.topN)
	for _, w := range md.Warnings {
		log.Warn().Str("token", q.String()).Msg("⚠️ " + w)
	}
	return md, nil
}

func buildMetadata(meta metadataResponse, data dataResponse, topN int) token.Metadata {
	md := token.Metadata{
		Name:             orDefault(data.FullName, "Unknown"),
		Symbol:           orDefault(data.Symbol, "N/A"),
		IsCollection:     data.IsX721,
		LastUpdated:      parseUpdate(meta.DtUpdate),
		TotalHolderCount: len(data.Nodes),
	}
	md.DecentralizationScore = checkPercent(&md, "decentralisation_score", meta.DecentralisationScore)
	md.PercentInExchanges = checkPercent(&md, "percent_in_cexs", meta.IdentifiedSupply.PercentInCEXs)
	md.PercentInContracts = checkPercent(&md, "percent_in_contracts", meta.IdentifiedSupply.PercentInContracts)

	// provider order is rank order; no re-sort
	nodes := data.Nodes
	if len(nodes) > topN {
		nodes = nodes[:topN]
	}
	md.Holders = make([]token.Holder, 0, len(nodes))
	for i, n := range nodes {
		md.Holders = append(md.Holders, token.Holder{
			Address:     n.Address,
			DisplayName: orDefault(n.Name, n.Address),
			IsContract:  n.IsContract,
			Percentage:  checkPercent(&md, fmt.Sprintf("holder %d percentage", i+1), n.Percentage),
			Amount:      n.Amount,
		})
	}
	return md
}

// checkPercent drops out-of-range values to absent and records why.
func checkPercent(md *token.Metadata, field string, v *float64) *float64 {
	if v == nil {
		return nil
	}
	if !token.ValidPercent(*v) {
		md.Warnings = append(md.Warnings, fmt.Sprintf("%s out of range: %v", field, *v))
		return nil
	}
	return v
}

func (c *Client) get(ctx context.Context, endpoint string, q token.Query, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/%s?token=%s&chain=%s", c.baseURL, endpoint, url.QueryEscape(q.Address()), url.QueryEscape(string(q.Chain())))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: status %d", endpoint, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s decode: %w", endpoint, err)
	}
	return nil
}

// parseUpdate accepts either a date string or unix seconds.
func parseUpdate(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if ts, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
