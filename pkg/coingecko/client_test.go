package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/token"
)

const testAddr = "0x6982508145454ce325ddbe47a25d4ec3d2311933"

func setup(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(&config.Config{CoinGeckoAPIURL: srv.URL, CoinGeckoAPIKey: "demo", HTTPTimeout: 300 * time.Millisecond}), &calls
}

func query(t *testing.T, chain string) token.Query {
	q, err := token.ParseQuery(testAddr, chain, config.ChainEthereum)
	require.NoError(t, err)
	return q
}

func TestFetch_OK(t *testing.T) {
	c, calls := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/binance-smart-chain/contract/"+testAddr, r.URL.Path)
		assert.Equal(t, "demo", r.Header.Get("x-cg-demo-api-key"))
		fmt.Fprint(w, `{"market_data":{"current_price":{"usd":0.0000032},"market_cap":{"usd":1350000000},"total_volume":{"usd":null},"price_change_percentage_24h":-4.2}}`)
	})

	m := c.Fetch(context.Background(), query(t, "bsc"))
	require.NotNil(t, m.PriceUSD)
	assert.Equal(t, 0.0000032, *m.PriceUSD)
	assert.Equal(t, 1350000000.0, *m.MarketCapUSD)
	assert.Nil(t, m.Volume24hUSD, "fields are independent")
	assert.Equal(t, -4.2, *m.PriceChange24h)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_FailOpen(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"500":  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) },
		"404":  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(404) },
		"junk": func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "not json") },
		"timeout": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := setup(t, h)
			m := c.Fetch(context.Background(), query(t, "eth"))
			assert.True(t, m.IsEmpty())
		})
	}
}
