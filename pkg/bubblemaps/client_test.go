package bubblemaps

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

type provider struct {
	metaStatus int
	metaBody   string
	dataStatus int
	dataBody   string
	metaDelay  time.Duration

	metaCalls atomic.Int32
	dataCalls atomic.Int32
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/map-metadata":
		p.metaCalls.Add(1)
		if r.URL.Query().Get("token") != testAddr || r.URL.Query().Get("chain") != "eth" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if p.metaDelay > 0 {
			select {
			case <-time.After(p.metaDelay):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(p.metaStatus)
		fmt.Fprint(w, p.metaBody)
	case "/map-data":
		p.dataCalls.Add(1)
		w.WriteHeader(p.dataStatus)
		fmt.Fprint(w, p.dataBody)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

const okMeta = `{"status":"OK","decentralisation_score":63.5,"identified_supply":{"percent_in_cexs":12.5,"percent_in_contracts":30.25},"dt_update":"2024-03-01 10:00:00"}`

func nodesJSON(n int) string {
	s := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(`{"address":"0x%040d","name":"holder-%d","is_contract":%v,"percentage":%d,"amount":%d}`, i, i, i%2 == 0, 20-i, 1000-i)
	}
	return s + "]"
}

func newClient(t *testing.T, p *provider) (*Client, token.Query) {
	t.Helper()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	c := New(&config.Config{BubblemapsAPIURL: srv.URL, HTTPTimeout: 500 * time.Millisecond, TopHolders: 5})
	q, err := token.ParseQuery(testAddr, "eth", config.ChainEthereum)
	require.NoError(t, err)
	return c, q
}

func TestFetch_OK(t *testing.T) {
	p := &provider{
		metaStatus: 200, metaBody: okMeta,
		dataStatus: 200, dataBody: `{"full_name":"Pepe","symbol":"PEPE","is_X721":false,"nodes":` + nodesJSON(8) + `}`,
	}
	c, q := newClient(t, p)

	md, err := c.Fetch(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, "Pepe", md.Name)
	assert.Equal(t, "PEPE", md.Symbol)
	assert.False(t, md.IsCollection)
	assert.Equal(t, 8, md.TotalHolderCount)
	require.NotNil(t, md.DecentralizationScore)
	assert.Equal(t, 63.5, *md.DecentralizationScore)
	assert.Equal(t, 12.5, *md.PercentInExchanges)
	assert.Equal(t, 30.25, *md.PercentInContracts)
	assert.Equal(t, "2024-03-01 10:00:00", md.LastUpdated)
	assert.Empty(t, md.Warnings)

	require.Len(t, md.Holders, 5)
	for i, h := range md.Holders {
		assert.Equal(t, fmt.Sprintf("holder-%d", i), h.DisplayName, "provider order kept")
		assert.Equal(t, float64(20-i), *h.Percentage)
	}
	assert.True(t, md.Holders[0].IsContract)
	assert.Equal(t, int32(1), p.metaCalls.Load())
	assert.Equal(t, int32(1), p.dataCalls.Load())
}

func TestFetch_NotOKSkipsDataCall(t *testing.T) {
	p := &provider{metaStatus: 200, metaBody: `{"status":"KO","message":"unknown token"}`, dataStatus: 200, dataBody: `{}`}
	c, q := newClient(t, p)

	_, err := c.Fetch(context.Background(), q)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(0), p.dataCalls.Load())
}

func TestFetch_FailuresCollapseToNotFound(t *testing.T) {
	cases := map[string]*provider{
		"metadata 500":  {metaStatus: 500, metaBody: `oops`, dataStatus: 200, dataBody: `{}`},
		"metadata junk": {metaStatus: 200, metaBody: `<html>`, dataStatus: 200, dataBody: `{}`},
		"data 502":      {metaStatus: 200, metaBody: okMeta, dataStatus: 502, dataBody: ``},
		"no holders":    {metaStatus: 200, metaBody: okMeta, dataStatus: 200, dataBody: `{"full_name":"X","nodes":[]}`},
		"timeout":       {metaStatus: 200, metaBody: okMeta, dataStatus: 200, dataBody: `{}`, metaDelay: 2 * time.Second},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			c, q := newClient(t, p)
			_, err := c.Fetch(context.Background(), q)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFetch_OutOfRangePercentagesFlagged(t *testing.T) {
	p := &provider{
		metaStatus: 200,
		metaBody:   `{"status":"OK","identified_supply":{"percent_in_cexs":-3,"percent_in_contracts":140},"dt_update":1709287200}`,
		dataStatus: 200,
		dataBody:   `{"nodes":[{"address":"0xa","name":"","percentage":120,"amount":1},{"address":"0xb","name":"b","percentage":5,"amount":1}]}`,
	}
	c, q := newClient(t, p)

	md, err := c.Fetch(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, "Unknown", md.Name)
	assert.Equal(t, "N/A", md.Symbol)
	assert.Nil(t, md.DecentralizationScore)
	assert.Nil(t, md.PercentInExchanges)
	assert.Nil(t, md.PercentInContracts)
	assert.Nil(t, md.Holders[0].Percentage)
	assert.Equal(t, "0xa", md.Holders[0].DisplayName)
	assert.Equal(t, 5.0, *md.Holders[1].Percentage)
	assert.Len(t, md.Warnings, 3)
	assert.Equal(t, "2024-03-01T10:00:00Z", md.LastUpdated)
}
