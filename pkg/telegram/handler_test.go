package telegram

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/bubble-lens/pkg/analyzer"
	"github.com/bubble-lens/pkg/capture"
	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/token"
)

const addr = "0x6982508145454ce325ddbe47a25d4ec3d2311933"

type sent struct {
	kind    string
	text    string
	path    string
	existed bool
}

type fakeResponder struct {
	mu       sync.Mutex
	replies  []sent
	photoErr error
}

func (r *fakeResponder) Text(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, sent{kind: "text", text: text})
	return nil
}

func (r *fakeResponder) Photo(ctx context.Context, path, caption string) error {
	_, statErr := os.Stat(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.photoErr != nil {
		return r.photoErr
	}
	r.replies = append(r.replies, sent{kind: "photo", text: caption, path: path, existed: statErr == nil})
	return nil
}

func (r *fakeResponder) only(t *testing.T) sent {
	t.Helper()
	require.Len(t, r.replies, 1, "exactly one reply per message")
	return r.replies[0]
}

type fakeAnalyzer struct {
	rep   *analyzer.Report
	err   error
	calls int
	args  [2]string
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, rawAddress, rawChain string) (*analyzer.Report, error) {
	a.calls++
	a.args = [2]string{rawAddress, rawChain}
	return a.rep, a.err
}

type fakeStats map[string]int64

func (s fakeStats) GetStats() (map[string]int64, error) { return s, nil }

func newHandler(t *testing.T, a Analyzer) *Handler {
	cfg := &config.Config{DefaultChain: config.ChainEthereum, MaxConcurrent: 2, ScreenshotDir: t.TempDir()}
	return NewHandler(cfg, a, fakeStats{"analyses": 7, "complete": 4, "distinct_tokens": 3}, nil)
}

func sampleReport(t *testing.T, res capture.Result) *analyzer.Report {
	q, err := token.ParseQuery(addr, "eth", config.ChainEthereum)
	require.NoError(t, err)
	return &analyzer.Report{
		Query:    q,
		Metadata: token.Metadata{Name: "Pepe", Symbol: "PEPE", Holders: []token.Holder{{Address: "0x1"}}},
		Capture:  res,
	}
}

func TestHandle_Commands(t *testing.T) {
	cases := map[string]string{
		"/start":        "Welcome",
		"/help":         "Supported chains",
		"/help@LensBot": "arbi (Arbitrum)",
		"/stats":        "Analyses: 7 (3 distinct tokens)",
		"/frobnicate":   "Unknown command /frobnicate",
	}
	for in, want := range cases {
		a := &fakeAnalyzer{}
		r := &fakeResponder{}
		require.NoError(t, newHandler(t, a).Handle(context.Background(), in, r))
		assert.Contains(t, r.only(t).text, want, in)
		assert.Zero(t, a.calls, in)
	}
}

func TestHandle_PhotoReply(t *testing.T) {
	a := &fakeAnalyzer{rep: sampleReport(t, capture.Success([]byte("png-bytes")))}
	r := &fakeResponder{}

	require.NoError(t, newHandler(t, a).Handle(context.Background(), addr+" ETH", r))

	got := r.only(t)
	assert.Equal(t, "photo", got.kind)
	assert.True(t, got.existed, "file present while uploading")
	assert.NoFileExists(t, got.path, "artifact removed after reply")
	assert.Contains(t, got.text, "Bubblemap attached")
	assert.Equal(t, [2]string{addr, "eth"}, a.args)
}

func TestHandle_PhotoFailureFallsBackToText(t *testing.T) {
	a := &fakeAnalyzer{rep: sampleReport(t, capture.Success([]byte("png")))}
	r := &fakeResponder{photoErr: errors.New("FLOOD_WAIT")}

	require.NoError(t, newHandler(t, a).Handle(context.Background(), addr, r))
	assert.Equal(t, "text", r.only(t).kind)
}

func TestHandle_DegradedIsText(t *testing.T) {
	a := &fakeAnalyzer{rep: sampleReport(t, capture.Degraded(capture.ReasonTimeout, nil))}
	r := &fakeResponder{}

	require.NoError(t, newHandler(t, a).Handle(context.Background(), addr, r))
	got := r.only(t)
	assert.Equal(t, "text", got.kind)
	assert.True(t, strings.HasSuffix(got.text, "could not be generated (timed out)."))
}

func TestHandle_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"not found", analyzer.ErrNotFound, "No bubblemap data found for 0x6982...1933 on eth"},
		{"bad chain", &token.ValidationError{Field: "chain", Value: "doge", Supported: config.AllChains()}, "Supported chains: eth, bsc, ftm, avax, poly, arbi, base"},
		{"bad address", &token.ValidationError{Field: "address", Value: "0x1", Supported: config.AllChains()}, "Usage: <address> [chain]"},
		{"internal", errors.New("sqlite: disk I/O error"), "Something went wrong"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeResponder{}
			require.NoError(t, newHandler(t, &fakeAnalyzer{err: tc.err}).Handle(context.Background(), addr, r))
			got := r.only(t)
			assert.Contains(t, got.text, tc.want)
			assert.NotContains(t, got.text, "sqlite", "internal errors stay internal")
		})
	}
}

func TestHandle_BubblemapLink(t *testing.T) {
	a := &fakeAnalyzer{err: analyzer.ErrNotFound}
	r := &fakeResponder{}

	link := "https://app.bubblemaps.io/bsc/token/" + addr
	require.NoError(t, newHandler(t, a).Handle(context.Background(), link, r))
	assert.Equal(t, [2]string{addr, "bsc"}, a.args)
	assert.Contains(t, r.only(t).text, "on bsc")
}

func TestHandle_WaitsForSharedSlot(t *testing.T) {
	limit := semaphore.NewWeighted(1)
	require.True(t, limit.TryAcquire(1), "slot held by the dashboard")

	a := &fakeAnalyzer{rep: sampleReport(t, capture.Degraded(capture.ReasonTimeout, context.DeadlineExceeded))}
	cfg := &config.Config{DefaultChain: config.ChainEthereum, MaxConcurrent: 1, ScreenshotDir: t.TempDir()}
	h := NewHandler(cfg, a, nil, limit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Handle(ctx, addr, &fakeResponder{}), context.Canceled)
	assert.Zero(t, a.calls)

	limit.Release(1)
	r := &fakeResponder{}
	require.NoError(t, h.Handle(context.Background(), addr, r))
	assert.Equal(t, 1, a.calls)
	assert.True(t, limit.TryAcquire(1), "slot released after the analysis")
}

func TestHandle_PanicReleasesSlot(t *testing.T) {
	limit := semaphore.NewWeighted(1)
	cfg := &config.Config{DefaultChain: config.ChainEthereum, MaxConcurrent: 1, ScreenshotDir: t.TempDir()}
	h := NewHandler(cfg, panicAnalyzer{}, nil, limit)

	assert.Panics(t, func() { _ = h.Handle(context.Background(), addr, &fakeResponder{}) })
	assert.True(t, limit.TryAcquire(1))
}

type panicAnalyzer struct{}

func (panicAnalyzer) Analyze(context.Context, string, string) (*analyzer.Report, error) {
	panic("boom")
}
