package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"catalystbot/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu      sync.Mutex
	items   map[string]types.Analysis
	readErr error
	puts    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{items: make(map[string]types.Analysis)}
}

func (f *fakeBackend) GetCachedAnalysis(_ context.Context, fp string) (types.Analysis, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return types.Analysis{}, false, f.readErr
	}
	a, ok := f.items[fp]
	return a, ok, nil
}

func (f *fakeBackend) PutCachedAnalysis(_ context.Context, fp string, a types.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[fp] = a
	f.puts++
	return nil
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	c := New(newFakeBackend(), zerolog.Nop())
	var calls int32
	compute := func(context.Context) (types.Analysis, bool) {
		atomic.AddInt32(&calls, 1)
		return types.Analysis{Ticker: "AAPL", SentimentScore: 0.5, Confidence: 0.8}, true
	}

	first, l1 := c.GetOrCompute(context.Background(), "fp-1", compute)
	assert.False(t, l1.Hit)
	assert.True(t, l1.Stored)

	second, l2 := c.GetOrCompute(context.Background(), "fp-1", compute)
	assert.True(t, l2.Hit)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrCompute_UnkeptResultNotStored(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend, zerolog.Nop())
	var calls int32
	compute := func(context.Context) (types.Analysis, bool) {
		atomic.AddInt32(&calls, 1)
		return types.Analysis{Confidence: 0.1}, false
	}

	_, l := c.GetOrCompute(context.Background(), "fp", compute)
	assert.False(t, l.Stored)
	_, _ = c.GetOrCompute(context.Background(), "fp", compute)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Zero(t, backend.puts)
}

func TestGetOrCompute_ConcurrentCallersShareOneCall(t *testing.T) {
	c := New(newFakeBackend(), zerolog.Nop())
	var calls int32
	compute := func(context.Context) (types.Analysis, bool) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return types.Analysis{Ticker: "TSLA", Confidence: 0.7}, true
	}

	var wg sync.WaitGroup
	results := make([]types.Analysis, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetOrCompute(context.Background(), "same", compute)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "TSLA", r.Ticker)
	}
}

func TestGetOrCompute_ReadErrorIsMiss(t *testing.T) {
	backend := newFakeBackend()
	backend.readErr = errors.New("connection refused")
	c := New(backend, zerolog.Nop())

	a, l := c.GetOrCompute(context.Background(), "fp", func(context.Context) (types.Analysis, bool) {
		return types.Analysis{Ticker: "MSFT"}, true
	})
	assert.False(t, l.Hit)
	assert.Equal(t, "MSFT", a.Ticker)
}

func TestGetOrCompute_ReturnsCopies(t *testing.T) {
	c := New(newFakeBackend(), zerolog.Nop())
	compute := func(context.Context) (types.Analysis, bool) {
		return types.Analysis{Catalysts: []types.Catalyst{{Type: "earnings"}}}, true
	}

	a, _ := c.GetOrCompute(context.Background(), "fp", compute)
	a.Catalysts[0].Type = "mutated"

	b, _ := c.GetOrCompute(context.Background(), "fp", compute)
	require.Len(t, b.Catalysts, 1)
	assert.Equal(t, "earnings", b.Catalysts[0].Type)
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint("Apple Beats Estimates", "Revenue up  12%", "aapl", "command-r")

	assert.Equal(t, base, Fingerprint("  apple beats   estimates", "revenue up 12%", "AAPL ", "command-r"))
	assert.NotEqual(t, base, Fingerprint("Apple Beats Estimates", "Revenue up 12%", "AAPL", "gpt-4o-mini"))
	assert.NotEqual(t, base, Fingerprint("Apple Beats Estimates", "Revenue up 12%", "MSFT", "command-r"))
	assert.NotEqual(t, Fingerprint("ab", "c", "", ""), Fingerprint("a", "bc", "", ""))
	assert.Len(t, base, 64)
}
