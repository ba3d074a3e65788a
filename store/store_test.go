package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"catalystbot/config"
	"catalystbot/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	article := types.Article{
		ID:        types.GenerateID("https://example.com/a-" + uuid.NewString()),
		URL:       "https://example.com/a-" + uuid.NewString(),
		Title:     "Apple beats",
		Source:    "test",
		Ticker:    "AAPL",
		FetchedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveArticle(ctx, article))
	require.NoError(t, s.SaveArticle(ctx, article), "saving twice is a no-op")

	processed, err := s.IsProcessed(ctx, article.ID)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkProcessed(ctx, article.ID))
	processed, err = s.IsProcessed(ctx, article.ID)
	require.NoError(t, err)
	assert.True(t, processed)

	orphan := "orphan-" + uuid.NewString()
	require.NoError(t, s.MarkProcessed(ctx, orphan))
	processed, err = s.IsProcessed(ctx, orphan)
	require.NoError(t, err)
	assert.True(t, processed)

	analysis := types.Analysis{
		ID:             uuid.NewString(),
		ArticleID:      article.ID,
		ArticleURL:     article.URL,
		Ticker:         "AAPL",
		SentimentScore: 0.8,
		Confidence:     0.9,
		Catalysts: []types.Catalyst{{
			Type: "earnings", Description: "EPS beat", Impact: types.ImpactPositive, Significance: types.SignificanceHigh,
		}},
		Reasoning: "strong quarter",
		Model:     "test-model",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveAnalysis(ctx, analysis))

	fp := "fp-" + uuid.NewString()
	_, ok, err := s.GetCachedAnalysis(ctx, fp)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutCachedAnalysis(ctx, fp, analysis))
	got, ok, err := s.GetCachedAnalysis(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, analysis.Ticker, got.Ticker)
	assert.InDelta(t, analysis.SentimentScore, got.SentimentScore, 1e-9)
	assert.Equal(t, analysis.Catalysts, got.Catalysts)
	assert.True(t, analysis.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, s.SavePosition(ctx, "session-1", types.Position{
		Ticker: "AAPL", Tier: types.TierStrongBuy, Confidence: 0.9, SentimentScore: 0.8,
	}))
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)

	positions := m.Positions("session-1")
	require.Len(t, positions, 1)
	assert.Equal(t, types.TierStrongBuy, positions[0].Tier)
	assert.Len(t, m.Analyses(), 1)
}

func TestMemoryStore_MarkProcessedUpdatesArticle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveArticle(ctx, types.Article{ID: "a1", URL: "https://x.test/1"}))
	require.NoError(t, m.MarkProcessed(ctx, "a1"))

	a, ok := m.Article("a1")
	require.True(t, ok)
	assert.True(t, a.Processed)
}

func TestSQLStore(t *testing.T) {
	s, err := NewSQL(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)

	positions, err := s.PositionsForSession(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Ticker)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	r, err := NewRedis(RedisConfig{Addr: addr, Prefix: "catalyst-test-" + uuid.NewString(), TTL: time.Minute})
	require.NoError(t, err)
	defer r.Close()

	exerciseStore(t, r)
}

func TestOpen(t *testing.T) {
	s, err := Open(config.Settings{Store: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(config.Settings{Store: "cassandra"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
