package analyzer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"catalystbot/cache"
	"catalystbot/llm"
	"catalystbot/store"
	"catalystbot/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	delay   time.Duration
	calls   int32
	prompts []llm.Prompt
}

func (f *fakeModel) Complete(_ context.Context, p llm.Prompt, _ string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()
	return f.reply, f.err
}

type recorder struct {
	mu      sync.Mutex
	actions []string
}

func (r *recorder) Emit(_ types.Severity, category, action, _ string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, category+"/"+action)
}

func newAnalyzer(model llm.Client) *Analyzer {
	return New(model, cache.New(store.NewMemory(), zerolog.Nop()), zerolog.Nop())
}

func testArticle() *types.Article {
	return &types.Article{
		ID:      "a1",
		Title:   "Acme beats on earnings",
		URL:     "https://example.com/acme",
		Ticker:  "acme",
		Summary: "Acme reported record revenue.",
		Body:    "Full article body about Acme's record quarter.",
	}
}

func TestAnalyze_ClampsOutOfRangeScores(t *testing.T) {
	cases := []struct {
		name           string
		reply          string
		wantSentiment  float64
		wantConfidence float64
	}{
		{"too high", `{"sentiment_score": 3.5, "confidence": 1.7, "catalysts": [], "reasoning": "r"}`, 1, 1},
		{"too low", `{"sentiment_score": -9, "confidence": -0.2, "catalysts": [], "reasoning": "r"}`, -1, 0},
		{"in range", `{"sentiment_score": 0.25, "confidence": 0.6, "catalysts": [], "reasoning": "r"}`, 0.25, 0.6},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := newAnalyzer(&fakeModel{reply: c.reply})
			res := a.Analyze(context.Background(), testArticle(), types.ModeHeadlines, "vader", nil)
			assert.Equal(t, OutcomeOK, res.Outcome)
			assert.Equal(t, c.wantSentiment, res.Analysis.SentimentScore)
			assert.Equal(t, c.wantConfidence, res.Analysis.Confidence)
		})
	}
}

func TestAnalyze_MissingFieldsFallBack(t *testing.T) {
	for _, reply := range []string{
		`{"confidence": 0.9, "catalysts": [], "reasoning": "no score"}`,
		`{"sentiment_score": 0.9, "catalysts": [], "reasoning": "no confidence"}`,
	} {
		a := newAnalyzer(&fakeModel{reply: reply})
		res := a.Analyze(context.Background(), testArticle(), types.ModeHeadlines, "vader", nil)
		assert.True(t, res.Fallback(), reply)
		assert.GreaterOrEqual(t, res.Analysis.Confidence, 0.0)
		assert.LessOrEqual(t, res.Analysis.Confidence, 1.0)
	}
}

func TestAnalyze_IdempotentWithOneModelCall(t *testing.T) {
	model := &fakeModel{reply: `{"sentiment_score": 0.8, "confidence": 0.9, "catalysts": [], "reasoning": "beat"}`}
	a := newAnalyzer(model)
	rec := &recorder{}

	first := a.Analyze(context.Background(), testArticle(), types.ModeFull, "command-r", rec)
	second := a.Analyze(context.Background(), testArticle(), types.ModeFull, "command-r", rec)

	assert.Equal(t, OutcomeOK, first.Outcome)
	assert.Equal(t, OutcomeCached, second.Outcome)
	assert.Equal(t, first.Analysis, second.Analysis)
	assert.Equal(t, int32(1), atomic.LoadInt32(&model.calls))
	assert.Equal(t, []string{
		"cache/miss", "cache/store", "analysis/article_analyzed",
		"cache/hit", "analysis/article_analyzed",
	}, rec.actions)
}

func TestAnalyze_ModelIsPartOfFingerprint(t *testing.T) {
	model := &fakeModel{reply: `{"sentiment_score": 0.5, "confidence": 0.5, "catalysts": [], "reasoning": ""}`}
	a := newAnalyzer(model)

	a.Analyze(context.Background(), testArticle(), types.ModeHeadlines, "gpt-4o", nil)
	res := a.Analyze(context.Background(), testArticle(), types.ModeHeadlines, "command-r", nil)

	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, int32(2), atomic.LoadInt32(&model.calls))
}

func TestAnalyze_MalformedResponseFallback(t *testing.T) {
	model := &fakeModel{reply: "I think the stock will go up!"}
	a := newAnalyzer(model)
	rec := &recorder{}

	res := a.Analyze(context.Background(), testArticle(), types.ModeHeadlines, "vader", rec)

	require.True(t, res.Fallback())
	assert.Equal(t, 0.0, res.Analysis.SentimentScore)
	assert.Equal(t, 0.1, res.Analysis.Confidence)
	assert.Empty(t, res.Analysis.Catalysts)
	assert.True(t, strings.HasPrefix(res.Analysis.Reasoning, "Error in analysis: "))
	assert.NotEmpty(t, res.Reason)
	assert.Contains(t, rec.actions, "analysis/article_fallback")

	// Fallbacks are not cached.
	a.Analyze(context.Background(), testArticle(), types.ModeHeadlines, "vader", nil)
	assert.Equal(t, int32(2), atomic.LoadInt32(&model.calls))
}

func TestAnalyze_ModelErrorFallback(t *testing.T) {
	a := newAnalyzer(&fakeModel{err: errors.New("connection reset")})
	res := a.Analyze(context.Background(), testArticle(), types.ModeHeadlines, "vader", nil)
	require.True(t, res.Fallback())
	assert.Contains(t, res.Analysis.Reasoning, "connection reset")
	assert.Equal(t, "a1", res.Analysis.ArticleID)
	assert.Equal(t, "ACME", res.Analysis.Ticker)
}

func TestAnalyze_ConcurrentCallersShareOneModelCall(t *testing.T) {
	model := &fakeModel{
		reply: `{"sentiment_score": 0.3, "confidence": 0.7, "catalysts": [], "reasoning": "ok"}`,
		delay: 50 * time.Millisecond,
	}
	a := newAnalyzer(model)

	var wg sync.WaitGroup
	results := make([]Result, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Analyze(context.Background(), testArticle(), types.ModeHeadlines, "vader", nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&model.calls))
	for _, r := range results {
		assert.False(t, r.Fallback())
		assert.Equal(t, 0.3, r.Analysis.SentimentScore)
	}
}

func TestAnalyze_PromptByMode(t *testing.T) {
	model := &fakeModel{reply: `{"sentiment_score": 0, "confidence": 0.5, "catalysts": [], "reasoning": ""}`}
	a := newAnalyzer(model)

	a.Analyze(context.Background(), testArticle(), types.ModeHeadlines, "vader", nil)
	a.Analyze(context.Background(), testArticle(), types.ModeFull, "vader", nil)

	require.Len(t, model.prompts, 2)
	assert.Contains(t, model.prompts[0].User, "record revenue")
	assert.NotContains(t, model.prompts[0].User, "Full article body")
	assert.Contains(t, model.prompts[1].User, "Full article body")
	assert.NotNil(t, model.prompts[1].Schema)
}

func TestBuildPrompt_Truncates(t *testing.T) {
	article := testArticle()
	article.Body = strings.Repeat("é", 5000)
	p := buildPrompt(article, types.ModeFull, 101)
	assert.LessOrEqual(t, strings.Count(p.User, "é"), 50)
	assert.Contains(t, p.User, "Title: Acme beats on earnings")
}

func TestParse(t *testing.T) {
	raw := "Here you go:\n```json\n" + `{
		"sentiment_score": 0.6,
		"confidence": 0.8,
		"catalysts": [
			{"type": "Earnings", "description": "EPS beat {big}", "impact": "bullish", "significance": "HIGH"},
			{"type": "rumor", "description": "x", "impact": "sideways", "significance": "high"},
			{"type": "", "description": "y", "impact": "positive", "significance": "low"}
		],
		"reasoning": "Strong quarter"
	}` + "\n```"

	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 0.6, p.SentimentScore)
	assert.Equal(t, 2, p.Dropped)
	require.Len(t, p.Catalysts, 1)
	assert.Equal(t, types.Catalyst{
		Type:         "earnings",
		Description:  "EPS beat {big}",
		Impact:       types.ImpactPositive,
		Significance: types.SignificanceHigh,
	}, p.Catalysts[0])
}

func TestParse_Errors(t *testing.T) {
	for _, raw := range []string{"", "no json here", `{"sentiment_score": 0.5`, `{"sentiment_score": "high", "confidence": 1}`} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}
