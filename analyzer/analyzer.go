// Package analyzer turns an article into a validated sentiment and catalyst
// read. Model output is cached by content fingerprint; failures come back as
// a neutral fallback result rather than an error.
package analyzer

import (
	"context"
	"strings"
	"time"

	"catalystbot/cache"
	"catalystbot/config"
	"catalystbot/events"
	"catalystbot/llm"
	"catalystbot/types"

	"github.com/rs/zerolog"
)

// Outcome says how an analysis was produced.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeCached   Outcome = "cached"
	OutcomeFallback Outcome = "fallback"
)

const (
	fallbackPrefix     = "Error in analysis: "
	fallbackConfidence = 0.1
)

// Result is either a usable analysis (ok or cached) or a fallback carrying
// the reason the model output could not be used.
type Result struct {
	Analysis types.Analysis
	Outcome  Outcome
	Reason   string
}

// Fallback reports whether the analysis is the neutral placeholder.
func (r Result) Fallback() bool { return r.Outcome == OutcomeFallback }

// Analyzer runs articles through a model behind the content cache.
type Analyzer struct {
	client         llm.Client
	cache          *cache.Cache
	log            zerolog.Logger
	now            func() time.Time
	maxPromptChars int
}

// New creates an analyzer.
func New(client llm.Client, c *cache.Cache, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		client:         client,
		cache:          c,
		log:            logger.With().Str("component", "analyzer").Logger(),
		now:            time.Now,
		maxPromptChars: config.MaxPromptChars,
	}
}

// Analyze returns the analysis for article. It never fails: cache hits are
// returned without a model call, and unusable model output yields a fallback
// that is not cached.
func (a *Analyzer) Analyze(ctx context.Context, article *types.Article, mode types.AnalysisMode, model string, emit events.Emitter) Result {
	if emit == nil {
		emit = events.Discard
	}
	ticker := strings.ToUpper(strings.TrimSpace(article.Ticker))
	fp := cache.Fingerprint(article.Title, articleText(article, mode), ticker, model)
	details := map[string]any{"article_id": article.ID, "ticker": ticker, "fingerprint": fp[:12]}

	analysis, lookup := a.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (types.Analysis, bool) {
		emit.Emit(types.SeverityInfo, types.CategoryCache, "miss", "No cached analysis for "+label(article), details)
		return a.compute(ctx, article, mode, model, fp)
	})

	analysis.ID = types.GenerateID(fp + "|" + article.ID)
	analysis.ArticleID = article.ID
	analysis.ArticleURL = article.URL
	analysis.Ticker = ticker

	res := Result{Analysis: analysis, Outcome: OutcomeOK}
	switch {
	case lookup.Hit:
		res.Outcome = OutcomeCached
		emit.Emit(types.SeverityInfo, types.CategoryCache, "hit", "Using cached analysis for "+label(article), details)
	case lookup.Shared && (lookup.Stored || lookup.StoreErr != nil):
		emit.Emit(types.SeverityInfo, types.CategoryCache, "shared", "Reused in-flight analysis for "+label(article), details)
	case lookup.Stored:
		emit.Emit(types.SeverityInfo, types.CategoryCache, "store", "Cached analysis for "+label(article), details)
	case lookup.StoreErr != nil:
		emit.Emit(types.SeverityWarning, types.CategoryCache, "store_failed", lookup.StoreErr.Error(), details)
	default:
		// Only fallbacks are computed without being kept.
		res.Outcome = OutcomeFallback
		res.Reason = strings.TrimPrefix(analysis.Reasoning, fallbackPrefix)
	}
	d := map[string]any{
		"article_id": article.ID,
		"ticker":     ticker,
		"sentiment":  analysis.SentimentScore,
		"confidence": analysis.Confidence,
		"catalysts":  len(analysis.Catalysts),
		"outcome":    string(res.Outcome),
	}
	if res.Fallback() {
		d["reason"] = res.Reason
		emit.Emit(types.SeverityWarning, types.CategoryAnalysis, "article_fallback", "Analysis failed for "+label(article)+": "+res.Reason, d)
	} else {
		emit.Emit(types.SeverityInfo, types.CategoryAnalysis, "article_analyzed", "Analyzed "+label(article), d)
	}
	return res
}

func (a *Analyzer) compute(ctx context.Context, article *types.Article, mode types.AnalysisMode, model, fp string) (types.Analysis, bool) {
	prompt := buildPrompt(article, mode, a.maxPromptChars)

	start := a.now()
	raw, err := a.client.Complete(ctx, prompt, model)
	if err != nil {
		a.log.Warn().Err(err).Str("article_id", article.ID).Str("model", model).Msg("model call failed")
		return a.fallback(model, fp, err.Error()), false
	}

	parsed, err := Parse(raw)
	if err != nil {
		a.log.Warn().Err(err).Str("article_id", article.ID).Str("model", model).Msg("unusable model response")
		return a.fallback(model, fp, err.Error()), false
	}
	if parsed.Dropped > 0 {
		a.log.Debug().Int("dropped", parsed.Dropped).Str("article_id", article.ID).Msg("dropped invalid catalysts")
	}

	a.log.Debug().
		Str("article_id", article.ID).
		Float64("sentiment", parsed.SentimentScore).
		Float64("confidence", parsed.Confidence).
		Dur("took", a.now().Sub(start)).
		Msg("article analyzed")

	return types.Analysis{
		SentimentScore: parsed.SentimentScore,
		Confidence:     parsed.Confidence,
		Catalysts:      parsed.Catalysts,
		Reasoning:      parsed.Reasoning,
		Model:          model,
		Fingerprint:    fp,
		CreatedAt:      a.now().UTC(),
	}, true
}

func (a *Analyzer) fallback(model, fp, cause string) types.Analysis {
	return types.Analysis{
		SentimentScore: 0,
		Confidence:     fallbackConfidence,
		Catalysts:      []types.Catalyst{},
		Reasoning:      fallbackPrefix + cause,
		Model:          model,
		Fingerprint:    fp,
		CreatedAt:      a.now().UTC(),
	}
}

func label(article *types.Article) string {
	if article.Ticker != "" {
		return strings.ToUpper(article.Ticker) + " (" + article.Title + ")"
	}
	return article.Title
}
