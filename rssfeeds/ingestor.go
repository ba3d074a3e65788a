package rssfeeds

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"catalystbot/config"
	"catalystbot/events"
	"catalystbot/types"

	"github.com/rs/zerolog"
)

// ProcessedChecker reports whether an article was analysed in an earlier run.
type ProcessedChecker interface {
	IsProcessed(ctx context.Context, articleID string) (bool, error)
}

// IngestOptions tune one ingestion pass.
type IngestOptions struct {
	Mode  types.AnalysisMode
	Force bool
	Emit  events.Emitter
}

// SourceFailure records why a source produced nothing.
type SourceFailure struct {
	Source  string `json:"source"`
	URL     string `json:"url"`
	Error   string `json:"error"`
	Blocked bool   `json:"blocked"`
}

// IngestResult is the outcome of one pass. Failures are data, not errors.
type IngestResult struct {
	Articles         []*types.Article
	Failures         []SourceFailure
	Duplicates       int
	SkippedProcessed int
}

// Ingestor pulls articles from sources through the rate limiter.
type Ingestor struct {
	fetcher     Fetcher
	limiter     Limiter
	extractor   *Extractor
	processed   ProcessedChecker
	concurrency int
	log         zerolog.Logger
}

// NewIngestor wires an ingestor. processed may be nil to disable the
// already-analysed filter.
func NewIngestor(fetcher Fetcher, limiter Limiter, processed ProcessedChecker, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		fetcher:     fetcher,
		limiter:     limiter,
		extractor:   NewExtractor(fetcher, limiter, logger),
		processed:   processed,
		concurrency: config.IngestWorkers,
		log:         logger.With().Str("component", "ingestor").Logger(),
	}
}

type sourceOutcome struct {
	articles []*types.Article
	err      error
}

// Ingest fetches every source, tolerating individual failures. Output order
// is source order then feed order, deduplicated by canonical URL with the
// first occurrence kept.
func (in *Ingestor) Ingest(ctx context.Context, sources []Source, opts IngestOptions) IngestResult {
	emit := opts.Emit
	if emit == nil {
		emit = events.Discard
	}

	outcomes := make([]sourceOutcome, len(sources))
	sem := make(chan struct{}, max(in.concurrency, 1))
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes[i] = sourceOutcome{err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			start := time.Now()
			articles, err := in.fetchSource(ctx, src)
			outcomes[i] = sourceOutcome{articles: articles, err: err}
			in.log.Debug().Str("source", src.Name).Int("articles", len(articles)).
				Dur("took", time.Since(start)).Err(err).Msg("source fetched")
		}(i, src)
	}
	wg.Wait()

	var result IngestResult
	seen := make(map[string]struct{})

	for i, src := range sources {
		out := outcomes[i]
		if out.err != nil {
			failure := SourceFailure{
				Source:  src.Name,
				URL:     src.URL,
				Error:   out.err.Error(),
				Blocked: errors.Is(out.err, ErrBlocked),
			}
			result.Failures = append(result.Failures, failure)

			severity := types.SeverityWarning
			if failure.Blocked {
				severity = types.SeverityError
			}
			emit.Emit(severity, types.CategoryScraping, "source_failed",
				"Failed to fetch "+src.Name+": "+failure.Error,
				map[string]any{"source": src.Name, "url": src.URL, "blocked": failure.Blocked})
			in.log.Warn().Str("source", src.Name).Err(out.err).Msg("source failed")
			continue
		}

		emit.Emit(types.SeverityInfo, types.CategoryScraping, "source_fetched",
			"Fetched "+src.Name,
			map[string]any{"source": src.Name, "articles": len(out.articles)})

		for _, a := range out.articles {
			key := CanonicalURL(a.URL)
			if _, dup := seen[key]; dup {
				result.Duplicates++
				continue
			}
			seen[key] = struct{}{}

			if !opts.Force && in.processed != nil {
				done, err := in.processed.IsProcessed(ctx, a.ID)
				if err != nil {
					in.log.Warn().Err(err).Str("article", a.ID).Msg("processed lookup failed, keeping article")
				} else if done {
					result.SkippedProcessed++
					continue
				}
			}
			result.Articles = append(result.Articles, a)
		}
	}

	if opts.Mode == types.ModeFull {
		in.extractBodies(ctx, result.Articles, emit)
	}

	for _, a := range result.Articles {
		emit.Emit(types.SeverityInfo, types.CategoryScraping, "article_fetched",
			truncate(a.Title, 120),
			map[string]any{"article_id": a.ID, "url": a.URL, "ticker": a.Ticker, "source": a.Source})
	}

	return result
}

// extractBodies fetches full text for feed articles that do not have it yet.
func (in *Ingestor) extractBodies(ctx context.Context, articles []*types.Article, emit events.Emitter) {
	var pending []*types.Article
	for _, a := range articles {
		if a.Body == "" {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		return
	}
	in.extractor.ExtractAll(ctx, pending, func(a *types.Article, err error) {
		emit.Emit(types.SeverityWarning, types.CategoryScraping, "body_failed",
			"Using summary only for "+truncate(a.Title, 80),
			map[string]any{"article_id": a.ID, "url": a.URL, "error": err.Error()})
	})
}

func (in *Ingestor) fetchSource(ctx context.Context, src Source) ([]*types.Article, error) {
	if src.Kind == KindPage {
		return in.fetchPage(ctx, src)
	}
	resp, err := fetchGated(ctx, in.fetcher, in.limiter, src.URL)
	if err != nil {
		return nil, err
	}
	return ParseFeed(resp.Body, src, src.MaxItems)
}

func (in *Ingestor) fetchPage(ctx context.Context, src Source) ([]*types.Article, error) {
	page, err := in.extractor.Extract(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(page.TextContent)
	ticker := src.Ticker
	if ticker == "" {
		ticker = DetectTicker(page.Title, body, nil)
	}
	a := &types.Article{
		ID:        types.GenerateID(CanonicalURL(src.URL)),
		Title:     page.Title,
		URL:       src.URL,
		Source:    src.Name,
		Ticker:    ticker,
		FetchedAt: time.Now().UTC(),
		Summary:   page.Excerpt,
		Body:      body,
		Author:    page.Byline,
	}
	return []*types.Article{a}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
