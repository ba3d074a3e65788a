package rssfeeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"catalystbot/config"
	"catalystbot/ratelimit"
	"catalystbot/types"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"
)

// Limiter is the slice of ratelimit.Limiter the fetch path needs.
type Limiter interface {
	Acquire(ctx context.Context, domain string) error
	RecordFailure(domain string)
	RecordSuccess(domain string)
}

// fetchGated waits for the domain's budget, fetches, and feeds the outcome
// back into the limiter. Only blocking statuses count as limiter failures.
func fetchGated(ctx context.Context, fetcher Fetcher, limiter Limiter, rawURL string) (*Response, error) {
	domain := ratelimit.ExtractDomain(rawURL)
	if err := limiter.Acquire(ctx, domain); err != nil {
		return nil, err
	}

	resp, err := fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if err := checkStatus(rawURL, resp); err != nil {
		if errors.Is(err, ErrBlocked) {
			limiter.RecordFailure(domain)
		}
		return nil, err
	}
	limiter.RecordSuccess(domain)
	return resp, nil
}

// Extractor pulls readable article bodies out of HTML pages.
type Extractor struct {
	fetcher Fetcher
	limiter Limiter
	workers int
	log     zerolog.Logger
}

// NewExtractor creates an extractor with the default worker count.
func NewExtractor(fetcher Fetcher, limiter Limiter, logger zerolog.Logger) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		limiter: limiter,
		workers: config.ExtractWorkers,
		log:     logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract fetches pageURL and returns its readable content.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (readability.Article, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return readability.Article{}, fmt.Errorf("parse url: %w", err)
	}
	resp, err := fetchGated(ctx, e.fetcher, e.limiter, pageURL)
	if err != nil {
		return readability.Article{}, err
	}
	article, err := readability.FromReader(bytes.NewReader(resp.Body), parsed)
	if err != nil {
		return readability.Article{}, fmt.Errorf("readability extraction failed: %w", err)
	}
	return article, nil
}

// ExtractAll fills in Body for every article using a worker pool. Failures
// are recorded on the article and reported through onErr; the article keeps
// its feed summary.
func (e *Extractor) ExtractAll(ctx context.Context, articles []*types.Article, onErr func(*types.Article, error)) {
	var wg sync.WaitGroup
	articleChan := make(chan *types.Article, len(articles))
	var errMu sync.Mutex

	workers := e.workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go func(workerID int) {
			for article := range articleChan {
				if err := e.extractInto(ctx, article); err != nil {
					article.ExtractionError = err.Error()
					e.log.Debug().Int("worker", workerID).Str("url", article.URL).Err(err).Msg("extraction failed")
					if onErr != nil {
						errMu.Lock()
						onErr(article, err)
						errMu.Unlock()
					}
				}
				wg.Done()
			}
		}(i)
	}

	for _, article := range articles {
		wg.Add(1)
		articleChan <- article
	}

	wg.Wait()
	close(articleChan)
}

func (e *Extractor) extractInto(ctx context.Context, article *types.Article) error {
	if article.URL == "" {
		return fmt.Errorf("article URL is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	extracted, err := e.Extract(ctx, article.URL)
	if err != nil {
		return err
	}

	article.Body = strings.TrimSpace(extracted.TextContent)
	if article.Author == "" {
		article.Author = extracted.Byline
	}
	if article.Summary == "" {
		article.Summary = extracted.Excerpt
	}
	return nil
}
