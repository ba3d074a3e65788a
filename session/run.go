package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalystbot/aggregator"
	"catalystbot/analyzer"
	"catalystbot/config"
	"catalystbot/rssfeeds"
	"catalystbot/types"
)

// execute runs a started session to a terminal state. ctx is cancelled by
// CancelSession; work that already began is finished on a detached context.
func (c *Coordinator) execute(ctx context.Context, r *run, sources []rssfeeds.Source) {
	snap := r.snapshot()
	cfg := snap.Config
	persist := context.WithoutCancel(ctx)

	ingest := c.ingestor.Ingest(ctx, sources, rssfeeds.IngestOptions{
		Mode:  cfg.Mode,
		Force: cfg.Force,
		Emit:  r.stream,
	})
	r.update(func(s *types.AnalysisSession) {
		s.Counts.ArticlesSeen = len(ingest.Articles)
		s.Counts.SourceFailures = len(ingest.Failures)
	})
	r.stream.Emit(types.SeverityInfo, types.CategoryScraping, "ingest_complete",
		fmt.Sprintf("Collected %d articles from %d sources", len(ingest.Articles), len(sources)-len(ingest.Failures)),
		map[string]any{
			"articles":          len(ingest.Articles),
			"source_failures":   len(ingest.Failures),
			"duplicates":        ingest.Duplicates,
			"skipped_processed": ingest.SkippedProcessed,
		})

	for _, a := range ingest.Articles {
		if err := c.store.SaveArticle(persist, *a); err != nil {
			c.log.Warn().Err(err).Str("article_id", a.ID).Msg("save article failed")
		}
	}

	if ctx.Err() != nil {
		c.finish(r, types.StatusFailed, nil, CancelledReason)
		return
	}

	analyses := c.analyzeAll(ctx, r, cfg, ingest.Articles)
	if ctx.Err() != nil {
		c.finish(r, types.StatusFailed, nil, CancelledReason)
		return
	}

	positions := aggregator.Aggregate(analyses, aggregator.Config{
		MinConfidence: cfg.MinConfidence,
		MaxPositions:  cfg.MaxPositions,
		Thresholds:    c.opts.Thresholds,
	})
	for _, p := range positions {
		if err := c.store.SavePosition(persist, snap.ID, p); err != nil {
			r.stream.Emit(types.SeverityWarning, types.CategorySystem, "save_failed",
				"Could not save position for "+p.Ticker+": "+err.Error(), map[string]any{"ticker": p.Ticker})
		}
	}

	if len(analyses) == 0 {
		r.stream.Emit(types.SeverityInfo, types.CategoryAnalysis, "summary", zeroArticleSummary(ingest), map[string]any{
			"articles":          len(ingest.Articles),
			"source_failures":   len(ingest.Failures),
			"skipped_processed": ingest.SkippedProcessed,
		})
	}

	c.finish(r, types.StatusCompleted, positions, "")
}

// analyzeAll feeds articles to a bounded worker pool and returns successful
// analyses in article order. Once ctx is cancelled no new article is handed
// out, but analyses already started run to completion.
func (c *Coordinator) analyzeAll(ctx context.Context, r *run, cfg types.SessionConfig, articles []*types.Article) []types.Analysis {
	total := len(articles)
	if total == 0 {
		return nil
	}

	work := context.WithoutCancel(ctx)
	results := make([]*types.Analysis, total)
	jobs := make(chan int)
	done := 0

	var wg sync.WaitGroup
	for w := 0; w < max(cfg.Concurrency, 1); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				article := articles[i]
				res := c.analyzer.Analyze(work, article, cfg.Mode, cfg.Model, r.stream)
				if !res.Fallback() {
					c.persist(work, r, article, res.Analysis)
					a := res.Analysis
					results[i] = &a
				}

				var completed int
				var counts types.SessionCounts
				r.update(func(s *types.AnalysisSession) {
					switch res.Outcome {
					case analyzer.OutcomeCached:
						s.Counts.CacheHits++
						s.Counts.AnalysesProduced++
					case analyzer.OutcomeFallback:
						s.Counts.Fallbacks++
					default:
						s.Counts.AnalysesProduced++
					}
					done++
					completed = done
					counts = s.Counts
				})
				if completed%config.ProgressEvery == 0 || completed == total {
					r.stream.Emit(types.SeverityInfo, types.CategoryProgress, "batch",
						fmt.Sprintf("Analyzed %d/%d articles", completed, total),
						map[string]any{
							"completed": completed,
							"total":     total,
							"produced":  counts.AnalysesProduced,
							"cache_hit": counts.CacheHits,
							"fallbacks": counts.Fallbacks,
						})
				}
			}
		}()
	}

schedule:
	for i := range articles {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			break schedule
		}
	}
	close(jobs)
	wg.Wait()

	out := make([]types.Analysis, 0, total)
	for _, a := range results {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

func (c *Coordinator) persist(ctx context.Context, r *run, article *types.Article, a types.Analysis) {
	if err := c.store.SaveAnalysis(ctx, a); err != nil {
		r.stream.Emit(types.SeverityWarning, types.CategorySystem, "save_failed",
			"Could not save analysis: "+err.Error(), map[string]any{"article_id": article.ID})
		return
	}
	if err := c.store.MarkProcessed(ctx, article.ID); err != nil {
		r.stream.Emit(types.SeverityWarning, types.CategorySystem, "save_failed",
			"Could not mark article processed: "+err.Error(), map[string]any{"article_id": article.ID})
	}
}

// finish moves the session to a terminal state, archives it and closes its
// event stream.
func (c *Coordinator) finish(r *run, status types.SessionStatus, positions []types.Position, reason string) {
	if positions == nil {
		positions = []types.Position{}
	}
	ended := c.now().UTC()

	var snapshot types.AnalysisSession
	r.update(func(s *types.AnalysisSession) {
		s.Status = status
		s.EndedAt = &ended
		if s.StartedAt != nil {
			s.Duration = ended.Sub(*s.StartedAt).Round(time.Millisecond).String()
		}
		s.Positions = positions
		s.Error = reason
		snapshot = s.Clone()
	})

	logEvent := c.log.Info()
	if status == types.StatusCompleted {
		r.stream.Emit(types.SeverityInfo, types.CategoryAnalysis, "complete",
			fmt.Sprintf("Session completed with %d positions", len(positions)),
			map[string]any{
				"positions": len(positions),
				"duration":  snapshot.Duration,
				"counts":    snapshot.Counts,
			})
	} else {
		severity := types.SeverityError
		if reason == CancelledReason {
			severity = types.SeverityWarning
		}
		r.stream.Emit(severity, types.CategoryAnalysis, "failed", "Session failed: "+reason,
			map[string]any{"reason": reason})
		logEvent = c.log.Warn().Str("reason", reason)
	}
	logEvent.Str("session_id", snapshot.ID).
		Str("status", string(status)).
		Int("positions", len(positions)).
		Str("duration", snapshot.Duration).
		Msg("session finished")

	if c.opts.Archiver != nil {
		actx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := c.opts.Archiver.Archive(actx, snapshot); err != nil {
			r.stream.Emit(types.SeverityWarning, types.CategorySystem, "archive_failed",
				"Could not archive session: "+err.Error(), nil)
			c.log.Warn().Err(err).Str("session_id", snapshot.ID).Msg("archive failed")
		}
		cancel()
	}

	r.stream.Close()
	close(r.done)
}

func (r *run) update(fn func(s *types.AnalysisSession)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.session)
}

func zeroArticleSummary(ingest rssfeeds.IngestResult) string {
	switch {
	case len(ingest.Articles) == 0 && len(ingest.Failures) > 0:
		return fmt.Sprintf("No articles analyzed: %d source(s) failed and the rest returned nothing new", len(ingest.Failures))
	case len(ingest.Articles) == 0 && ingest.SkippedProcessed > 0:
		return fmt.Sprintf("No articles analyzed: all %d fetched articles were already processed", ingest.SkippedProcessed)
	case len(ingest.Articles) == 0:
		return "No articles analyzed: sources returned no articles"
	default:
		return fmt.Sprintf("No articles analyzed: all %d analyses failed", len(ingest.Articles))
	}
}
