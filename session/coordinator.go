// Package session runs analysis sessions: ingest, analyse, aggregate. Each
// session moves created -> running -> completed|failed and reports progress
// on its own ordered event stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"catalystbot/aggregator"
	"catalystbot/analyzer"
	"catalystbot/config"
	"catalystbot/events"
	"catalystbot/rssfeeds"
	"catalystbot/store"
	"catalystbot/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrNoSources        = errors.New("no usable sources configured")
	ErrInvalidConfig    = errors.New("invalid session config")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTerminal         = errors.New("session already finished")
)

// CancelledReason is recorded on sessions stopped by CancelSession.
const CancelledReason = "cancelled"

// Ingestor fetches articles for a session.
type Ingestor interface {
	Ingest(ctx context.Context, sources []rssfeeds.Source, opts rssfeeds.IngestOptions) rssfeeds.IngestResult
}

// Analyzer produces one analysis per article.
type Analyzer interface {
	Analyze(ctx context.Context, article *types.Article, mode types.AnalysisMode, model string, emit events.Emitter) analyzer.Result
}

// Archiver keeps finished sessions somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, session types.AnalysisSession) error
}

// Options are process-wide defaults applied to every session.
type Options struct {
	DefaultModel string
	Workers      int
	Thresholds   aggregator.Thresholds
	Archiver     Archiver
}

// Coordinator owns all sessions of the process.
type Coordinator struct {
	ingestor Ingestor
	analyzer Analyzer
	store    store.Store
	bus      *events.Bus
	opts     Options
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*run
	wg       sync.WaitGroup
}

// run is the mutable state behind one session.
type run struct {
	mu      sync.Mutex
	session types.AnalysisSession

	stream    *events.Stream
	cancel    context.CancelFunc
	cancelled bool
	done      chan struct{}
}

// New creates a coordinator.
func New(ingestor Ingestor, an Analyzer, st store.Store, bus *events.Bus, opts Options, logger zerolog.Logger) *Coordinator {
	if opts.DefaultModel == "" {
		opts.DefaultModel = config.DefaultModel
	}
	if opts.Workers <= 0 {
		opts.Workers = config.DefaultAnalysisWorkers
	}
	return &Coordinator{
		ingestor: ingestor,
		analyzer: an,
		store:    st,
		bus:      bus,
		opts:     opts,
		log:      logger.With().Str("component", "session").Logger(),
		now:      time.Now,
		sessions: make(map[string]*run),
	}
}

// normalize fills defaults and validates cfg.
func (c *Coordinator) normalize(cfg types.SessionConfig) (types.SessionConfig, error) {
	if cfg.MaxPositions < 0 {
		return cfg, fmt.Errorf("%w: max_positions must not be negative", ErrInvalidConfig)
	}
	if cfg.MaxPositions == 0 {
		cfg.MaxPositions = config.DefaultMaxPositions
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return cfg, fmt.Errorf("%w: min_confidence must be within [0, 1]", ErrInvalidConfig)
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = c.opts.DefaultModel
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = types.ModeHeadlines
	case types.ModeHeadlines, types.ModeFull:
	default:
		return cfg, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, cfg.Mode)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = c.opts.Workers
	}
	cfg.Concurrency = min(cfg.Concurrency, config.MaxAnalysisWorkers)
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = config.DefaultMaxItems
	}
	cfg.Sources = append([]string(nil), cfg.Sources...)
	return cfg, nil
}

// StartSession validates cfg and launches a session. The returned id is
// valid even when err is non-nil: a session that cannot start is recorded as
// failed so its status and events stay queryable.
func (c *Coordinator) StartSession(ctx context.Context, cfg types.SessionConfig) (string, error) {
	id := uuid.NewString()
	created := c.now().UTC()

	r := &run{
		session: types.AnalysisSession{
			ID:        id,
			Config:    cfg,
			Status:    types.StatusCreated,
			CreatedAt: created,
			Positions: []types.Position{},
		},
		stream: c.bus.Open(id),
		done:   make(chan struct{}),
	}
	c.mu.Lock()
	c.sessions[id] = r
	c.mu.Unlock()

	normalized, err := c.normalize(cfg)
	if err != nil {
		c.failToStart(r, err)
		return id, err
	}
	r.update(func(s *types.AnalysisSession) { s.Config = normalized })

	if len(normalized.Sources) == 0 {
		c.failToStart(r, ErrNoSources)
		return id, ErrNoSources
	}
	sources, errs := rssfeeds.ResolveSources(normalized.Sources, normalized.MaxItems)
	for _, e := range errs {
		r.stream.Emit(types.SeverityWarning, types.CategorySystem, "source_invalid", e.Error(), nil)
	}
	if len(sources) == 0 {
		err := fmt.Errorf("%w: %d source(s) could not be resolved", ErrNoSources, len(errs))
		c.failToStart(r, err)
		return id, err
	}

	if err := c.store.Ping(ctx); err != nil {
		err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		c.failToStart(r, err)
		return id, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	started := c.now().UTC()

	r.mu.Lock()
	r.cancel = cancel
	r.session.Status = types.StatusRunning
	r.session.StartedAt = &started
	if r.cancelled {
		cancel()
	}
	r.mu.Unlock()

	r.stream.Emit(types.SeverityInfo, types.CategoryAnalysis, "start", "Analysis session started", map[string]any{
		"sources":        normalized.Sources,
		"model":          normalized.Model,
		"mode":           string(normalized.Mode),
		"max_positions":  normalized.MaxPositions,
		"min_confidence": normalized.MinConfidence,
		"concurrency":    normalized.Concurrency,
	})
	c.log.Info().Str("session_id", id).Strs("sources", normalized.Sources).Str("model", normalized.Model).Msg("session started")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.execute(runCtx, r, sources)
	}()
	return id, nil
}

// failToStart records a session that never ran.
func (c *Coordinator) failToStart(r *run, err error) {
	now := c.now().UTC()
	r.mu.Lock()
	r.session.Status = types.StatusFailed
	r.session.EndedAt = &now
	r.session.Error = err.Error()
	r.mu.Unlock()

	r.stream.Emit(types.SeverityError, types.CategorySystem, "start_failed", "Session failed to start: "+err.Error(), nil)
	r.stream.Close()
	close(r.done)
	c.log.Warn().Err(err).Str("session_id", r.stream.SessionID()).Msg("session failed to start")
}

// GetSessionStatus returns a snapshot of the session.
func (c *Coordinator) GetSessionStatus(id string) (types.AnalysisSession, error) {
	r, ok := c.lookup(id)
	if !ok {
		return types.AnalysisSession{}, ErrNotFound
	}
	return r.snapshot(), nil
}

// ListSessions returns snapshots of all sessions, newest first.
func (c *Coordinator) ListSessions() []types.AnalysisSession {
	c.mu.RLock()
	runs := make([]*run, 0, len(c.sessions))
	for _, r := range c.sessions {
		runs = append(runs, r)
	}
	c.mu.RUnlock()

	out := make([]types.AnalysisSession, len(runs))
	for i, r := range runs {
		out[i] = r.snapshot()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CancelSession stops scheduling new work for a running session. Analyses
// already in flight finish; the session then ends as failed with reason
// "cancelled".
func (c *Coordinator) CancelSession(id string) error {
	r, ok := c.lookup(id)
	if !ok {
		return ErrNotFound
	}

	r.mu.Lock()
	if r.session.Status.Terminal() {
		r.mu.Unlock()
		return ErrTerminal
	}
	r.cancelled = true
	cancel := r.cancel
	r.mu.Unlock()

	r.stream.Emit(types.SeverityWarning, types.CategorySystem, "cancel_requested", "Cancellation requested", nil)
	if cancel != nil {
		cancel()
	}
	return nil
}

// Wait blocks until the session reaches a terminal state or ctx ends.
func (c *Coordinator) Wait(ctx context.Context, id string) (types.AnalysisSession, error) {
	r, ok := c.lookup(id)
	if !ok {
		return types.AnalysisSession{}, ErrNotFound
	}
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return r.snapshot(), ctx.Err()
	}
}

// Shutdown cancels every running session and waits for them to finish.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.RLock()
	for _, r := range c.sessions {
		r.mu.Lock()
		if r.cancel != nil && !r.session.Status.Terminal() {
			r.cancel()
		}
		r.mu.Unlock()
	}
	c.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) lookup(id string) (*run, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.sessions[id]
	return r, ok
}

func (r *run) snapshot() types.AnalysisSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Clone()
}
