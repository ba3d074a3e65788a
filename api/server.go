package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"catalystbot/events"
	"catalystbot/ratelimit"
	"catalystbot/types"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sessions is the session lifecycle the API exposes.
type Sessions interface {
	StartSession(ctx context.Context, cfg types.SessionConfig) (string, error)
	GetSessionStatus(id string) (types.AnalysisSession, error)
	ListSessions() []types.AnalysisSession
	CancelSession(id string) error
}

// EventSource replays and streams session events.
type EventSource interface {
	History(sessionID string) []types.ActivityEvent
	Subscribe(sessionID string) ([]types.ActivityEvent, <-chan types.ActivityEvent, func())
}

// LimiterStats exposes per-domain limiter state.
type LimiterStats interface {
	Snapshot(domain string) ratelimit.Stats
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer calls into.
type Deps struct {
	Sessions Sessions
	Events   EventSource
	Limiter  LimiterStats
	Store    Pinger
	// System receives events that belong to no session. Nil discards them.
	System events.Emitter
}

// Server is the HTTP API plus the optional session schedule.
type Server struct {
	deps       Deps
	engine     *gin.Engine
	httpServer *http.Server
	log        zerolog.Logger

	cron      *cron.Cron
	mu        sync.Mutex
	scheduled string // id of the last scheduled session

	heartbeat time.Duration

	// streams is cancelled on shutdown so open event streams end instead of
	// holding the server open.
	streams     context.Context
	stopStreams context.CancelFunc
}

// NewServer builds the router and HTTP server.
func NewServer(deps Deps, port string, logger zerolog.Logger) *Server {
	if deps.System == nil {
		deps.System = events.Discard
	}
	s := &Server{
		deps:      deps,
		log:       logger.With().Str("component", "api").Logger(),
		cron:      cron.New(),
		heartbeat: 15 * time.Second,
	}
	s.streams, s.stopStreams = context.WithCancel(context.Background())
	s.engine = s.newRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(s.stopStreams)
	return s
}

// Handler returns the gin engine.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	s.RegisterSessionRoutes(r)
	s.RegisterEventRoutes(r)
	s.RegisterSystemRoutes(r)
	return r
}

// requestLogger logs one line per request at debug level, warn on 5xx.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		e := log.Debug()
		if status >= http.StatusInternalServerError {
			e = log.Warn()
		}
		e.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

// Start serves HTTP in the background.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting api server")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Fatal().Err(err).Msg("http server error")
		}
	}()
	return nil
}

// StartCron starts sessions with cfg on schedule. A tick is skipped while the
// previous scheduled session is still running.
func (s *Server) StartCron(schedule string, cfg types.SessionConfig) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.runScheduled(cfg) }); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cron.Start()
	s.log.Info().Str("schedule", schedule).Strs("sources", cfg.Sources).Msg("cron schedule started")
	return nil
}

// runScheduled starts one scheduled session unless one is still running.
func (s *Server) runScheduled(cfg types.SessionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduled != "" {
		prev, err := s.deps.Sessions.GetSessionStatus(s.scheduled)
		if err == nil && !prev.Status.Terminal() {
			s.log.Info().Str("session_id", s.scheduled).Str("status", string(prev.Status)).Msg("cron skipped: previous session still running")
			s.deps.System.Emit(types.SeverityInfo, types.CategorySystem, "schedule_skipped",
				"Scheduled run skipped: previous session still running", map[string]any{"session_id": s.scheduled})
			return
		}
	}

	id, err := s.deps.Sessions.StartSession(context.Background(), cfg)
	if id != "" {
		s.scheduled = id
	}
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("scheduled session failed to start")
		s.deps.System.Emit(types.SeverityWarning, types.CategorySystem, "schedule_failed",
			"Scheduled session failed to start: "+err.Error(), map[string]any{"session_id": id})
		return
	}
	s.log.Info().Str("session_id", id).Msg("scheduled session started")
	s.deps.System.Emit(types.SeverityInfo, types.CategorySystem, "schedule_started",
		"Scheduled session started", map[string]any{"session_id": id})
}

// Shutdown stops the schedule, ends open event streams and stops the HTTP
// server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down api server")
	s.stopStreams()
	<-s.cron.Stop().Done()
	return s.httpServer.Shutdown(ctx)
}
