package config

import "time"

// Session Defaults
const (
	// DefaultMaxPositions caps how many positions a session surfaces
	DefaultMaxPositions = 10

	// DefaultMinConfidence drops positions the model is unsure about
	DefaultMinConfidence = 0.5

	// DefaultModel is used when a session does not name one
	DefaultModel = "command-r-plus"

	// DefaultMaxItems is the per-source article cap
	DefaultMaxItems = 20
)

// Concurrency Limits
const (
	// DefaultAnalysisWorkers is the analysis pool size when unset
	DefaultAnalysisWorkers = 4

	// MaxAnalysisWorkers is the hard ceiling on concurrent model calls per session
	MaxAnalysisWorkers = 8

	// IngestWorkers bounds concurrent source fetches
	IngestWorkers = 4

	// ExtractWorkers bounds concurrent full-body extractions
	ExtractWorkers = 5
)

// Rate Limiting
const (
	// DefaultRateRequests is the fallback per-domain request budget
	DefaultRateRequests = 10

	// DefaultRateWindow is the fallback per-domain window
	DefaultRateWindow = time.Minute

	// FailureThreshold is the consecutive-failure count before backoff kicks in
	FailureThreshold = 3

	// BaseBackoff is the first backoff step once over the threshold
	BaseBackoff = time.Second

	// MaxBackoff bounds any single backoff
	MaxBackoff = 32 * time.Second

	// MaxJitter is added to window waits so blocked callers do not wake together
	MaxJitter = 250 * time.Millisecond
)

// Analysis
const (
	// MaxPromptChars bounds the article text sent to the model
	MaxPromptChars = 6000

	// CacheTTL is how long a cached analysis stays valid in remote stores
	CacheTTL = 7 * 24 * time.Hour

	// FetchTimeout applies to each source or body fetch
	FetchTimeout = 20 * time.Second

	// MaxBodyBytes caps a fetched response body
	MaxBodyBytes = 5 << 20
)

// Events
const (
	// EventBuffer is the per-session event channel capacity
	EventBuffer = 256

	// EventHistory is how many events each session keeps for late subscribers
	EventHistory = 200

	// EventRetainedSessions is how many ended sessions keep their event history
	EventRetainedSessions = 100

	// ProgressEvery emits a progress event every N analysed articles
	ProgressEvery = 5
)

// Shutdown
const (
	// APIShutdownTimeout bounds stopping the HTTP server
	APIShutdownTimeout = 10 * time.Second

	// SessionDrainTimeout bounds waiting for running sessions to finish
	SessionDrainTimeout = 30 * time.Second
)
