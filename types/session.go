package types

import "time"

// SessionStatus represents the lifecycle state of an analysis session
type SessionStatus string

const (
	StatusCreated   SessionStatus = "created"
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AnalysisMode selects how much of an article the model sees.
type AnalysisMode string

const (
	// ModeHeadlines analyses title and feed summary only.
	ModeHeadlines AnalysisMode = "headlines"
	// ModeFull extracts the article body before analysis.
	ModeFull AnalysisMode = "full"
)

// SessionConfig is the caller-supplied configuration for one run.
type SessionConfig struct {
	MaxPositions  int          `json:"max_positions"`
	MinConfidence float64      `json:"min_confidence"`
	Model         string       `json:"model"`
	Sources       []string     `json:"sources"`
	Mode          AnalysisMode `json:"mode"`
	Force         bool         `json:"force,omitempty"`
	Concurrency   int          `json:"concurrency,omitempty"`
	MaxItems      int          `json:"max_items,omitempty"`
}

// SessionCounts tracks per-session throughput.
type SessionCounts struct {
	ArticlesSeen     int `json:"articles_seen"`
	AnalysesProduced int `json:"analyses_produced"`
	CacheHits        int `json:"cache_hits"`
	Fallbacks        int `json:"fallbacks"`
	SourceFailures   int `json:"source_failures"`
}

// AnalysisSession is one bounded run of the pipeline.
type AnalysisSession struct {
	ID        string        `json:"id"`
	Config    SessionConfig `json:"config"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Duration  string        `json:"duration,omitempty"`
	Positions []Position    `json:"positions"`
	Counts    SessionCounts `json:"counts"`
	Error     string        `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand to callers.
func (s AnalysisSession) Clone() AnalysisSession {
	s.Config.Sources = append([]string(nil), s.Config.Sources...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		s.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	positions := make([]Position, len(s.Positions))
	for i, p := range s.Positions {
		positions[i] = p.Clone()
	}
	s.Positions = positions
	return s
}
