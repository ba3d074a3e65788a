package types

import "time"

// Severity of an activity event
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Event categories
const (
	CategoryAnalysis = "analysis"
	CategoryScraping = "scraping"
	CategoryCache    = "cache"
	CategoryProgress = "progress"
	CategorySystem   = "system"
)

// ActivityEvent is a single progress record emitted by a session.
// SessionID is empty for process-level events.
type ActivityEvent struct {
	SessionID string         `json:"session_id,omitempty"`
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Severity  Severity       `json:"severity"`
	Category  string         `json:"category"`
	Action    string         `json:"action"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
