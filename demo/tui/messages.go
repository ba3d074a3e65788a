package tui

import (
	"time"

	"catalystbot/types"
)

// StatusUpdateMsg carries one poll of the session and its events.
type StatusUpdateMsg struct {
	Session *types.AnalysisSession
	Events  []types.ActivityEvent
	Err     error
}

// TickMsg is sent periodically to trigger polling
type TickMsg struct {
	Time time.Time
}

// SessionStartedMsg is sent after a start request returns.
type SessionStartedMsg struct {
	ID  string
	Err error
}

// CancelSentMsg is sent after a cancel request returns.
type CancelSentMsg struct {
	Err error
}
