package tui

// UI Text Constants
const (
	TextFooterIdle    = "Press 's' to start a session | Press 'q' to quit"
	TextFooterRunning = "Press 'c' to cancel the session | Press 'q' to detach (session keeps running)"
	TextFooterDone    = "Press 's' to start another session | Press 'q' to quit"
)
