package tui

import (
	"time"

	"catalystbot/types"

	tea "github.com/charmbracelet/bubbletea"
)

// pollStatus fetches the session snapshot and its event history.
func pollStatus(client *APIClient, id string) tea.Cmd {
	return func() tea.Msg {
		s, err := client.GetSession(id)
		if err != nil {
			return StatusUpdateMsg{Err: err}
		}
		events, err := client.History(id)
		return StatusUpdateMsg{Session: s, Events: events, Err: err}
	}
}

func startSession(client *APIClient, cfg types.SessionConfig) tea.Cmd {
	return func() tea.Msg {
		id, err := client.StartSession(cfg)
		return SessionStartedMsg{ID: id, Err: err}
	}
}

func cancelSession(client *APIClient, id string) tea.Cmd {
	return func() tea.Msg {
		return CancelSentMsg{Err: client.Cancel(id)}
	}
}

// tickCmd creates a command that ticks every 500ms for polling
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
