package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case SessionStartedMsg:
		return m.handleSessionStarted(msg)
	case StatusUpdateMsg:
		return m.handleStatusUpdate(msg)
	case CancelSentMsg:
		if msg.Err != nil {
			m.Err = msg.Err
			m.Cancelling = false
		}
		return m, nil
	case TickMsg:
		if !m.running() {
			return m, nil
		}
		return m, tea.Batch(pollStatus(m.Client, m.SessionID), tickCmd())
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "s", "S":
		if !m.running() {
			m.SessionID = ""
			m.Session = nil
			m.Events = nil
			m.Err = nil
			m.Cancelling = false
			return m, startSession(m.Client, m.Config)
		}
	case "c", "C":
		if m.running() && !m.Cancelling {
			m.Cancelling = true
			return m, cancelSession(m.Client, m.SessionID)
		}
	}
	return m, nil
}

func (m Model) handleSessionStarted(msg SessionStartedMsg) (tea.Model, tea.Cmd) {
	m.SessionID = msg.ID
	if msg.Err != nil {
		m.Err = msg.Err
		if msg.ID == "" {
			return m, nil
		}
	}
	m.Connected = true
	return m, tea.Batch(pollStatus(m.Client, m.SessionID), tickCmd())
}

func (m Model) handleStatusUpdate(msg StatusUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Connected = false
		m.Err = fmt.Errorf("poll failed: %w", msg.Err)
		return m, nil
	}
	m.Connected = true
	m.Err = nil
	m.Session = msg.Session
	m.Events = msg.Events
	if len(m.Events) > maxLogLines {
		m.Events = m.Events[len(m.Events)-maxLogLines:]
	}
	return m, nil
}
