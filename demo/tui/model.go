package tui

import (
	"fmt"
	"strings"

	"catalystbot/types"

	tea "github.com/charmbracelet/bubbletea"
)

// maxLogLines is how many recent events the view keeps.
const maxLogLines = 12

// Model is the monitor state. The server owns the session; the model only
// mirrors the last poll.
type Model struct {
	Client *APIClient
	Config types.SessionConfig

	SessionID string
	Session   *types.AnalysisSession
	Events    []types.ActivityEvent
	Err       error

	Connected  bool
	Cancelling bool
}

// NewModel creates a monitor. A non-empty sessionID attaches to an existing
// session instead of waiting for 's'.
func NewModel(baseURL string, cfg types.SessionConfig, sessionID string) Model {
	return Model{
		Client:    NewAPIClient(baseURL),
		Config:    cfg,
		SessionID: sessionID,
	}
}

func (m Model) Init() tea.Cmd {
	if m.SessionID == "" {
		return nil
	}
	return tea.Batch(pollStatus(m.Client, m.SessionID), tickCmd())
}

// running reports whether the tracked session may still change.
func (m Model) running() bool {
	return m.SessionID != "" && (m.Session == nil || !m.Session.Status.Terminal())
}

func (m Model) getStateText() string {
	if m.Err != nil && !m.Connected {
		return ErrorStyle.Render(fmt.Sprintf("❌ %v", m.Err))
	}
	if m.SessionID == "" {
		return HighlightStyle.Render("👋 Ready") + "\n\n" +
			InfoStyle.Render("Sources: "+strings.Join(m.Config.Sources, ", "))
	}
	if m.Session == nil {
		return StatusStyle.Render("⏳ Waiting for session " + m.SessionID + "...")
	}

	switch m.Session.Status {
	case types.StatusCreated, types.StatusRunning:
		if m.Cancelling {
			return StatusStyle.Render("🛑 Cancelling, waiting for in-flight analyses...")
		}
		return StatusStyle.Render("🔍 Analysing session " + m.Session.ID + "...")
	case types.StatusCompleted:
		return HighlightStyle.Render("✅ COMPLETE") + " " + InfoStyle.Render(m.Session.Duration)
	case types.StatusFailed:
		return ErrorStyle.Render("❌ Failed: " + m.Session.Error)
	}
	return ""
}

// formatCounts renders the session throughput line.
func formatCounts(c types.SessionCounts) string {
	return fmt.Sprintf("📊 Articles: %d | Analysed: %d | Cached: %d | Fallbacks: %d | Source failures: %d",
		c.ArticlesSeen, c.AnalysesProduced, c.CacheHits, c.Fallbacks, c.SourceFailures)
}

// formatPositions renders the ranked positions as a fixed-width table.
func formatPositions(positions []types.Position) string {
	if len(positions) == 0 {
		return InfoStyle.Render("No positions above the confidence threshold")
	}
	var b strings.Builder
	b.WriteString(HighlightStyle.Render("Positions"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%-3s %-7s %-13s %6s %6s  %s\n", "#", "TICKER", "TIER", "SCORE", "CONF", "CATALYSTS")
	for i, p := range positions {
		var kinds []string
		for _, c := range p.Catalysts {
			kinds = append(kinds, c.Type)
		}
		line := fmt.Sprintf("%-3d %-7s %-13s %+6.2f %6.2f  %s", i+1, p.Ticker, p.Tier, p.SentimentScore, p.Confidence, strings.Join(kinds, ","))
		b.WriteString(tierStyle(p.Tier).Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// formatEvent renders one activity event as a log line.
func formatEvent(ev types.ActivityEvent) string {
	return fmt.Sprintf("%s %-7s %s/%s %s",
		ev.Timestamp.Format("15:04:05"), ev.Severity, ev.Category, ev.Action, ev.Message)
}
