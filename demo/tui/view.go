package tui

import (
	"strings"
)

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("📈 CatalystBot Session Monitor"))
	b.WriteString("\n\n")

	b.WriteString(m.getStateText())
	b.WriteString("\n\n")

	if m.Session != nil {
		b.WriteString(InfoStyle.Render(formatCounts(m.Session.Counts)))
		b.WriteString("\n\n")
	}

	if len(m.Events) > 0 {
		b.WriteString(InfoStyle.Render("📝 Recent Activity:"))
		b.WriteString("\n")
		for _, ev := range m.Events {
			b.WriteString(severityStyle(ev.Severity).Render("   " + formatEvent(ev)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.Session != nil && m.Session.Status.Terminal() {
		b.WriteString(BoxStyle.Render(formatPositions(m.Session.Positions)))
		b.WriteString("\n\n")
	}

	switch {
	case m.running():
		b.WriteString(InfoStyle.Render(TextFooterRunning))
	case m.SessionID == "":
		b.WriteString(InfoStyle.Render(TextFooterIdle))
	default:
		b.WriteString(HighlightStyle.Render(TextFooterDone))
	}

	return b.String()
}
