package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TheRareFew/sermo-sub001/pkg/client"
	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	systemStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("243"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusConnectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42"))

	statusReconnectingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))

	statusFailedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// View renders the chat screen
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderHeader() string {
	title := fmt.Sprintf("#%s", m.channelID)
	if m.loadingInitial {
		title += " (loading history...)"
	}
	return headerStyle.Width(m.width).Render(title)
}

// renderMessages renders the window for the viewport
func (m Model) renderMessages() string {
	msgs := m.messages()
	if len(msgs) == 0 {
		if m.loadingInitial {
			return systemStyle.Render("Loading messages...")
		}
		return systemStyle.Render("No messages yet. Say something!")
	}

	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, m.renderMessage(msg))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMessage(msg protocol.Message) string {
	if msg.Kind == protocol.KindSystem {
		return systemStyle.Render(msg.Content)
	}

	ts := timestampStyle.Render(msg.Timestamp.Local().Format("15:04"))
	sender := senderStyle.Render(msg.Sender)
	return fmt.Sprintf("%s %s %s", ts, sender, msg.Content)
}

func (m Model) renderStatusBar() string {
	status := m.renderConnectionStatus()

	parts := []string{status}
	if m.lastErr != nil {
		parts = append(parts, errorStyle.Render(m.lastErr.Error()))
	}
	if m.loadingOlder {
		parts = append(parts, systemStyle.Render("loading older messages..."))
	}
	if online := m.onlineCount(); online > 0 {
		parts = append(parts, fmt.Sprintf("%d online", online))
	}

	return strings.Join(parts, "  ")
}

func (m Model) renderConnectionStatus() string {
	switch m.connState {
	case client.StateConnected:
		return statusConnectedStyle.Render("● connected")
	case client.StateConnecting:
		return statusReconnectingStyle.Render("● connecting...")
	case client.StateReconnecting:
		return statusReconnectingStyle.Render(fmt.Sprintf("● reconnecting (attempt %d)...", m.reconnectAttempt+1))
	case client.StateFailed:
		return statusFailedStyle.Render("● connection failed")
	default:
		return statusFailedStyle.Render("● offline")
	}
}

func (m Model) onlineCount() int {
	count := 0
	for _, status := range m.presence {
		if status == protocol.StatusOnline {
			count++
		}
	}
	return count
}
