package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/TheRareFew/sermo-sub001/pkg/client"
	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

// Update handles one message
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SessionEventMsg:
		model, cmd := m.handleSessionEvent(msg.Event)
		return model, tea.Batch(cmd, listenForEvents(model.session))
	}

	return m.updateComponents(msg)
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	inputHeight := m.input.Height() + 1
	viewportHeight := msg.Height - inputHeight - 2 // header and status bar
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, viewportHeight)
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
		m.viewport.SetContent(m.renderMessages())
	}

	m.input.SetWidth(msg.Width - 2)
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, m.quit()

	case "enter":
		return m.submitInput()

	case "pgup", "pgdown", "up", "down", "home", "end":
		return m.scroll(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitInput sends the composed message
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}

	if _, err := m.session.SendChat(content); err != nil {
		m.lastErr = err
		m.logf("send failed: %v", err)
		return m, nil
	}

	m.input.Reset()
	m.lastErr = nil
	m.refreshViewport()
	m.viewport.GotoBottom()
	m.session.SetNearBottom(true)
	return m, nil
}

// scroll routes scrolling keys to the viewport and re-derives the
// near-bottom observation and the backfill trigger from the new
// position
func (m Model) scroll(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)

	m.session.SetNearBottom(m.isNearBottom())

	if m.viewport.YOffset <= backfillTriggerLines && !m.loadingOlder && m.session.HasOlderPages() {
		m.loadingOlder = true
		m.session.LoadOlder()
	}
	return m, cmd
}

// isNearBottom reports whether the view sits within a few lines of
// the newest message
func (m *Model) isNearBottom() bool {
	if !m.ready {
		return true
	}
	bottom := m.viewport.TotalLineCount() - m.viewport.Height
	if bottom < 0 {
		bottom = 0
	}
	return bottom-m.viewport.YOffset <= nearBottomLines
}

func (m Model) handleSessionEvent(ev client.Event) (Model, tea.Cmd) {
	switch ev := ev.(type) {
	case client.MessageAppendedEvent:
		return m.handleAppended(ev), nil

	case client.MessageDeletedEvent:
		m.refreshViewport()
		return m, nil

	case client.PageLoadedEvent:
		return m.handlePageLoaded(ev), nil

	case client.ConnectionStatusEvent:
		m.connState = ev.State
		m.reconnectAttempt = ev.Attempt
		if ev.Err != nil {
			m.lastErr = ev.Err
		} else if ev.State == client.StateConnected {
			m.lastErr = nil
		}
		return m, nil

	case client.ConnectionErrorEvent:
		m.lastErr = ev.Err
		return m, nil

	case client.PresenceEvent:
		m.presence[ev.Sender] = ev.Status
		return m, nil

	case client.HistoryErrorEvent:
		m.lastErr = ev.Err
		m.loadingOlder = false
		m.loadingInitial = false
		return m, nil
	}

	return m, nil
}

func (m Model) handleAppended(ev client.MessageAppendedEvent) Model {
	m.refreshViewport()

	if m.session.ShouldAutoScroll() {
		m.viewport.GotoBottom()
	} else if m.shouldNotify(ev.Message) {
		m.notify(ev.Message.Sender, ev.Message.Content)
	}
	return m
}

// shouldNotify gates desktop notifications: only foreign chat
// messages arriving while scrolled away from the bottom
func (m *Model) shouldNotify(msg protocol.Message) bool {
	return m.cfg.Notifications.Desktop &&
		msg.Kind == protocol.KindChat &&
		msg.Sender != m.displayName
}

func (m Model) handlePageLoaded(ev client.PageLoadedEvent) Model {
	before := 0
	if m.ready {
		before = m.viewport.TotalLineCount()
	}
	offset := m.viewport.YOffset

	m.refreshViewport()

	if ev.Initial {
		m.loadingInitial = false
		m.viewport.GotoBottom()
		m.session.SetNearBottom(true)
		return m
	}

	m.loadingOlder = false

	// Prepended history grows the content above the fold; shift the
	// offset by the added height so the view does not jump
	if m.ready {
		added := m.viewport.TotalLineCount() - before
		if added > 0 {
			m.viewport.SetYOffset(offset + added)
		}
	}
	return m
}

// refreshViewport re-renders the window into the viewport
func (m *Model) refreshViewport() {
	if m.ready {
		m.viewport.SetContent(m.renderMessages())
	}
}

// quit persists the last bind and tears the session down
func (m *Model) quit() tea.Cmd {
	if m.store != nil {
		if err := m.store.SetLastChannel(m.channelID); err != nil {
			m.logf("failed to save last channel: %v", err)
		}
		if err := m.store.SetLastDisplayName(m.displayName); err != nil {
			m.logf("failed to save last display name: %v", err)
		}
	}
	m.session.Close()
	return tea.Quit
}

func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}
