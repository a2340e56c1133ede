package ui

import (
	"log"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/TheRareFew/sermo-sub001/pkg/client"
	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

// nearBottomLines is how many lines from the bottom still count as
// "at the bottom" for auto-scroll purposes
const nearBottomLines = 3

// backfillTriggerLines is how close to the top the scroll position
// must be before an older page is requested
const backfillTriggerLines = 5

// Model is the application state
type Model struct {
	session *client.Session
	store   client.StateStore
	cfg     client.TOMLConfig
	logger  *log.Logger

	viewport viewport.Model
	input    textarea.Model

	width  int
	height int
	ready  bool

	channelID   string
	displayName string

	connState        client.State
	reconnectAttempt int
	lastErr          error

	presence map[string]string

	loadingOlder   bool
	loadingInitial bool

	// notify is swappable so tests never pop desktop notifications
	notify func(title, message string)
}

// SessionEventMsg wraps one session event for the update loop
type SessionEventMsg struct {
	Event client.Event
}

// New creates the chat model bound to a session. store and logger may
// be nil.
func New(session *client.Session, store client.StateStore, cfg client.TOMLConfig, logger *log.Logger) Model {
	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 2000
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	return Model{
		session:        session,
		store:          store,
		cfg:            cfg,
		logger:         logger,
		input:          input,
		connState:      client.StateInitial,
		channelID:      session.ActiveChannel(),
		displayName:    session.DisplayName(),
		presence:       make(map[string]string),
		loadingInitial: true,
		notify: func(title, message string) {
			beeep.Notify(title, message, "")
		},
	}
}

// Init starts the event pump
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenForEvents(m.session),
		textarea.Blink,
	)
}

// listenForEvents waits for the next session event. Re-issued after
// every event so the pump never stops.
func listenForEvents(session *client.Session) tea.Cmd {
	return func() tea.Msg {
		return SessionEventMsg{Event: <-session.Events()}
	}
}

func (m *Model) logf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

// messages returns the current window snapshot
func (m *Model) messages() []protocol.Message {
	return m.session.Messages()
}
