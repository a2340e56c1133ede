package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

// ConnFactory builds a lifecycle manager scoped to one channel
type ConnFactory func(channelID string) ConnectionInterface

// Session binds one lifecycle manager to one (channel, display name)
// pair. Rebinding either value tears the old manager down before a new
// one exists, so at most one live subscription can ever deliver
// frames, and frames for a stale channel are discarded on arrival.
type Session struct {
	connFactory ConnFactory
	rec         *Reconciler
	logger      *log.Logger
	metrics     *Metrics

	mu          sync.Mutex
	channelID   string
	displayName string
	conn        ConnectionInterface
	generation  uint64
	bindCancel  context.CancelFunc
	closed      bool

	events chan Event
}

// NewSession creates an unbound session facade
func NewSession(connFactory ConnFactory, rec *Reconciler) *Session {
	return &Session{
		connFactory: connFactory,
		rec:         rec,
		events:      make(chan Event, 64),
	}
}

// SetLogger sets a logger for debugging session events
func (s *Session) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// SetMetrics attaches a metrics collector
func (s *Session) SetMetrics(m *Metrics) {
	s.metrics = m
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Events returns the session's event stream
func (s *Session) Events() <-chan Event {
	return s.events
}

// ActiveChannel returns the currently bound channel
func (s *Session) ActiveChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

// DisplayName returns the currently bound display name
func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

// IsConnected reports whether the bound connection is live
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	return conn != nil && conn.IsConnected()
}

// Bind points the session at a (channel, display name) pair. Any
// existing manager is torn down first; in-flight page fetches and
// reconnect timers tied to the old channel are cancelled.
func (s *Session) Bind(channelID, displayName string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrTransportClosed
	}
	if s.channelID == channelID && s.displayName == displayName {
		s.mu.Unlock()
		return nil
	}

	if s.bindCancel != nil {
		s.bindCancel()
		s.bindCancel = nil
	}
	old := s.conn
	oldName := s.displayName

	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(context.Background())
	s.bindCancel = cancel
	s.channelID = channelID
	s.displayName = displayName

	conn := s.connFactory(channelID)
	s.conn = conn
	s.rec.Reset(channelID)
	s.mu.Unlock()

	if old != nil {
		s.logf("rebinding: tearing down previous subscription")
		s.announcePresence(old, oldName, protocol.StatusOffline)
		old.Disconnect()
	}

	if err := conn.Connect(); err != nil {
		return err
	}

	go s.run(ctx, gen, conn, channelID, displayName)
	go s.loadInitial(ctx, gen, channelID)
	return nil
}

// SendChat sends a chat message, appending an optimistic local copy
// to the window immediately. The server echo carrying the same
// client-assigned ID deduplicates on arrival.
func (s *Session) SendChat(content string) (protocol.Message, error) {
	s.mu.Lock()
	if s.closed || s.conn == nil {
		s.mu.Unlock()
		return protocol.Message{}, ErrTransportClosed
	}
	conn := s.conn
	gen := s.generation
	channelID := s.channelID
	displayName := s.displayName
	s.mu.Unlock()

	msg := protocol.Message{
		ID:          uuid.NewString(),
		Content:     content,
		Sender:      displayName,
		AccountName: displayName,
		Timestamp:   time.Now().UTC(),
		Kind:        protocol.KindChat,
		ChannelID:   channelID,
	}

	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return protocol.Message{}, err
	}

	if s.rec.Append(msg) {
		s.emit(gen, MessageAppendedEvent{Message: msg})
	}

	if err := conn.Send(data); err != nil {
		return protocol.Message{}, err
	}
	return msg, nil
}

// DeleteMessage asks the server to delete a message; the window
// updates when the deletion frame comes back
func (s *Session) DeleteMessage(messageID string) error {
	s.mu.Lock()
	if s.closed || s.conn == nil {
		s.mu.Unlock()
		return ErrTransportClosed
	}
	conn := s.conn
	channelID := s.channelID
	s.mu.Unlock()

	data, err := protocol.EncodeDelete(channelID, messageID)
	if err != nil {
		return err
	}
	return conn.Send(data)
}

// LoadOlder backfills one older history page. No-op when no prior
// page exists; otherwise a PageLoadedEvent always follows, even when
// every message on the page was already present, so callers tracking
// an in-flight load can clear it.
func (s *Session) LoadOlder() {
	s.mu.Lock()
	if s.closed || s.bindCancel == nil {
		s.mu.Unlock()
		return
	}
	gen := s.generation
	s.mu.Unlock()

	if !s.rec.HasOlderPages() {
		return
	}

	go func() {
		prepended, hint, err := s.rec.LoadOlderPage(context.Background())
		if err != nil {
			s.emit(gen, HistoryErrorEvent{Err: err})
			return
		}
		s.emit(gen, PageLoadedEvent{Prepended: prepended, HeightHint: hint})
	}()
}

// Messages returns a snapshot of the current window
func (s *Session) Messages() []protocol.Message {
	return s.rec.Messages()
}

// SetNearBottom records whether the view is scrolled near the bottom
func (s *Session) SetNearBottom(nearBottom bool) {
	s.rec.SetNearBottom(nearBottom)
}

// ShouldAutoScroll reports whether an arriving message should snap
// the view to the bottom
func (s *Session) ShouldAutoScroll() bool {
	return s.rec.ShouldAutoScroll()
}

// HasOlderPages reports whether backfill can fetch further history
func (s *Session) HasOlderPages() bool {
	return s.rec.HasOlderPages()
}

// Close tears the session down for good
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.bindCancel != nil {
		s.bindCancel()
		s.bindCancel = nil
	}
	conn := s.conn
	name := s.displayName
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		s.announcePresence(conn, name, protocol.StatusOffline)
		conn.Disconnect()
	}
}

// run routes one bound connection's channels until the bind is
// replaced or the session closes
func (s *Session) run(ctx context.Context, gen uint64, conn ConnectionInterface, channelID, displayName string) {
	for {
		select {
		case <-ctx.Done():
			return

		case data, ok := <-conn.Incoming():
			if !ok {
				return
			}
			s.routeFrame(gen, channelID, data)

		case update, ok := <-conn.StateChanges():
			if !ok {
				return
			}
			if update.State == StateConnected {
				s.joinChannel(conn, channelID, displayName)
			}
			s.emit(gen, ConnectionStatusEvent{State: update.State, Attempt: update.Attempt, Err: update.Err})

		case err, ok := <-conn.Errors():
			if !ok {
				return
			}
			s.emit(gen, ConnectionErrorEvent{Err: err})
		}
	}
}

// routeFrame decodes one inbound frame and applies it to the window.
// Frames scoped to a channel other than the active one are stale
// leftovers from a replaced subscription and are dropped.
func (s *Session) routeFrame(gen uint64, channelID string, data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		s.logf("dropping undecodable frame: %v", err)
		s.metrics.decodeFailure()
		return
	}

	if scoped := protocol.FrameChannelID(frame); scoped != "" && scoped != channelID {
		s.logf("dropping frame for stale channel %s", scoped)
		return
	}

	switch fr := frame.(type) {
	case protocol.MessageFrame:
		if s.rec.Append(fr.Message) {
			s.emit(gen, MessageAppendedEvent{Message: fr.Message})
		}

	case protocol.DeleteFrame:
		if s.rec.Delete(fr.MessageID) {
			s.emit(gen, MessageDeletedEvent{ID: fr.MessageID})
		}

	case protocol.PresenceFrame:
		s.emit(gen, PresenceEvent{Sender: fr.Sender, Status: fr.Status})

	case protocol.ChannelJoinedFrame:
		s.logf("joined channel %s", fr.ChannelID)

	case protocol.UnknownFrame:
		s.logf("ignoring unknown frame type %q", fr.Type)
	}
}

// joinChannel subscribes the fresh connection to its channel and
// announces presence. Runs on every Connected transition so a
// reconnect re-establishes the server-side subscription.
func (s *Session) joinChannel(conn ConnectionInterface, channelID, displayName string) {
	if data, err := protocol.EncodeJoinChannel(channelID); err == nil {
		if err := conn.Send(data); err != nil {
			s.logf("join_channel send failed: %v", err)
		}
	}
	s.announcePresence(conn, displayName, protocol.StatusOnline)
}

// announcePresence sends a status update, best effort
func (s *Session) announcePresence(conn ConnectionInterface, displayName, status string) {
	data, err := protocol.EncodeStatusUpdate(displayName, status)
	if err != nil {
		return
	}
	if err := conn.Send(data); err != nil {
		s.logf("presence send failed: %v", err)
	}
}

// loadInitial replaces the window with the channel's newest page
func (s *Session) loadInitial(ctx context.Context, gen uint64, channelID string) {
	page, err := s.rec.LoadInitialPage(ctx, channelID)
	if err != nil {
		s.emit(gen, HistoryErrorEvent{Err: err, Initial: true})
		return
	}
	s.emit(gen, PageLoadedEvent{
		Prepended:  len(page.Messages),
		HeightHint: len(page.Messages),
		Initial:    true,
	})
}

// emit delivers an event unless the bind that produced it has been
// replaced. Never blocks the router.
func (s *Session) emit(gen uint64, ev Event) {
	s.mu.Lock()
	stale := s.closed || s.generation != gen
	s.mu.Unlock()
	if stale {
		return
	}

	select {
	case s.events <- ev:
	default:
		s.logf("event dropped (channel full): %T", ev)
	}
}
