package client

import (
	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

// Event is something the session surfaces to its consumer: state
// changes, window mutations, presence, and terminal errors
type Event interface {
	eventTag()
}

// ConnectionStatusEvent reports a lifecycle state change
type ConnectionStatusEvent struct {
	State   State
	Attempt int
	Err     error
}

// ConnectionErrorEvent reports a terminal connection error: retries
// exhausted or the health probe failed
type ConnectionErrorEvent struct {
	Err error
}

// MessageAppendedEvent fires when a message enters the window,
// whether from a live frame or an optimistic local send
type MessageAppendedEvent struct {
	Message protocol.Message
}

// MessageDeletedEvent fires when a message leaves the window
type MessageDeletedEvent struct {
	ID string
}

// PageLoadedEvent fires after a history page lands in the window.
// HeightHint is the prepended message count; the UI converts it to
// rendered height to hold the scroll position steady.
type PageLoadedEvent struct {
	Prepended  int
	HeightHint int
	Initial    bool
}

// PresenceEvent reports a peer's status change
type PresenceEvent struct {
	Sender string
	Status string
}

// HistoryErrorEvent reports a failed page fetch. Initial load and
// backfill fail independently; the window is never corrupted.
type HistoryErrorEvent struct {
	Err     error
	Initial bool
}

func (ConnectionStatusEvent) eventTag() {}
func (ConnectionErrorEvent) eventTag()  {}
func (MessageAppendedEvent) eventTag()  {}
func (MessageDeletedEvent) eventTag()   {}
func (PageLoadedEvent) eventTag()       {}
func (PresenceEvent) eventTag()         {}
func (HistoryErrorEvent) eventTag()     {}
