package protocol

import (
	"time"
)

// Frame type tags (the "type" field of a JSON frame)
const (
	TypeMessage       = "message"
	TypeNewMessage    = "new_message" // server broadcast wrapper around a message
	TypeStatusUpdate  = "status_update"
	TypeJoinChannel   = "join_channel"
	TypeLeaveChannel  = "leave_channel"
	TypeChannelJoined = "channel_joined"
)

// ActionDelete is the "action" field marking a deletion frame
const ActionDelete = "delete"

// Message kinds
const (
	KindChat         = "message"
	KindSystem       = "system"
	KindDeleteMarker = "delete-marker"
)

// Presence status values accepted by the server
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
	StatusBusy    = "busy"
)

// Message is a chat message as carried on the wire and held in the
// client's message window. Identity is ID: two messages with the same
// ID are the same logical message regardless of origin (a local
// optimistic copy and the server's echo share the client-assigned ID).
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Sender      string    `json:"sender"`
	AccountName string    `json:"account_name"`
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind,omitempty"`
	ChannelID   string    `json:"channel_id"`
}

// MessageFrame is an inbound chat message
type MessageFrame struct {
	Message Message
}

// PresenceFrame is an inbound status update
type PresenceFrame struct {
	Sender string
	Status string
}

// DeleteFrame marks a message for removal
type DeleteFrame struct {
	MessageID string
	ChannelID string
}

// ChannelJoinedFrame is the server's acknowledgement of a join
type ChannelJoinedFrame struct {
	ChannelID string
}

// UnknownFrame carries a payload the client does not recognize.
// Unknown frames are dropped by the router, never treated as errors.
type UnknownFrame struct {
	Type string
	Raw  []byte
}

// InboundFrame is one decoded frame from the transport
type InboundFrame interface {
	frameTag()
}

func (MessageFrame) frameTag()       {}
func (PresenceFrame) frameTag()      {}
func (DeleteFrame) frameTag()        {}
func (ChannelJoinedFrame) frameTag() {}
func (UnknownFrame) frameTag()       {}

// FrameChannelID returns the channel a frame belongs to, or "" for
// frames that are not channel-scoped (presence, unknown).
func FrameChannelID(f InboundFrame) string {
	switch fr := f.(type) {
	case MessageFrame:
		return fr.Message.ChannelID
	case DeleteFrame:
		return fr.ChannelID
	case ChannelJoinedFrame:
		return fr.ChannelID
	}
	return ""
}
