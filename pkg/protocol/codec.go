package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrEmptyFrame = errors.New("empty frame")

// envelope is the superset of fields used to classify an inbound frame
type envelope struct {
	Type      string          `json:"type"`
	Action    string          `json:"action"`
	MessageID string          `json:"message_id"`
	ChannelID string          `json:"channel_id"`
	Sender    string          `json:"sender"`
	Status    string          `json:"status"`
	Message   json.RawMessage `json:"message"`
}

// Decode classifies a raw JSON frame into one of the inbound frame
// variants. Unrecognized but well-formed frames decode to UnknownFrame;
// only malformed JSON returns an error.
func Decode(data []byte) (InboundFrame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	// Deletions are tagged by "action", not "type"
	if env.Action == ActionDelete {
		return DeleteFrame{MessageID: env.MessageID, ChannelID: env.ChannelID}, nil
	}

	switch env.Type {
	case TypeMessage:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode message frame: %w", err)
		}
		if msg.Kind == "" {
			msg.Kind = KindChat
		}
		return MessageFrame{Message: msg}, nil

	case TypeNewMessage:
		// Broadcast wrapper: {"type":"new_message","message":{...}}
		var msg Message
		if err := json.Unmarshal(env.Message, &msg); err != nil {
			return nil, fmt.Errorf("decode new_message frame: %w", err)
		}
		if msg.Kind == "" {
			msg.Kind = KindChat
		}
		return MessageFrame{Message: msg}, nil

	case TypeStatusUpdate:
		return PresenceFrame{Sender: env.Sender, Status: env.Status}, nil

	case TypeChannelJoined:
		return ChannelJoinedFrame{ChannelID: env.ChannelID}, nil
	}

	return UnknownFrame{Type: env.Type, Raw: data}, nil
}

// EncodeMessage builds an outbound chat message frame
func EncodeMessage(msg Message) ([]byte, error) {
	out := struct {
		Type string `json:"type"`
		Message
	}{Type: TypeMessage, Message: msg}
	return json.Marshal(out)
}

// EncodeStatusUpdate builds an outbound presence frame
func EncodeStatusUpdate(sender, status string) ([]byte, error) {
	out := struct {
		Type      string    `json:"type"`
		Sender    string    `json:"sender"`
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{Type: TypeStatusUpdate, Sender: sender, Status: status, Timestamp: time.Now().UTC()}
	return json.Marshal(out)
}

// EncodeJoinChannel builds the subscription frame the server requires
// before it broadcasts channel traffic to this connection
func EncodeJoinChannel(channelID string) ([]byte, error) {
	out := struct {
		Type      string `json:"type"`
		ChannelID string `json:"channel_id"`
	}{Type: TypeJoinChannel, ChannelID: channelID}
	return json.Marshal(out)
}

// EncodeLeaveChannel builds the unsubscribe frame
func EncodeLeaveChannel(channelID string) ([]byte, error) {
	out := struct {
		Type      string `json:"type"`
		ChannelID string `json:"channel_id"`
	}{Type: TypeLeaveChannel, ChannelID: channelID}
	return json.Marshal(out)
}

// EncodeDelete builds an outbound deletion frame
func EncodeDelete(channelID, messageID string) ([]byte, error) {
	out := struct {
		Action    string `json:"action"`
		ChannelID string `json:"channel_id"`
		MessageID string `json:"message_id"`
	}{Action: ActionDelete, ChannelID: channelID, MessageID: messageID}
	return json.Marshal(out)
}
