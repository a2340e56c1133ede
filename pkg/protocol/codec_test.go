package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessageFrame(t *testing.T) {
	data := []byte(`{
		"type": "message",
		"id": "abc-123",
		"content": "hello",
		"sender": "alice",
		"account_name": "alice@example.com",
		"timestamp": "2026-01-15T10:30:00Z",
		"channel_id": "general"
	}`)

	frame, err := Decode(data)
	require.NoError(t, err)

	msg, ok := frame.(MessageFrame)
	require.True(t, ok, "expected MessageFrame, got %T", frame)
	assert.Equal(t, "abc-123", msg.Message.ID)
	assert.Equal(t, "hello", msg.Message.Content)
	assert.Equal(t, "alice", msg.Message.Sender)
	assert.Equal(t, "general", msg.Message.ChannelID)
	assert.Equal(t, KindChat, msg.Message.Kind)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), msg.Message.Timestamp)
}

func TestDecodeNewMessageWrapper(t *testing.T) {
	// Server broadcasts wrap the message in a "new_message" envelope
	data := []byte(`{
		"type": "new_message",
		"message": {
			"id": "42",
			"content": "wrapped",
			"sender": "bob",
			"timestamp": "2026-01-15T10:30:00Z",
			"channel_id": "general"
		}
	}`)

	frame, err := Decode(data)
	require.NoError(t, err)

	msg, ok := frame.(MessageFrame)
	require.True(t, ok)
	assert.Equal(t, "42", msg.Message.ID)
	assert.Equal(t, "wrapped", msg.Message.Content)
}

func TestDecodeDeleteAction(t *testing.T) {
	data := []byte(`{"action":"delete","message_id":"abc-123","channel_id":"general"}`)

	frame, err := Decode(data)
	require.NoError(t, err)

	del, ok := frame.(DeleteFrame)
	require.True(t, ok, "expected DeleteFrame, got %T", frame)
	assert.Equal(t, "abc-123", del.MessageID)
	assert.Equal(t, "general", del.ChannelID)
}

func TestDecodePresence(t *testing.T) {
	data := []byte(`{"type":"status_update","sender":"alice","status":"away"}`)

	frame, err := Decode(data)
	require.NoError(t, err)

	pres, ok := frame.(PresenceFrame)
	require.True(t, ok)
	assert.Equal(t, "alice", pres.Sender)
	assert.Equal(t, StatusAway, pres.Status)
}

func TestDecodeChannelJoined(t *testing.T) {
	data := []byte(`{"type":"channel_joined","channel_id":"random"}`)

	frame, err := Decode(data)
	require.NoError(t, err)

	joined, ok := frame.(ChannelJoinedFrame)
	require.True(t, ok)
	assert.Equal(t, "random", joined.ChannelID)
}

func TestDecodeUnknownType(t *testing.T) {
	// Unknown frame types must not surface as errors; the read loop
	// drops them and keeps going
	data := []byte(`{"type":"typing_indicator","channel_id":"general"}`)

	frame, err := Decode(data)
	require.NoError(t, err)

	unknown, ok := frame.(UnknownFrame)
	require.True(t, ok)
	assert.Equal(t, "typing_indicator", unknown.Type)
	assert.Equal(t, data, unknown.Raw)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "malformed json", data: []byte(`{"type":`)},
		{name: "message with bad timestamp", data: []byte(`{"type":"message","timestamp":"not-a-time"}`)},
		{name: "new_message without payload", data: []byte(`{"type":"new_message"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestEncodeMessageRoundTrip(t *testing.T) {
	original := Message{
		ID:          "m1",
		Content:     "round trip",
		Sender:      "alice",
		AccountName: "alice@example.com",
		Timestamp:   time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		Kind:        KindChat,
		ChannelID:   "general",
	}

	data, err := EncodeMessage(original)
	require.NoError(t, err)

	frame, err := Decode(data)
	require.NoError(t, err)

	msg, ok := frame.(MessageFrame)
	require.True(t, ok)
	assert.Equal(t, original, msg.Message)
}

func TestEncodeJoinLeaveChannel(t *testing.T) {
	join, err := EncodeJoinChannel("general")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"join_channel","channel_id":"general"}`, string(join))

	leave, err := EncodeLeaveChannel("general")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"leave_channel","channel_id":"general"}`, string(leave))
}

func TestEncodeDeleteRoundTrip(t *testing.T) {
	data, err := EncodeDelete("general", "m9")
	require.NoError(t, err)

	frame, err := Decode(data)
	require.NoError(t, err)

	del, ok := frame.(DeleteFrame)
	require.True(t, ok)
	assert.Equal(t, "m9", del.MessageID)
	assert.Equal(t, "general", del.ChannelID)
}

func TestFrameChannelID(t *testing.T) {
	tests := []struct {
		name  string
		frame InboundFrame
		want  string
	}{
		{"message", MessageFrame{Message: Message{ChannelID: "a"}}, "a"},
		{"delete", DeleteFrame{ChannelID: "b"}, "b"},
		{"channel joined", ChannelJoinedFrame{ChannelID: "c"}, "c"},
		{"presence is not channel-scoped", PresenceFrame{Sender: "x"}, ""},
		{"unknown is not channel-scoped", UnknownFrame{Type: "y"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FrameChannelID(tt.frame))
		})
	}
}
