package protocol

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestMessageRoundTrip checks that any message survives encode/decode unchanged
func TestMessageRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := Message{
			ID:          rapid.StringMatching(`[a-zA-Z0-9-]{1,40}`).Draw(t, "id"),
			Content:     rapid.String().Draw(t, "content"),
			Sender:      rapid.String().Draw(t, "sender"),
			AccountName: rapid.String().Draw(t, "accountName"),
			Timestamp:   time.Unix(rapid.Int64Range(0, 4102444800).Draw(t, "unix"), 0).UTC(),
			Kind:        rapid.SampledFrom([]string{KindChat, KindSystem, KindDeleteMarker}).Draw(t, "kind"),
			ChannelID:   rapid.StringMatching(`[a-z0-9-]{1,20}`).Draw(t, "channelID"),
		}

		data, err := EncodeMessage(original)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		frame, err := Decode(data)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		msg, ok := frame.(MessageFrame)
		if !ok {
			t.Fatalf("expected MessageFrame, got %T", frame)
		}
		if msg.Message != original {
			t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", msg.Message, original)
		}
	})
}

// TestDecodeNeverPanics feeds arbitrary bytes through the decoder
func TestDecodeNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(t, "data")
		// Either outcome is fine; the invariant is no panic
		_, _ = Decode(data)
	})
}
