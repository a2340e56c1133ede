package client

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

// TestWindowInvariants drives the window with random append and delete
// operations and checks that IDs stay unique, the order slice and the
// index never diverge, and relative order of surviving messages is
// preserved.
func TestWindowInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rec := NewReconciler(NewMockHistoryFetcher(), DefaultPageSize)
		rec.Reset("general")

		var appended []string

		ops := rapid.IntRange(1, 200).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			id := rapid.StringMatching(`[a-f0-9]{4}`).Draw(t, "id")

			if rapid.Bool().Draw(t, "delete") {
				wasPresent := false
				for _, existing := range appended {
					if existing == id {
						wasPresent = true
						break
					}
				}
				if rec.Delete(id) != wasPresent {
					t.Fatalf("Delete(%q) disagreed with model", id)
				}
				if wasPresent {
					appended = removeID(appended, id)
				}
				continue
			}

			msg := protocol.Message{ID: id, Content: "x", ChannelID: "general", Kind: protocol.KindChat}
			wasFresh := true
			for _, existing := range appended {
				if existing == id {
					wasFresh = false
					break
				}
			}
			if rec.Append(msg) != wasFresh {
				t.Fatalf("Append(%q) disagreed with model", id)
			}
			if wasFresh {
				appended = append(appended, id)
			}
		}

		msgs := rec.Messages()
		if len(msgs) != len(appended) {
			t.Fatalf("window holds %d messages, model holds %d", len(msgs), len(appended))
		}
		for i, msg := range msgs {
			if msg.ID != appended[i] {
				t.Fatalf("position %d: window has %q, model has %q", i, msg.ID, appended[i])
			}
		}
	})
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// TestBackoffDelayMonotonic checks the delay never shrinks as attempts
// grow and never exceeds the cap
func TestBackoffDelayMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := DefaultConnConfig()
		a := rapid.IntRange(0, 30).Draw(t, "a")
		b := rapid.IntRange(0, 30).Draw(t, "b")
		if a > b {
			a, b = b, a
		}

		da := backoffDelay(cfg, a)
		db := backoffDelay(cfg, b)
		if da > db {
			t.Fatalf("delay shrank: attempt %d -> %v, attempt %d -> %v", a, da, b, db)
		}
		if db > cfg.MaxReconnectDelay {
			t.Fatalf("delay %v exceeds cap %v", db, cfg.MaxReconnectDelay)
		}
	})
}
