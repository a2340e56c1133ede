package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

const (
	// DefaultPageSize is the fixed history page size
	DefaultPageSize = 25

	// BackfillScrollThreshold is how close to the top of the viewport
	// (in rendered units) the scroll position must be before an older
	// page is fetched
	BackfillScrollThreshold = 100
)

// Reconciler maintains the ordered, deduplicated message window for
// the active channel: initial history load, older-page backfill, and
// live append/delete events all merge through it. Messages are keyed
// by ID and never re-sorted; backfilled pages prepend, live messages
// append.
type Reconciler struct {
	fetcher  HistoryFetcher
	pageSize int
	metrics  *Metrics

	mu         sync.Mutex
	channelID  string
	order      []string
	byID       map[string]protocol.Message
	cursor     int
	nearBottom bool
}

// NewReconciler creates a reconciler over a history fetcher. pageSize
// <= 0 selects the default.
func NewReconciler(fetcher HistoryFetcher, pageSize int) *Reconciler {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Reconciler{
		fetcher:    fetcher,
		pageSize:   pageSize,
		byID:       make(map[string]protocol.Message),
		nearBottom: true,
	}
}

// SetMetrics attaches a metrics collector
func (r *Reconciler) SetMetrics(m *Metrics) {
	r.metrics = m
}

// Reset discards the window and re-targets the reconciler at a
// channel. Call with "" to deactivate.
func (r *Reconciler) Reset(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channelID = channelID
	r.order = nil
	r.byID = make(map[string]protocol.Message)
	r.cursor = 0
	r.nearBottom = true
}

// ActiveChannel returns the channel the window is bound to
func (r *Reconciler) ActiveChannel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channelID
}

// LoadInitialPage fetches the most recent page of history for a
// channel and replaces the window wholesale. The backfill cursor is
// set one page below the page just fetched so the next older-page
// fetch continues backward without re-fetching it.
func (r *Reconciler) LoadInitialPage(ctx context.Context, channelID string) (HistoryPage, error) {
	page, err := r.fetcher.FetchLatest(ctx, channelID)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("%w: initial page for %s: %v", ErrHistoryFetch, channelID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channelID != channelID {
		// The active channel changed while the fetch was in flight;
		// the result must not land in the wrong window
		return HistoryPage{}, nil
	}

	r.order = nil
	r.byID = make(map[string]protocol.Message)
	for _, msg := range page.Messages {
		r.appendLocked(msg)
	}
	latest := 0
	if page.TotalMessages > 0 {
		latest = (page.TotalMessages - 1) / r.pageSize
	}
	r.cursor = latest - 1

	r.metrics.pageLoaded()
	return page, nil
}

// HasOlderPages reports whether a backfill page remains
func (r *Reconciler) HasOlderPages() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channelID != "" && r.cursor > 0
}

// LoadOlderPage fetches the page at the current cursor, prepends it to
// the window, and decrements the cursor. Returns the number of
// messages prepended and a height hint (prepended message count) so
// the caller can restore the scroll offset by exactly the height
// added. A result that arrives after the channel changed is dropped.
func (r *Reconciler) LoadOlderPage(ctx context.Context) (prepended int, heightHint int, err error) {
	r.mu.Lock()
	channelID := r.channelID
	cursor := r.cursor
	r.mu.Unlock()

	if channelID == "" || cursor <= 0 {
		return 0, 0, nil
	}

	page, fetchErr := r.fetcher.FetchPage(ctx, channelID, cursor)
	if fetchErr != nil {
		return 0, 0, fmt.Errorf("%w: page %d for %s: %v", ErrHistoryFetch, cursor, channelID, fetchErr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channelID != channelID || r.cursor != cursor {
		// Stale fetch: the channel switched or another backfill won
		return 0, 0, nil
	}

	prepended = r.prependLocked(page.Messages)
	r.cursor--

	r.metrics.pageLoaded()
	return prepended, prepended, nil
}

// Append merges one live message into the window. Idempotent by ID:
// a duplicate arrival (the server echoing an optimistic local copy)
// changes nothing and returns false.
func (r *Reconciler) Append(msg protocol.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channelID == "" || msg.ChannelID != r.channelID {
		return false
	}
	return r.appendLocked(msg)
}

// Delete removes the message with the given ID from the window.
// Returns false when the ID was absent.
func (r *Reconciler) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Messages returns a snapshot of the window in display order: oldest
// backfilled messages first, newest live messages last
func (r *Reconciler) Messages() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]protocol.Message, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Size returns the number of messages in the window
func (r *Reconciler) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// SetNearBottom records the scroll observation made by the UI. The
// reconciler only consults the flag; it never updates it itself.
func (r *Reconciler) SetNearBottom(nearBottom bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nearBottom = nearBottom
}

// ShouldAutoScroll reports whether a freshly appended message should
// scroll the view to the bottom: true only when the user was already
// near the bottom. Backfilled history never auto-scrolls.
func (r *Reconciler) ShouldAutoScroll() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nearBottom
}

func (r *Reconciler) appendLocked(msg protocol.Message) bool {
	if _, exists := r.byID[msg.ID]; exists {
		return false
	}
	r.byID[msg.ID] = msg
	r.order = append(r.order, msg.ID)
	return true
}

// prependLocked inserts older messages ahead of the window, skipping
// IDs already present, and returns the count actually inserted
func (r *Reconciler) prependLocked(msgs []protocol.Message) int {
	fresh := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if _, exists := r.byID[msg.ID]; exists {
			continue
		}
		r.byID[msg.ID] = msg
		fresh = append(fresh, msg.ID)
	}
	if len(fresh) == 0 {
		return 0
	}
	r.order = append(fresh, r.order...)
	return len(fresh)
}
