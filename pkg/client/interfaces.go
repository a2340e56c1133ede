package client

import (
	"context"

	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

// Transport is one physical duplex connection to the server. A
// Transport is single-use: Open dials once, and after the session ends
// (Closed fires) the instance is spent. The lifecycle manager creates
// a fresh Transport per attempt via its factory.
type Transport interface {
	// Open dials the server. It blocks until the connection is
	// established or ctx expires.
	Open(ctx context.Context) error

	// Send writes one frame to the wire
	Send(data []byte) error

	// Close ends the session with a close code and reason
	Close(code int, reason string) error

	// Incoming yields inbound frames; closed when the session ends
	Incoming() <-chan []byte

	// Closed delivers exactly one value when the session ends: nil for
	// a clean closure, otherwise the error that killed it
	Closed() <-chan error

	// IsOpen reports whether the underlying socket is open
	IsOpen() bool
}

// TransportFactory creates a fresh Transport for one connection attempt
type TransportFactory func() Transport

// HistoryPage is one page of channel history plus the channel's total
// message count at fetch time. Messages are oldest-first within the
// page.
type HistoryPage struct {
	Messages      []protocol.Message
	TotalMessages int
}

// HistoryFetcher retrieves paginated channel history from the REST
// API. Pages are indexed from the oldest message: page 0 holds the
// oldest pageSize messages.
type HistoryFetcher interface {
	// FetchLatest returns the most recent page
	FetchLatest(ctx context.Context, channelID string) (HistoryPage, error)

	// FetchPage returns the page at a fixed index
	FetchPage(ctx context.Context, channelID string, page int) (HistoryPage, error)
}

// HealthProber checks server liveness independently of the message
// transport. Used to decide between retrying and giving up when a
// connection attempt fails.
type HealthProber interface {
	Probe(ctx context.Context) bool
}

// ConnectionInterface is the lifecycle manager surface the facade and
// tests program against; Conn is the production implementation
type ConnectionInterface interface {
	Connect() error
	Send(payload []byte) error
	Disconnect()
	IsConnected() bool
	State() State
	PendingCount() int

	Incoming() <-chan []byte
	StateChanges() <-chan StateUpdate
	Errors() <-chan error
}

// StateStore persists small bits of client state between runs: the
// last display name, the last active channel, connection history
type StateStore interface {
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	GetLastDisplayName() string
	SetLastDisplayName(name string) error

	GetLastChannel() string
	SetLastChannel(channelID string) error

	SaveConnectionResult(serverURL, result string) error
	GetLastConnectionResult(serverURL string) (string, error)

	Close() error
}
