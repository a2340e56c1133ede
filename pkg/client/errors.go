package client

import "errors"

var (
	// ErrOpenFailure means the transport dial itself failed
	ErrOpenFailure = errors.New("transport open failed")

	// ErrConnectTimeout means the transport did not open within the
	// configured connection timeout
	ErrConnectTimeout = errors.New("connection timed out")

	// ErrTransportClosed is returned by operations on a connection that
	// has been permanently torn down via Disconnect
	ErrTransportClosed = errors.New("connection closed")

	// ErrSendFailure wraps a transport-level write error; the payload
	// is re-queued, never dropped
	ErrSendFailure = errors.New("send failed")

	// ErrHistoryFetch wraps a failed history page fetch; the existing
	// message window is left untouched
	ErrHistoryFetch = errors.New("history fetch failed")

	// ErrMaxAttemptsExceeded means automatic reconnection gave up; a
	// manual Connect resets the attempt budget
	ErrMaxAttemptsExceeded = errors.New("max reconnect attempts exceeded")

	// ErrProbeFailed means the liveness probe reported the server down
	// while the connection was failing to open
	ErrProbeFailed = errors.New("health probe failed")
)
