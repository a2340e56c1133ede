package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	transportBufferSize   = 100
	transportWriteTimeout = 5 * time.Second
)

// WebSocketTransport is the production Transport: one gorilla/websocket
// connection to the server's chat endpoint.
type WebSocketTransport struct {
	url    string
	logger *log.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	open    bool
	closed  bool
	writeMu sync.Mutex

	incoming chan []byte
	closedCh chan error
	done     chan struct{}
}

// NewWebSocketTransport creates an unopened transport for url
// (ws:// or wss://). logger may be nil.
func NewWebSocketTransport(url string, logger *log.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		url:      url,
		logger:   logger,
		incoming: make(chan []byte, transportBufferSize),
		closedCh: make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (t *WebSocketTransport) logf(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger.Printf(format, args...)
	}
}

// Open dials the server. Blocks until the websocket handshake
// completes or ctx expires.
func (t *WebSocketTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	if t.open {
		t.mu.Unlock()
		return fmt.Errorf("transport already open")
	}
	t.mu.Unlock()

	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrOpenFailure, err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return ErrTransportClosed
	}
	t.conn = conn
	t.open = true
	t.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	go t.readLoop()

	t.logf("websocket open: %s", t.url)
	return nil
}

// Send writes one frame to the wire
func (t *WebSocketTransport) Send(data []byte) error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	conn := t.conn
	t.mu.Unlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(transportWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailure, err)
	}
	return nil
}

// Close ends the session. A CloseNormalClosure code yields a nil value
// on the Closed channel.
func (t *WebSocketTransport) Close(code int, reason string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	wasOpen := t.open
	t.open = false
	conn := t.conn
	close(t.done)
	t.mu.Unlock()

	if conn != nil {
		t.writeMu.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		t.writeMu.Unlock()
		err := conn.Close()
		if !wasOpen {
			t.signalClosed(nil)
		}
		return err
	}

	t.signalClosed(nil)
	return nil
}

// Incoming returns the inbound frame channel
func (t *WebSocketTransport) Incoming() <-chan []byte {
	return t.incoming
}

// Closed returns the session-end channel
func (t *WebSocketTransport) Closed() <-chan error {
	return t.closedCh
}

// IsOpen reports whether the socket is open
func (t *WebSocketTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// readLoop pumps the socket into the incoming channel until it dies
func (t *WebSocketTransport) readLoop() {
	defer close(t.incoming)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			requested := t.closed
			t.open = false
			t.mu.Unlock()

			if requested || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.signalClosed(nil)
			} else {
				t.logf("read error: %v", err)
				t.signalClosed(err)
			}
			return
		}

		// A stalled consumer must not pin this goroutine past Close
		select {
		case t.incoming <- data:
		case <-t.done:
			t.signalClosed(nil)
			return
		}
	}
}

// signalClosed delivers the session-end value at most once
func (t *WebSocketTransport) signalClosed(err error) {
	select {
	case t.closedCh <- err:
	default:
	}
}
