package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer upgrades and echoes text frames back until the client
// closes
type echoServer struct {
	srv *httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	es := &echoServer{}
	upgrader := websocket.Upgrader{}
	es.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		es.mu.Lock()
		es.conns = append(es.conns, conn)
		es.mu.Unlock()

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(es.srv.Close)
	return es
}

func (es *echoServer) wsURL() string {
	return "ws" + strings.TrimPrefix(es.srv.URL, "http")
}

func (es *echoServer) dropConnections() {
	es.mu.Lock()
	defer es.mu.Unlock()
	for _, conn := range es.conns {
		conn.Close()
	}
	es.conns = nil
}

func TestTransportOpenAndEcho(t *testing.T) {
	es := newEchoServer(t)

	tr := NewWebSocketTransport(es.wsURL(), nil)
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close(websocket.CloseNormalClosure, "test done")

	assert.True(t, tr.IsOpen())
	require.NoError(t, tr.Send([]byte(`{"type":"message"}`)))

	select {
	case data := <-tr.Incoming():
		assert.Equal(t, `{"type":"message"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("echo never arrived")
	}
}

func TestTransportOpenUnreachable(t *testing.T) {
	tr := NewWebSocketTransport("ws://127.0.0.1:1/ws", nil)
	err := tr.Open(context.Background())
	assert.ErrorIs(t, err, ErrOpenFailure)
	assert.False(t, tr.IsOpen())
}

func TestTransportOpenTimeout(t *testing.T) {
	// A server that accepts TCP but never completes the handshake
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	tr := NewWebSocketTransport("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tr.Open(ctx)
	assert.ErrorIs(t, err, ErrConnectTimeout)
}

func TestTransportRequestedCloseIsClean(t *testing.T) {
	es := newEchoServer(t)

	tr := NewWebSocketTransport(es.wsURL(), nil)
	require.NoError(t, tr.Open(context.Background()))

	require.NoError(t, tr.Close(websocket.CloseNormalClosure, "bye"))
	assert.False(t, tr.IsOpen())

	select {
	case err := <-tr.Closed():
		assert.NoError(t, err, "a requested close ends the session cleanly")
	case <-time.After(2 * time.Second):
		t.Fatal("Closed never fired")
	}
}

func TestTransportCloseWithStalledConsumer(t *testing.T) {
	es := newEchoServer(t)

	tr := NewWebSocketTransport(es.wsURL(), nil)
	require.NoError(t, tr.Open(context.Background()))

	// Nothing drains Incoming, so the read pump fills the buffer and
	// blocks on the next frame. Close must still unwind it.
	for i := 0; i < transportBufferSize+20; i++ {
		require.NoError(t, tr.Send([]byte(`{"type":"message"}`)))
	}
	require.Eventually(t, func() bool {
		return len(tr.Incoming()) == transportBufferSize
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, tr.Close(websocket.CloseNormalClosure, "bye"))

	select {
	case err := <-tr.Closed():
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Closed never fired")
	}
}

func TestTransportServerDropSignalsError(t *testing.T) {
	es := newEchoServer(t)

	tr := NewWebSocketTransport(es.wsURL(), nil)
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close(websocket.CloseNormalClosure, "test done")

	es.dropConnections()

	select {
	case err := <-tr.Closed():
		assert.Error(t, err, "an abrupt server drop is not a clean closure")
	case <-time.After(2 * time.Second):
		t.Fatal("Closed never fired")
	}
}

func TestTransportSendAfterClose(t *testing.T) {
	es := newEchoServer(t)

	tr := NewWebSocketTransport(es.wsURL(), nil)
	require.NoError(t, tr.Open(context.Background()))
	require.NoError(t, tr.Close(websocket.CloseNormalClosure, "bye"))

	assert.ErrorIs(t, tr.Send([]byte("late")), ErrTransportClosed)
}

func TestTransportIsSingleUse(t *testing.T) {
	es := newEchoServer(t)

	tr := NewWebSocketTransport(es.wsURL(), nil)
	require.NoError(t, tr.Open(context.Background()))

	assert.Error(t, tr.Open(context.Background()), "a second Open must fail")
	tr.Close(websocket.CloseNormalClosure, "test done")
	assert.ErrorIs(t, tr.Open(context.Background()), ErrTransportClosed)
}
