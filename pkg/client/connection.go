package client

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle state. Exactly one State exists
// per Conn and only the Conn itself mutates it.
type State int

const (
	StateInitial State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// StateUpdate is one connection state change
type StateUpdate struct {
	State   State
	Attempt int
	Err     error
}

// ConnConfig tunes the lifecycle manager
type ConnConfig struct {
	ConnectTimeout       time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
	ProbeTimeout         time.Duration
}

// DefaultConnConfig returns the standard tuning
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		ConnectTimeout:       5 * time.Second,
		ReconnectDelay:       1 * time.Second,
		MaxReconnectDelay:    30 * time.Second,
		MaxReconnectAttempts: 5,
		ProbeTimeout:         3 * time.Second,
	}
}

// backoffDelay computes the reconnect delay for an attempt number:
// min(base * 2^attempt, max)
func backoffDelay(cfg ConnConfig, attempt int) time.Duration {
	delay := cfg.ReconnectDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.MaxReconnectDelay {
			return cfg.MaxReconnectDelay
		}
	}
	if delay > cfg.MaxReconnectDelay {
		delay = cfg.MaxReconnectDelay
	}
	return delay
}

// Conn keeps one logical subscription alive over an unreliable
// transport: timeout detection, probe-gated terminal failure,
// exponential backoff, and a FIFO queue for payloads sent while the
// connection is down. A Conn is spent after Disconnect; construct a
// new one to reconnect.
type Conn struct {
	factory TransportFactory
	prober  HealthProber
	cfg     ConnConfig

	mu             sync.Mutex
	state          State
	attempt        int
	pending        [][]byte
	transport      Transport
	closed         bool
	reconnectTimer *time.Timer

	incoming    chan []byte
	stateChange chan StateUpdate
	errs        chan error
	shutdown    chan struct{}

	logger  *log.Logger
	metrics *Metrics
}

// NewConn creates a lifecycle manager. factory must not be nil; prober
// may be nil (a missing probe counts as a failed probe).
func NewConn(factory TransportFactory, prober HealthProber, cfg ConnConfig) *Conn {
	return &Conn{
		factory:     factory,
		prober:      prober,
		cfg:         cfg,
		state:       StateInitial,
		incoming:    make(chan []byte, 256),
		stateChange: make(chan StateUpdate, 16),
		errs:        make(chan error, 8),
		shutdown:    make(chan struct{}),
	}
}

// SetLogger sets a logger for debugging connection events
func (c *Conn) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// SetMetrics attaches a metrics collector
func (c *Conn) SetMetrics(m *Metrics) {
	c.metrics = m
}

func (c *Conn) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Connect starts a connection attempt. No-op while already connecting,
// reconnecting, or connected. Calling Connect on a Failed connection
// resets the attempt budget, so a manual retry is never stuck behind
// an exhausted counter.
func (c *Conn) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrTransportClosed
	}
	switch c.state {
	case StateConnecting, StateReconnecting, StateConnected:
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.attempt = 0
	c.mu.Unlock()

	c.notifyState(StateConnecting, 0, nil)
	go c.dial(false)
	return nil
}

// Send transmits a payload, or queues it until the connection comes
// back. Payloads queued while down are flushed FIFO on reconnect,
// strictly before anything sent afterwards.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrTransportClosed
	}

	if c.state == StateConnected {
		t := c.transport
		c.mu.Unlock()

		if err := t.Send(payload); err != nil {
			c.logf("send failed, re-queueing: %v", err)
			c.metrics.sendFailure()
			c.requeueFront([][]byte{payload})
			// Kill the session so the normal close path drives the
			// reconnect; the payload is already back in the queue.
			t.Close(websocket.CloseAbnormalClosure, "send failed")
			return nil
		}
		c.metrics.frameSent()
		return nil
	}

	c.pending = append(c.pending, payload)
	c.metrics.queueDepth(len(c.pending))
	state := c.state
	c.mu.Unlock()

	c.logf("queued payload while %s (%d pending)", state, c.PendingCount())

	// Kick off reconnection unless an attempt is already in flight.
	// From Failed this counts as external intervention and gets a
	// fresh attempt budget.
	switch state {
	case StateInitial, StateDisconnected:
		c.beginReconnect(nil)
	case StateFailed:
		c.Connect()
	}
	return nil
}

// Disconnect tears the connection down for good: the queue is cleared,
// the transport is closed with a normal-closure code, and the Conn is
// spent.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateDisconnected
	c.attempt = 0
	c.pending = nil
	t := c.transport
	c.transport = nil
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()

	close(c.shutdown)
	if t != nil {
		t.Close(websocket.CloseNormalClosure, "client disconnect")
	}
	c.notifyState(StateDisconnected, 0, nil)
	c.logf("disconnected (terminal)")
}

// IsConnected reports whether the connection is live: state Connected
// and the transport reporting an open socket
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected && c.transport != nil && c.transport.IsOpen()
}

// State returns the current lifecycle state
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PendingCount returns the number of queued payloads
func (c *Conn) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Incoming returns the channel of inbound frames
func (c *Conn) Incoming() <-chan []byte {
	return c.incoming
}

// StateChanges returns the channel of lifecycle state updates
func (c *Conn) StateChanges() <-chan StateUpdate {
	return c.stateChange
}

// Errors returns the channel of terminal connection errors. Transient
// failures are classified and retried internally; only exhaustion or
// a failed health probe surfaces here.
func (c *Conn) Errors() <-chan error {
	return c.errs
}

// dial runs one connection attempt
func (c *Conn) dial(isReconnect bool) {
	t := c.factory()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	err := t.Open(ctx)
	cancel()

	if err != nil {
		c.logf("open failed: %v", err)
		c.handleDialFailure(err, isReconnect)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		t.Close(websocket.CloseNormalClosure, "client disconnect")
		return
	}
	c.transport = t
	c.mu.Unlock()

	// Flush the queue before the state flips to Connected so payloads
	// sent during the drain land behind everything already queued.
	if !c.drainPending(t) {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateConnected
	c.attempt = 0
	c.mu.Unlock()

	c.metrics.connected()
	c.notifyState(StateConnected, 0, nil)
	c.logf("connected")

	go c.runSession(t)
}

// drainPending flushes the FIFO queue onto a freshly opened transport.
// Returns false when a send fails; the unsent remainder is re-queued
// and the dying session drives the reconnect.
func (c *Conn) drainPending(t Transport) bool {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return false
		}
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return true
		}
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()

		for i, payload := range batch {
			if err := t.Send(payload); err != nil {
				c.logf("drain send failed at %d/%d: %v", i+1, len(batch), err)
				c.metrics.sendFailure()
				c.requeueFront(batch[i:])
				t.Close(websocket.CloseAbnormalClosure, "drain failed")
				go c.runSession(t)
				return false
			}
			c.metrics.frameSent()
		}
	}
}

// requeueFront puts payloads back at the head of the queue, preserving
// their order ahead of anything queued since
func (c *Conn) requeueFront(payloads [][]byte) {
	c.mu.Lock()
	c.pending = append(append([][]byte{}, payloads...), c.pending...)
	c.metrics.queueDepth(len(c.pending))
	c.mu.Unlock()
}

// runSession pumps inbound frames and watches for session end
func (c *Conn) runSession(t Transport) {
	incoming := t.Incoming()
	for {
		select {
		case <-c.shutdown:
			return

		case data, ok := <-incoming:
			if !ok {
				incoming = nil
				continue
			}
			c.metrics.frameReceived()
			select {
			case c.incoming <- data:
			case <-c.shutdown:
				return
			}

		case err := <-t.Closed():
			c.handleSessionEnd(err)
			return
		}
	}
}

// handleSessionEnd classifies the end of a live session: a clean close
// lands in Disconnected before the automatic reconnect; an error goes
// straight to Reconnecting.
func (c *Conn) handleSessionEnd(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	c.mu.Unlock()

	if err == nil {
		c.logf("transport closed")
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.notifyState(StateDisconnected, 0, nil)
	} else {
		c.logf("transport error: %v", err)
	}

	c.beginReconnect(err)
}

// handleDialFailure classifies a failed connection attempt by the
// state it happened in
func (c *Conn) handleDialFailure(err error, isReconnect bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if isReconnect {
		c.beginReconnect(err)
		return
	}

	// First attempt failed: probe the side channel before giving up.
	// A live server means the socket endpoint is worth retrying; a
	// dead one makes retries pointless.
	if c.probe() {
		c.logf("probe ok, retrying")
		c.beginReconnect(err)
		return
	}

	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()

	c.logf("probe failed, giving up: %v", err)
	c.metrics.connectionFailed()
	failure := errors.Join(ErrProbeFailed, err)
	c.notifyState(StateFailed, 0, failure)
	c.reportError(failure)
}

// probe runs the side-channel liveness check
func (c *Conn) probe() bool {
	if c.prober == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ProbeTimeout)
	defer cancel()
	return c.prober.Probe(ctx)
}

// beginReconnect schedules the next attempt with exponential backoff,
// or gives up once the attempt budget is spent
func (c *Conn) beginReconnect(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if c.attempt >= c.cfg.MaxReconnectAttempts {
		c.state = StateFailed
		c.mu.Unlock()

		c.logf("reconnect attempts exhausted (%d)", c.cfg.MaxReconnectAttempts)
		c.metrics.connectionFailed()
		c.notifyState(StateFailed, c.cfg.MaxReconnectAttempts, ErrMaxAttemptsExceeded)
		c.reportError(ErrMaxAttemptsExceeded)
		return
	}

	if c.state == StateReconnecting && c.reconnectTimer != nil {
		// An attempt is already scheduled
		c.mu.Unlock()
		return
	}

	delay := backoffDelay(c.cfg, c.attempt)
	attempt := c.attempt
	c.state = StateReconnecting
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.reconnectTimer = nil
		c.attempt++
		c.mu.Unlock()

		c.metrics.reconnectAttempt()
		c.dial(true)
	})
	c.mu.Unlock()

	c.logf("reconnecting in %v (attempt %d)", delay, attempt)
	c.notifyState(StateReconnecting, attempt, cause)
}

// notifyState publishes a state update without ever blocking the
// state machine
func (c *Conn) notifyState(state State, attempt int, err error) {
	select {
	case c.stateChange <- StateUpdate{State: state, Attempt: attempt, Err: err}:
	default:
		c.logf("state change dropped (channel full): %s", state)
	}
}

// reportError surfaces a terminal connection error
func (c *Conn) reportError(err error) {
	select {
	case c.errs <- err:
	default:
	}
}
