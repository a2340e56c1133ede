package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

// MockConnection is a test implementation of ConnectionInterface
type MockConnection struct {
	mu sync.RWMutex

	// State
	connected  bool
	state      State
	connectErr error
	sendErr    error

	// Channels for communication
	incoming    chan []byte
	errors      chan error
	stateChange chan StateUpdate

	// Sent payloads for verification
	SentPayloads [][]byte
}

// NewMockConnection creates a new mock connection
func NewMockConnection() *MockConnection {
	return &MockConnection{
		state:        StateInitial,
		incoming:     make(chan []byte, 100),
		errors:       make(chan error, 10),
		stateChange:  make(chan StateUpdate, 10),
		SentPayloads: make([][]byte, 0),
	}
}

// Connect simulates connecting to the server
func (m *MockConnection) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectErr != nil {
		return m.connectErr
	}

	m.connected = true
	m.state = StateConnected
	return nil
}

// Disconnect simulates a permanent disconnect
func (m *MockConnection) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.state = StateDisconnected
}

// IsConnected returns the connection status
func (m *MockConnection) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// State returns the current lifecycle state
func (m *MockConnection) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// PendingCount returns 0 for mock
func (m *MockConnection) PendingCount() int {
	return 0
}

// Send records the payload for verification
func (m *MockConnection) Send(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.SentPayloads = append(m.SentPayloads, payload)
	return nil
}

// Incoming returns the incoming payload channel
func (m *MockConnection) Incoming() <-chan []byte {
	return m.incoming
}

// Errors returns the error channel
func (m *MockConnection) Errors() <-chan error {
	return m.errors
}

// StateChanges returns the state change channel
func (m *MockConnection) StateChanges() <-chan StateUpdate {
	return m.stateChange
}

// Test helpers

// SetConnectError sets an error to return from Connect()
func (m *MockConnection) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetSendError sets an error to return from Send()
func (m *MockConnection) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SimulateIncoming delivers a raw payload to the incoming channel
func (m *MockConnection) SimulateIncoming(data []byte) {
	m.incoming <- data
}

// SimulateIncomingFrame encodes a message frame and delivers it
func (m *MockConnection) SimulateIncomingFrame(msg protocol.Message) error {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return err
	}
	m.incoming <- data
	return nil
}

// SimulateError delivers an error to the errors channel
func (m *MockConnection) SimulateError(err error) {
	m.errors <- err
}

// SimulateStateChange delivers a state update
func (m *MockConnection) SimulateStateChange(update StateUpdate) {
	m.mu.Lock()
	m.state = update.State
	m.connected = update.State == StateConnected
	m.mu.Unlock()
	m.stateChange <- update
}

// SentCount returns the number of payloads sent
func (m *MockConnection) SentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentPayloads)
}

// LastSent returns the last payload sent, or an error if none
func (m *MockConnection) LastSent() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.SentPayloads) == 0 {
		return nil, fmt.Errorf("no payloads sent")
	}
	return m.SentPayloads[len(m.SentPayloads)-1], nil
}

// ClearSent clears the recorded payloads
func (m *MockConnection) ClearSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentPayloads = make([][]byte, 0)
}

// MockTransport is a scriptable Transport for lifecycle tests
type MockTransport struct {
	mu sync.Mutex

	openErr  error
	sendErrs []error
	open     bool

	incoming   chan []byte
	closed     chan error
	closedOnce sync.Once

	Sent [][]byte

	// OpenDelay gates Open until released when non-nil
	OpenGate chan struct{}
}

// NewMockTransport creates a transport that opens successfully
func NewMockTransport() *MockTransport {
	return &MockTransport{
		incoming: make(chan []byte, 100),
		closed:   make(chan error, 1),
		Sent:     make([][]byte, 0),
	}
}

// FailingTransportFactory returns a factory whose transports always
// fail to open with the given error
func FailingTransportFactory(err error) TransportFactory {
	return func() Transport {
		t := NewMockTransport()
		t.SetOpenError(err)
		return t
	}
}

// SetOpenError makes Open fail
func (t *MockTransport) SetOpenError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openErr = err
}

// QueueSendError makes the next Send calls fail in order
func (t *MockTransport) QueueSendError(errs ...error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErrs = append(t.sendErrs, errs...)
}

func (t *MockTransport) Open(ctx context.Context) error {
	if t.OpenGate != nil {
		select {
		case <-t.OpenGate:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrConnectTimeout, ctx.Err())
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openErr != nil {
		return t.openErr
	}
	t.open = true
	return nil
}

func (t *MockTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.sendErrs) > 0 {
		err := t.sendErrs[0]
		t.sendErrs = t.sendErrs[1:]
		if err != nil {
			return err
		}
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	t.Sent = append(t.Sent, buf)
	return nil
}

func (t *MockTransport) Close(code int, reason string) error {
	t.mu.Lock()
	t.open = false
	t.mu.Unlock()
	t.signalClosed(nil)
	return nil
}

func (t *MockTransport) Incoming() <-chan []byte {
	return t.incoming
}

func (t *MockTransport) Closed() <-chan error {
	return t.closed
}

func (t *MockTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// SimulateIncoming delivers a raw frame
func (t *MockTransport) SimulateIncoming(data []byte) {
	t.incoming <- data
}

// SimulateClose ends the session with the given error, nil meaning a
// clean server-side closure
func (t *MockTransport) SimulateClose(err error) {
	t.mu.Lock()
	t.open = false
	t.mu.Unlock()
	close(t.incoming)
	t.signalClosed(err)
}

func (t *MockTransport) signalClosed(err error) {
	t.closedOnce.Do(func() {
		t.closed <- err
	})
}

// SentFrames returns a snapshot of everything sent
func (t *MockTransport) SentFrames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.Sent))
	copy(out, t.Sent)
	return out
}

// MockHistoryFetcher serves canned pages for window tests
type MockHistoryFetcher struct {
	mu sync.Mutex

	// Pages maps channelID to the channel's full oldest-first history
	Pages map[string][]protocol.Message

	PageSize int
	Err      error

	// FetchGate, when non-nil, blocks fetches until released
	FetchGate chan struct{}

	FetchCalls int
}

// NewMockHistoryFetcher creates a fetcher with the default page size
func NewMockHistoryFetcher() *MockHistoryFetcher {
	return &MockHistoryFetcher{
		Pages:    make(map[string][]protocol.Message),
		PageSize: DefaultPageSize,
	}
}

// SetHistory installs a channel's full oldest-first message history
func (f *MockHistoryFetcher) SetHistory(channelID string, msgs []protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pages[channelID] = msgs
}

func (f *MockHistoryFetcher) FetchLatest(ctx context.Context, channelID string) (HistoryPage, error) {
	f.mu.Lock()
	all := f.Pages[channelID]
	f.mu.Unlock()

	total := len(all)
	page := (total - 1) / f.PageSize
	if total == 0 {
		page = 0
	}
	return f.FetchPage(ctx, channelID, page)
}

func (f *MockHistoryFetcher) FetchPage(ctx context.Context, channelID string, page int) (HistoryPage, error) {
	if f.FetchGate != nil {
		select {
		case <-f.FetchGate:
		case <-ctx.Done():
			return HistoryPage{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.FetchCalls++
	if f.Err != nil {
		return HistoryPage{}, f.Err
	}

	all := f.Pages[channelID]
	start := page * f.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + f.PageSize
	if end > len(all) {
		end = len(all)
	}

	msgs := make([]protocol.Message, end-start)
	copy(msgs, all[start:end])
	return HistoryPage{Messages: msgs, TotalMessages: len(all)}, nil
}

// MockProber is a HealthProber returning a fixed answer
type MockProber struct {
	Healthy bool
	Calls   int
	mu      sync.Mutex
}

func (p *MockProber) Probe(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	return p.Healthy
}
