package testutil

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/FreePeak/smart-slides/internal/domain"
)

// ErrSendFailed is returned by a FakeConnection configured to fail.
var ErrSendFailed = errors.New("fake send failure")

var _ domain.Connection = (*FakeConnection)(nil)

// FakeConnection implements domain.Connection in memory.
type FakeConnection struct {
	id       string
	clientID string

	mu          sync.Mutex
	sent        [][]byte
	sendErr     error
	sendPanic   bool
	closeCode   int
	closeReason string
	closeCount  int
	sentCh      chan struct{}

	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewFakeConnection creates a FakeConnection.
func NewFakeConnection(id, clientID string) *FakeConnection {
	return &FakeConnection{
		id:       id,
		clientID: clientID,
		sentCh:   make(chan struct{}, 1024),
		inbox:    make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

// ID implements domain.Connection.
func (f *FakeConnection) ID() string { return f.id }

// ClientID implements domain.Connection.
func (f *FakeConnection) ClientID() string { return f.clientID }

// FailSends makes every following Send return err.
func (f *FakeConnection) FailSends(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

// PanicOnSend makes every following Send panic.
func (f *FakeConnection) PanicOnSend() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendPanic = true
}

// Send implements domain.Connection.
func (f *FakeConnection) Send(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendPanic {
		panic("fake send panic")
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.closeCount > 0 {
		return io.ErrClosedPipe
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	select {
	case f.sentCh <- struct{}{}:
	default:
	}
	return nil
}

// Receive implements domain.Connection.
func (f *FakeConnection) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-f.inbox:
		return data, nil
	case <-f.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements domain.Connection.
func (f *FakeConnection) Close(code int, reason string) error {
	f.mu.Lock()
	f.closeCount++
	if f.closeCount == 1 {
		f.closeCode = code
		f.closeReason = reason
	}
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

// Push queues an inbound frame for Receive.
func (f *FakeConnection) Push(data string) {
	f.inbox <- []byte(data)
}

// Disconnect simulates the remote side closing the channel.
func (f *FakeConnection) Disconnect() {
	f.closeOnce.Do(func() { close(f.done) })
}

// Sent returns the frames delivered so far as strings.
func (f *FakeConnection) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, b := range f.sent {
		out[i] = string(b)
	}
	return out
}

// Closed reports whether Close has been called, with the first code and reason.
func (f *FakeConnection) Closed() (bool, int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount > 0, f.closeCode, f.closeReason
}

// WaitForSent blocks until at least n frames have been delivered or timeout
// elapses, and reports whether the count was reached.
func (f *FakeConnection) WaitForSent(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		f.mu.Lock()
		count := len(f.sent)
		f.mu.Unlock()
		if count >= n {
			return true
		}
		select {
		case <-f.sentCh:
		case <-deadline:
			return false
		}
	}
}

// Done is closed once the connection is closed locally or remotely.
func (f *FakeConnection) Done() <-chan struct{} {
	return f.done
}

var _ domain.TextGenerator = (*FakeTextGenerator)(nil)

// FakeTextGenerator implements domain.TextGenerator with a canned answer.
type FakeTextGenerator struct {
	Response string
	Err      error

	mu      sync.Mutex
	calls   int
	prompts []string
	system  string
}

// Complete implements domain.TextGenerator.
func (f *FakeTextGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system = systemPrompt
	f.prompts = append(f.prompts, userPrompt)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Response, nil
}

// Calls returns how many times Complete ran.
func (f *FakeTextGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastPrompts returns the last system and user prompts received.
func (f *FakeTextGenerator) LastPrompts() (system, user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return f.system, ""
	}
	return f.system, f.prompts[len(f.prompts)-1]
}
