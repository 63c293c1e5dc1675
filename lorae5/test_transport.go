package lorae5

import (
	"context"
	"io"
	"sync"

	"i4.energy/across/loragw/at"
)

// TestTransport is a test helper that simulates a LoRa-E5 on the far end of
// the serial line. Written bytes are split into command lines; every
// complete command queues the reply scripted for it. Reads hand out queued
// bytes and return 0, nil when nothing is queued, like a serial port whose
// read timeout expired.
type TestTransport struct {
	mu       sync.Mutex
	replies  map[string]string
	pending  []byte
	commands []string
	written  []byte
	writes   int
	rx       []byte
	drains   int
	resets   int
	closed   bool

	writeErr error
	readErr  error
	drainErr error
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		replies: make(map[string]string),
	}
}

// Reply scripts the bytes returned after the command line cmd is written.
// The reply is sent verbatim, so it should carry its own "\r\n".
func (t *TestTransport) Reply(cmd, reply string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[cmd] = reply
	return t
}

// SendData queues data to be read by the transport.
// This simulates the modem sending bytes nobody asked for.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.rx = append(t.rx, data...)
	}
}

// FailWrites makes every following Write return err.
func (t *TestTransport) FailWrites(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// FailReads makes every following Read return err.
func (t *TestTransport) FailReads(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readErr = err
}

// FailDrain makes every following Drain return err.
func (t *TestTransport) FailDrain(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drainErr = err
}

// Commands returns the command lines received so far.
func (t *TestTransport) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.commands...)
}

// Written returns every byte received so far.
func (t *TestTransport) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.written...)
}

// Writes returns the number of successful Write calls.
func (t *TestTransport) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}

// Drains returns the number of Drain calls.
func (t *TestTransport) Drains() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drains
}

// Resets returns the number of ResetInputBuffer calls.
func (t *TestTransport) Resets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resets
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	if t.writeErr != nil {
		return 0, t.writeErr
	}

	t.writes++
	t.written = append(t.written, p...)
	t.pending = append(t.pending, p...)

	for {
		advance, token, _ := at.Splitter(t.pending, false)
		if advance == 0 {
			break
		}
		t.pending = t.pending[advance:]

		cmd := string(token)
		t.commands = append(t.commands, cmd)
		if reply, ok := t.replies[cmd]; ok {
			t.rx = append(t.rx, reply...)
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return 0, t.readErr
	}
	if len(t.rx) == 0 {
		if t.closed {
			return 0, io.EOF
		}
		return 0, nil
	}
	n = copy(p, t.rx)
	t.rx = t.rx[n:]
	return n, nil
}

func (t *TestTransport) Drain() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drains++
	return t.drainErr
}

// ResetInputBuffer discards queued bytes that have not been read.
func (t *TestTransport) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resets++
	t.rx = nil
	return nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Dialer returns a Dialer that hands out t.
func (t *TestTransport) Dialer() Dialer {
	return testDialer{t}
}

type testDialer struct {
	t *TestTransport
}

func (d testDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.t, nil
}

var (
	_ Transport     = (*TestTransport)(nil)
	_ inputResetter = (*TestTransport)(nil)
)
