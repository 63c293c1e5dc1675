package lorae5

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"i4.energy/across/loragw/at"
)

// State is the phase of a command cycle.
type State int

const (
	StateIdle State = iota
	StateEncoding
	StateTransmitting
	StateReceiving
	StateDecoding
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEncoding:
		return "encoding"
	case StateTransmitting:
		return "transmitting"
	case StateReceiving:
		return "receiving"
	case StateDecoding:
		return "decoding"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// canEnter reports whether a cycle may move from s to next. Each phase is
// entered only from its predecessor; a new cycle starts from Idle or from
// the Failed state of the previous one.
func (s State) canEnter(next State) bool {
	switch next {
	case StateEncoding:
		return s == StateIdle || s == StateFailed
	case StateTransmitting:
		return s == StateEncoding
	case StateReceiving:
		return s == StateTransmitting
	case StateDecoding:
		return s == StateReceiving
	case StateIdle:
		return s == StateDecoding
	case StateFailed:
		return s != StateIdle && s != StateFailed
	default:
		return false
	}
}

// inputResetter is implemented by transports that can discard bytes
// received but not yet read. serial.Port implements it.
type inputResetter interface {
	ResetInputBuffer() error
}

// Driver talks to a single LoRa-E5 modem. It owns the transport, the
// command and reply buffers, and the in-flight command slot.
//
// A Driver runs one command cycle at a time. It is not safe for concurrent
// use: overlapping SendCommand calls fail with ErrBusy, and callers sharing
// a Driver between goroutines must serialize access.
type Driver struct {
	// transport provides the physical connection to the modem
	transport Transport
	config    Config
	logger    *slog.Logger
	closed    bool
	busy      atomic.Bool
	state     atomic.Int32

	// out holds the encoded command of the current cycle
	out *fixedBuffer
	// in accumulates the reply line of the current cycle
	in *fixedBuffer
	// inflight is the command the current reply belongs to
	inflight Command
	// scratch is the single-byte transfer buffer
	scratch [1]byte
}

// New creates a Driver with the given configuration. It dials the
// transport and, unless config.SkipProbe is set, checks that the modem
// answers AT with OK.
//
// Returns an error if the transport connection or the probe fails.
func New(ctx context.Context, config Config) (*Driver, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	d := newDriver(transport, config)

	if !config.SkipProbe {
		initCtx, cancel := context.WithTimeout(ctx, config.InitTimeout)
		defer cancel()

		if err := d.probe(initCtx); err != nil {
			transport.Close()
			return nil, fmt.Errorf("initialize modem: %w", err)
		}
	}

	return d, nil
}

func newDriver(transport Transport, config Config) *Driver {
	d := &Driver{
		transport: transport,
		config:    config,
		logger:    config.Logger,
		out:       newFixedBuffer(CommandBufferSize, ErrCommandTooLong),
		in:        newFixedBuffer(ReplyBufferSize, ErrLineTooLong),
	}
	d.state.Store(int32(StateIdle))
	return d
}

// State returns the phase the last command cycle ended in, or the current
// phase while a cycle runs. It is safe to call from any goroutine.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// SendCommand transmits cmd to the modem and blocks until the reply line
// has been received and decoded, or an error occurs.
//
// If ctx has no deadline, Config.ReplyTimeout bounds the whole cycle.
// Transport failures are reported as ErrWrite or ErrReceiveRead wrapping
// the transport error; a missing reply as ErrReplyTimeout. Nothing is
// retried.
func (d *Driver) SendCommand(ctx context.Context, cmd Command) (Reply, error) {
	if d.closed {
		return nil, ErrAlreadyClosed
	}
	if d.transport == nil {
		return nil, ErrNotInitialized
	}
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer d.busy.Store(false)

	// The earlier of the caller's deadline and ReplyTimeout ends the cycle.
	if d.config.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ReplyTimeout)
		defer cancel()
	}

	reply, err := d.cycle(ctx, cmd)
	if err != nil {
		d.state.Store(int32(StateFailed))
		d.reset()
		d.logger.Debug("command failed", "command", commandName(cmd), "error", err)
		return nil, err
	}
	return reply, nil
}

// Close closes the transport. After calling Close the Driver cannot be
// reused.
func (d *Driver) Close() error {
	if d.closed {
		return ErrAlreadyClosed
	}

	d.closed = true

	if d.transport != nil {
		return d.transport.Close()
	}
	return nil
}

func (d *Driver) cycle(ctx context.Context, cmd Command) (Reply, error) {
	if err := d.enter(StateEncoding); err != nil {
		return nil, err
	}
	d.reset()
	if err := d.discardInput(); err != nil {
		return nil, err
	}
	if err := d.prepare(cmd); err != nil {
		return nil, err
	}

	if err := d.enter(StateTransmitting); err != nil {
		return nil, err
	}
	if err := d.transmit(ctx); err != nil {
		return nil, err
	}

	if err := d.enter(StateReceiving); err != nil {
		return nil, err
	}
	if err := d.receive(ctx); err != nil {
		return nil, err
	}

	if err := d.enter(StateDecoding); err != nil {
		return nil, err
	}
	reply, err := d.parseReply()
	if err != nil {
		return nil, err
	}

	if err := d.enter(StateIdle); err != nil {
		return nil, err
	}
	return reply, nil
}

func (d *Driver) enter(next State) error {
	current := d.State()
	if !current.canEnter(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, current, next)
	}
	d.state.Store(int32(next))
	return nil
}

// reset empties both buffers so nothing from an earlier cycle survives.
func (d *Driver) reset() {
	d.out.Reset()
	d.in.Reset()
}

// discardInput drops bytes the modem sent after the previous reply line,
// such as the remaining lines of a multi-line AT+ID answer.
func (d *Driver) discardInput() error {
	r, ok := d.transport.(inputResetter)
	if !ok {
		return nil
	}
	if err := r.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w: discard stale input: %w", ErrReceiveRead, err)
	}
	return nil
}

// prepare encodes cmd into the command buffer and records it as in flight.
func (d *Driver) prepare(cmd Command) error {
	if err := Encode(cmd, d.out); err != nil {
		return err
	}
	d.inflight = cmd
	return nil
}

func (d *Driver) transmit(ctx context.Context) error {
	data := d.out.Bytes()
	d.logger.Debug("tx", "data", string(data))

	for i := range data {
		if err := d.writeByte(ctx, data[i:i+1]); err != nil {
			return err
		}
	}

	if err := d.transport.Drain(); err != nil {
		return fmt.Errorf("%w: drain: %w", ErrWrite, err)
	}
	return nil
}

func (d *Driver) writeByte(ctx context.Context, b []byte) error {
	for {
		n, err := d.transport.Write(b)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		if n == len(b) {
			return nil
		}
		if err := d.wait(ctx); err != nil {
			return err
		}
	}
}

// receive reads the reply line into the reply buffer. Carriage returns are
// dropped, a line feed ends the line and is not stored.
func (d *Driver) receive(ctx context.Context) error {
	for range d.config.ReplyBudget {
		b, err := d.readByte(ctx)
		if err != nil {
			return err
		}

		switch b {
		case at.CR:
			continue
		case at.LF:
			d.logger.Debug("rx", "data", string(d.in.Bytes()))
			return nil
		}

		if err := d.in.WriteByte(b); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: no terminator within %d bytes", ErrLineTooLong, d.config.ReplyBudget)
}

func (d *Driver) readByte(ctx context.Context) (byte, error) {
	for {
		n, err := d.transport.Read(d.scratch[:])
		if n == 1 {
			return d.scratch[0], nil
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrReceiveRead, err)
		}
		if err := d.wait(ctx); err != nil {
			return 0, err
		}
	}
}

// wait pauses before retrying a transport that had nothing to move.
func (d *Driver) wait(ctx context.Context) error {
	timer := time.NewTimer(d.config.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrReplyTimeout, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// parseReply decodes the reply buffer against the in-flight command.
func (d *Driver) parseReply() (Reply, error) {
	return Decode(d.in.Bytes(), d.inflight)
}

// probe checks that the modem answers AT with OK.
func (d *Driver) probe(ctx context.Context) error {
	reply, err := d.SendCommand(ctx, CheckAlive{})
	if err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}
	if body := reply.Payload().Body(); body != at.OK {
		return fmt.Errorf("unexpected reply to %s: %q", at.CmdCheckAlive, reply.Payload().Text())
	}
	return nil
}

func commandName(cmd Command) string {
	if cmd == nil {
		return "<nil>"
	}
	return cmd.String()
}
