package lorae5

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=lorae5

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a
// LoRa-E5 modem.
//
// A Transport is assumed to be already connected and ready for use. The
// driver moves exactly one byte per Read or Write call. A call that moves
// zero bytes and returns no error means the byte is not available yet and
// will be retried. Typical implementations include serial ports and the
// in-memory TestTransport.
type Transport interface {
	io.ReadWriteCloser

	// Drain blocks until every byte written so far has been transmitted.
	Drain() error
}

// Dialer opens a Transport to a LoRa-E5 modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port or a test double) and is intended to be used during driver
// construction only. Once a Transport is obtained, the Dialer is no longer
// needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultBaudRate is the factory UART speed of the LoRa-E5.
const DefaultBaudRate = 9600

// DefaultSerialReadTimeout bounds a single serial read so that the driver
// regains control periodically to check its reply deadline.
const DefaultSerialReadTimeout = 50 * time.Millisecond

// SerialDialer opens a LoRa-E5 modem over a serial port using go.bug.st/serial.
type SerialDialer struct {
	// PortName is the OS name of the port, e.g. "/dev/ttyUSB0" or "COM3".
	PortName string
	// BaudRate is used when Mode is nil. Zero means DefaultBaudRate.
	BaudRate int
	// Mode overrides the 8N1 line settings derived from BaudRate.
	Mode *serial.Mode
	// ReadTimeout bounds a single read. Zero means DefaultSerialReadTimeout.
	ReadTimeout time.Duration
}

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("lorae5: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("lorae5: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", d.PortName, err)
	}

	timeout := d.ReadTimeout
	if timeout == 0 {
		timeout = DefaultSerialReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %q: %w", d.PortName, err)
	}

	return port, nil
}

// ListPorts returns the names of the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

var (
	_ Dialer    = SerialDialer{}
	_ Transport = serial.Port(nil)
)
