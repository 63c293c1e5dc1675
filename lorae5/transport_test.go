package lorae5

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.bug.st/serial"
)

func TestSerialDialer(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	var nilCtx context.Context

	tests := []struct {
		name    string
		dialer  SerialDialer
		ctx     context.Context
		wantErr string
		wantIs  error
	}{
		{
			name:    "nil context",
			dialer:  SerialDialer{PortName: "/dev/ttyUSB0"},
			ctx:     nilCtx,
			wantErr: "lorae5: context is nil",
		},
		{
			name:    "missing port name",
			dialer:  SerialDialer{},
			ctx:     context.Background(),
			wantErr: "lorae5: serial port name is required",
		},
		{
			name:   "canceled before open",
			dialer: SerialDialer{PortName: "/dev/lorae5-missing"},
			ctx:    canceled,
			wantIs: context.Canceled,
		},
		{
			name:    "missing port with derived mode",
			dialer:  SerialDialer{PortName: "/dev/lorae5-missing", BaudRate: 115200},
			ctx:     context.Background(),
			wantErr: `open serial port "/dev/lorae5-missing"`,
		},
		{
			name: "missing port with explicit mode",
			dialer: SerialDialer{
				PortName: "/dev/lorae5-missing",
				Mode: &serial.Mode{
					BaudRate: 9600,
					DataBits: 7,
					Parity:   serial.EvenParity,
					StopBits: serial.OneStopBit,
				},
			},
			ctx:     context.Background(),
			wantErr: `open serial port "/dev/lorae5-missing"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport, err := tt.dialer.Dial(tt.ctx)
			if err == nil {
				t.Fatal("expected dial to fail")
			}
			if transport != nil {
				t.Error("expected nil transport on failure")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("expected %v, got: %v", tt.wantIs, err)
			}
			if tt.wantErr != "" && !strings.HasPrefix(err.Error(), tt.wantErr) {
				t.Errorf("expected error starting with %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestTestTransport(t *testing.T) {
	transport := NewTestTransport().Reply("AT", "+AT: OK\r\n")

	buf := make([]byte, 1)
	if n, err := transport.Read(buf); n != 0 || err != nil {
		t.Errorf("expected empty read before any command, got %d, %v", n, err)
	}

	for _, c := range []byte("AT\r\n") {
		if _, err := transport.Write([]byte{c}); err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
	}

	var got []byte
	for {
		n, err := transport.Read(buf)
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "+AT: OK\r\n" {
		t.Errorf("expected scripted reply, got %q", got)
	}
	if cmds := transport.Commands(); len(cmds) != 1 || cmds[0] != "AT" {
		t.Errorf("expected command AT, got %q", cmds)
	}
	if transport.Writes() != 4 {
		t.Errorf("expected 4 writes, got %d", transport.Writes())
	}

	transport.SendData("noise")
	if err := transport.ResetInputBuffer(); err != nil {
		t.Fatalf("unexpected reset error: %v", err)
	}
	if n, _ := transport.Read(buf); n != 0 {
		t.Error("expected reset to discard queued bytes")
	}

	if err := transport.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if _, err := transport.Read(buf); err != io.EOF {
		t.Errorf("expected io.EOF after close, got: %v", err)
	}
	if _, err := transport.Write([]byte("AT\r\n")); err != io.ErrClosedPipe {
		t.Errorf("expected io.ErrClosedPipe after close, got: %v", err)
	}
}

func TestTestTransportDialer(t *testing.T) {
	transport := NewTestTransport()

	got, err := transport.Dialer().Dial(context.Background())
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	if got != transport {
		t.Error("expected the dialer to hand out the test transport")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := transport.Dialer().Dial(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}
