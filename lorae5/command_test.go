package lorae5_test

import (
	"bytes"
	"errors"
	"testing"

	"i4.energy/across/loragw/lorae5"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		cmd  lorae5.Command
		want string
	}{
		{
			name: "CheckAlive",
			cmd:  lorae5.CheckAlive{},
			want: "AT\n",
		},
		{
			name: "ReadIdentity",
			cmd:  lorae5.ReadIdentity{},
			want: "AT+ID\n",
		},
		{
			name: "SetDevEUI",
			cmd:  lorae5.SetDevEUI{EUI: [8]byte{0x2C, 0xF7, 0xF1, 0x20, 0x24, 0x90, 0x03, 0x63}},
			want: "AT+ID=DevEui, \"2CF7F12024900363\"\n",
		},
		{
			name: "SetAppEUI",
			cmd:  lorae5.SetAppEUI{EUI: [8]byte{0x80, 0, 0, 0, 0, 0, 0, 0x06}},
			want: "AT+ID=AppEui, \"8000000000000006\"\n",
		},
		{
			name: "SetAppKey",
			cmd: lorae5.SetAppKey{Key: [16]byte{
				0x2B, 0x7E, 0x15, 0x16, 0x28, 0xAE, 0xD2, 0xA6,
				0xAB, 0xF7, 0x15, 0x88, 0x09, 0xCF, 0x4F, 0x3C,
			}},
			want: "AT+KEY=APPKEY, \"2B7E151628AED2A6ABF7158809CF4F3C\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := lorae5.Encode(tt.cmd, &buf); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeNilCommand(t *testing.T) {
	var buf bytes.Buffer
	err := lorae5.Encode(nil, &buf)
	if !errors.Is(err, lorae5.ErrUnimplementedCommand) {
		t.Errorf("expected ErrUnimplementedCommand, got: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing written, got %q", buf.String())
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestEncodeWriterError(t *testing.T) {
	writeErr := errors.New("full")
	if err := lorae5.Encode(lorae5.CheckAlive{}, failingWriter{writeErr}); !errors.Is(err, writeErr) {
		t.Errorf("expected writer error, got: %v", err)
	}
}
