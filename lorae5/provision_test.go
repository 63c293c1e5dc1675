package lorae5_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"i4.energy/across/loragw/lorae5"
)

func TestProvision(t *testing.T) {
	devEUI := [8]byte{0x2C, 0xF7, 0xF1, 0x20, 0x24, 0x90, 0x03, 0x63}
	appEUI := [8]byte{0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x06}
	appKey := [16]byte{
		0x2B, 0x7E, 0x15, 0x16, 0x28, 0xAE, 0xD2, 0xA6,
		0xAB, 0xF7, 0x15, 0x88, 0x09, 0xCF, 0x4F, 0x3C,
	}

	const (
		setDevEUI = `AT+ID=DevEui, "2CF7F12024900363"`
		setAppEUI = `AT+ID=AppEui, "8000000000000006"`
		setAppKey = `AT+KEY=APPKEY, "2B7E151628AED2A6ABF7158809CF4F3C"`
	)

	t.Run("Success", func(t *testing.T) {
		transport := lorae5.NewTestTransport().
			Reply(setDevEUI, "+ID: DevEui, 2C:F7:F1:20:24:90:03:63\r\n").
			Reply(setAppEUI, "+ID: AppEui, 80:00:00:00:00:00:00:06\r\n").
			Reply(setAppKey, "+KEY: APPKEY 2B7E151628AED2A6ABF7158809CF4F3C\r\n")
		d := newTestDriver(t, transport)

		err := d.Provision(context.Background(), lorae5.Identity{
			DevEUI: &devEUI,
			AppEUI: &appEUI,
			AppKey: &appKey,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{setDevEUI, setAppEUI, setAppKey}
		if got := transport.Commands(); !slices.Equal(got, want) {
			t.Errorf("expected commands %q, got %q", want, got)
		}
	})

	t.Run("Only set fields are written", func(t *testing.T) {
		transport := lorae5.NewTestTransport().
			Reply(setAppKey, "+KEY: APPKEY 2B7E151628AED2A6ABF7158809CF4F3C\r\n")
		d := newTestDriver(t, transport)

		if err := d.Provision(context.Background(), lorae5.Identity{AppKey: &appKey}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := transport.Commands(); !slices.Equal(got, []string{setAppKey}) {
			t.Errorf("expected only the key command, got %q", got)
		}
	})

	t.Run("Empty identity sends nothing", func(t *testing.T) {
		transport := lorae5.NewTestTransport()
		d := newTestDriver(t, transport)

		if err := d.Provision(context.Background(), lorae5.Identity{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if transport.Writes() != 0 {
			t.Errorf("expected no writes, got %q", transport.Written())
		}
	})

	t.Run("Stops at first modem error", func(t *testing.T) {
		transport := lorae5.NewTestTransport().
			Reply(setDevEUI, "+ID: DevEui, 2C:F7:F1:20:24:90:03:63\r\n").
			Reply(setAppEUI, "+ID: ERROR(-1)\r\n")
		d := newTestDriver(t, transport)

		err := d.Provision(context.Background(), lorae5.Identity{
			DevEUI: &devEUI,
			AppEUI: &appEUI,
			AppKey: &appKey,
		})

		var modemErr *lorae5.ModemError
		if !errors.As(err, &modemErr) {
			t.Fatalf("expected ModemError, got: %v", err)
		}
		if !strings.Contains(err.Error(), "set AppEui") {
			t.Errorf("expected failing step in error, got: %v", err)
		}
		if got := transport.Commands(); !slices.Equal(got, []string{setDevEUI, setAppEUI}) {
			t.Errorf("expected provisioning to stop after AppEui, got %q", got)
		}
	})
}

func TestIdentify(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		transport := lorae5.NewTestTransport().
			Reply("AT+ID", "+ID: DevAddr, 42:00:12:34\r\n+ID: DevEui, 2C:F7:F1:20:24:90:03:63\r\n")
		d := newTestDriver(t, transport)

		id, err := d.Identify(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id.Field() != "DevAddr" {
			t.Errorf("expected field DevAddr, got %q", id.Field())
		}
		if id.Value() != "42:00:12:34" {
			t.Errorf("expected value 42:00:12:34, got %q", id.Value())
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		transport := lorae5.NewTestTransport()
		d := newTestDriver(t, transport)

		if _, err := d.Identify(context.Background()); !errors.Is(err, lorae5.ErrReplyTimeout) {
			t.Errorf("expected ErrReplyTimeout, got: %v", err)
		}
	})
}
