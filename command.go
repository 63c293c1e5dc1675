package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"i4.energy/across/loragw/lorae5"
)

// Command names accepted by the HTTP API and the MQTT request topic.
const (
	NameCheckAlive = "check-alive"
	NameReadID     = "read-id"
	NameSetDevEUI  = "set-deveui"
	NameSetAppEUI  = "set-appeui"
	NameSetAppKey  = "set-appkey"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Request is a command request as received over HTTP or MQTT.
type Request struct {
	Command string `json:"command"`
	// Arg is the hex value for set-* commands. Colons, dashes and spaces
	// between digits are ignored, so "2C:F7:F1:20:24:90:03:63" is accepted.
	Arg string `json:"arg,omitempty"`
}

// ParseCommand maps a command name and argument to a driver command.
func ParseCommand(name, arg string) (lorae5.Command, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameCheckAlive:
		return lorae5.CheckAlive{}, nil
	case NameReadID:
		return lorae5.ReadIdentity{}, nil
	case NameSetDevEUI:
		var c lorae5.SetDevEUI
		if err := decodeHex(arg, c.EUI[:]); err != nil {
			return nil, err
		}
		return c, nil
	case NameSetAppEUI:
		var c lorae5.SetAppEUI
		if err := decodeHex(arg, c.EUI[:]); err != nil {
			return nil, err
		}
		return c, nil
	case NameSetAppKey:
		var c lorae5.SetAppKey
		if err := decodeHex(arg, c.Key[:]); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

// CommandName returns the API name of cmd.
func CommandName(cmd lorae5.Command) string {
	switch cmd.(type) {
	case lorae5.CheckAlive:
		return NameCheckAlive
	case lorae5.ReadIdentity:
		return NameReadID
	case lorae5.SetDevEUI:
		return NameSetDevEUI
	case lorae5.SetAppEUI:
		return NameSetAppEUI
	case lorae5.SetAppKey:
		return NameSetAppKey
	default:
		return "unknown"
	}
}

// decodeHex fills dst from the hex digits in s, which must encode exactly
// len(dst) bytes.
func decodeHex(s string, dst []byte) error {
	digits := strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', ' ':
			return -1
		}
		return r
	}, s)

	if len(digits) != 2*len(dst) {
		return fmt.Errorf("%w: want %d hex digits, got %d", ErrInvalidArgument, 2*len(dst), len(digits))
	}
	if _, err := hex.Decode(dst, []byte(digits)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}
