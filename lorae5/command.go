package lorae5

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"i4.energy/across/loragw/at"
)

// Command is a request the LoRa-E5 accepts. The set of commands is closed:
// only the types declared in this package implement it.
//
// Reference: https://wiki.seeedstudio.com/LoRa-E5_STM32WLE5JC_Module/#12-basic-at-commands
type Command interface {
	// String returns the command line without terminator, e.g. "AT+ID".
	String() string
	isCommand()
}

// CheckAlive asks the modem to confirm it is responsive ("AT").
type CheckAlive struct{}

// ReadIdentity queries the device identifiers ("AT+ID").
type ReadIdentity struct{}

// SetDevEUI provisions the 8-byte device EUI.
type SetDevEUI struct {
	EUI [8]byte
}

// SetAppEUI provisions the 8-byte application (join) EUI.
type SetAppEUI struct {
	EUI [8]byte
}

// SetAppKey provisions the 16-byte AES-128 application key.
type SetAppKey struct {
	Key [16]byte
}

func (CheckAlive) isCommand()   {}
func (ReadIdentity) isCommand() {}
func (SetDevEUI) isCommand()    {}
func (SetAppEUI) isCommand()    {}
func (SetAppKey) isCommand()    {}

func (CheckAlive) String() string   { return at.CmdCheckAlive }
func (ReadIdentity) String() string { return at.CmdID }

func (c SetDevEUI) String() string {
	return assignment(at.CmdID, at.IDDevEui, c.EUI[:])
}

func (c SetAppEUI) String() string {
	return assignment(at.CmdID, at.IDAppEui, c.EUI[:])
}

func (c SetAppKey) String() string {
	return assignment(at.CmdKey, at.KeyAppKey, c.Key[:])
}

// assignment renders `AT+X=Name, "HEX"`, the form the modem expects for
// identifiers and keys.
func assignment(cmd, name string, value []byte) string {
	return fmt.Sprintf(`%s=%s, "%s"`, cmd, name, strings.ToUpper(hex.EncodeToString(value)))
}

// Encode writes the wire form of cmd, including the line terminator, to w.
//
// Encode returns ErrUnimplementedCommand for a Command value that has no
// wire mapping. Errors from w are returned as is.
func Encode(cmd Command, w io.Writer) error {
	switch cmd.(type) {
	case CheckAlive, ReadIdentity, SetDevEUI, SetAppEUI, SetAppKey:
	case nil:
		return fmt.Errorf("%w: nil command", ErrUnimplementedCommand)
	default:
		return fmt.Errorf("%w: %T", ErrUnimplementedCommand, cmd)
	}

	if _, err := io.WriteString(w, cmd.String()); err != nil {
		return err
	}
	_, err := io.WriteString(w, at.Terminator)
	return err
}
