package lorae5

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Driver is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Driver
	// that has not been successfully initialized.
	//
	// This can occur if the Dialer returned no transport or if the Driver was
	// not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Driver that has
	// already been closed, or when a command is sent after Close.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrBusy is returned when SendCommand is called while another command
	// cycle is still running on the same Driver.
	//
	// The Driver is not reentrant. Callers sharing a Driver between
	// goroutines must serialize access themselves.
	ErrBusy = errors.New("command already in flight")

	// ErrWrite is returned when the transport rejected a byte of the
	// outgoing command or failed to drain. It wraps the transport error.
	ErrWrite = errors.New("transport write failed")

	// ErrReceiveRead is returned when the transport failed while a reply
	// was being received. It wraps the transport error.
	ErrReceiveRead = errors.New("transport read failed")

	// ErrReplyTimeout is returned when no complete reply line arrived before
	// the reply deadline. It wraps the context error.
	ErrReplyTimeout = errors.New("reply timeout")

	// ErrLineTooLong is returned when the receive budget was exhausted
	// without seeing a line terminator.
	//
	// This typically indicates a baud rate mismatch, unexpected binary data,
	// or a framing error on the serial line.
	ErrLineTooLong = errors.New("reply line too long")

	// ErrCommandTooLong is returned when an encoded command does not fit
	// into the outgoing command buffer.
	ErrCommandTooLong = errors.New("command exceeds buffer capacity")

	// ErrPacketTooShort is returned when fewer bytes were received than the
	// shortest valid reply prefix.
	ErrPacketTooShort = errors.New("reply too short")

	// ErrWrongReplyType is returned when a reply does not start with the
	// prefix that belongs to the in-flight command.
	ErrWrongReplyType = errors.New("reply prefix does not match command")

	// ErrUnsolicitedReply is returned when a reply is decoded while no
	// command is in flight.
	//
	// This is an internal-consistency violation and never happens when
	// replies are obtained through SendCommand.
	ErrUnsolicitedReply = errors.New("unsolicited reply")

	// ErrUnimplementedCommand is returned when a command has no wire
	// encoding or no reply decoder.
	ErrUnimplementedCommand = errors.New("unimplemented command")

	// ErrPayloadTooLong is returned when a reply does not fit into a Result.
	ErrPayloadTooLong = errors.New("reply payload exceeds result capacity")

	// ErrInvalidText is returned when reply bytes are not printable UTF-8.
	ErrInvalidText = errors.New("reply is not printable text")

	// ErrInvalidState is returned when a command cycle attempts an illegal
	// state transition. It indicates a bug in the driver.
	ErrInvalidState = errors.New("invalid driver state transition")
)

// ModemError is a well-formed reply in which the modem reported a failure,
// such as "+AT: ERROR(-1)".
type ModemError struct {
	Prefix string // reply prefix, e.g. "+AT: "
	Code   int
}

// Error implements the error interface.
func (e *ModemError) Error() string {
	return fmt.Sprintf("modem replied %sERROR(%d)", e.Prefix, e.Code)
}

// IsTransportError reports whether err was caused by the serial line or the
// modem's reply to it, as opposed to a programming error.
func IsTransportError(err error) bool {
	var modemErr *ModemError
	return errors.Is(err, ErrWrite) ||
		errors.Is(err, ErrReceiveRead) ||
		errors.Is(err, ErrReplyTimeout) ||
		errors.Is(err, ErrLineTooLong) ||
		errors.Is(err, ErrPacketTooShort) ||
		errors.Is(err, ErrWrongReplyType) ||
		errors.Is(err, ErrPayloadTooLong) ||
		errors.Is(err, ErrInvalidText) ||
		errors.As(err, &modemErr)
}

// IsInternalError reports whether err signals misuse of the driver or a bug
// in it rather than a problem with the modem.
func IsInternalError(err error) bool {
	return errors.Is(err, ErrUnsolicitedReply) || errors.Is(err, ErrInvalidState)
}
