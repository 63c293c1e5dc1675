package lorae5

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"i4.energy/across/loragw/at"
)

// ResultCapacity is the maximum reply length a Result holds, in bytes.
const ResultCapacity = 100

// minReplyLength is the length of the shortest reply prefix, "+AT: ".
const minReplyLength = len(at.ReplyPrefix)

// Result holds the raw bytes of a reply line and the same bytes as text.
type Result struct {
	raw  [ResultCapacity]byte
	n    int
	text string
}

// NewResult copies payload into a Result. It fails with ErrPayloadTooLong
// if payload exceeds ResultCapacity and with ErrInvalidText if payload is
// not printable UTF-8.
func NewResult(payload []byte) (Result, error) {
	var r Result
	if len(payload) > ResultCapacity {
		return r, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLong, len(payload), ResultCapacity)
	}
	if !printable(payload) {
		return r, fmt.Errorf("%w: %q", ErrInvalidText, payload)
	}
	r.n = copy(r.raw[:], payload)
	r.text = string(payload)
	return r, nil
}

func printable(p []byte) bool {
	if !utf8.Valid(p) {
		return false
	}
	return bytes.IndexFunc(p, func(r rune) bool {
		return !unicode.IsPrint(r) && r != '\t'
	}) < 0
}

// Bytes returns the raw reply bytes.
func (r Result) Bytes() []byte { return bytes.Clone(r.raw[:r.n]) }

// Text returns the reply as text, e.g. "+AT: OK".
func (r Result) Text() string { return r.text }

// Body returns the reply text after its "+XX: " prefix.
func (r Result) Body() string {
	if _, body, ok := at.SplitReply(r.text); ok {
		return body
	}
	return r.text
}

func (r Result) String() string { return r.text }

// Reply is a decoded modem reply. Each Reply type corresponds to the
// Command that produced it.
type Reply interface {
	// Payload returns the decoded reply line.
	Payload() Result
	isReply()
}

// CheckAliveReply answers CheckAlive.
type CheckAliveReply struct{ Result }

// ReadIdentityReply answers ReadIdentity.
type ReadIdentityReply struct{ Result }

// SetDevEUIReply answers SetDevEUI.
type SetDevEUIReply struct{ Result }

// SetAppEUIReply answers SetAppEUI.
type SetAppEUIReply struct{ Result }

// SetAppKeyReply answers SetAppKey.
type SetAppKeyReply struct{ Result }

func (r CheckAliveReply) Payload() Result   { return r.Result }
func (r ReadIdentityReply) Payload() Result { return r.Result }
func (r SetDevEUIReply) Payload() Result    { return r.Result }
func (r SetAppEUIReply) Payload() Result    { return r.Result }
func (r SetAppKeyReply) Payload() Result    { return r.Result }

func (CheckAliveReply) isReply()   {}
func (ReadIdentityReply) isReply() {}
func (SetDevEUIReply) isReply()    {}
func (SetAppEUIReply) isReply()    {}
func (SetAppKeyReply) isReply()    {}

// Field returns the identifier name of an identity line, e.g. "DevAddr"
// for "+ID: DevAddr, 42:00:12:34".
func (r ReadIdentityReply) Field() string {
	field, _, _ := strings.Cut(r.Body(), ",")
	return strings.TrimSpace(field)
}

// Value returns the identifier value of an identity line, e.g.
// "42:00:12:34" for "+ID: DevAddr, 42:00:12:34".
func (r ReadIdentityReply) Value() string {
	_, value, _ := strings.Cut(r.Body(), ",")
	return strings.TrimSpace(value)
}

// Decode interprets raw as the reply to cmd. The reply type is chosen from
// cmd alone; raw must start with the reply prefix that belongs to cmd.
//
// A reply whose body is "ERROR(<code>)" is returned as a *ModemError.
func Decode(raw []byte, cmd Command) (Reply, error) {
	if cmd == nil {
		return nil, ErrUnsolicitedReply
	}
	if len(raw) < minReplyLength {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrPacketTooShort, len(raw), minReplyLength)
	}

	var wrap func(Result) Reply
	switch cmd.(type) {
	case CheckAlive:
		wrap = func(r Result) Reply { return CheckAliveReply{r} }
	case ReadIdentity:
		wrap = func(r Result) Reply { return ReadIdentityReply{r} }
	case SetDevEUI:
		wrap = func(r Result) Reply { return SetDevEUIReply{r} }
	case SetAppEUI:
		wrap = func(r Result) Reply { return SetAppEUIReply{r} }
	case SetAppKey:
		wrap = func(r Result) Reply { return SetAppKeyReply{r} }
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnimplementedCommand, cmd)
	}

	line := string(raw)
	prefix := at.ReplyPrefixFor(cmd.String())
	kind := at.Classify(line)
	if kind == at.TypeUnknown || !strings.HasPrefix(line, prefix) {
		return nil, fmt.Errorf("%w: want %q, got %q (%s)", ErrWrongReplyType, prefix, truncate(raw, len(prefix)), kind)
	}
	if kind == at.TypeError {
		_, body, _ := at.SplitReply(line)
		code, _ := at.ParseError(body)
		return nil, &ModemError{Prefix: prefix, Code: code}
	}

	result, err := NewResult(raw)
	if err != nil {
		return nil, err
	}
	return wrap(result), nil
}

func truncate(p []byte, n int) []byte {
	if len(p) > n {
		return p[:n]
	}
	return p
}
