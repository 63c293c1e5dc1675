package at

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// Splitter tokenizes LoRa-E5 traffic into lines. It uses the signature of
// bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// Lines are terminated by a single LF. Carriage returns are dropped wherever
// they appear, matching how the driver accumulates replies.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, LF); i >= 0 {
		return i + 1, dropCR(data[0:i]), nil
	}

	if atEOF {
		return len(data), dropCR(data), nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

func dropCR(data []byte) []byte {
	if bytes.IndexByte(data, CR) < 0 {
		return data
	}
	return bytes.ReplaceAll(data, []byte{CR}, nil)
}

// ReplyPrefixFor returns the prefix the modem puts in front of the reply
// to the given command line: "+AT: " for the bare "AT", and "+<NAME>: "
// for "AT+<NAME>" with or without arguments. It returns "" for anything
// that is not an AT command.
func ReplyPrefixFor(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == CmdCheckAlive {
		return ReplyPrefix
	}
	name, ok := strings.CutPrefix(cmd, CmdCheckAlive+"+")
	if !ok || name == "" {
		return ""
	}
	if i := strings.IndexAny(name, "=?"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return ""
	}
	return "+" + name + ": "
}

// SplitReply separates a reply line into the name between '+' and ": " and
// the body that follows. "+ID: DevAddr, 42:00:12:34" yields "ID" and
// "DevAddr, 42:00:12:34".
func SplitReply(line string) (name, body string, ok bool) {
	rest, found := strings.CutPrefix(line, "+")
	if !found {
		return "", "", false
	}
	name, body, found = strings.Cut(rest, ": ")
	if !found || name == "" || strings.ContainsAny(name, " ,") {
		return "", "", false
	}
	return name, body, true
}

// ParseError extracts the numeric code from an "ERROR(<code>)" reply body.
func ParseError(body string) (int, bool) {
	inner, ok := strings.CutPrefix(strings.TrimSpace(body), ErrorOpen)
	if !ok {
		return 0, false
	}
	inner, ok = strings.CutSuffix(inner, ErrorClose)
	if !ok {
		return 0, false
	}
	code, err := strconv.Atoi(inner)
	if err != nil {
		return 0, false
	}
	return code, true
}

// Classify identifies the nature of a modem reply line
func Classify(line string) ResponseType {
	_, body, ok := SplitReply(line)
	if !ok {
		return TypeUnknown
	}
	if _, isErr := ParseError(body); isErr {
		return TypeError
	}
	return TypeReply
}
