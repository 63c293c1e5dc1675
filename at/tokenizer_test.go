package at_test

import (
	"bufio"
	"strings"
	"testing"

	"i4.energy/across/loragw/at"
)

func TestSplitter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Check alive reply",
			input:    "+AT: OK\r\n",
			expected: []string{"+AT: OK"},
		},
		{
			name:     "Identity reply lines",
			input:    "+ID: DevAddr, 42:00:12:34\r\n+ID: DevEui, 2C:F7:F1:20:32:30:4B:1A\r\n+ID: AppEui, 80:00:00:00:00:00:00:06\r\n",
			expected: []string{"+ID: DevAddr, 42:00:12:34", "+ID: DevEui, 2C:F7:F1:20:32:30:4B:1A", "+ID: AppEui, 80:00:00:00:00:00:00:06"},
		},
		{
			name:     "Commands terminated by LF only",
			input:    "AT\nAT+ID\n",
			expected: []string{"AT", "AT+ID"},
		},
		{
			name:     "Carriage return inside a line",
			input:    "+AT:\r OK\n",
			expected: []string{"+AT: OK"},
		},
		{
			name:     "Empty lines handling",
			input:    "\r\n\n+AT: OK\r\n",
			expected: []string{"", "", "+AT: OK"},
		},
		{
			name:     "Error reply",
			input:    "+AT: ERROR(-1)\r\n",
			expected: []string{"+AT: ERROR(-1)"},
		},
		// EOF scenarios - testing atEOF functionality
		{
			name:     "Reply without terminator at EOF",
			input:    "+AT: OK\r",
			expected: []string{"+AT: OK"},
		},
		{
			name:     "Reply cut off mid-stream at EOF",
			input:    "+AT: OK\r\n+ID: Dev",
			expected: []string{"+AT: OK", "+ID: Dev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokens []string
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(at.Splitter)

			for scanner.Scan() {
				tokens = append(tokens, scanner.Text())
			}

			if err := scanner.Err(); err != nil {
				t.Fatalf("Scanner error: %v", err)
			}

			if len(tokens) != len(tt.expected) {
				t.Fatalf("Expected %d tokens, got %d.\nExpected: %q\nGot: %q",
					len(tt.expected), len(tokens), tt.expected, tokens)
			}

			for i, expected := range tt.expected {
				if tokens[i] != expected {
					t.Errorf("Token %d: expected %q, got %q", i, expected, tokens[i])
				}
			}
		})
	}
}

func TestReplyPrefixFor(t *testing.T) {
	tests := []struct {
		cmd      string
		expected string
	}{
		{cmd: "AT", expected: "+AT: "},
		{cmd: "AT+ID", expected: "+ID: "},
		{cmd: `AT+ID=DevEui, "2CF7F12032304B1A"`, expected: "+ID: "},
		{cmd: `AT+KEY=APPKEY, "2B7E151628AED2A6ABF7158809CF4F3C"`, expected: "+KEY: "},
		{cmd: "AT+VER?", expected: "+VER: "},
		{cmd: "AT+", expected: ""},
		{cmd: "ATI", expected: ""},
		{cmd: "hello", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			if got := at.ReplyPrefixFor(tt.cmd); got != tt.expected {
				t.Errorf("ReplyPrefixFor(%q) = %q, want %q", tt.cmd, got, tt.expected)
			}
		})
	}
}

func TestSplitReply(t *testing.T) {
	name, body, ok := at.SplitReply("+ID: DevAddr, 42:00:12:34")
	if !ok {
		t.Fatal("expected reply line to split")
	}
	if name != "ID" || body != "DevAddr, 42:00:12:34" {
		t.Errorf("got name=%q body=%q", name, body)
	}

	for _, line := range []string{"OK", "+AT OK", "+: OK", "+A T: OK"} {
		if _, _, ok := at.SplitReply(line); ok {
			t.Errorf("SplitReply(%q) should fail", line)
		}
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		body   string
		code   int
		wantOK bool
	}{
		{body: "ERROR(-1)", code: -1, wantOK: true},
		{body: "ERROR(-12)", code: -12, wantOK: true},
		{body: "OK", wantOK: false},
		{body: "ERROR(x)", wantOK: false},
		{body: "ERROR(-1", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			code, ok := at.ParseError(tt.body)
			if ok != tt.wantOK {
				t.Fatalf("ParseError(%q) ok = %v, want %v", tt.body, ok, tt.wantOK)
			}
			if ok && code != tt.code {
				t.Errorf("ParseError(%q) = %d, want %d", tt.body, code, tt.code)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected at.ResponseType
	}{
		{name: "Check alive OK", input: "+AT: OK", expected: at.TypeReply},
		{name: "Identity", input: "+ID: DevEui, 2C:F7:F1:20:32:30:4B:1A", expected: at.TypeReply},
		{name: "Key set", input: "+KEY: APPKEY 2B7E151628AED2A6ABF7158809CF4F3C", expected: at.TypeReply},
		{name: "Error code", input: "+AT: ERROR(-1)", expected: at.TypeError},
		{name: "Echoed command", input: "AT+ID", expected: at.TypeUnknown},
		{name: "Noise", input: "\x00\x01", expected: at.TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := at.Classify(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v for input %q", tt.expected, result, tt.input)
			}
		})
	}
}
