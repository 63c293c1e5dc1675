package lorae5_test

import (
	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/loragw/lorae5"
)

// MockSequenceBuilder records the byte-level transport calls of complete
// command cycles, in the order the driver performs them.
type MockSequenceBuilder struct {
	transport *lorae5.MockTransport
	calls     []any
}

func NewMockSequence(transport *lorae5.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Exchange expects command to be written one byte at a time, followed by a
// drain, and answers with reply one byte per read.
func (b *MockSequenceBuilder) Exchange(command, reply string) *MockSequenceBuilder {
	b.Transmit(command)
	b.calls = append(b.calls, b.transport.EXPECT().Drain().Return(nil))
	return b.Respond(reply)
}

// Transmit expects command to be written one byte at a time.
func (b *MockSequenceBuilder) Transmit(command string) *MockSequenceBuilder {
	for i := range len(command) {
		b.calls = append(b.calls,
			b.transport.EXPECT().Write([]byte{command[i]}).Return(1, nil),
		)
	}
	return b
}

// Respond answers the next len(reply) reads with one byte each.
func (b *MockSequenceBuilder) Respond(reply string) *MockSequenceBuilder {
	for i := range len(reply) {
		c := reply[i]
		b.calls = append(b.calls,
			b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
				p[0] = c
				return 1, nil
			}),
		)
	}
	return b
}

func (b *MockSequenceBuilder) CheckAlive() *MockSequenceBuilder {
	return b.Exchange("AT\n", "+AT: OK\r\n")
}

func (b *MockSequenceBuilder) ReadIdentity(reply string) *MockSequenceBuilder {
	return b.Exchange("AT+ID\n", reply)
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// initMockCalls returns the calls of the probe New performs.
func initMockCalls(transport *lorae5.MockTransport) []any {
	return NewMockSequence(transport).CheckAlive().Build()
}
