package lorae5

import "io"

// Buffer sizing of the driver.
const (
	CommandBufferSize = 128
	ReplyBufferSize   = 1024
)

// fixedBuffer is a byte buffer whose capacity is set at construction and
// never grows. Writes that would exceed the capacity fail with full.
type fixedBuffer struct {
	data []byte
	full error
}

func newFixedBuffer(capacity int, full error) *fixedBuffer {
	return &fixedBuffer{data: make([]byte, 0, capacity), full: full}
}

// Write appends p in full or not at all.
func (b *fixedBuffer) Write(p []byte) (int, error) {
	if len(b.data)+len(p) > cap(b.data) {
		return 0, b.full
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *fixedBuffer) WriteByte(c byte) error {
	if len(b.data) == cap(b.data) {
		return b.full
	}
	b.data = append(b.data, c)
	return nil
}

func (b *fixedBuffer) Bytes() []byte { return b.data }
func (b *fixedBuffer) Len() int      { return len(b.data) }
func (b *fixedBuffer) Cap() int      { return cap(b.data) }

func (b *fixedBuffer) Reset() {
	clear(b.data[:cap(b.data)])
	b.data = b.data[:0]
}

var (
	_ io.Writer     = (*fixedBuffer)(nil)
	_ io.ByteWriter = (*fixedBuffer)(nil)
)
