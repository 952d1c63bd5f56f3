// Package buffer contains a fixed-capacity byte buffer.
package buffer

import (
	"errors"
)

// ErrFull is returned when a write does not fit into the remaining capacity.
var ErrFull = errors.New("buffer is full")

// Fixed is a byte buffer that never grows past its capacity.
// A write that does not fit is rejected as a whole.
type Fixed struct {
	buf []byte
}

// NewFixed allocates a Fixed buffer.
func NewFixed(capacity int) *Fixed {
	return &Fixed{
		buf: make([]byte, 0, capacity),
	}
}

// Append appends p.
func (b *Fixed) Append(p ...byte) error {
	if len(p) > b.Available() {
		return ErrFull
	}
	b.buf = append(b.buf, p...)
	return nil
}

// Reserve appends n bytes and returns them, in order to be filled later.
func (b *Fixed) Reserve(n int) ([]byte, error) {
	if n > b.Available() {
		return nil, ErrFull
	}
	l := len(b.buf)
	b.buf = b.buf[:l+n]
	return b.buf[l : l+n], nil
}

// Truncate discards all bytes after the first n.
func (b *Fixed) Truncate(n int) {
	b.buf = b.buf[:n]
}

// Reset empties the buffer.
func (b *Fixed) Reset() {
	b.buf = b.buf[:0]
}

// Bytes returns the content of the buffer.
// It is valid until the next modification.
func (b *Fixed) Bytes() []byte {
	return b.buf
}

// Len returns the number of stored bytes.
func (b *Fixed) Len() int {
	return len(b.buf)
}

// Cap returns the capacity.
func (b *Fixed) Cap() int {
	return cap(b.buf)
}

// Available returns the number of bytes that can still be written.
func (b *Fixed) Available() int {
	return cap(b.buf) - len(b.buf)
}
