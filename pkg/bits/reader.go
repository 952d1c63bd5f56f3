// Package bits contains a MSB-first bit reader with Exp-Golomb support.
package bits

import (
	"errors"
	"fmt"

	"github.com/aler9/gortsplib/v2/pkg/bits"
)

// ErrOutOfRange is returned by Err when a read went past the end of the buffer.
var ErrOutOfRange = errors.New("not enough bits")

// Reader reads bits from a byte slice, most significant bit first.
// The first failed read sets a sticky error: all subsequent reads return zero
// without advancing.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader allocates a Reader.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Err returns the sticky error, if any.
func (r *Reader) Err() error {
	return r.err
}

// Pos returns the position of the next bit to read.
func (r *Reader) Pos() int {
	return r.pos
}

// ReadBits reads n bits (n <= 64).
func (r *Reader) ReadBits(n int) uint64 {
	if r.err != nil {
		return 0
	}

	if n < 0 || n > 64 || bits.HasSpace(r.buf, r.pos, n) != nil {
		r.err = ErrOutOfRange
		return 0
	}

	if n == 0 {
		return 0
	}

	return bits.ReadBitsUnsafe(r.buf, &r.pos, n)
}

// ReadFlag reads a single bit.
func (r *Reader) ReadFlag() bool {
	if r.err != nil {
		return false
	}

	v, err := bits.ReadFlag(r.buf, &r.pos)
	if err != nil {
		r.err = ErrOutOfRange
		return false
	}

	return v
}

// ReadUint8 reads 8 bits.
func (r *Reader) ReadUint8() uint8 {
	return uint8(r.ReadBits(8))
}

// ReadGolombUnsigned reads an unsigned Exp-Golomb code (ue(v)).
func (r *Reader) ReadGolombUnsigned() uint32 {
	if r.err != nil {
		return 0
	}

	pos := r.pos
	v, err := bits.ReadGolombUnsigned(r.buf, &pos)
	if err != nil {
		r.err = fmt.Errorf("%w: %v", ErrOutOfRange, err)
		return 0
	}

	r.pos = pos
	return v
}

// ReadGolombSigned reads a signed Exp-Golomb code (se(v)).
func (r *Reader) ReadGolombSigned() int32 {
	if r.err != nil {
		return 0
	}

	pos := r.pos
	v, err := bits.ReadGolombSigned(r.buf, &pos)
	if err != nil {
		r.err = fmt.Errorf("%w: %v", ErrOutOfRange, err)
		return 0
	}

	r.pos = pos
	return v
}
