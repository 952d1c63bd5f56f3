package flv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	headerSize          = 9
	tagHeaderSize       = 11
	previousTagSizeSize = 4
	maxHeaderSize       = 1024
)

// ErrInvalidSignature is returned when the file does not start with a FLV header.
var ErrInvalidSignature = errors.New("invalid FLV signature")

// Reader reads tags from a FLV stream.
type Reader struct {
	br         *bufio.Reader
	headerRead bool
	buf        [tagHeaderSize]byte
}

// NewReader allocates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br: bufio.NewReader(r),
	}
}

func (r *Reader) readHeader() error {
	var hdr [headerSize]byte
	_, err := io.ReadFull(r.br, hdr[:])
	if err != nil {
		return err
	}

	if hdr[0] != 'F' || hdr[1] != 'L' || hdr[2] != 'V' {
		return ErrInvalidSignature
	}

	dataOffset := int(hdr[5])<<24 | int(hdr[6])<<16 | int(hdr[7])<<8 | int(hdr[8])
	if dataOffset < headerSize || dataOffset > maxHeaderSize {
		return fmt.Errorf("invalid FLV header size (%d)", dataOffset)
	}

	// skip header extension and PreviousTagSize0
	_, err = r.br.Discard(dataOffset - headerSize + previousTagSizeSize)
	return err
}

// Read reads the next tag.
// It returns io.EOF when the stream ends on a tag boundary,
// io.ErrUnexpectedEOF when it ends inside a tag.
func (r *Reader) Read() (*Tag, error) {
	if !r.headerRead {
		err := r.readHeader()
		if err != nil {
			return nil, err
		}
		r.headerRead = true
	}

	_, err := io.ReadFull(r.br, r.buf[:])
	if err != nil {
		return nil, err
	}

	size := int(r.buf[1])<<16 | int(r.buf[2])<<8 | int(r.buf[3])

	tag := &Tag{
		Type:      TagType(r.buf[0] & 0x1f),
		Timestamp: uint32(r.buf[7])<<24 | uint32(r.buf[4])<<16 | uint32(r.buf[5])<<8 | uint32(r.buf[6]),
		Payload:   make([]byte, size),
	}

	_, err = io.ReadFull(r.br, tag.Payload)
	if err != nil {
		return nil, noEOF(err)
	}

	// PreviousTagSize is not checked
	_, err = r.br.Discard(previousTagSizeSize)
	if err != nil {
		return nil, noEOF(err)
	}

	return tag, nil
}

func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
