package flv

import (
	"io"
)

// Writer writes tags into a FLV stream.
type Writer struct {
	w             io.Writer
	headerWritten bool
}

// NewWriter allocates a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w: w,
	}
}

// Write writes a tag. The file header is written before the first tag.
func (w *Writer) Write(tag *Tag) error {
	if !w.headerWritten {
		_, err := w.w.Write([]byte{
			'F', 'L', 'V', 0x01,
			0x05, // audio and video
			0x00, 0x00, 0x00, headerSize,
			0x00, 0x00, 0x00, 0x00,
		})
		if err != nil {
			return err
		}
		w.headerWritten = true
	}

	size := len(tag.Payload)

	buf := make([]byte, tagHeaderSize+size+previousTagSizeSize)
	buf[0] = byte(tag.Type)
	buf[1] = byte(size >> 16)
	buf[2] = byte(size >> 8)
	buf[3] = byte(size)
	buf[4] = byte(tag.Timestamp >> 16)
	buf[5] = byte(tag.Timestamp >> 8)
	buf[6] = byte(tag.Timestamp)
	buf[7] = byte(tag.Timestamp >> 24)
	copy(buf[tagHeaderSize:], tag.Payload)

	prev := tagHeaderSize + size
	buf[len(buf)-4] = byte(prev >> 24)
	buf[len(buf)-3] = byte(prev >> 16)
	buf[len(buf)-2] = byte(prev >> 8)
	buf[len(buf)-1] = byte(prev)

	_, err := w.w.Write(buf)
	return err
}
