// Package adts contains the synthesis of ADTS headers.
package adts

import (
	"fmt"
)

// HeaderSize is the size of an ADTS header without CRC.
const HeaderSize = 7

const maxFrameLength = 1<<13 - 1

// Header contains the fields of an ADTS header that depend on the stream.
type Header struct {
	ObjectType      uint8
	SampleRateIndex uint8
	ChannelConfig   uint8
}

// HeaderFromConfig fills a Header from the first two bytes of an AudioSpecificConfig.
// Extended object types are signaled as AAC-LC.
func HeaderFromConfig(asc []byte) (Header, error) {
	if len(asc) < 2 {
		return Header{}, fmt.Errorf("AudioSpecificConfig is too short")
	}

	objectType := asc[0] >> 3
	if objectType == 0 || objectType == 31 {
		return Header{}, fmt.Errorf("unsupported object type: %d", objectType)
	}

	if objectType > 4 {
		objectType = 2
	}

	sampleRateIndex := ((asc[0] << 1) & 0x0f) | (asc[1] >> 7)
	if sampleRateIndex == 15 {
		return Header{}, fmt.Errorf("unsupported sample rate index: %d", sampleRateIndex)
	}

	return Header{
		ObjectType:      objectType,
		SampleRateIndex: sampleRateIndex,
		ChannelConfig:   (asc[1] >> 3) & 0x0f,
	}, nil
}

// Marshal writes the header of a frame with the given payload size into buf,
// that must be at least HeaderSize bytes long.
func (h Header) Marshal(buf []byte, payloadLen int) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("buffer is too small")
	}

	frameLen := payloadLen + HeaderSize
	if frameLen > maxFrameLength {
		return fmt.Errorf("frame is too big (%d)", frameLen)
	}

	buf[0] = 0xff
	buf[1] = 0xf1
	buf[2] = ((h.ObjectType - 1) << 6) | (h.SampleRateIndex << 2) | ((h.ChannelConfig & 0x04) >> 2)
	buf[3] = ((h.ChannelConfig & 0x03) << 6) | uint8((frameLen>>11)&0x03)
	buf[4] = uint8(frameLen >> 3)
	buf[5] = uint8(frameLen<<5) | 0x1f
	buf[6] = 0xfc

	return nil
}
