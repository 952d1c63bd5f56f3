// Package flv contains a FLV tag reader and writer.
package flv

import (
	"fmt"
)

// TagType is the type of a tag.
type TagType uint8

// tag types.
const (
	TagTypeAudio  TagType = 8
	TagTypeVideo  TagType = 9
	TagTypeScript TagType = 18
)

// String implements fmt.Stringer.
func (t TagType) String() string {
	switch t {
	case TagTypeAudio:
		return "audio"
	case TagTypeVideo:
		return "video"
	case TagTypeScript:
		return "script"
	}
	return fmt.Sprintf("unknown (%d)", uint8(t))
}

// Tag is a FLV tag.
type Tag struct {
	Type TagType

	// milliseconds
	Timestamp uint32

	Payload []byte
}

// video tag body fields.
const (
	FrameTypeKey = 1

	CodecIDAVC = 7

	AVCPacketTypeSequenceHeader = 0
	AVCPacketTypeNALU           = 1
)

// VideoHeaderSize is the size of the header of an AVC video tag body.
const VideoHeaderSize = 5

// VideoHeader is the header of an AVC video tag body.
type VideoHeader struct {
	FrameType     uint8
	CodecID       uint8
	AVCPacketType uint8

	// milliseconds
	CompositionTime int32
}

// Unmarshal decodes a VideoHeader.
func (h *VideoHeader) Unmarshal(buf []byte) error {
	if len(buf) < VideoHeaderSize {
		return fmt.Errorf("video tag body is too short")
	}

	h.FrameType = buf[0] >> 4
	h.CodecID = buf[0] & 0x0f
	h.AVCPacketType = buf[1]

	// signed 24-bit integer
	cts := int32(uint32(buf[2])<<16 | uint32(buf[3])<<8 | uint32(buf[4]))
	h.CompositionTime = (cts << 8) >> 8

	return nil
}

// audio tag body fields.
const (
	SoundFormatAAC = 10

	AACPacketTypeSequenceHeader = 0
	AACPacketTypeRaw            = 1
)

// AudioHeaderSize is the size of the header of an AAC audio tag body.
const AudioHeaderSize = 2

// AudioHeader is the header of an AAC audio tag body.
type AudioHeader struct {
	SoundFormat   uint8
	AACPacketType uint8
}

// Unmarshal decodes an AudioHeader.
func (h *AudioHeader) Unmarshal(buf []byte) error {
	if len(buf) < AudioHeaderSize {
		return fmt.Errorf("audio tag body is too short")
	}

	h.SoundFormat = buf[0] >> 4
	h.AACPacketType = buf[1]

	return nil
}
