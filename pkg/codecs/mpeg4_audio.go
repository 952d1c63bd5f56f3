package codecs

import (
	"fmt"

	"github.com/aler9/gortsplib/v2/pkg/codecs/mpeg4audio"

	"github.com/bluenviron/flv2hls/pkg/bits"
)

var mpeg4AudioSampleRates = [16]int{
	96000, 88200, 64000, 48000,
	44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000,
	7350, 0, 0, 0,
}

// MPEG4Audio is a MPEG-4 Audio codec, described by a FLV AAC sequence header.
type MPEG4Audio struct {
	// sequence header, as received.
	// It contains the 2-byte FLV audio header and the AudioSpecificConfig.
	Config []byte

	// core object type. With SBR or PS, it's the type of the underlying codec.
	Type mpeg4audio.ObjectType

	// output sample rate. Zero when the sample rate index is reserved.
	SampleRate int

	ChannelConfig int
	SBR           bool
	PS            bool
}

func (*MPEG4Audio) isCodec() {}

// IsVideo implements Codec.
func (*MPEG4Audio) IsVideo() bool {
	return false
}

// AudioSpecificConfig returns the AudioSpecificConfig.
func (c *MPEG4Audio) AudioSpecificConfig() []byte {
	if len(c.Config) < 2 {
		return nil
	}
	return c.Config[2:]
}

// Unmarshal decodes a FLV AAC sequence header.
func (c *MPEG4Audio) Unmarshal(buf []byte) error {
	c.Config = append([]byte(nil), buf...)

	r := bits.NewReader(buf)
	r.ReadBits(16)

	objectType := readObjectType(r)
	sampleRate := readSampleRate(r)
	channelConfig := int(r.ReadBits(4))

	var sbr, ps bool

	switch mpeg4audio.ObjectType(objectType) {
	case mpeg4audio.ObjectTypeSBR, mpeg4audio.ObjectTypePS:
		sbr = true
		ps = (mpeg4audio.ObjectType(objectType) == mpeg4audio.ObjectTypePS)
		sampleRate = readSampleRate(r)
		objectType = readObjectType(r)
	}

	if err := r.Err(); err != nil {
		return fmt.Errorf("invalid AudioSpecificConfig: %w", err)
	}

	if objectType == 0 {
		return fmt.Errorf("invalid AudioSpecificConfig: object type is zero")
	}

	c.Type = mpeg4audio.ObjectType(objectType)
	c.SampleRate = sampleRate
	c.ChannelConfig = channelConfig
	c.SBR = sbr
	c.PS = ps

	return nil
}

func readObjectType(r *bits.Reader) int {
	v := int(r.ReadBits(5))
	if v == 31 {
		v = 32 + int(r.ReadBits(6))
	}
	return v
}

func readSampleRate(r *bits.Reader) int {
	idx := r.ReadBits(4)
	if idx == 15 {
		return int(r.ReadBits(24))
	}
	return mpeg4AudioSampleRates[idx]
}
