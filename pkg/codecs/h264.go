package codecs

import (
	"fmt"

	"github.com/aler9/gortsplib/v2/pkg/codecs/h264"

	"github.com/bluenviron/flv2hls/pkg/bits"
)

// sequence header layout:
// frame type / codec id, AVC packet type, composition time (3 bytes),
// configurationVersion, profile, profile compatibility, level,
// length size minus one, SPS count, SPS length (2 bytes), SPS.
const (
	h264HeaderSkip = 6
	h264SPSOffset  = 13
	h264SPSHeader  = 0x67
)

// H264 is a H264 codec, described by a FLV AVC sequence header.
type H264 struct {
	// sequence header, as received. It contains SPS and PPS.
	Config []byte

	NALULengthSize       int
	Profile              uint8
	ProfileCompatibility uint8
	Level                uint8

	// filled only when the first SPS can be decoded.
	RefFrames uint32
	Width     int
	Height    int
}

func (*H264) isCodec() {}

// IsVideo implements Codec.
func (*H264) IsVideo() bool {
	return true
}

// Unmarshal decodes a FLV AVC sequence header.
// A header without SPS, or whose first SPS has an unexpected NALU header,
// is not an error: picture size is left unset.
func (c *H264) Unmarshal(buf []byte) error {
	c.Config = append([]byte(nil), buf...)

	r := bits.NewReader(buf)
	r.ReadBits(h264HeaderSkip * 8)
	profile := r.ReadUint8()
	compat := r.ReadUint8()
	level := r.ReadUint8()
	naluLengthSize := int(r.ReadUint8()&0x03) + 1
	spsCount := r.ReadUint8() & 0x1f

	if err := r.Err(); err != nil {
		return fmt.Errorf("invalid AVC configuration: %w", err)
	}

	c.Profile = profile
	c.ProfileCompatibility = compat
	c.Level = level
	c.NALULengthSize = naluLengthSize

	if spsCount == 0 {
		return nil
	}

	spsLen := int(r.ReadBits(16))
	if err := r.Err(); err != nil {
		return fmt.Errorf("invalid AVC configuration: %w", err)
	}

	sps := buf[h264SPSOffset:]
	if len(sps) > spsLen {
		sps = sps[:spsLen]
	}

	if len(sps) == 0 {
		return fmt.Errorf("invalid AVC configuration: SPS is empty")
	}

	if sps[0] != h264SPSHeader {
		return nil
	}

	return c.unmarshalSPS(sps)
}

func (c *H264) unmarshalSPS(nalu []byte) error {
	var sps h264.SPS
	err := sps.Unmarshal(nalu)
	if err != nil {
		return fmt.Errorf("invalid SPS: %w", err)
	}

	fullWidth := int((sps.PicWidthInMbsMinus1 + 1) * 16)
	fullHeight := int((sps.PicHeightInMapUnitsMinus1 + 1) * 16)
	if !sps.FrameMbsOnlyFlag {
		fullHeight *= 2
	}

	if fc := sps.FrameCropping; fc != nil &&
		(int(fc.LeftOffset+fc.RightOffset)*2 >= fullWidth ||
			int(fc.TopOffset+fc.BottomOffset)*2 >= fullHeight) {
		return fmt.Errorf("invalid SPS: cropping exceeds picture size")
	}

	c.RefFrames = sps.MaxNumRefFrames
	c.Width = sps.Width()
	c.Height = sps.Height()

	return nil
}
