// Package annexb converts H264 access units from AVCC to Annex-B.
package annexb

import (
	"errors"
	"fmt"

	"github.com/aler9/gortsplib/v2/pkg/codecs/h264"

	"github.com/bluenviron/flv2hls/pkg/buffer"
)

// ErrTruncated is returned when a length prefix points past the end of the data.
var ErrTruncated = errors.New("truncated NALU")

// access unit delimiter, with primary_pic_type = 7 (any slice type).
var accessUnitDelimiter = []byte{0x00, 0x00, 0x00, 0x01, byte(h264.NALUTypeAccessUnitDelimiter), 0xf0}

// bytes that precede the SPS count in a FLV AVC sequence header.
const configSkip = 10

// Repackager converts AVCC access units into Annex-B access units.
//
// In-band SPS, PPS and access unit delimiters are dropped. An access unit
// delimiter is generated before the first slice or SEI, and the parameter sets
// of the sequence header are inserted before IDR slices.
type Repackager struct {
	naluLengthSize int
	paramSets      []byte
	paramSetsErr   error
}

// NewRepackager allocates a Repackager.
// config is the FLV AVC sequence header.
func NewRepackager(naluLengthSize int, config []byte) *Repackager {
	r := &Repackager{
		naluLengthSize: naluLengthSize,
	}
	r.paramSets, r.paramSetsErr = parameterSets(config)
	return r
}

// parameterSets extracts SPS and PPS from the sequence header,
// each one prefixed by a long start code.
func parameterSets(config []byte) ([]byte, error) {
	if len(config) < configSkip+1 {
		return nil, fmt.Errorf("sequence header is too short")
	}

	var ret []byte
	pos := configSkip

	readSets := func(count int) error {
		for i := 0; i < count; i++ {
			if (len(config) - pos) < 2 {
				return fmt.Errorf("parameter set length is missing")
			}
			l := int(config[pos])<<8 | int(config[pos+1])
			pos += 2

			if (len(config) - pos) < l {
				return fmt.Errorf("parameter set is truncated")
			}

			ret = append(ret, 0x00, 0x00, 0x00, 0x01)
			ret = append(ret, config[pos:pos+l]...)
			pos += l
		}
		return nil
	}

	spsCount := int(config[pos] & 0x1f)
	pos++

	err := readSets(spsCount)
	if err != nil {
		return nil, err
	}

	if pos >= len(config) {
		return nil, fmt.Errorf("PPS count is missing")
	}
	ppsCount := int(config[pos])
	pos++

	err = readSets(ppsCount)
	if err != nil {
		return nil, err
	}

	return ret, nil
}

// Repackage converts the NALUs of a FLV AVC NALU tag body, after its 5-byte header.
// On error, dst is left empty.
func (r *Repackager) Repackage(dst *buffer.Fixed, avcc []byte) error {
	dst.Reset()

	err := r.repackage(dst, avcc)
	if err != nil {
		dst.Reset()
		return err
	}

	return nil
}

func (r *Repackager) repackage(dst *buffer.Fixed, avcc []byte) error {
	audSent := false
	paramSetsSent := false

	for len(avcc) > 0 {
		if len(avcc) < r.naluLengthSize {
			return ErrTruncated
		}

		l := 0
		for i := 0; i < r.naluLengthSize; i++ {
			l = (l << 8) | int(avcc[i])
		}
		avcc = avcc[r.naluLengthSize:]

		if l == 0 {
			continue
		}

		if len(avcc) < l {
			return ErrTruncated
		}

		nalu := avcc[:l]
		avcc = avcc[l:]

		typ := h264.NALUType(nalu[0] & 0x1f)

		switch typ {
		case h264.NALUTypeSPS, h264.NALUTypePPS, h264.NALUTypeAccessUnitDelimiter:
			continue
		}

		if !audSent {
			switch typ {
			case h264.NALUTypeNonIDR, h264.NALUTypeIDR, h264.NALUTypeSEI:
				err := dst.Append(accessUnitDelimiter...)
				if err != nil {
					return err
				}
				audSent = true
			}
		}

		switch typ {
		case h264.NALUTypeNonIDR:
			paramSetsSent = false

		case h264.NALUTypeIDR:
			if !paramSetsSent {
				if r.paramSetsErr != nil {
					return fmt.Errorf("unable to insert parameter sets: %w", r.paramSetsErr)
				}

				err := dst.Append(r.paramSets...)
				if err != nil {
					return err
				}
				paramSetsSent = true
			}
		}

		// the first start code of the access unit is long
		if dst.Len() == 0 {
			err := dst.Append(0x00)
			if err != nil {
				return err
			}
		}

		err := dst.Append(0x00, 0x00, 0x01)
		if err != nil {
			return err
		}

		err = dst.Append(nalu...)
		if err != nil {
			return err
		}
	}

	return nil
}
