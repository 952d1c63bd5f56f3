// Package mpegts contains a MPEG-TS packetizer for H264 and AAC.
package mpegts

import (
	"bufio"
	"context"
	"io"
	"math"

	"github.com/asticode/go-astits"
)

// PacketSize is the size of a MPEG-TS packet.
const PacketSize = astits.MpegTsPacketSize

// PIDs and PES stream IDs of the elementary streams.
const (
	VideoPID      = 0x100
	AudioPID      = 0x101
	VideoStreamID = 0xe0
	AudioStreamID = 0xc0
)

const (
	// PCR is placed this amount of 90khz ticks before DTS;
	// PTS and DTS are shifted forward by the same amount.
	pcrDelay = 63000

	maximum = 0x1FFFFFFFF // 33 bits
)

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}

// Frame is an access unit that is going to be packetized.
type Frame struct {
	// 90khz ticks
	PTS uint64
	DTS uint64

	PID      uint16
	StreamID uint8

	// key frames carry a PCR.
	Key bool
}

// Writer is a MPEG-TS writer.
// Continuity counters are kept per PID and carry over segments.
type Writer struct {
	bw  *bufio.Writer
	tsw *astits.Muxer
}

// NewWriter allocates a Writer.
func NewWriter(bw io.Writer) *Writer {
	w := &Writer{}
	w.SetByteWriter(bw)

	// PAT and PMT are written by WriteTables at the beginning of every segment.
	// The retransmission counter starts at the period and wraps around
	// on its first increment, therefore it never fires.
	w.tsw = astits.NewMuxer(
		context.Background(),
		writerFunc(func(p []byte) (int, error) {
			return w.bw.Write(p)
		}),
		astits.MuxerOptTablesRetransmitPeriod(math.MaxInt))

	w.tsw.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: VideoPID,
		StreamType:    astits.StreamTypeH264Video,
	})

	w.tsw.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: AudioPID,
		StreamType:    astits.StreamTypeAACAudio,
	})

	w.tsw.SetPCRPID(VideoPID)

	return w
}

// SetByteWriter sets the current byte writer.
// Packets are handed to it one by one.
func (w *Writer) SetByteWriter(bw io.Writer) {
	w.bw = bufio.NewWriterSize(bw, PacketSize)
}

// WriteTables writes PAT and PMT.
func (w *Writer) WriteTables() error {
	_, err := w.tsw.WriteTables()
	if err != nil {
		return err
	}

	return w.bw.Flush()
}

// WriteFrame packetizes a frame into a PES, split into MPEG-TS packets.
func (w *Writer) WriteFrame(f *Frame, payload []byte) error {
	var af *astits.PacketAdaptationField

	if f.Key {
		af = &astits.PacketAdaptationField{
			HasPCR: true,
			PCR:    &astits.ClockReference{Base: int64((f.DTS - pcrDelay) & maximum)},
		}
	}

	oh := &astits.PESOptionalHeader{
		MarkerBits: 2,
	}

	if f.DTS == f.PTS {
		oh.PTSDTSIndicator = astits.PTSDTSIndicatorOnlyPTS
		oh.PTS = &astits.ClockReference{Base: int64((f.PTS + pcrDelay) & maximum)}
	} else {
		oh.PTSDTSIndicator = astits.PTSDTSIndicatorBothPresent
		oh.DTS = &astits.ClockReference{Base: int64((f.DTS + pcrDelay) & maximum)}
		oh.PTS = &astits.ClockReference{Base: int64((f.PTS + pcrDelay) & maximum)}
	}

	_, err := w.tsw.WriteData(&astits.MuxerData{
		PID:             f.PID,
		AdaptationField: af,
		PES: &astits.PESData{
			Header: &astits.PESHeader{
				OptionalHeader: oh,
				StreamID:       f.StreamID,
			},
			Data: payload,
		},
	})
	if err != nil {
		return err
	}

	return w.bw.Flush()
}
