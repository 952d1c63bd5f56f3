package flv2hls

import (
	"github.com/bluenviron/flv2hls/pkg/adts"
	"github.com/bluenviron/flv2hls/pkg/buffer"
)

// AAC frames are assumed to contain 1024 samples.
const aacSamplesPerFrame = 1024

// audioAligner accumulates ADTS frames until they are flushed into a fragment,
// and computes the timestamp of each batch.
type audioAligner struct {
	buf        *buffer.Fixed
	header     adts.Header
	sampleRate int

	// maximum drift that is corrected, in 90khz ticks. Zero disables correction.
	tolerance uint64

	// timestamp of the first frame in buf.
	pts uint64

	base uint64
	num  uint64

	onResync func(estimated uint64, real uint64)
}

func newAudioAligner(size int, tolerance uint64) *audioAligner {
	return &audioAligner{
		buf:       buffer.NewFixed(size),
		tolerance: tolerance,
	}
}

func (a *audioAligner) buffered() bool {
	return a.buf.Len() > 0
}

func (a *audioAligner) fits(payloadLen int) bool {
	return payloadLen+adts.HeaderSize <= a.buf.Cap()
}

func (a *audioAligner) needsFlush(payloadLen int) bool {
	return payloadLen+adts.HeaderSize > a.buf.Available()
}

func (a *audioAligner) reset() {
	a.buf.Reset()
}

// push appends a raw AAC frame, prefixed by an ADTS header.
// When the frame is the first one of a batch, it sets the batch timestamp.
func (a *audioAligner) push(pts uint64, payload []byte) error {
	first := !a.buffered()
	size := len(payload) + adts.HeaderSize

	p, err := a.buf.Reserve(size)
	if err != nil {
		return err
	}

	err = a.header.Marshal(p, len(payload))
	if err != nil {
		a.buf.Truncate(a.buf.Len() - size)
		return err
	}
	copy(p[adts.HeaderSize:], payload)

	if !first {
		a.num++
		return nil
	}

	a.pts = pts

	if a.tolerance == 0 || a.sampleRate == 0 {
		return nil
	}

	est := a.base + a.num*90000*aacSamplesPerFrame/uint64(a.sampleRate)
	diff := int64(est - pts)

	if diff <= int64(a.tolerance) && diff >= -int64(a.tolerance) {
		a.num++
		a.pts = est
		return nil
	}

	if a.onResync != nil {
		a.onResync(est, pts)
	}

	a.base = pts
	a.num = 1

	return nil
}
