package flv2hls

import (
	"fmt"

	"github.com/bluenviron/flv2hls/pkg/adts"
	"github.com/bluenviron/flv2hls/pkg/buffer"
	"github.com/bluenviron/flv2hls/pkg/codecs"
	"github.com/bluenviron/flv2hls/pkg/flv"
)

func (r *Remuxer) writeAudio(pts uint64, payload []byte) error {
	var h flv.AudioHeader
	err := h.Unmarshal(payload)
	if err != nil {
		r.drop(err, "invalid audio tag")
		return nil
	}

	if h.SoundFormat != flv.SoundFormatAAC {
		r.drop(fmt.Errorf("unsupported sound format %d", h.SoundFormat), "invalid audio tag")
		return nil
	}

	if r.codec.Audio == nil {
		r.setAudioConfig(&h, payload)
		return nil
	}

	if h.AACPacketType != flv.AACPacketTypeRaw {
		return nil
	}

	if r.adtsErr != nil {
		r.Metrics.DroppedFrames.Add(1)
		return nil
	}

	frame := payload[flv.AudioHeaderSize:]

	if !r.audio.fits(len(frame)) {
		r.drop(fmt.Errorf("%w: frame size is %d", buffer.ErrFull, len(frame)), "audio frame is too big")
		return nil
	}

	// with video, fragments are split by the video track
	err = r.window.update(pts, r.codec.Video == nil, 2)
	if err != nil {
		return err
	}

	if r.audio.needsFlush(len(frame)) {
		err = r.window.flushAudio()
		if err != nil {
			return err
		}
	}

	err = r.audio.push(pts, frame)
	if err != nil {
		r.drop(err, "unable to buffer audio frame")
		return nil
	}

	r.audioPTS = pts
	r.hasAudioPTS = true
	r.Metrics.AudioFrames.Add(1)

	return nil
}

func (r *Remuxer) setAudioConfig(h *flv.AudioHeader, payload []byte) {
	if h.AACPacketType != flv.AACPacketTypeSequenceHeader {
		r.Log(LogLevelDebug, "waiting for the AAC sequence header")
		return
	}

	c := &codecs.MPEG4Audio{}
	err := c.Unmarshal(payload)
	if err != nil {
		r.Metrics.anomaly(anomalyParse)
		r.Log(LogLevelWarn, "[%s] %v", anomalyParse, err)
	}

	r.codec.Audio = c

	r.audio.header, r.adtsErr = adts.HeaderFromConfig(c.AudioSpecificConfig())
	if r.adtsErr != nil {
		r.Metrics.anomaly(anomalyParse)
		r.Log(LogLevelWarn, "[%s] audio frames will be discarded: %v", anomalyParse, r.adtsErr)
	}

	r.audio.sampleRate = c.SampleRate

	r.Log(LogLevelInfo, "audio: AAC, object type %d, %d Hz, channel configuration %d, SBR=%v, PS=%v",
		c.Type, c.SampleRate, c.ChannelConfig, c.SBR, c.PS)
}
