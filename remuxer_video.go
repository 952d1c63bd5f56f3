package flv2hls

import (
	"fmt"

	"github.com/bluenviron/flv2hls/pkg/annexb"
	"github.com/bluenviron/flv2hls/pkg/codecs"
	"github.com/bluenviron/flv2hls/pkg/flv"
)

func (r *Remuxer) writeVideo(dts uint64, payload []byte) error {
	var h flv.VideoHeader
	err := h.Unmarshal(payload)
	if err != nil {
		r.drop(err, "invalid video tag")
		return nil
	}

	if h.CodecID != flv.CodecIDAVC {
		r.drop(fmt.Errorf("unsupported codec ID %d", h.CodecID), "invalid video tag")
		return nil
	}

	if r.codec.Video == nil {
		return r.setVideoConfig(&h, payload)
	}

	// sequence headers after the first one and end of sequence markers
	if h.AVCPacketType != flv.AVCPacketTypeNALU {
		return nil
	}

	err = r.repackager.Repackage(r.videoBuf, payload[flv.VideoHeaderSize:])
	if err != nil {
		r.drop(err, "unable to convert access unit")
		return nil
	}

	if r.hasVideoDTS && dts > r.videoDTS {
		r.videoDTSDelta = dts - r.videoDTS
	}
	r.videoDTS = dts
	r.hasVideoDTS = true

	pts := int64(dts) + int64(h.CompositionTime)*90
	if pts < 0 {
		pts = int64(dts)
	}

	r.videoFrame.DTS = dts
	r.videoFrame.PTS = uint64(pts)
	r.videoFrame.Key = (h.FrameType == flv.FrameTypeKey)

	err = r.window.update(dts, r.videoFrame.Key, 1)
	if err != nil {
		return err
	}

	if !r.window.opened {
		r.Log(LogLevelDebug, "waiting for a key frame")
		return nil
	}

	if r.videoBuf.Len() == 0 {
		return nil
	}

	err = r.window.writeFrame(&r.videoFrame, r.videoBuf.Bytes())
	if err != nil {
		return err
	}

	r.Metrics.VideoFrames.Add(1)

	return nil
}

func (r *Remuxer) setVideoConfig(h *flv.VideoHeader, payload []byte) error {
	if h.AVCPacketType != flv.AVCPacketTypeSequenceHeader {
		r.Log(LogLevelDebug, "waiting for the AVC sequence header")
		return nil
	}

	c := &codecs.H264{}
	err := c.Unmarshal(payload)
	if err != nil {
		r.Metrics.anomaly(anomalyParse)
		r.Log(LogLevelWarn, "[%s] invalid AVC sequence header: %v", anomalyParse, err)

		if c.NALULengthSize == 0 {
			return nil
		}
	}

	r.codec.Video = c
	r.repackager = annexb.NewRepackager(c.NALULengthSize, c.Config)

	r.Log(LogLevelInfo, "video: H264, profile %d, level %d, %dx%d, NALU length size %d",
		c.Profile, c.Level, c.Width, c.Height, c.NALULengthSize)

	return nil
}
