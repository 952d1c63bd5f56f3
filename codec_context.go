package flv2hls

import (
	"github.com/bluenviron/flv2hls/pkg/codecs"
)

// CodecContext contains the codecs of a source.
// Each codec is filled by the first sequence header of its type
// and is not modified afterwards.
type CodecContext struct {
	Video *codecs.H264
	Audio *codecs.MPEG4Audio
}

// Codecs returns the available codecs.
func (c *CodecContext) Codecs() []codecs.Codec {
	var ret []codecs.Codec
	if c.Video != nil {
		ret = append(ret, c.Video)
	}
	if c.Audio != nil {
		ret = append(ret, c.Audio)
	}
	return ret
}

// Close releases the sequence headers.
func (c *CodecContext) Close() {
	c.Video = nil
	c.Audio = nil
}
