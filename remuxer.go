// Package flv2hls converts a FLV stream with H264 and AAC into MPEG-TS
// fragments and a HLS playlist.
package flv2hls

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bluenviron/flv2hls/pkg/annexb"
	"github.com/bluenviron/flv2hls/pkg/buffer"
	"github.com/bluenviron/flv2hls/pkg/flv"
	"github.com/bluenviron/flv2hls/pkg/mpegts"
	"github.com/bluenviron/flv2hls/pkg/storage"
)

// Remuxer converts FLV tags into MPEG-TS fragments and a HLS playlist.
// It is not safe for concurrent use.
type Remuxer struct {
	//
	// parameters (all optional).
	//
	// Directory in which to save fragments and playlist.
	// If empty and StorageFactory is nil, they are kept in RAM.
	Directory string
	// storage of fragments and playlist. It overrides Directory.
	StorageFactory storage.Factory
	// name of the playlist.
	// It defaults to index.m3u8.
	PlaylistName string
	// Number of fragments listed in the playlist.
	// It defaults to 6.
	WindowSize int
	// Minimum duration of each fragment.
	// Fragments are split on key frames.
	// It defaults to 3sec.
	FragmentDuration time.Duration
	// Fragments are split on the first key frame after this duration,
	// even if FragmentDuration is not reached.
	// It defaults to 5sec.
	FragmentMaxDuration time.Duration
	// drift between audio timestamps and the sample count
	// that is absorbed by audio timestamps.
	// It defaults to 2ms.
	AudioSyncTolerance time.Duration
	// disables the correction of audio timestamps.
	DisableAudioSync bool
	// Buffered audio is flushed when it is older than this.
	// It defaults to 300ms.
	MaxAudioDelay time.Duration
	// size of the audio and video buffers.
	// It defaults to 1MiB.
	BufferSize int
	// remove fragments from the storage when their slot is reused.
	// Fragments kept in RAM are always removed.
	RemoveEvictedFragments bool

	//
	// callbacks and shared objects (all optional)
	//
	// function that receives log messages.
	// It defaults to log.Printf.
	Log LogFunc
	// metrics.
	Metrics *Metrics

	//
	// private
	//

	codec      CodecContext
	repackager *annexb.Repackager
	adtsErr    error
	videoBuf   *buffer.Fixed
	videoFrame mpegts.Frame
	audio      *audioAligner
	window     *fragmentWindow

	tsBaseSet bool
	tsBase    uint32

	videoDTS      uint64
	videoDTSDelta uint64
	hasVideoDTS   bool
	audioPTS      uint64
	hasAudioPTS   bool
}

// Initialize initializes the Remuxer.
func (r *Remuxer) Initialize() error {
	if r.PlaylistName == "" {
		r.PlaylistName = "index.m3u8"
	}
	if r.WindowSize == 0 {
		r.WindowSize = 6
	}
	if r.FragmentDuration == 0 {
		r.FragmentDuration = 3 * time.Second
	}
	if r.FragmentMaxDuration == 0 {
		r.FragmentMaxDuration = 5 * time.Second
	}
	if r.AudioSyncTolerance == 0 {
		r.AudioSyncTolerance = 2 * time.Millisecond
	}
	if r.MaxAudioDelay == 0 {
		r.MaxAudioDelay = 300 * time.Millisecond
	}
	if r.BufferSize == 0 {
		r.BufferSize = 1024 * 1024
	}
	if r.Log == nil {
		r.Log = defaultLog
	}
	if r.Metrics == nil {
		r.Metrics = NewMetrics()
	}

	if r.WindowSize < 1 {
		return fmt.Errorf("invalid window size: %d", r.WindowSize)
	}
	if r.FragmentDuration < time.Millisecond {
		return fmt.Errorf("invalid fragment duration: %v", r.FragmentDuration)
	}

	if r.StorageFactory == nil {
		if r.Directory != "" {
			err := os.MkdirAll(r.Directory, 0o755)
			if err != nil {
				return fmt.Errorf("unable to create output directory: %w", err)
			}
			r.StorageFactory = storage.NewFactoryDisk(r.Directory)
		} else {
			r.StorageFactory = storage.NewFactoryRAM()
		}
	}

	var tolerance uint64
	if !r.DisableAudioSync {
		tolerance = uint64(r.AudioSyncTolerance.Milliseconds()) * 90
	}

	r.videoBuf = buffer.NewFixed(r.BufferSize)
	r.videoFrame = mpegts.Frame{
		PID:      mpegts.VideoPID,
		StreamID: mpegts.VideoStreamID,
	}

	r.audio = newAudioAligner(r.BufferSize, tolerance)
	r.audio.onResync = func(estimated uint64, real uint64) {
		r.Metrics.AudioResyncs.Add(1)
		r.Log(LogLevelDebug, "audio resync, drift %.5fs", float64(int64(estimated-real))/90000)
	}

	r.window = &fragmentWindow{
		storageFactory:      r.StorageFactory,
		playlistName:        r.PlaylistName,
		fragmentDuration:    r.FragmentDuration,
		fragmentMaxDuration: r.FragmentMaxDuration,
		maxAudioDelay:       r.MaxAudioDelay,
		removeEvicted:       r.RemoveEvictedFragments || storage.IsRAM(r.StorageFactory),
		audio:               r.audio,
		log:                 r.Log,
		metrics:             r.Metrics,
	}
	r.window.initialize(r.WindowSize)

	return nil
}

// Codec returns the codecs found so far.
func (r *Remuxer) Codec() *CodecContext {
	return &r.codec
}

// WriteTag processes a FLV tag.
// Malformed tags are logged and skipped; returned errors are storage errors.
func (r *Remuxer) WriteTag(tag *flv.Tag) error {
	r.Metrics.Tags.Add(1)

	if !r.tsBaseSet {
		r.tsBaseSet = true
		r.tsBase = tag.Timestamp
	}
	ts := uint64(tag.Timestamp-r.tsBase) * 90

	var err error

	switch tag.Type {
	case flv.TagTypeVideo:
		err = r.writeVideo(ts, tag.Payload)

	case flv.TagTypeAudio:
		err = r.writeAudio(ts, tag.Payload)

	default:
		r.Log(LogLevelDebug, "skipping %s tag", tag.Type)
		return nil
	}

	if err != nil {
		r.Metrics.anomaly(anomalyIO)
		r.Metrics.DroppedFrames.Add(1)
	}

	return err
}

// Close finalizes the last fragment and writes the final playlist.
func (r *Remuxer) Close() error {
	defer r.codec.Close()

	var end uint64

	switch {
	case r.hasVideoDTS:
		end = r.videoDTS + r.videoDTSDelta

	case r.hasAudioPTS:
		end = r.audioPTS
		if r.audio.sampleRate != 0 {
			end += 90000 * aacSamplesPerFrame / uint64(r.audio.sampleRate)
		}

	default:
		return nil
	}

	err := r.window.finish(end)
	if err != nil {
		r.Metrics.anomaly(anomalyIO)
		return err
	}

	return nil
}

// drop logs a recoverable error and counts the frame as dropped.
func (r *Remuxer) drop(err error, format string, args ...interface{}) {
	kind := anomalyParse
	if errors.Is(err, buffer.ErrFull) {
		kind = anomalyBuffer
	}

	r.Metrics.anomaly(kind)
	r.Metrics.DroppedFrames.Add(1)
	r.Log(LogLevelWarn, "[%s] "+format+": %v", append([]interface{}{kind}, append(args, err)...)...)
}
