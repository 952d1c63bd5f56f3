package flv2hls

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bluenviron/flv2hls/pkg/mpegts"
	"github.com/bluenviron/flv2hls/pkg/playlist"
	"github.com/bluenviron/flv2hls/pkg/storage"
)

// fragments that are late by more than this amount are split.
const maxBackwardsJump = 90000

func fragmentName(id uint64) string {
	return strconv.FormatUint(id, 10) + ".ts"
}

func ticksToDuration(v int64) time.Duration {
	return time.Duration(v) * time.Second / 90000
}

// fragmentWindow decides fragment boundaries, writes fragments
// and keeps the playlist updated.
type fragmentWindow struct {
	storageFactory      storage.Factory
	playlistName        string
	fragmentDuration    time.Duration
	fragmentMaxDuration time.Duration
	maxAudioDelay       time.Duration
	removeEvicted       bool
	audio               *audioAligner
	log                 LogFunc
	metrics             *Metrics

	ring       *fragmentRing
	writer     *mpegts.Writer
	file       storage.File
	opened     bool
	fragTS     uint64
	audioFrame mpegts.Frame
}

func (w *fragmentWindow) initialize(windowSize int) {
	w.ring = newFragmentRing(windowSize)
	w.writer = mpegts.NewWriter(nil)
	w.audioFrame = mpegts.Frame{
		PID:      mpegts.AudioPID,
		StreamID: mpegts.AudioStreamID,
	}
}

// open starts a new fragment and writes the buffered audio into it.
func (w *fragmentWindow) open(ts uint64, discont bool) error {
	id := w.ring.nextID()
	slot := w.ring.current()

	if slot.active && w.removeEvicted {
		name := fragmentName(slot.id)
		err := w.storageFactory.Remove(name)
		if err != nil {
			w.metrics.anomaly(anomalyIO)
			w.log(LogLevelWarn, "[%s] unable to remove %s: %v", anomalyIO, name, err)
		}
	}

	file, err := w.storageFactory.NewFile(fragmentName(id))
	if err != nil {
		return fmt.Errorf("unable to create fragment %d: %w", id, err)
	}

	w.writer.SetByteWriter(file)

	err = w.writer.WriteTables()
	if err != nil {
		file.Finalize() //nolint:errcheck
		return fmt.Errorf("unable to write fragment %d: %w", id, err)
	}

	*slot = fragment{
		id:      id,
		discont: discont,
		active:  true,
	}

	w.file = file
	w.opened = true
	w.fragTS = ts
	w.metrics.Fragments.Add(1)

	w.log(LogLevelDebug, "opened fragment %d (discontinuity=%v)", id, discont)

	return w.flushAudio()
}

// close finalizes the current fragment, adds it to the window and writes the playlist.
// It does nothing when no fragment is open.
func (w *fragmentWindow) close() error {
	if !w.opened {
		return nil
	}

	w.opened = false
	err := w.file.Finalize()
	w.file = nil
	if err != nil {
		return fmt.Errorf("unable to finalize fragment %d: %w", w.ring.nextID(), err)
	}

	w.log(LogLevelDebug, "closed fragment %d (%v)", w.ring.nextID(), w.ring.current().duration)

	w.ring.advance()

	err = w.ring.check()
	if err != nil {
		return err
	}

	return w.writePlaylist()
}

// update is called for every frame. It updates the duration of the current
// fragment, and splits it when needed.
// boundary tells whether the frame can start a fragment.
// Buffered audio is flushed when it is older than maxAudioDelay/flushRate.
func (w *fragmentWindow) update(ts uint64, boundary bool, flushRate uint64) error {
	var f *fragment
	force := false
	discont := false

	if w.opened {
		f = w.ring.current()
		d := int64(ts - w.fragTS)

		switch {
		case d > w.fragmentMaxDuration.Milliseconds()*90:
			// a fragment can be split only on a key frame
			force = boundary
			f.duration = ticksToDuration(d)

		case d < -maxBackwardsJump:
			force = boundary
			discont = boundary

		default:
			f.duration = ticksToDuration(d)
		}
	}

	if f != nil && f.duration < w.fragmentDuration {
		boundary = false
	}

	if boundary || force {
		err := w.close()
		if err != nil {
			return err
		}

		err = w.open(ts, discont)
		if err != nil {
			return err
		}
	}

	if w.opened && w.audio.buffered() &&
		w.audio.pts+uint64(w.maxAudioDelay.Milliseconds())*90/flushRate < ts {
		return w.flushAudio()
	}

	return nil
}

// finish finalizes the current fragment at the given end timestamp.
func (w *fragmentWindow) finish(ts uint64) error {
	if !w.opened {
		return nil
	}

	err := w.flushAudio()
	if err != nil {
		return err
	}

	if d := int64(ts - w.fragTS); d > 0 {
		w.ring.current().duration = ticksToDuration(d)
	}

	return w.close()
}

// writeFrame writes a frame into the current fragment.
func (w *fragmentWindow) writeFrame(f *mpegts.Frame, payload []byte) error {
	err := w.writer.WriteFrame(f, payload)
	if err != nil {
		return fmt.Errorf("unable to write fragment %d: %w", w.ring.nextID(), err)
	}
	return nil
}

// flushAudio writes the buffered audio into the current fragment.
// When no fragment is open, buffered audio is discarded.
func (w *fragmentWindow) flushAudio() error {
	if !w.audio.buffered() {
		return nil
	}

	defer w.audio.reset()

	if !w.opened {
		w.metrics.anomaly(anomalyBuffer)
		w.log(LogLevelWarn, "[%s] discarding %d bytes of audio, no fragment is open",
			anomalyBuffer, w.audio.buf.Len())
		return nil
	}

	w.audioFrame.PTS = w.audio.pts
	w.audioFrame.DTS = w.audio.pts

	return w.writeFrame(&w.audioFrame, w.audio.buf.Bytes())
}

// targetDuration is the maximum fragment duration rounded to the nearest
// integer, which is the bound that EXTINF durations must respect (RFC 8216, 4.3.3.1).
// It is never below the configured fragment duration.
func (w *fragmentWindow) targetDuration() int {
	ret := int(w.fragmentDuration / time.Second)

	for _, f := range w.ring.live() {
		if f.duration.Seconds() > float64(ret) {
			ret = int(f.duration.Seconds() + .5)
		}
	}

	return ret
}

func (w *fragmentWindow) generatePlaylist() ([]byte, error) {
	live := w.ring.live()

	pl := &playlist.Media{
		Version:        3,
		MediaSequence:  w.ring.head,
		TargetDuration: w.targetDuration(),
		Segments:       make([]*playlist.MediaSegment, len(live)),
	}

	for i, f := range live {
		pl.Segments[i] = &playlist.MediaSegment{
			Duration:      f.duration,
			URI:           fragmentName(f.id),
			Discontinuity: f.discont,
		}
	}

	return pl.Marshal()
}

// writePlaylist writes the playlist into a temporary file, then replaces the
// previous playlist with it.
func (w *fragmentWindow) writePlaylist() error {
	buf, err := w.generatePlaylist()
	if err != nil {
		return err
	}

	tmpName := w.playlistName + ".bak"

	f, err := w.storageFactory.NewFile(tmpName)
	if err != nil {
		return fmt.Errorf("unable to create playlist: %w", err)
	}

	_, err = f.Write(buf)
	if err != nil {
		f.Finalize() //nolint:errcheck
		return fmt.Errorf("unable to write playlist: %w", err)
	}

	err = f.Finalize()
	if err != nil {
		return fmt.Errorf("unable to write playlist: %w", err)
	}

	err = w.storageFactory.Rename(tmpName, w.playlistName)
	if err != nil {
		return fmt.Errorf("unable to rename playlist: %w", err)
	}

	w.metrics.PlaylistWrites.Add(1)

	return nil
}
