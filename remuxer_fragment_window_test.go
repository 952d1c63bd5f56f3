package flv2hls

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/grafov/m3u8"
	"github.com/stretchr/testify/require"

	"github.com/bluenviron/flv2hls/pkg/adts"
	"github.com/bluenviron/flv2hls/pkg/mpegts"
	"github.com/bluenviron/flv2hls/pkg/storage"
)

func nopLog(LogLevel, string, ...interface{}) {}

func newTestWindow(s storage.Factory, size int) *fragmentWindow {
	a := newAudioAligner(1024, 0)
	a.header = adts.Header{ObjectType: 2, SampleRateIndex: 3, ChannelConfig: 2}

	w := &fragmentWindow{
		storageFactory:      s,
		playlistName:        "index.m3u8",
		fragmentDuration:    3 * time.Second,
		fragmentMaxDuration: 5 * time.Second,
		maxAudioDelay:       300 * time.Millisecond,
		audio:               a,
		log:                 nopLog,
		metrics:             NewMetrics(),
	}
	w.initialize(size)
	return w
}

func readStorageFile(t *testing.T, s storage.Factory, name string) []byte {
	r, err := s.Reader(name)
	require.NoError(t, err)
	defer r.Close()

	buf, err := io.ReadAll(r)
	require.NoError(t, err)
	return buf
}

func TestFragmentWindowBoundaries(t *testing.T) {
	s := storage.NewFactoryRAM()
	w := newTestWindow(s, 6)

	for _, ca := range []struct {
		ms     uint64
		nextID uint64
	}{
		{0, 0},
		{2900, 0},
		{3100, 1},
	} {
		err := w.update(ca.ms*90, true, 1)
		require.NoError(t, err)
		require.True(t, w.opened)
		require.Equal(t, ca.nextID, w.ring.nextID())
	}

	require.Equal(t, uint64(2), w.metrics.Fragments.Load())
	require.Equal(t, uint64(3100*90), w.fragTS)

	require.Equal(t, "#EXTM3U\n"+
		"#EXT-X-VERSION:3\n"+
		"#EXT-X-MEDIA-SEQUENCE:0\n"+
		"#EXT-X-TARGETDURATION:3\n"+
		"#EXTINF:3.100,\n"+
		"0.ts\n", string(readStorageFile(t, s, "index.m3u8")))

	// the fragment that is being written is not listed
	_, err := s.Reader("index.m3u8.bak")
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFragmentWindowMaxDuration(t *testing.T) {
	s := storage.NewFactoryRAM()
	w := newTestWindow(s, 6)

	err := w.update(0, true, 1)
	require.NoError(t, err)

	// fragments are not split without a key frame
	for ms := uint64(1000); ms <= 6000; ms += 1000 {
		err = w.update(ms*90, false, 1)
		require.NoError(t, err)
		require.Equal(t, uint64(0), w.ring.nextID())
	}
	require.Equal(t, 6*time.Second, w.ring.current().duration)

	err = w.update(7000*90, true, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), w.ring.nextID())

	require.Equal(t, "#EXTM3U\n"+
		"#EXT-X-VERSION:3\n"+
		"#EXT-X-MEDIA-SEQUENCE:0\n"+
		"#EXT-X-TARGETDURATION:7\n"+
		"#EXTINF:7.000,\n"+
		"0.ts\n", string(readStorageFile(t, s, "index.m3u8")))
}

func TestFragmentWindowDiscontinuity(t *testing.T) {
	s := storage.NewFactoryRAM()
	w := newTestWindow(s, 6)

	for _, ms := range []uint64{0, 4000, 1000} {
		err := w.update(ms*90, true, 1)
		require.NoError(t, err)
	}

	err := w.finish(2000 * 90)
	require.NoError(t, err)
	require.False(t, w.opened)

	require.Equal(t, "#EXTM3U\n"+
		"#EXT-X-VERSION:3\n"+
		"#EXT-X-MEDIA-SEQUENCE:0\n"+
		"#EXT-X-TARGETDURATION:4\n"+
		"#EXTINF:4.000,\n"+
		"0.ts\n"+
		"#EXTINF:0.000,\n"+
		"1.ts\n"+
		"#EXT-X-DISCONTINUITY\n"+
		"#EXTINF:1.000,\n"+
		"2.ts\n", string(readStorageFile(t, s, "index.m3u8")))
}

func TestFragmentWindowEviction(t *testing.T) {
	s := storage.NewFactoryRAM()
	w := newTestWindow(s, 3)
	w.removeEvicted = true

	// 10 fragments
	for i := uint64(0); i < 10; i++ {
		err := w.update(i*3000*90, true, 1)
		require.NoError(t, err)
		require.LessOrEqual(t, w.ring.count, 3)
	}

	buf := readStorageFile(t, s, "index.m3u8")

	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(buf), true)
	require.NoError(t, err)
	require.Equal(t, m3u8.MEDIA, listType)

	media := pl.(*m3u8.MediaPlaylist)
	require.Equal(t, uint64(6), media.SeqNo)
	require.Equal(t, uint(3), media.Count())
	require.Equal(t, "6.ts", media.Segments[0].URI)
	require.Equal(t, "7.ts", media.Segments[1].URI)
	require.Equal(t, "8.ts", media.Segments[2].URI)
	require.Equal(t, float64(3), media.Segments[2].Duration)

	// fragments are removed when their slot is reused
	for id := 0; id < 3; id++ {
		_, err = s.Reader(fragmentName(uint64(id)))
		require.True(t, errors.Is(err, os.ErrNotExist))
	}
	for id := 3; id < 9; id++ {
		readStorageFile(t, s, fragmentName(uint64(id)))
	}
}

func TestFragmentWindowTargetDuration(t *testing.T) {
	for _, ca := range []struct {
		name      string
		durations []time.Duration
		target    int
	}{
		{
			"configured",
			[]time.Duration{2 * time.Second, 3 * time.Second},
			3,
		},
		{
			"rounded down",
			[]time.Duration{3400 * time.Millisecond},
			3,
		},
		{
			"rounded up",
			[]time.Duration{3 * time.Second, 3500 * time.Millisecond, 3400 * time.Millisecond},
			4,
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			w := newTestWindow(storage.NewFactoryRAM(), 6)

			for i, d := range ca.durations {
				*w.ring.current() = fragment{
					id:       uint64(i),
					duration: d,
					active:   true,
				}
				w.ring.advance()
			}

			require.Equal(t, ca.target, w.targetDuration())
		})
	}
}

func TestFragmentWindowAudioFlush(t *testing.T) {
	for _, ca := range []struct {
		name      string
		flushRate uint64
		ts        uint64
		flushed   bool
	}{
		{"video, recent", 1, 27000, false},
		{"video, late", 1, 27001, true},
		{"audio, recent", 2, 13500, false},
		{"audio, late", 2, 13501, true},
	} {
		t.Run(ca.name, func(t *testing.T) {
			s := storage.NewFactoryRAM()
			w := newTestWindow(s, 6)

			err := w.update(0, true, 1)
			require.NoError(t, err)

			err = w.audio.push(0, []byte{1, 2, 3})
			require.NoError(t, err)

			err = w.update(ca.ts, false, ca.flushRate)
			require.NoError(t, err)
			require.Equal(t, !ca.flushed, w.audio.buffered())
		})
	}
}

func TestFragmentWindowAudioLeadsFragment(t *testing.T) {
	s := storage.NewFactoryRAM()
	w := newTestWindow(s, 6)

	err := w.audio.push(90, []byte{1, 2, 3})
	require.NoError(t, err)

	err = w.update(0, true, 1)
	require.NoError(t, err)
	require.False(t, w.audio.buffered())

	err = w.finish(90000)
	require.NoError(t, err)

	buf := readStorageFile(t, s, "0.ts")
	require.Len(t, buf, 3*mpegts.PacketSize)
	require.Equal(t, []byte{0x47, 0x40, 0x00}, buf[:3])
	require.Equal(t, []byte{0x47, 0x50, 0x00}, buf[mpegts.PacketSize:mpegts.PacketSize+3])

	pkt := buf[2*mpegts.PacketSize:]
	require.Equal(t, []byte{0x47, 0x41, 0x01}, pkt[:3])
	require.Equal(t, []byte{0xff, 0xf1, 0x4c, 0x80, 0x01, 0x5f, 0xfc, 1, 2, 3}, pkt[mpegts.PacketSize-10:])
}

func TestFragmentWindowDiscardAudio(t *testing.T) {
	s := storage.NewFactoryRAM()
	w := newTestWindow(s, 6)

	err := w.audio.push(0, []byte{1, 2, 3})
	require.NoError(t, err)

	err = w.flushAudio()
	require.NoError(t, err)
	require.False(t, w.audio.buffered())
	require.Equal(t, uint64(1), w.metrics.BufferErrors.Load())
}
