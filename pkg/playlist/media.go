package playlist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/flv2hls/pkg/playlist/primitives"
)

// Media is a media playlist.
type Media struct {
	// EXT-X-VERSION (required)
	Version int

	// EXT-X-MEDIA-SEQUENCE (required)
	MediaSequence uint64

	// EXT-X-TARGETDURATION (required)
	TargetDuration int

	// segments
	Segments []*MediaSegment
}

// Unmarshal decodes the playlist.
func (m *Media) Unmarshal(buf []byte) error {
	s, err := primitives.HeaderUnmarshal(string(buf))
	if err != nil {
		return err
	}

	curSegment := &MediaSegment{}

	for {
		var line string
		line, s = primitives.ReadLine(s)
		if line == "" && s == "" {
			break
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			line = line[len("#EXT-X-VERSION:"):]

			var tmp uint64
			tmp, err = strconv.ParseUint(line, 10, 31)
			if err != nil {
				return err
			}
			m.Version = int(tmp)

			if m.Version > maxSupportedVersion {
				return fmt.Errorf("unsupported HLS version (%d)", m.Version)
			}

		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			line = line[len("#EXT-X-MEDIA-SEQUENCE:"):]

			m.MediaSequence, err = strconv.ParseUint(line, 10, 64)
			if err != nil {
				return err
			}

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			line = line[len("#EXT-X-TARGETDURATION:"):]

			var tmp uint64
			tmp, err = strconv.ParseUint(line, 10, 31)
			if err != nil {
				return err
			}
			m.TargetDuration = int(tmp)

		case line == "#EXT-X-DISCONTINUITY":
			curSegment.Discontinuity = true

		case strings.HasPrefix(line, "#EXTINF:"):
			line = line[len("#EXTINF:"):]
			line, _, _ = strings.Cut(line, ",")

			curSegment.Duration, err = primitives.DurationUnmarshal(line)
			if err != nil {
				return err
			}

		case len(line) != 0 && line[0] != '#':
			curSegment.URI = line

			err = curSegment.validate()
			if err != nil {
				return err
			}

			m.Segments = append(m.Segments, curSegment)
			curSegment = &MediaSegment{}
		}
	}

	if m.TargetDuration == 0 {
		return fmt.Errorf("TARGETDURATION not set")
	}

	return nil
}

// Marshal encodes the playlist.
func (m Media) Marshal() ([]byte, error) {
	var ret strings.Builder

	ret.WriteString("#EXTM3U\n" +
		"#EXT-X-VERSION:" + strconv.FormatInt(int64(m.Version), 10) + "\n" +
		"#EXT-X-MEDIA-SEQUENCE:" + strconv.FormatUint(m.MediaSequence, 10) + "\n" +
		"#EXT-X-TARGETDURATION:" + strconv.FormatInt(int64(m.TargetDuration), 10) + "\n")

	for _, seg := range m.Segments {
		ret.WriteString(seg.marshal())
	}

	return []byte(ret.String()), nil
}
