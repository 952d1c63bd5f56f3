package playlist

import (
	"fmt"
	"strings"
	"time"

	"github.com/bluenviron/flv2hls/pkg/playlist/primitives"
)

// MediaSegment is a segment of a media playlist.
type MediaSegment struct {
	// EXTINF
	// required
	Duration time.Duration

	// URI.
	// required
	URI string

	// EXT-X-DISCONTINUITY
	Discontinuity bool
}

func (s MediaSegment) validate() error {
	if s.URI == "" {
		return fmt.Errorf("URI is missing")
	}

	return nil
}

func (s MediaSegment) marshal() string {
	var ret strings.Builder

	if s.Discontinuity {
		ret.WriteString("#EXT-X-DISCONTINUITY\n")
	}

	ret.WriteString("#EXTINF:" + primitives.DurationMarshal(s.Duration) + ",\n")
	ret.WriteString(s.URI + "\n")

	return ret.String()
}
