package flv2hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bluenviron/flv2hls/pkg/flv"
)

// SourceOnTagFunc is the prototype of the callback passed to Source.Run.
type SourceOnTagFunc func(*flv.Tag) error

// Source reads FLV tags from a file.
//
// When Follow is true, the end of a file is not the end of the stream: the
// next clip, named <ClipPrefix>-<ID>.flv, is opened as soon as it exists.
// Clips are expected to be complete when they appear: a clip that ends with a
// truncated tag is considered finished and the partial tag is discarded.
type Source struct {
	//
	// parameters (all optional except Path).
	//
	// path of the first file.
	Path string
	// read clips after the end of Path.
	Follow bool
	// prefix of clip paths.
	// It defaults to Path without extension.
	ClipPrefix string
	// ID of the first clip.
	// It defaults to the current UNIX time minus 10.
	StartID int64
	// interval between attempts to open the next clip.
	// It defaults to 1sec.
	RetryInterval time.Duration
	// function that receives log messages.
	// It defaults to log.Printf.
	Log LogFunc

	//
	// private
	//

	nextID int64
}

// Initialize initializes Source.
func (s *Source) Initialize() error {
	if s.Path == "" {
		return fmt.Errorf("path is empty")
	}
	if s.ClipPrefix == "" {
		s.ClipPrefix = strings.TrimSuffix(s.Path, filepath.Ext(s.Path))
	}
	if s.StartID == 0 {
		s.StartID = time.Now().Unix() - 10
	}
	if s.RetryInterval == 0 {
		s.RetryInterval = 1 * time.Second
	}
	if s.Log == nil {
		s.Log = defaultLog
	}

	s.nextID = s.StartID

	return nil
}

// ClipPath returns the path of the clip with the given ID.
func (s *Source) ClipPath(id int64) string {
	return s.ClipPrefix + "-" + strconv.FormatInt(id, 10) + ".flv"
}

// Run reads tags and passes them to onTag, until the end of the stream,
// an error or the cancellation of ctx.
func (s *Source) Run(ctx context.Context, onTag SourceOnTagFunc) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return err
	}

	for {
		err = s.readAll(ctx, f, onTag)
		f.Close()

		if err != nil {
			return err
		}

		if !s.Follow {
			return nil
		}

		f, err = s.openNextClip(ctx)
		if err != nil {
			return err
		}
	}
}

func (s *Source) readAll(ctx context.Context, f *os.File, onTag SourceOnTagFunc) error {
	r := flv.NewReader(f)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tag, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			if s.Follow && errors.Is(err, io.ErrUnexpectedEOF) {
				s.Log(LogLevelWarn, "[%s] %s ends with a truncated tag", anomalyIO, f.Name())
				return nil
			}

			return fmt.Errorf("%s: %w", f.Name(), err)
		}

		err = onTag(tag)
		if err != nil {
			return err
		}
	}
}

func (s *Source) openNextClip(ctx context.Context) (*os.File, error) {
	for {
		fpath := s.ClipPath(s.nextID)

		f, err := os.Open(fpath)
		if err == nil {
			s.Log(LogLevelInfo, "reading clip %s", fpath)
			s.nextID++
			return f, nil
		}

		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		s.Log(LogLevelDebug, "clip %s not found, retrying in %v", fpath, s.RetryInterval)

		select {
		case <-time.After(s.RetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
