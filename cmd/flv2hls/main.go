// Command flv2hls converts a FLV file, or a sequence of FLV clips,
// into MPEG-TS fragments and a HLS playlist.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bluenviron/flv2hls"
	"github.com/bluenviron/flv2hls/pkg/flv"
)

type options struct {
	source        string
	output        string
	listen        string
	window        int
	fragLen       int
	maxFragLen    int
	sync          int
	maxAudioDelay int
	follow        bool
	removeEvicted bool
	debug         bool
}

func newLogFunc(debug bool) flv2hls.LogFunc {
	return func(level flv2hls.LogLevel, format string, args ...interface{}) {
		if level == flv2hls.LogLevelDebug && !debug {
			return
		}
		log.Printf(level.String()+" "+format, args...)
	}
}

func run(ctx context.Context, o *options) error {
	logFunc := newLogFunc(o.debug)
	metrics := flv2hls.NewMetrics()

	if o.output == "" {
		o.output = "hls_" + strings.TrimSuffix(filepath.Base(o.source), filepath.Ext(o.source))
	}

	r := &flv2hls.Remuxer{
		Directory:              o.output,
		WindowSize:             o.window,
		FragmentDuration:       time.Duration(o.fragLen) * time.Millisecond,
		FragmentMaxDuration:    time.Duration(o.maxFragLen) * time.Millisecond,
		AudioSyncTolerance:     time.Duration(o.sync) * time.Millisecond,
		DisableAudioSync:       o.sync == 0,
		MaxAudioDelay:          time.Duration(o.maxAudioDelay) * time.Millisecond,
		RemoveEvictedFragments: o.removeEvicted,
		Log:                    logFunc,
		Metrics:                metrics,
	}
	err := r.Initialize()
	if err != nil {
		return err
	}

	src := &flv2hls.Source{
		Path:   o.source,
		Follow: o.follow,
		Log:    logFunc,
	}
	err = src.Initialize()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if o.listen != "" {
		srv := &flv2hls.Server{
			Address:        o.listen,
			StorageFactory: r.StorageFactory,
			PlaylistName:   r.PlaylistName,
			Metrics:        metrics,
			Log:            logFunc,
		}
		err = srv.Initialize()
		if err != nil {
			return err
		}

		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	g.Go(func() error {
		err := src.Run(ctx, func(tag *flv.Tag) error {
			if err := r.WriteTag(tag); err != nil {
				logFunc(flv2hls.LogLevelError, "%v", err)
			}
			return nil
		})

		if cerr := r.Close(); cerr != nil {
			logFunc(flv2hls.LogLevelError, "%v", cerr)
		}

		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		logFunc(flv2hls.LogLevelInfo, "job finished, %d fragments written", metrics.Fragments.Load())
		return nil
	})

	return g.Wait()
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:          "flv2hls",
		Short:        "Convert FLV into HLS",
		Long:         `Convert a FLV file with H264 and AAC into MPEG-TS fragments and a HLS playlist`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.source, "source", "s", "test.flv", "input FLV file")
	f.StringVarP(&o.output, "output", "o", "", "output directory (default hls_<source>)")
	f.StringVarP(&o.listen, "listen", "l", "", "address of the HTTP server, disabled if empty")
	f.IntVarP(&o.window, "window", "w", 6, "number of fragments in the playlist")
	f.IntVarP(&o.fragLen, "fraglen", "f", 3000, "minimum fragment length in milliseconds")
	f.IntVarP(&o.maxFragLen, "max-fraglen", "m", 5000, "fragment length in milliseconds after which the next key frame splits")
	f.IntVar(&o.sync, "sync", 2, "audio timestamp jitter that is corrected, in milliseconds, 0 disables")
	f.IntVar(&o.maxAudioDelay, "max-audio-delay", 300, "maximum audio buffering in milliseconds")
	f.BoolVar(&o.follow, "follow", false, "after the end of source, read clips named <source>-<id>.flv")
	f.BoolVar(&o.removeEvicted, "remove-evicted", false, "remove fragments that left the playlist")
	f.BoolVar(&o.debug, "debug", false, "print debug messages")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		os.Exit(1)
	}
}
