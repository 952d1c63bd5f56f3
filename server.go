package flv2hls

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bluenviron/flv2hls/pkg/playlist"
	"github.com/bluenviron/flv2hls/pkg/storage"
)

const (
	segmentMaxAge = "3600"
)

// Server serves the playlist and the fragments of a Remuxer over HTTP.
//
// Routes:
//   - GET /hls/<PlaylistName>
//   - GET /hls/<id>.ts
//   - GET /metrics
type Server struct {
	//
	// parameters (all optional except StorageFactory).
	//
	// listen address.
	// It defaults to :8888.
	Address string
	// storage of fragments and playlist.
	StorageFactory storage.Factory
	// name of the playlist.
	// It defaults to index.m3u8.
	PlaylistName string
	// metrics exposed on /metrics.
	Metrics *Metrics
	// function that receives log messages.
	// It defaults to log.Printf.
	Log LogFunc

	//
	// private
	//

	handler    http.Handler
	ln         net.Listener
	httpServer *http.Server
}

// Initialize initializes the Server and starts listening.
func (s *Server) Initialize() error {
	if s.StorageFactory == nil {
		return errors.New("StorageFactory is not set")
	}
	if s.Address == "" {
		s.Address = ":8888"
	}
	if s.PlaylistName == "" {
		s.PlaylistName = "index.m3u8"
	}
	if s.Log == nil {
		s.Log = defaultLog
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/hls/:file", s.onFile)
	if s.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	s.handler = router

	var err error
	s.ln, err = net.Listen("tcp", s.Address)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Log(LogLevelInfo, "listening on %s", s.ln.Addr())

	return nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves requests until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(s.ln)
	}()

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx) //nolint:errcheck
		<-errChan
		return nil
	}
}

func (s *Server) readFile(name string) ([]byte, error) {
	r, err := s.StorageFactory.Reader(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

func (s *Server) onFile(ctx *gin.Context) {
	name := ctx.Param("file")

	switch {
	case name == s.PlaylistName:
		buf, err := s.readFile(name)
		if err != nil {
			ctx.AbortWithStatus(http.StatusNotFound)
			return
		}

		ctx.Header("Cache-Control", "no-cache")
		ctx.Data(http.StatusOK, "application/vnd.apple.mpegurl", buf)

	case path.Ext(name) == ".ts":
		if !s.isListed(name) {
			ctx.AbortWithStatus(http.StatusNotFound)
			return
		}

		buf, err := s.readFile(name)
		if err != nil {
			ctx.AbortWithStatus(http.StatusNotFound)
			return
		}

		ctx.Header("Cache-Control", "max-age="+segmentMaxAge)
		ctx.Data(http.StatusOK, "video/MP2T", buf)

	default:
		ctx.AbortWithStatus(http.StatusNotFound)
	}
}

// isListed checks that a fragment is in the current playlist.
func (s *Server) isListed(name string) bool {
	buf, err := s.readFile(s.PlaylistName)
	if err != nil {
		return false
	}

	var pl playlist.Media
	err = pl.Unmarshal(buf)
	if err != nil {
		s.Log(LogLevelWarn, "[%s] unable to decode playlist: %v", anomalyParse, err)
		return false
	}

	for _, seg := range pl.Segments {
		if seg.URI == name {
			return true
		}
	}

	return false
}
