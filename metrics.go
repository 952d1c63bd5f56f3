package flv2hls

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the counters of a Remuxer.
// It can be shared between a Remuxer and a Server.
type Metrics struct {
	Tags           atomic.Uint64
	VideoFrames    atomic.Uint64
	AudioFrames    atomic.Uint64
	DroppedFrames  atomic.Uint64
	Fragments      atomic.Uint64
	PlaylistWrites atomic.Uint64
	AudioResyncs   atomic.Uint64

	ParseErrors  atomic.Uint64
	BufferErrors atomic.Uint64
	IOErrors     atomic.Uint64

	registry *prometheus.Registry
}

// NewMetrics allocates a Metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	for _, c := range []struct {
		name string
		help string
		v    *atomic.Uint64
	}{
		{"flv2hls_tags_total", "FLV tags received", &m.Tags},
		{"flv2hls_video_frames_total", "video access units written", &m.VideoFrames},
		{"flv2hls_audio_frames_total", "AAC frames buffered", &m.AudioFrames},
		{"flv2hls_dropped_frames_total", "frames dropped because of an error", &m.DroppedFrames},
		{"flv2hls_fragments_total", "fragments opened", &m.Fragments},
		{"flv2hls_playlist_writes_total", "playlist rewrites", &m.PlaylistWrites},
		{"flv2hls_audio_resyncs_total", "audio timestamp resynchronizations", &m.AudioResyncs},
	} {
		v := c.v
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(v.Load()) },
		))
	}

	for kind, v := range map[anomalyKind]*atomic.Uint64{
		anomalyParse:  &m.ParseErrors,
		anomalyBuffer: &m.BufferErrors,
		anomalyIO:     &m.IOErrors,
	} {
		v := v
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name:        "flv2hls_anomalies_total",
				Help:        "recoverable errors",
				ConstLabels: prometheus.Labels{"kind": string(kind)},
			},
			func() float64 { return float64(v.Load()) },
		))
	}

	return m
}

func (m *Metrics) anomaly(kind anomalyKind) {
	switch kind {
	case anomalyParse:
		m.ParseErrors.Add(1)
	case anomalyBuffer:
		m.BufferErrors.Add(1)
	case anomalyIO:
		m.IOErrors.Add(1)
	}
}

// Handler returns a HTTP handler that exposes the metrics in the Prometheus format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
