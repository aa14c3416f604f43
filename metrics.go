package compositor

import "github.com/prometheus/client_golang/prometheus"

// metrics bundles the compositor's Prometheus instrumentation. A fresh
// registry is used per Compositor instance (rather than the global default
// registry) so multiple compositors can coexist in one process/test binary
// without "duplicate metrics collector registration" panics, following the
// per-instance registry pattern used across the pack's server components.
type metrics struct {
	registry *prometheus.Registry

	framesRendered   prometheus.Counter
	framesSkipped    prometheus.Counter
	decodeLatency    prometheus.Histogram
	audioBufDropped  prometheus.Counter
	audioBufLate     prometheus.Counter
	workerRoundTrip  prometheus.Histogram
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	decoderRestarts  prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		framesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_frames_rendered_total",
			Help: "Composition frames blended by the layer blender, including exports.",
		}),
		framesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_frames_skipped_total",
			Help: "Ticks where drawing was skipped due to renderPending overlap.",
		}),
		decodeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compositor_decode_latency_seconds",
			Help:    "Time spent advancing a video decoder per getFrameAt cache miss.",
			Buckets: prometheus.DefBuckets,
		}),
		audioBufDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_audio_buffers_dropped_total",
			Help: "Decoded audio buffers dropped for arriving more than one buffer late.",
		}),
		audioBufLate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_audio_buffers_late_total",
			Help: "Decoded audio buffers scheduled immediately with a partial-skip offset.",
		}),
		workerRoundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compositor_worker_roundtrip_seconds",
			Help:    "Latency of a worker protocol request/response round trip.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_frame_cache_hits_total",
			Help: "Frame cache lookups served without a decoder advance.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_frame_cache_misses_total",
			Help: "Frame cache lookups that required a decoder advance.",
		}),
		decoderRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_decoder_restarts_total",
			Help: "Video decoder iterator restarts past the re-seek threshold.",
		}),
	}
	reg.MustRegister(
		m.framesRendered, m.framesSkipped, m.decodeLatency,
		m.audioBufDropped, m.audioBufLate, m.workerRoundTrip,
		m.cacheHits, m.cacheMisses, m.decoderRestarts,
	)
	return m
}
