// Package metrics - Prometheus metrics for a counting session.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/nvr-ai/go-linecount/counter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one counting session.
type Metrics struct {
	Frames       prometheus.Counter
	Crossings    *prometheus.CounterVec
	Detections   prometheus.Histogram
	FrameSeconds prometheus.Histogram
	StageSeconds *prometheus.HistogramVec
	Errors       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linecount_frames_total",
			Help: "Frames processed",
		}),
		Crossings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linecount_crossings_total",
			Help: "Vehicles counted crossing the line",
		}, []string{"category"}),
		Detections: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linecount_detections",
			Help:    "Detections per frame after suppression",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		FrameSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linecount_frame_seconds",
			Help:    "Wall time to process one frame",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		StageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linecount_stage_seconds",
			Help:    "Wall time per pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"stage"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linecount_errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(m.Frames, m.Crossings, m.Detections, m.FrameSeconds, m.StageSeconds, m.Errors)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFrame records one processed frame.
//
// Arguments:
//   - result: The counter output of the frame.
//   - elapsed: The wall time spent on the frame.
func (m *Metrics) ObserveFrame(result counter.FrameResult, elapsed time.Duration) {
	m.Frames.Inc()
	m.Detections.Observe(float64(len(result.Detections)))
	m.FrameSeconds.Observe(elapsed.Seconds())
	for _, c := range result.Crossings {
		m.Crossings.WithLabelValues(c.Category.String()).Inc()
	}
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	m.StageSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveError counts an error of the given kind.
func (m *Metrics) ObserveError(kind string) {
	m.Errors.WithLabelValues(kind).Inc()
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdown)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
