package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms of a render run.
type Metrics struct {
	FramesRendered prometheus.Counter
	RenderFailures prometheus.Counter

	RenderDuration prometheus.Histogram
	LoadDuration   prometheus.Histogram
	FrameBytes     prometheus.Histogram

	// labels: format={png,webp,...}
	FramesByFormat *prometheus.CounterVec
}

// NewMetrics creates the run metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polarmap",
			Name:      "frames_rendered_total",
			Help:      "Total day images written.",
		}),
		RenderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polarmap",
			Name:      "render_failures_total",
			Help:      "Total day images that failed to render or write.",
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "polarmap",
			Name:      "render_duration_seconds",
			Help:      "Duration of rendering and encoding one day image.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "polarmap",
			Name:      "load_duration_seconds",
			Help:      "Duration of loading the input array.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		FrameBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "polarmap",
			Name:      "frame_bytes",
			Help:      "Size of written day images in bytes.",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 8),
		}),
		FramesByFormat: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polarmap",
			Name:      "frames_by_format_total",
			Help:      "Day images written by image format.",
		}, []string{"format"}),
	}

	reg.MustRegister(
		m.FramesRendered,
		m.RenderFailures,
		m.RenderDuration,
		m.LoadDuration,
		m.FrameBytes,
		m.FramesByFormat,
	)
	return m
}

// WriteTextfile dumps the gathered metrics in the node exporter textfile
// format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
