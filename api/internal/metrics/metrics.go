package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"img2tex/api/internal/extract"
)

const namespace = "img2tex"

// Collector counts extraction outcomes. It satisfies extract.Observer.
type Collector struct {
	registry *prometheus.Registry
	total    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	imageLen prometheus.Histogram
}

// New registers the extraction metrics on a private registry together with
// the Go and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction attempts by provider, tier and outcome.",
		}, []string{"surface", "provider", "tier", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent on one extraction, provider call included.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"provider", "outcome"}),
		imageLen: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_bytes",
			Help:      "Length of the inbound image reference.",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 10),
		}),
	}
	reg.MustRegister(
		c.total,
		c.latency,
		c.imageLen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Observe(a extract.Attempt) {
	c.total.WithLabelValues(a.Surface, a.Provider, string(a.Tier), string(a.Outcome)).Inc()
	c.latency.WithLabelValues(a.Provider, string(a.Outcome)).Observe(a.Latency.Seconds())
	if a.ImageBytes > 0 {
		c.imageLen.Observe(float64(a.ImageBytes))
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
