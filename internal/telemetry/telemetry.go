package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const namespace = "xbuild"

// Collector holds the metrics of one xbuild run in a private registry.
// A nil or disabled Collector accepts every call and records nothing.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	builds       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	targets      prometheus.Gauge
	compressions *prometheus.CounterVec
	publishes    *prometheus.CounterVec
	lastRun      prometheus.Gauge
}

// NewCollector creates a collector. Metrics are only registered when enabled.
func NewCollector(enabled bool) *Collector {
	c := &Collector{enabled: enabled, registry: prometheus.NewRegistry()}
	if !enabled {
		return c
	}

	c.builds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "builds_total",
		Help:      "Target builds attempted, by outcome.",
	}, []string{"platform", "arch", "status"})
	c.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "build_duration_seconds",
		Help:      "Wall time of a single target build.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"platform", "arch"})
	c.targets = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "batch_targets",
		Help:      "Number of targets selected for the last batch.",
	})
	c.compressions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compressions_total",
		Help:      "Artifact compressions attempted, by outcome.",
	}, []string{"status"})
	c.publishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publishes_total",
		Help:      "Artifact uploads attempted, by publisher and outcome.",
	}, []string{"publisher", "status"})
	c.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last batch finished.",
	})

	c.registry.MustRegister(c.builds, c.duration, c.targets, c.compressions, c.publishes, c.lastRun)
	return c
}

func (c *Collector) active() bool { return c != nil && c.enabled }

// Registry exposes the underlying registry, e.g. for tests or a custom exporter.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return prometheus.NewRegistry()
	}
	return c.registry
}

// RecordBuild records the outcome and duration of one target build.
func (c *Collector) RecordBuild(platform, arch, status string, d time.Duration) {
	if !c.active() {
		return
	}
	c.builds.WithLabelValues(platform, arch, status).Inc()
	c.duration.WithLabelValues(platform, arch).Observe(d.Seconds())
}

// RecordBatch records the size of a batch and the time it finished.
func (c *Collector) RecordBatch(targets int, finished time.Time) {
	if !c.active() {
		return
	}
	c.targets.Set(float64(targets))
	c.lastRun.Set(float64(finished.Unix()))
}

// RecordCompression counts one compression attempt.
func (c *Collector) RecordCompression(status string) {
	if !c.active() {
		return
	}
	c.compressions.WithLabelValues(status).Inc()
}

// RecordPublish counts one upload attempt.
func (c *Collector) RecordPublish(publisher, status string) {
	if !c.active() {
		return
	}
	c.publishes.WithLabelValues(publisher, status).Inc()
}

// WriteTextfile writes the registry in the text exposition format, suitable
// for the node exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if !c.active() {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	log.Debug().Str("path", path).Msg("Wrote metrics textfile")
	return nil
}
