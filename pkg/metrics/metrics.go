// Package metrics exposes Prometheus instrumentation for generation calls and
// research runs.
package metrics

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mikeboe/research-mcp/pkg/research"
)

type Collector struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	runs       *prometheus.CounterVec
	runRounds  prometheus.Histogram
	runSources prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research",
			Name:      "generation_requests_total",
			Help:      "Generation calls by capability set and outcome.",
		}, []string{"capabilities", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "research",
			Name:      "generation_duration_seconds",
			Help:      "Latency of generation calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"capabilities"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research",
			Name:      "runs_total",
			Help:      "Finished research loops by stop reason.",
		}, []string{"stop_reason"}),
		runRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "research",
			Name:      "run_rounds",
			Help:      "Search rounds executed per research loop.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		runSources: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "research",
			Name:      "run_sources",
			Help:      "Distinct sources cited per research loop.",
			Buckets:   prometheus.LinearBuckets(0, 5, 11),
		}),
	}
	reg.MustRegister(c.requests, c.duration, c.runs, c.runRounds, c.runSources)
	return c
}

// Instrument wraps gen so every call is counted and timed.
func (c *Collector) Instrument(gen research.Generator) research.Generator {
	return &instrumented{next: gen, c: c}
}

// ObserveRun implements research.RunObserver.
func (c *Collector) ObserveRun(report *research.Report, err error) {
	if err != nil {
		c.runs.WithLabelValues(outcomeOf(err)).Inc()
		return
	}
	c.runs.WithLabelValues(string(report.StopReason)).Inc()
	c.runRounds.Observe(float64(report.Rounds))
	c.runSources.Observe(float64(len(report.Sources)))
}

type instrumented struct {
	next research.Generator
	c    *Collector
}

func (i *instrumented) Generate(ctx context.Context, req research.GenerateRequest) (*research.Generation, error) {
	label := capabilityLabel(req)
	start := time.Now()
	gen, err := i.next.Generate(ctx, req)
	i.c.duration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	i.c.requests.WithLabelValues(label, outcomeOf(err)).Inc()
	return gen, err
}

func capabilityLabel(req research.GenerateRequest) string {
	if len(req.Capabilities) == 0 {
		return "none"
	}
	names := make([]string, 0, len(req.Capabilities))
	for _, c := range req.Capabilities {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case research.IsConfigurationError(err):
		return "configuration_error"
	case research.IsUpstreamError(err):
		return "upstream_error"
	case research.IsValidationError(err):
		return "validation_error"
	}
	return "error"
}
