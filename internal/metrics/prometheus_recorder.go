package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "kitbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg           *prom.Registry
	stageDuration *prom.HistogramVec
	stageResults  *prom.CounterVec
	hostDuration  *prom.HistogramVec
	runDuration   prom.Histogram
	runOutcomes   *prom.CounterVec
	artifactBytes *prom.CounterVec
	lastSuccess   prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg,
// or with a fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	// Builds take minutes to hours.
	buckets := prom.ExponentialBuckets(1, 2, 15)
	pr := &PrometheusRecorder{
		reg: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   buckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		hostDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "host_build_duration_seconds",
			Help:      "Checkout plus build time per host",
			Buckets:   buckets,
		}, []string{"host"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   buckets,
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Runs by final status",
		}, []string{"outcome"}),
		artifactBytes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_total",
			Help:      "Bytes retrieved from build hosts",
		}, []string{"host"}),
		lastSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.hostDuration, pr.runDuration, pr.runOutcomes, pr.artifactBytes, pr.lastSuccess)
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

// WriteTextfile writes the current metrics in the text exposition format,
// for collection by the node exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.reg)
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveHostDuration(host string, d time.Duration) {
	p.hostDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(result ResultLabel) {
	p.runOutcomes.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) AddArtifactBytes(host string, n int64) {
	p.artifactBytes.WithLabelValues(host).Add(float64(n))
}

func (p *PrometheusRecorder) SetLastSuccess(t time.Time) {
	p.lastSuccess.Set(float64(t.Unix()))
}
