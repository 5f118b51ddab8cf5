// Package metrics records kit run metrics.
//
// Components receive a Recorder; NoopRecorder is the default so callers never
// check for nil. PrometheusRecorder keeps the series in its own registry,
// which the build command writes to a node-exporter textfile and the
// scheduler serves over HTTP.
package metrics
