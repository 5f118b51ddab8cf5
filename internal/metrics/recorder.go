package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for kit runs.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveHostDuration(host string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(result ResultLabel)
	AddArtifactBytes(host string, n int64)
	SetLastSuccess(t time.Time)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveHostDuration(string, time.Duration)  {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(ResultLabel)                  {}
func (NoopRecorder) AddArtifactBytes(string, int64)             {}
func (NoopRecorder) SetLastSuccess(time.Time)                   {}
