// Package eventstore records kit runs as events in SQLite and projects them
// into a run history.
package eventstore

import (
	"context"
	"sort"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunSummary is the read model of one kit run.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Status       string        `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Hosts        []string      `json:"hosts,omitempty"`
	Version      string        `json:"version,omitempty"`
	ReleaseDir   string        `json:"release_dir,omitempty"`
	Artifacts    int           `json:"artifacts"`
	DryRun       bool          `json:"dry_run,omitempty"`
	ErrorStage   string        `json:"error_stage,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// History replays stored events into run summaries.
type History struct {
	store   Store
	maxSize int
}

// NewHistory creates a history view over store returning at most maxSize runs.
func NewHistory(store Store, maxSize int) *History {
	if maxSize <= 0 {
		maxSize = 20
	}
	return &History{store: store, maxSize: maxSize}
}

// List returns the most recent runs, newest first.
func (h *History) List(ctx context.Context) ([]*RunSummary, error) {
	events, err := h.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return nil, err
	}

	runs := make(map[string]*RunSummary)
	for _, e := range events {
		apply(runs, e)
	}

	out := make([]*RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > h.maxSize {
		out = out[:h.maxSize]
	}
	return out, nil
}

// Get replays the events of a single run.
func (h *History) Get(ctx context.Context, runID string) (*RunSummary, bool, error) {
	events, err := h.store.GetByRunID(ctx, runID)
	if err != nil {
		return nil, false, err
	}
	if len(events) == 0 {
		return nil, false, nil
	}
	runs := make(map[string]*RunSummary, 1)
	for _, e := range events {
		apply(runs, e)
	}
	return runs[runID], true, nil
}

func apply(runs map[string]*RunSummary, e Event) {
	id := e.RunID()
	if id == "" {
		return
	}
	s, ok := runs[id]
	if !ok {
		s = &RunSummary{RunID: id, Status: StatusRunning, StartedAt: e.Timestamp()}
		runs[id] = s
	}

	finish := func(status string) {
		at := e.Timestamp()
		s.CompletedAt = &at
		s.Duration = at.Sub(s.StartedAt)
		s.Status = status
	}

	switch e.Type() {
	case TypeRunStarted:
		var p RunStarted
		if Decode(e, &p) == nil {
			s.StartedAt = e.Timestamp()
			s.Hosts = p.Hosts
			s.DryRun = p.DryRun
		}
	case TypeHostCheckedOut:
		var p HostCheckedOut
		if Decode(e, &p) == nil && s.Version == "" {
			s.Version = p.Version
		}
	case TypeArtifactRetrieved:
		s.Artifacts++
	case TypeRunCompleted:
		var p RunCompleted
		if Decode(e, &p) == nil {
			s.Version = p.Version
			s.ReleaseDir = p.ReleaseDir
		}
		finish(StatusCompleted)
	case TypeRunFailed:
		var p RunFailed
		if Decode(e, &p) == nil {
			s.ErrorStage = p.Stage
			s.ErrorMessage = p.Error
		}
		finish(StatusFailed)
	}
}
