package eventstore

import (
	"context"
	"encoding/json"
	"time"
)

// Event type names.
const (
	TypeRunStarted         = "RunStarted"
	TypeHostCheckedOut     = "HostCheckedOut"
	TypeHostBuilt          = "HostBuilt"
	TypeVersionMismatch    = "VersionMismatch"
	TypeReleasePrepared    = "ReleasePrepared"
	TypeArtifactRetrieved  = "ArtifactRetrieved"
	TypeManifestWritten    = "ManifestWritten"
	TypeCandidatePublished = "CandidatePublished"
	TypeRunCompleted       = "RunCompleted"
	TypeRunFailed          = "RunFailed"
)

// Payload is the typed body of one event.
type Payload interface {
	EventType() string
}

// RunStarted is recorded once the source trees are known.
type RunStarted struct {
	CommunityURL  string   `json:"community_url"`
	EnterpriseURL string   `json:"enterprise_url"`
	Hosts         []string `json:"hosts"`
	DryRun        bool     `json:"dry_run,omitempty"`
}

// HostCheckedOut is recorded when a host has checked out both trees.
type HostCheckedOut struct {
	Host       string `json:"host"`
	Platform   string `json:"platform"`
	Version    string `json:"version"`
	DurationMS int64  `json:"duration_ms"`
}

// HostBuilt is recorded when both builds finished on a host.
type HostBuilt struct {
	Host       string `json:"host"`
	DurationMS int64  `json:"duration_ms"`
}

// VersionMismatch is recorded when a host disagrees with the first host.
type VersionMismatch struct {
	Host     string `json:"host"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// ReleasePrepared is recorded when the release directory is ready.
type ReleasePrepared struct {
	Dir      string `json:"dir"`
	Archived bool   `json:"archived"`
}

// ArtifactRetrieved is recorded for every file copied from a host.
type ArtifactRetrieved struct {
	Host     string `json:"host"`
	Artifact string `json:"artifact"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
}

// ManifestWritten is recorded after the checksum manifest is generated.
type ManifestWritten struct {
	Path  string   `json:"path"`
	Files []string `json:"files"`
}

// CandidatePublished is recorded when the candidate link moves.
type CandidatePublished struct {
	Link   string `json:"link"`
	Target string `json:"target"`
}

// RunCompleted closes a successful run.
type RunCompleted struct {
	Version    string `json:"version"`
	ReleaseDir string `json:"release_dir"`
	Artifacts  int    `json:"artifacts"`
	DurationMS int64  `json:"duration_ms"`
}

// RunFailed closes a failed run.
type RunFailed struct {
	Stage      string `json:"stage"`
	Error      string `json:"error"`
	DurationMS int64  `json:"duration_ms"`
}

func (RunStarted) EventType() string         { return TypeRunStarted }
func (HostCheckedOut) EventType() string     { return TypeHostCheckedOut }
func (HostBuilt) EventType() string          { return TypeHostBuilt }
func (VersionMismatch) EventType() string    { return TypeVersionMismatch }
func (ReleasePrepared) EventType() string    { return TypeReleasePrepared }
func (ArtifactRetrieved) EventType() string  { return TypeArtifactRetrieved }
func (ManifestWritten) EventType() string    { return TypeManifestWritten }
func (CandidatePublished) EventType() string { return TypeCandidatePublished }
func (RunCompleted) EventType() string       { return TypeRunCompleted }
func (RunFailed) EventType() string          { return TypeRunFailed }

// New encodes p as an event of run runID.
func New(runID string, p Payload) (*BaseEvent, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, storeError(ErrMarshalPayloadFailed, err)
	}
	return &BaseEvent{
		EventRunID:     runID,
		EventType:      p.EventType(),
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

// Record encodes p and appends it to store.
func Record(ctx context.Context, store Store, runID string, p Payload) error {
	e, err := New(runID, p)
	if err != nil {
		return err
	}
	return store.Append(ctx, runID, e.Type(), e.Payload(), e.Metadata())
}

// Decode unmarshals the payload of e into out.
func Decode(e Event, out any) error {
	return json.Unmarshal(e.Payload(), out)
}
