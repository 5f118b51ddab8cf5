package kit

import (
	"context"
	stderrors "errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/kitbuilder/internal/checksum"
	"git.home.luguber.info/inful/kitbuilder/internal/config"
	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/eventstore"
	"git.home.luguber.info/inful/kitbuilder/internal/logfields"
	"git.home.luguber.info/inful/kitbuilder/internal/metrics"
	"git.home.luguber.info/inful/kitbuilder/internal/notify"
	"git.home.luguber.info/inful/kitbuilder/internal/observability"
	"git.home.luguber.info/inful/kitbuilder/internal/release"
	"git.home.luguber.info/inful/kitbuilder/internal/remote"
	"git.home.luguber.info/inful/kitbuilder/internal/source"
)

// Stage names used in logs, metrics and failure events.
const (
	StageResolve  = "resolve"
	StageCheckout = "checkout"
	StageBuild    = "build"
	StageVerify   = "verify"
	StagePrepare  = "prepare"
	StageRetrieve = "retrieve"
	StageChecksum = "checksum"
	StagePublish  = "publish"
)

// Request describes one kit run.
type Request struct {
	Trees source.Trees
	// DryRun logs remote commands and planned retrievals without executing
	// them or touching the release root.
	DryRun bool
}

// HostResult is the outcome of checkout and build on one host.
type HostResult struct {
	Host     string
	Platform string
	Address  string
	Version  string
	Duration time.Duration
}

// Result summarizes a kit run.
type Result struct {
	RunID      string
	Version    string
	ReleaseDir string
	Archived   bool
	Hosts      []HostResult
	Artifacts  []Retrieved
	Manifest   string
	Candidate  string
	DryRun     bool
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

// Service runs the kit pipeline for a configuration.
type Service struct {
	cfg       *config.Config
	resolver  Resolver
	connector Connector
	recorder  metrics.Recorder
	store     eventstore.Store
	notifier  notify.Notifier
	now       func() time.Time
	newID     func() string
}

// NewService creates a service with no-op metrics, history and notification.
// A resolver and connector must be provided with WithResolver and
// WithConnector before Run.
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		notifier: notify.Noop{},
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// WithResolver sets the host resolver.
func (s *Service) WithResolver(r Resolver) *Service {
	s.resolver = r
	return s
}

// WithConnector sets how runners are opened for hosts.
func (s *Service) WithConnector(c Connector) *Service {
	s.connector = c
	return s
}

// WithRecorder sets the metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithEventStore enables run history.
func (s *Service) WithEventStore(store eventstore.Store) *Service {
	s.store = store
	return s
}

// WithNotifier sets the candidate notifier.
func (s *Service) WithNotifier(n notify.Notifier) *Service {
	if n != nil {
		s.notifier = n
	}
	return s
}

// WithClock overrides the time source (for tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator overrides run id generation (for tests).
func (s *Service) WithIDGenerator(f func() string) *Service {
	s.newID = f
	return s
}

// run carries the state of a single Run call.
type run struct {
	*Service
	id      string
	req     Request
	result  *Result
	runners []remote.Runner

	mu    sync.Mutex
	stage string
}

func (r *run) setStage(name string) {
	r.mu.Lock()
	r.stage = name
	r.mu.Unlock()
}

// failedStage is the stage that was running when the run stopped.
func (r *run) failedStage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// Run executes the pipeline once: checkout and build on every host, version
// agreement, release directory preparation, retrieval, checksums and
// candidate publication. A version mismatch stops the run before the
// release directory is touched.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if s.resolver == nil || s.connector == nil {
		return nil, kerrors.InternalError("kit service requires a resolver and a connector").Build()
	}

	start := s.now()
	r := &run{
		Service: s,
		id:      s.newID(),
		req:     req,
		result:  &Result{StartTime: start, DryRun: req.DryRun},
	}
	r.result.RunID = r.id
	ctx = observability.WithRunID(ctx, r.id)
	defer r.closeRunners(ctx)

	err := r.execute(ctx)

	r.result.EndTime = s.now()
	r.result.Duration = r.result.EndTime.Sub(start)
	s.recorder.ObserveRunDuration(r.result.Duration)

	if err != nil {
		outcome := metrics.ResultFailed
		if stderrors.Is(err, context.Canceled) {
			outcome = metrics.ResultCanceled
		}
		s.recorder.IncRunOutcome(outcome)
		stage := r.failedStage()
		r.record(ctx, eventstore.RunFailed{Stage: stage, Error: err.Error(), DurationMS: r.result.Duration.Milliseconds()})
		observability.ErrorContext(ctx, "Kit run failed", logfields.Stage(stage), logfields.Error(err))
		return r.result, err
	}

	s.recorder.IncRunOutcome(metrics.ResultSuccess)
	if !req.DryRun {
		s.recorder.SetLastSuccess(r.result.EndTime)
	}
	r.record(ctx, eventstore.RunCompleted{
		Version:    r.result.Version,
		ReleaseDir: r.result.ReleaseDir,
		Artifacts:  len(r.result.Artifacts),
		DurationMS: r.result.Duration.Milliseconds(),
	})
	observability.InfoContext(ctx, "Kit run complete",
		logfields.Version(r.result.Version),
		logfields.Path(r.result.ReleaseDir),
		slog.Int("artifacts", len(r.result.Artifacts)),
		logfields.DurationMS(float64(r.result.Duration.Milliseconds())))
	return r.result, nil
}

func (r *run) execute(ctx context.Context) error {
	var hs []Host
	err := r.step(ctx, StageResolve, func(context.Context) error {
		var err error
		hs, err = ResolveHosts(r.cfg, r.resolver)
		return err
	})
	if err != nil {
		return err
	}

	names := make([]string, len(hs))
	for i, h := range hs {
		names[i] = h.Name
	}
	r.record(ctx, eventstore.RunStarted{
		CommunityURL:  r.req.Trees.Community,
		EnterpriseURL: r.req.Trees.Enterprise,
		Hosts:         names,
		DryRun:        r.req.DryRun,
	})
	observability.InfoContext(ctx, "Starting kit run",
		logfields.URL(r.req.Trees.Community),
		slog.String("enterprise_url", r.req.Trees.Enterprise),
		slog.Any("hosts", names),
		slog.Bool("dry_run", r.req.DryRun))

	r.runners = make([]remote.Runner, len(hs))
	r.result.Hosts = make([]HostResult, len(hs))
	if r.cfg.Build.Parallel && len(hs) > 1 {
		err = r.buildParallel(ctx, hs)
	} else {
		err = r.buildSequential(ctx, hs)
	}
	if err != nil {
		return err
	}
	version := r.result.Hosts[0].Version
	r.result.Version = version
	r.result.ReleaseDir = r.cfg.ReleaseDir(version)

	if r.req.DryRun {
		return r.dryRunRelease(ctx, hs)
	}

	err = r.step(ctx, StagePrepare, func(context.Context) error {
		archived, err := release.Prepare(r.result.ReleaseDir)
		r.result.Archived = archived
		if err == nil {
			r.record(ctx, eventstore.ReleasePrepared{Dir: r.result.ReleaseDir, Archived: archived})
		}
		return err
	})
	if err != nil {
		return err
	}

	if err := r.step(ctx, StageRetrieve, func(ctx context.Context) error { return r.retrieveAll(ctx, hs) }); err != nil {
		return err
	}

	err = r.step(ctx, StageChecksum, func(ctx context.Context) error {
		path, digests, err := checksum.WriteManifest(r.result.ReleaseDir, r.cfg.Release.Manifest, r.cfg.Release.ChecksumStyle)
		if err != nil {
			return err
		}
		r.result.Manifest = path
		files := make([]string, len(digests))
		for i, d := range digests {
			files[i] = d.Name
		}
		r.record(ctx, eventstore.ManifestWritten{Path: path, Files: files})
		observability.InfoContext(ctx, "Wrote checksum manifest", logfields.Path(path), slog.Int("files", len(files)))
		return nil
	})
	if err != nil {
		return err
	}

	err = r.step(ctx, StagePublish, func(ctx context.Context) error {
		link, err := release.PublishCandidate(r.cfg.Release.Root, r.cfg.Release.Candidate, r.result.ReleaseDir)
		if err != nil {
			return err
		}
		r.result.Candidate = link
		r.record(ctx, eventstore.CandidatePublished{Link: link, Target: r.result.ReleaseDir})
		observability.InfoContext(ctx, "Published candidate", logfields.Path(link), logfields.Version(version))
		return nil
	})
	if err != nil {
		return err
	}

	r.announce(ctx)
	return nil
}

// step runs fn as a named stage, recording its duration and result.
func (r *run) step(ctx context.Context, name string, fn func(context.Context) error) error {
	r.setStage(name)
	start := r.now()
	err := fn(observability.WithStage(ctx, name))
	r.recorder.ObserveStageDuration(name, r.now().Sub(start))
	switch {
	case err == nil:
		r.recorder.IncStageResult(name, metrics.ResultSuccess)
	case stderrors.Is(err, context.Canceled):
		r.recorder.IncStageResult(name, metrics.ResultCanceled)
	default:
		r.recorder.IncStageResult(name, metrics.ResultFailed)
	}
	return err
}

func (r *run) buildSequential(ctx context.Context, hs []Host) error {
	for i, h := range hs {
		expected := ""
		if i > 0 {
			expected = r.result.Hosts[0].Version
		}
		if err := r.buildHost(ctx, i, h, expected); err != nil {
			return err
		}
	}
	return nil
}

// buildParallel builds every host concurrently; versions are compared once
// all hosts are done, still before anything is written locally.
func (r *run) buildParallel(ctx context.Context, hs []Host) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range hs {
		g.Go(func() error { return r.buildHost(gctx, i, h, "") })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.setStage(StageVerify)
	expected := r.result.Hosts[0].Version
	for _, hr := range r.result.Hosts[1:] {
		if hr.Version != expected {
			return r.mismatch(ctx, hr.Host, expected, hr.Version)
		}
	}
	return nil
}

// buildHost connects to h, checks out both trees and builds them. When
// expected is set the checked out version must equal it before the build
// starts. Runners stay open for retrieval.
func (r *run) buildHost(ctx context.Context, i int, h Host, expected string) error {
	ctx = observability.WithHost(ctx, h.Name)
	start := r.now()

	runner, err := r.connect(ctx, h)
	if err != nil {
		r.setStage(StageCheckout)
		return err
	}
	r.runners[i] = runner

	var version string
	err = r.step(ctx, StageCheckout, func(ctx context.Context) error {
		var err error
		version, err = NewFetcher(r.cfg).Checkout(ctx, runner, r.req.Trees)
		return err
	})
	if err != nil {
		return err
	}
	observability.InfoContext(ctx, "Checked out sources", logfields.Version(version), logfields.Platform(h.Platform))
	r.record(ctx, eventstore.HostCheckedOut{
		Host:       h.Name,
		Platform:   h.Platform,
		Version:    version,
		DurationMS: r.now().Sub(start).Milliseconds(),
	})

	if expected != "" && version != expected {
		r.setStage(StageVerify)
		return r.mismatch(ctx, h.Name, expected, version)
	}

	if err := r.step(ctx, StageBuild, func(ctx context.Context) error { return NewBuilder(r.cfg).Build(ctx, runner) }); err != nil {
		return err
	}

	elapsed := r.now().Sub(start)
	r.recorder.ObserveHostDuration(h.Name, elapsed)
	r.record(ctx, eventstore.HostBuilt{Host: h.Name, DurationMS: elapsed.Milliseconds()})
	r.result.Hosts[i] = HostResult{
		Host:     h.Name,
		Platform: h.Platform,
		Address:  h.Descriptor.Address(),
		Version:  version,
		Duration: elapsed,
	}
	return nil
}

func (r *run) connect(ctx context.Context, h Host) (remote.Runner, error) {
	if r.req.DryRun {
		return remote.NewDryRunner(h.Name), nil
	}
	observability.InfoContext(ctx, "Connecting", logfields.Address(h.Descriptor.Address()))
	return r.connector(ctx, h)
}

func (r *run) mismatch(ctx context.Context, host, expected, actual string) error {
	r.record(ctx, eventstore.VersionMismatch{Host: host, Expected: expected, Actual: actual})
	return kerrors.VersionMismatchError("hosts checked out different versions").
		WithContext("host", host).
		WithContext("expected", expected).
		WithContext("actual", actual).
		Build()
}

func (r *run) retrieveAll(ctx context.Context, hs []Host) error {
	rt := NewRetriever(r.cfg)
	for i, h := range hs {
		hctx := observability.WithHost(ctx, h.Name)
		got, err := rt.Retrieve(hctx, r.runners[i], h.Platform, r.result.Version, r.result.ReleaseDir)
		for _, a := range got {
			r.recorder.AddArtifactBytes(h.Name, a.Bytes)
			r.record(hctx, eventstore.ArtifactRetrieved{Host: h.Name, Artifact: a.Artifact, Path: a.Local, Bytes: a.Bytes})
		}
		r.result.Artifacts = append(r.result.Artifacts, got...)
		if err != nil {
			return err
		}
	}
	return nil
}

// dryRunRelease logs the retrievals a real run would perform.
func (r *run) dryRunRelease(ctx context.Context, hs []Host) error {
	observability.InfoContext(ctx, "[dry-run] would prepare release directory", logfields.Path(r.result.ReleaseDir))
	if err := r.step(ctx, StageRetrieve, func(ctx context.Context) error { return r.retrieveAll(ctx, hs) }); err != nil {
		return err
	}
	observability.InfoContext(ctx, "[dry-run] would write checksum manifest",
		logfields.Path(filepath.Join(r.result.ReleaseDir, r.cfg.Release.Manifest)))
	observability.InfoContext(ctx, "[dry-run] would publish candidate", logfields.Path(r.cfg.CandidatePath()))
	return nil
}

// announce sends the candidate notification. Failures are logged only: the
// release is already in place.
func (r *run) announce(ctx context.Context) {
	names := make([]string, len(r.result.Artifacts))
	for i, a := range r.result.Artifacts {
		names[i] = filepath.Base(a.Local)
	}
	err := r.notifier.CandidatePublished(ctx, notify.CandidatePublished{
		RunID:      r.id,
		Version:    r.result.Version,
		ReleaseDir: r.result.ReleaseDir,
		Candidate:  r.result.Candidate,
		Artifacts:  names,
		Manifest:   r.result.Manifest,
	})
	if err != nil {
		observability.WarnContext(ctx, "Candidate notification failed", logfields.Error(err))
	}
}

// record appends an event to the history store. History is best effort and
// never fails a run; it is written even after cancellation.
func (r *run) record(ctx context.Context, p eventstore.Payload) {
	if r.store == nil {
		return
	}
	if err := eventstore.Record(context.WithoutCancel(ctx), r.store, r.id, p); err != nil {
		observability.WarnContext(ctx, "Failed to record event", slog.String("event", p.EventType()), logfields.Error(err))
	}
}

func (r *run) closeRunners(ctx context.Context) {
	for _, runner := range r.runners {
		if runner == nil {
			continue
		}
		if err := runner.Close(); err != nil {
			observability.DebugContext(ctx, "Closing connection failed", logfields.Host(runner.Host()), logfields.Error(err))
		}
	}
}
