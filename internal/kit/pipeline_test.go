package kit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/eventstore"
	"git.home.luguber.info/inful/kitbuilder/internal/release"
	"git.home.luguber.info/inful/kitbuilder/internal/remote"
	"git.home.luguber.info/inful/kitbuilder/internal/source"
)

var testTrees = source.Trees{
	Community:  "https://svn.example.com/eng/trunk",
	Enterprise: "https://svn.example.com/pro/branches/rest",
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Build.ScratchDir = "/scratch"
	cfg.Release.Root = t.TempDir()
	cfg.Release.ChecksumStyle = config.ChecksumStyleGNU
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config, fl fleet) (*Service, *eventstore.SQLiteStore) {
	t.Helper()
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	svc := NewService(cfg).
		WithResolver(fakeResolver{}).
		WithConnector(fl.connector()).
		WithEventStore(store).
		WithIDGenerator(func() string { return "run-1" })
	return svc, store
}

func twoHosts(linuxVersion, macVersion string) fleet {
	return fleet{
		"volt5f":   {name: "volt5f", version: linuxVersion},
		"voltmini": {name: "voltmini", version: macVersion},
	}
}

func eventTypes(t *testing.T, store eventstore.Store) []string {
	t.Helper()
	events, err := store.GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type()
	}
	return types
}

func TestRun_AssemblesRelease(t *testing.T) {
	cfg := testConfig(t)
	fl := twoHosts("3.1", "3.1")
	svc, store := newTestService(t, cfg, fl)

	res, err := svc.Run(t.Context(), Request{Trees: testTrees})
	require.NoError(t, err)

	dir := filepath.Join(cfg.Release.Root, "3.1")
	require.Equal(t, "3.1", res.Version)
	require.Equal(t, dir, res.ReleaseDir)
	require.False(t, res.Archived)
	require.Len(t, res.Hosts, 2)
	require.Equal(t, "builder@volt5f.example.com", res.Hosts[0].Address)
	require.Len(t, res.Artifacts, 13)

	for _, name := range []string{
		"LINUX-voltdb-3.1.tar.gz",
		"MAC-voltdb-3.1.tar.gz",
		"voltdb-client-java-3.1.tar.gz",
		"voltdb-studio.web-3.1.zip",
		"LINUX-voltdb-voltcache-3.1.tar.gz",
		"MAC-voltdb-voltkv-3.1.tar.gz",
		"LINUX-voltdb-ent-3.1.tar.gz",
		"MAC-voltdb-ent-3.1.tar.gz",
		"other/LINUX-voltdb-3.1.sym",
		"checksums.txt",
	} {
		require.FileExists(t, filepath.Join(dir, filepath.FromSlash(name)))
	}
	_, err = os.Stat(filepath.Join(dir, "other", "MAC-voltdb-3.1.sym"))
	require.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dir, "LINUX-voltdb-ent-3.1.tar.gz"))
	require.NoError(t, err)
	require.Equal(t, "/scratch/pro/obj/pro/voltdb-ent-3.1.tar.gz", string(data))

	target, err := release.Candidate(cfg.Release.Root, "candidate")
	require.NoError(t, err)
	require.Equal(t, dir, target)
	require.Equal(t, filepath.Join(dir, "checksums.txt"), res.Manifest)

	for _, r := range fl {
		require.True(t, r.closed)
	}

	types := eventTypes(t, store)
	require.Equal(t, eventstore.TypeRunStarted, types[0])
	require.Equal(t, eventstore.TypeRunCompleted, types[len(types)-1])
	require.Contains(t, types, eventstore.TypeCandidatePublished)
}

func TestRun_CommandSequence(t *testing.T) {
	cfg := testConfig(t)
	fl := twoHosts("3.1", "3.1")
	svc, _ := newTestService(t, cfg, fl)

	_, err := svc.Run(t.Context(), Request{Trees: testTrees})
	require.NoError(t, err)

	require.Equal(t, []string{
		"rm -rf /scratch",
		"mkdir -p /scratch",
		"cd /scratch && svn co https://svn.example.com/eng/trunk eng",
		"cd /scratch && svn co https://svn.example.com/pro/branches/rest pro",
		"cd /scratch && cat eng/version.txt",
		"cd /scratch/eng && pwd",
		"cd /scratch/eng && svn status",
		"cd /scratch/eng && ant clean default dist",
		"cd /scratch/pro && pwd",
		"cd /scratch/pro && svn status",
		"cd /scratch/pro && VOLTCORE=../eng ant -f mmt.xml clean dist.pro",
	}, fl["voltmini"].Commands())
}

func TestRun_VersionMismatchHaltsBeforeRetrieval(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Build.Parallel = parallel
			fl := twoHosts("3.1", "3.0")
			svc, store := newTestService(t, cfg, fl)

			_, err := svc.Run(t.Context(), Request{Trees: testTrees})
			require.Error(t, err)
			require.True(t, kerrors.HasCategory(err, kerrors.CategoryVersionMismatch))

			for _, r := range fl {
				require.Empty(t, r.gets)
			}
			entries, err := os.ReadDir(cfg.Release.Root)
			require.NoError(t, err)
			require.Empty(t, entries)

			types := eventTypes(t, store)
			require.Contains(t, types, eventstore.TypeVersionMismatch)
			require.Equal(t, eventstore.TypeRunFailed, types[len(types)-1])

			if !parallel {
				for _, c := range fl["voltmini"].Commands() {
					require.NotContains(t, c, "ant")
				}
			}
		})
	}
}

func TestRun_CheckoutFailure(t *testing.T) {
	cfg := testConfig(t)
	fl := twoHosts("3.1", "3.1")
	fl["volt5f"].failOn = "svn co"
	svc, store := newTestService(t, cfg, fl)

	_, err := svc.Run(t.Context(), Request{Trees: testTrees})
	require.True(t, kerrors.HasCategory(err, kerrors.CategoryCheckout))
	require.Empty(t, fl["voltmini"].Commands())

	h, found, err := eventstore.NewHistory(store, 0).Get(t.Context(), "run-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, eventstore.StatusFailed, h.Status)
	require.Equal(t, StageCheckout, h.ErrorStage)
}

func TestRun_DotVersionLeavesReleaseRootAlone(t *testing.T) {
	cfg := testConfig(t)
	kept := filepath.Join(cfg.Release.Root, "2.9", "keep.tar.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(kept), 0o750))
	require.NoError(t, os.WriteFile(kept, []byte("kit"), 0o600))
	svc, _ := newTestService(t, cfg, twoHosts(".", "."))

	_, err := svc.Run(t.Context(), Request{Trees: testTrees})
	require.True(t, kerrors.HasCategory(err, kerrors.CategoryCheckout))
	require.FileExists(t, kept)
	target, err := release.Candidate(cfg.Release.Root, "candidate")
	require.NoError(t, err)
	require.Empty(t, target)
}

func TestRun_BuildFailure(t *testing.T) {
	cfg := testConfig(t)
	fl := twoHosts("3.1", "3.1")
	fl["voltmini"].failOn = "dist.pro"
	svc, _ := newTestService(t, cfg, fl)

	_, err := svc.Run(t.Context(), Request{Trees: testTrees})
	require.True(t, kerrors.HasCategory(err, kerrors.CategoryBuild))
	classified, ok := kerrors.AsClassified(err)
	require.True(t, ok)
	tree, _ := classified.Context().GetString("tree")
	require.Equal(t, "pro", tree)
}

func TestRun_RetrievalFailure(t *testing.T) {
	cfg := testConfig(t)
	fl := twoHosts("3.1", "3.1")
	fl["voltmini"].failGet = "voltkv"
	svc, _ := newTestService(t, cfg, fl)

	res, err := svc.Run(t.Context(), Request{Trees: testTrees})
	require.True(t, kerrors.HasCategory(err, kerrors.CategoryRetrieval))
	require.NotEmpty(t, res.Artifacts)
	target, err := release.Candidate(cfg.Release.Root, "candidate")
	require.NoError(t, err)
	require.Empty(t, target)
}

func TestRun_ArchivesExistingRelease(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Join(cfg.Release.Root, "3.1")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.tar.gz"), []byte("old"), 0o600))

	svc, _ := newTestService(t, cfg, twoHosts("3.1", "3.1"))
	res, err := svc.Run(t.Context(), Request{Trees: testTrees})
	require.NoError(t, err)
	require.True(t, res.Archived)
	require.FileExists(t, dir+release.ArchiveSuffix)
	_, err = os.Stat(filepath.Join(dir, "stale.tar.gz"))
	require.True(t, os.IsNotExist(err))
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	cfg := testConfig(t)
	connected := false
	svc := NewService(cfg).
		WithResolver(fakeResolver{}).
		WithConnector(func(context.Context, Host) (remote.Runner, error) {
			connected = true
			return nil, nil
		})

	res, err := svc.Run(t.Context(), Request{Trees: testTrees, DryRun: true})
	require.NoError(t, err)
	require.False(t, connected)
	require.Equal(t, remote.DryRunVersion, res.Version)
	require.Len(t, res.Artifacts, 13)

	entries, err := os.ReadDir(cfg.Release.Root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRun_RequiresDependencies(t *testing.T) {
	_, err := NewService(testConfig(t)).Run(t.Context(), Request{Trees: testTrees})
	require.True(t, kerrors.HasCategory(err, kerrors.CategoryInternal))
}
