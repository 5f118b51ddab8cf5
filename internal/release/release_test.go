package release

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
)

func tarballNames(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	out := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = string(data)
	}
	return out
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestPrepare_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "releases", "2.0")
	archived, err := Prepare(dir)
	require.NoError(t, err)
	require.False(t, archived)
	require.Empty(t, dirEntries(t, dir))
}

func TestPrepare_EmptyDirectoryIsNotArchived(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "2.0")
	require.NoError(t, os.Mkdir(dir, 0o750))

	archived, err := Prepare(dir)
	require.NoError(t, err)
	require.False(t, archived)
	_, err = os.Stat(dir + ArchiveSuffix)
	require.True(t, os.IsNotExist(err))
}

func TestPrepare_NonEmptyDirectoryIsArchivedAndCleared(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "2.0")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "other"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LINUX-voltdb-2.0.tar.gz"), []byte("new"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other", "LINUX-voltdb-2.0.sym"), []byte("sym"), 0o600))
	require.NoError(t, os.WriteFile(dir+ArchiveSuffix, []byte("stale"), 0o600))

	archived, err := Prepare(dir)
	require.NoError(t, err)
	require.True(t, archived)
	require.Empty(t, dirEntries(t, dir))

	names := tarballNames(t, dir+ArchiveSuffix)
	require.Equal(t, "new", names["2.0/LINUX-voltdb-2.0.tar.gz"])
	require.Equal(t, "sym", names["2.0/other/LINUX-voltdb-2.0.sym"])
	require.Contains(t, names, "2.0/")

	// One archive only, no leftovers.
	var tgz int
	for _, e := range dirEntries(t, root) {
		if filepath.Ext(e.Name()) == ArchiveSuffix {
			tgz++
		}
		require.NotContains(t, e.Name(), ".part")
	}
	require.Equal(t, 1, tgz)
}

func TestPublishCandidate_ReplacesLink(t *testing.T) {
	root := t.TempDir()
	oldDir := filepath.Join(root, "1.9")
	newDir := filepath.Join(root, "2.0")
	require.NoError(t, os.Mkdir(oldDir, 0o750))
	require.NoError(t, os.Mkdir(newDir, 0o750))

	_, err := PublishCandidate(root, "candidate", oldDir)
	require.NoError(t, err)
	link, err := PublishCandidate(root, "candidate", newDir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "candidate"), link)

	target, err := Candidate(root, "candidate")
	require.NoError(t, err)
	require.Equal(t, newDir, target)

	var links int
	for _, e := range dirEntries(t, root) {
		if e.Type()&os.ModeSymlink != 0 {
			links++
		}
	}
	require.Equal(t, 1, links)
}

func TestPublishCandidate_ReplacesPlainDirectory(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "2.0")
	require.NoError(t, os.Mkdir(target, 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "candidate", "junk"), 0o750))

	_, err := PublishCandidate(root, "candidate", target)
	require.NoError(t, err)
	got, err := Candidate(root, "candidate")
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestPublishCandidate_MissingTarget(t *testing.T) {
	root := t.TempDir()
	_, err := PublishCandidate(root, "candidate", filepath.Join(root, "absent"))
	require.True(t, kerrors.HasCategory(err, kerrors.CategoryFileSystem))
}

func TestCandidate_NoneYet(t *testing.T) {
	target, err := Candidate(t.TempDir(), "candidate")
	require.NoError(t, err)
	require.Empty(t, target)
}
