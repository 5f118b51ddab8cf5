package checksum

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
)

func TestCksumMatchesPOSIX(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 4294967295},
		{"123456789", 930766865},
		{"kit-a", 2567165498},
	}
	for _, tt := range tests {
		c := newCksum()
		_, _ = c.Write([]byte(tt.in))
		require.Equal(t, tt.want, c.Sum32(), "input %q", tt.in)
	}
}

func TestCksumIncrementalWrites(t *testing.T) {
	c := newCksum()
	_, _ = c.Write([]byte("1234"))
	_, _ = c.Write([]byte("56789"))
	require.Equal(t, uint32(930766865), c.Sum32())
	c.Reset()
	require.Equal(t, uint32(4294967295), c.Sum32())
}

func releaseDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.zip"), []byte("kit-bb"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.tar.gz"), []byte("kit-a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "other"), 0o750))
	return dir
}

func TestWriteManifest_GNU(t *testing.T) {
	dir := releaseDir(t)
	path, digests, err := WriteManifest(dir, "checksums.txt", config.ChecksumStyleGNU)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "checksums.txt"), path)
	require.Len(t, digests, 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `CRC checksums:

2567165498 5 a.tar.gz
4214238705 6 b.zip
MD5 checksums:

ada859e9199a118c17483dc2166fc247  a.tar.gz
afa90764e8333fb27e2bb0e619ea127a  b.zip
SHA1 checksums:

bf052e41af1fd4bae3d478e0f57a4767e9c99725  a.tar.gz
2391d120fe6b14589d9ab206d39392c25c530e68  b.zip
`
	require.Equal(t, want, string(data))
}

func TestRender_BSDUsesSingleSpaceForMD5(t *testing.T) {
	var buf bytes.Buffer
	d := Digest{Name: "a.tar.gz", Size: 5, CRC: 1, MD5: "m", SHA1: "s"}
	require.NoError(t, Render(&buf, []Digest{d}, config.ChecksumStyleBSD))
	require.Contains(t, buf.String(), "\nm a.tar.gz\n")
	require.Contains(t, buf.String(), "\ns  a.tar.gz\n")
}

func TestWriteManifest_RegeneratingSkipsManifest(t *testing.T) {
	dir := releaseDir(t)
	_, _, err := WriteManifest(dir, "checksums.txt", config.ChecksumStyleGNU)
	require.NoError(t, err)
	_, digests, err := WriteManifest(dir, "checksums.txt", config.ChecksumStyleGNU)
	require.NoError(t, err)
	require.Len(t, digests, 2)
}

func TestWriteManifest_EmptyDirWritesHeadersOnly(t *testing.T) {
	dir := t.TempDir()
	path, digests, err := WriteManifest(dir, "checksums.txt", config.ChecksumStyleGNU)
	require.NoError(t, err)
	require.Empty(t, digests)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "CRC checksums:\n\nMD5 checksums:\n\nSHA1 checksums:\n\n", string(data))
}

func TestResolveStyle(t *testing.T) {
	require.Equal(t, config.ChecksumStyleBSD, ResolveStyle(config.ChecksumStyleBSD))
	require.Contains(t, []string{config.ChecksumStyleGNU, config.ChecksumStyleBSD}, ResolveStyle(config.ChecksumStyleAuto))
}
