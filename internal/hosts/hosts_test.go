package hosts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
)

const sampleConfig = `
Host volt5f
  HostName volt5f.internal.example
  User builder
  Port 2222
  IdentityFile ~/.ssh/kits_rsa

Host voltmini
  HostName 10.0.0.12

Host *.lab
  User lab
`

func writeSSHConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestResolve_ExpandsConfiguredEntry(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	r, err := NewResolver(writeSSHConfig(t, sampleConfig))
	require.NoError(t, err)

	d, err := r.Resolve("volt5f")
	require.NoError(t, err)
	require.Equal(t, "volt5f.internal.example", d.Hostname)
	require.Equal(t, "builder", d.User)
	require.Equal(t, "2222", d.Port)
	require.Equal(t, filepath.Join(home, ".ssh", "kits_rsa"), d.KeyFile)
	require.Equal(t, "builder@volt5f.internal.example:2222", d.Address())
	require.Equal(t, "volt5f.internal.example:2222", d.DialAddress())
}

func TestResolve_PartialEntry(t *testing.T) {
	r, err := NewResolver(writeSSHConfig(t, sampleConfig))
	require.NoError(t, err)

	d, err := r.Resolve("voltmini")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.12", d.Address())
	require.Equal(t, "10.0.0.12:22", d.DialAddress())
	require.Empty(t, d.KeyFile)
}

func TestResolve_WildcardEntry(t *testing.T) {
	r, err := NewResolver(writeSSHConfig(t, sampleConfig))
	require.NoError(t, err)

	d, err := r.Resolve("kit1.lab")
	require.NoError(t, err)
	require.Equal(t, "lab@kit1.lab", d.Address())
}

func TestResolve_UnknownHostDegradesToLiteralName(t *testing.T) {
	r, err := NewResolver(writeSSHConfig(t, sampleConfig))
	require.NoError(t, err)

	d, err := r.Resolve("buildbox")
	require.NoError(t, err)
	require.Equal(t, Descriptor{Alias: "buildbox", Hostname: "buildbox"}, d)
}

func TestNewResolver_MissingFileDegrades(t *testing.T) {
	r, err := NewResolver(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)

	for _, name := range []string{"volt5f", "voltmini"} {
		d, err := r.Resolve(name)
		require.NoError(t, err)
		require.Equal(t, name, d.Address())
	}
}

func TestNewResolver_UnreadableFileFails(t *testing.T) {
	// A directory cannot be read as a file.
	_, err := NewResolver(t.TempDir())
	require.Error(t, err)
	require.True(t, kerrors.HasCategory(err, kerrors.CategoryConfig))
}
