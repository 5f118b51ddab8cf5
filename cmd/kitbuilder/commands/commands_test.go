package commands

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/remote"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("kitbuilder"), kong.Vars{"version": "test"}, kong.Exit(func(int) {}))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = kctx.Run(&Global{Ctx: t.Context(), Logger: slog.Default(), Out: &out}, &cli)
	return out.String(), err
}

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	body := `hosts:
  - name: linux-builder
    platform: linux
  - name: mac-builder
    platform: mac
release:
  root: ` + filepath.Join(dir, "releases") + `
ssh:
  config_file: ` + filepath.Join(dir, "absent_ssh_config") + `
history:
  database: ` + filepath.Join(dir, "history.db") + `
`
	path := filepath.Join(dir, "kitbuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, dir
}

func exitCode(err error) int {
	return kerrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err)
}

func TestBuild_TooManyBranchesIsUsageError(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	_, err := runCLI(t, "--config", cfgPath, "build", "a", "b", "c")
	require.Error(t, err)
	require.Equal(t, 2, exitCode(err))
}

func TestBuild_DryRunPrintsPlanAndRecordsHistory(t *testing.T) {
	cfgPath, dir := writeTestConfig(t)

	out, err := runCLI(t, "--config", cfgPath, "build", "--dry-run", "branches/v2")
	require.NoError(t, err)
	require.Contains(t, out, "Community:  https://svn.voltdb.com/eng/branches/v2")
	require.Contains(t, out, "Enterprise: https://svn.voltdb.com/pro/branches/v2")
	require.Contains(t, out, "Built linux-builder (LINUX) version "+remote.DryRunVersion)
	require.Contains(t, out, "13 artifacts planned")

	_, err = os.Stat(filepath.Join(dir, "releases"))
	require.True(t, os.IsNotExist(err), "dry run must not create the release root")

	out, err = runCLI(t, "--config", cfgPath, "history")
	require.NoError(t, err)
	require.Contains(t, out, "completed (dry-run)")
	require.Contains(t, out, remote.DryRunVersion)
}

func TestHistory_UnknownRun(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	_, err := runCLI(t, "--config", cfgPath, "history", "no-such-run")
	require.Error(t, err)
	require.True(t, kerrors.HasCategory(err, kerrors.CategoryValidation))
}

func TestInit_WritesConfigOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kitbuilder.yaml")

	out, err := runCLI(t, "--config", path, "init")
	require.NoError(t, err)
	require.Contains(t, out, "Configuration written to "+path)

	_, err = runCLI(t, "--config", path, "init")
	require.Equal(t, 2, exitCode(err))

	_, err = runCLI(t, "--config", path, "init", "--force")
	require.NoError(t, err)
}

func TestHosts_ListsConfiguredHosts(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	out, err := runCLI(t, "--config", cfgPath, "hosts")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "NAME"))
	require.Contains(t, lines[1], "linux-builder")
	require.Contains(t, lines[2], "MAC")
}

func TestChecksum_WritesManifest(t *testing.T) {
	cfgPath, dir := writeTestConfig(t)
	rel := filepath.Join(dir, "releases", "2.0")
	require.NoError(t, os.MkdirAll(rel, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(rel, "voltdb-2.0.tar.gz"), []byte("kit"), 0o600))

	out, err := runCLI(t, "--config", cfgPath, "checksum", rel)
	require.NoError(t, err)
	require.Contains(t, out, "(1 files)")

	data, err := os.ReadFile(filepath.Join(rel, "checksums.txt"))
	require.NoError(t, err)
	require.Contains(t, string(data), "voltdb-2.0.tar.gz")
}

func TestPublish_PointsCandidateAtRelease(t *testing.T) {
	cfgPath, dir := writeTestConfig(t)
	rel := filepath.Join(dir, "releases", "2.0")
	require.NoError(t, os.MkdirAll(rel, 0o750))

	_, err := runCLI(t, "--config", cfgPath, "publish", rel)
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(dir, "releases", "candidate"))
	require.NoError(t, err)
	require.Equal(t, rel, target)
}

func TestSchedule_RequiresCron(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	_, err := runCLI(t, "--config", cfgPath, "schedule")
	require.Equal(t, 2, exitCode(err))
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv("KITBUILDER_LOG_LEVEL", "")
	require.Equal(t, slog.LevelInfo, parseLogLevel(false))
	require.Equal(t, slog.LevelDebug, parseLogLevel(true))

	t.Setenv("KITBUILDER_LOG_LEVEL", "WARN")
	require.Equal(t, slog.LevelWarn, parseLogLevel(true))
}
