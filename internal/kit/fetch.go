package kit

import (
	"context"
	"path"
	"strings"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/logfields"
	"git.home.luguber.info/inful/kitbuilder/internal/observability"
	"git.home.luguber.info/inful/kitbuilder/internal/remote"
	"git.home.luguber.info/inful/kitbuilder/internal/source"
)

// Fetcher recreates the remote scratch directory and checks out both trees.
type Fetcher struct {
	scratch       string
	communityDir  string
	enterpriseDir string
	versionFile   string
}

// NewFetcher returns a fetcher for the configured layout.
func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		scratch:       cfg.Build.ScratchDir,
		communityDir:  cfg.Source.CommunityDir,
		enterpriseDir: cfg.Source.EnterpriseDir,
		versionFile:   cfg.Source.VersionFile,
	}
}

// Checkout wipes the scratch directory, checks out both trees into it and
// returns the trimmed content of the community version file.
func (f *Fetcher) Checkout(ctx context.Context, r remote.Runner, trees source.Trees) (string, error) {
	steps := []struct {
		tree string
		url  string
		cmd  remote.Command
	}{
		{cmd: remote.Shell("", "rm", "-rf", f.scratch)},
		{cmd: remote.Shell("", "mkdir", "-p", f.scratch)},
		{tree: f.communityDir, url: trees.Community, cmd: remote.Shell(f.scratch, "svn", "co", trees.Community, f.communityDir)},
		{tree: f.enterpriseDir, url: trees.Enterprise, cmd: remote.Shell(f.scratch, "svn", "co", trees.Enterprise, f.enterpriseDir)},
	}
	for _, s := range steps {
		observability.InfoContext(ctx, "run", logfields.Command(s.cmd.String()))
		if _, err := r.Run(ctx, s.cmd); err != nil {
			b := kerrors.CheckoutError("remote checkout failed").
				WithCause(err).
				WithContext("host", r.Host()).
				WithContext("command", s.cmd.String())
			if s.url != "" {
				b = b.WithContext("url", s.url)
			}
			return "", b.Build()
		}
	}

	versionPath := path.Join(f.communityDir, f.versionFile)
	out, err := r.Run(ctx, remote.Shell(f.scratch, "cat", versionPath))
	if err != nil {
		return "", kerrors.CheckoutError("failed to read version file").
			WithCause(err).
			WithContext("host", r.Host()).
			WithContext("path", versionPath).
			Build()
	}
	version := strings.TrimSpace(out)
	if version == "" {
		return "", kerrors.CheckoutError("version file is empty").
			WithContext("host", r.Host()).
			WithContext("path", versionPath).
			Build()
	}
	if !safeVersion(version) {
		return "", kerrors.CheckoutError("version is not usable as a release directory name").
			WithContext("host", r.Host()).
			WithContext("path", versionPath).
			WithContext("version", version).
			Build()
	}
	return version, nil
}

// safeVersion reports whether v names a single directory under the release root.
func safeVersion(v string) bool {
	if v == "." || v == ".." {
		return false
	}
	return !strings.ContainsAny(v, "/\\\n\r\x00")
}
