package kit

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"text/template"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/logfields"
	"git.home.luguber.info/inful/kitbuilder/internal/observability"
	"git.home.luguber.info/inful/kitbuilder/internal/remote"
)

// ArtifactVars are the values available to artifact path templates.
type ArtifactVars struct {
	BuildDir      string
	CommunityDir  string
	EnterpriseDir string
	Version       string
	Platform      string
}

// Retrieved describes one artifact copied into the release directory.
type Retrieved struct {
	Host     string
	Artifact string
	Remote   string
	Local    string
	Bytes    int64
}

// RenderArtifact expands the remote path and the release-relative local path
// of a.
func RenderArtifact(a config.ArtifactConfig, vars ArtifactVars) (remotePath, localPath string, err error) {
	if remotePath, err = render(a.Name+".remote", a.Remote, vars); err != nil {
		return "", "", err
	}
	if localPath, err = render(a.Name+".local", a.Local, vars); err != nil {
		return "", "", err
	}
	return remotePath, localPath, nil
}

func render(name, text string, vars ArtifactVars) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Retriever copies the artifact set of one host into the release directory.
type Retriever struct {
	cfg  *config.Config
	vars ArtifactVars
}

// NewRetriever returns a retriever for the configured artifact list.
func NewRetriever(cfg *config.Config) *Retriever {
	return &Retriever{
		cfg: cfg,
		vars: ArtifactVars{
			BuildDir:      cfg.Build.ScratchDir,
			CommunityDir:  cfg.Source.CommunityDir,
			EnterpriseDir: cfg.Source.EnterpriseDir,
		},
	}
}

// Retrieve copies every artifact that applies to platform from r into dir.
func (rt *Retriever) Retrieve(ctx context.Context, r remote.Runner, platform, version, dir string) ([]Retrieved, error) {
	vars := rt.vars
	vars.Version = version
	vars.Platform = platform

	var out []Retrieved
	for _, a := range rt.cfg.ArtifactsFor(platform) {
		remotePath, rel, err := RenderArtifact(a, vars)
		if err != nil {
			return out, kerrors.ConfigError("invalid artifact template").
				WithCause(err).
				WithContext("artifact", a.Name).
				Build()
		}
		local := filepath.Join(dir, filepath.FromSlash(rel))

		observability.InfoContext(ctx, "get",
			logfields.Artifact(a.Name),
			logfields.Path(local),
			slog.String("remote", remotePath))
		n, err := r.Get(ctx, remotePath, local)
		if err != nil {
			return out, kerrors.RetrievalError("artifact retrieval failed").
				WithCause(err).
				WithContext("host", r.Host()).
				WithContext("artifact", a.Name).
				WithContext("remote", remotePath).
				Build()
		}
		out = append(out, Retrieved{Host: r.Host(), Artifact: a.Name, Remote: remotePath, Local: local, Bytes: n})
	}
	return out, nil
}
