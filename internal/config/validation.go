package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
)

// Validate checks the configuration and reports every problem found.
func Validate(cfg *Config) error {
	v := &validator{cfg: cfg}
	v.validateHosts()
	v.validateSource()
	v.validateBuild()
	v.validateRelease()
	v.validateArtifacts()
	v.validateSSH()
	if len(v.problems) == 0 {
		return nil
	}
	return kerrors.ConfigError("invalid configuration").
		WithCause(fmt.Errorf("%s", strings.Join(v.problems, "; "))).
		WithContext("problems", len(v.problems)).
		Build()
}

type validator struct {
	cfg      *Config
	problems []string
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateHosts() {
	if len(v.cfg.Hosts) == 0 {
		v.addf("hosts: at least one build host is required")
		return
	}
	seen := make(map[string]bool, len(v.cfg.Hosts))
	for i, h := range v.cfg.Hosts {
		if h.Name == "" {
			v.addf("hosts[%d]: name is required", i)
			continue
		}
		if seen[h.Name] {
			v.addf("hosts[%d]: duplicate host %q", i, h.Name)
		}
		seen[h.Name] = true
		if h.Platform == "" {
			v.addf("hosts[%d]: platform is required", i)
		}
	}
}

func (v *validator) validateSource() {
	s := v.cfg.Source
	if s.CommunityPrefix == "" || s.EnterprisePrefix == "" {
		v.addf("source: community_prefix and enterprise_prefix are required")
	}
	if s.CommunityDir == "" || s.EnterpriseDir == "" || s.CommunityDir == s.EnterpriseDir {
		v.addf("source: community_dir and enterprise_dir must be distinct and non-empty")
	}
	if s.VersionFile == "" {
		v.addf("source: version_file is required")
	}
}

func (v *validator) validateBuild() {
	b := v.cfg.Build
	if clean := filepath.Clean(b.ScratchDir); b.ScratchDir == "" || clean == "/" || clean == "." {
		v.addf("build: scratch_dir %q is not a usable scratch location", b.ScratchDir)
	}
	if strings.TrimSpace(b.CommunityCommand) == "" || strings.TrimSpace(b.EnterpriseCommand) == "" {
		v.addf("build: community_command and enterprise_command are required")
	}
	for k := range b.EnterpriseEnv {
		if k == "" || strings.ContainsAny(k, "= \t") {
			v.addf("build: invalid enterprise_env name %q", k)
		}
	}
}

func (v *validator) validateRelease() {
	r := v.cfg.Release
	if r.Root == "" {
		v.addf("release: root is required")
	}
	if r.Candidate == "" || strings.ContainsRune(r.Candidate, '/') {
		v.addf("release: candidate must be a plain file name")
	}
	if r.Manifest == "" || strings.ContainsRune(r.Manifest, '/') {
		v.addf("release: manifest must be a plain file name")
	}
	switch r.ChecksumStyle {
	case ChecksumStyleAuto, ChecksumStyleGNU, ChecksumStyleBSD:
	default:
		v.addf("release: unknown checksum_style %q", r.ChecksumStyle)
	}
}

func (v *validator) validateArtifacts() {
	if len(v.cfg.Artifacts) == 0 {
		v.addf("artifacts: at least one artifact is required")
	}
	for i, a := range v.cfg.Artifacts {
		if a.Remote == "" || a.Local == "" {
			v.addf("artifacts[%d]: remote and local are required", i)
			continue
		}
		for _, field := range []string{a.Remote, a.Local} {
			if _, err := template.New("artifact").Option("missingkey=error").Parse(field); err != nil {
				v.addf("artifacts[%d]: %v", i, err)
			}
		}
		if filepath.IsAbs(a.Local) || strings.HasPrefix(filepath.Clean(a.Local), "..") {
			v.addf("artifacts[%d]: local %q must stay inside the release directory", i, a.Local)
		}
	}
}

func (v *validator) validateSSH() {
	s := v.cfg.SSH
	if s.ConnectTimeout < 0 {
		v.addf("ssh: connect_timeout cannot be negative")
	}
	if s.Retry.Backoff != "" && NormalizeRetryBackoff(string(s.Retry.Backoff)) == "" {
		v.addf("ssh.retry: unknown backoff %q", s.Retry.Backoff)
	}
	if s.Retry.MaxRetries < 0 {
		v.addf("ssh.retry: max_retries cannot be negative")
	}
}
