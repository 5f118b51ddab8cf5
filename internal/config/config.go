package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "kitbuilder.yaml"

// Load reads the configuration file at configPath on top of Default().
// Values present in the file replace defaults; lists and maps are replaced wholesale.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		slog.Warn("Ignoring unreadable env file", "error", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerrors.ConfigError("configuration file not found").
				WithCause(err).
				WithContext("path", configPath).
				Build()
		}
		return nil, kerrors.ConfigError("failed to read config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	cfg := Default()
	if err := clearOverriddenMaps(expanded, cfg); err != nil {
		return nil, kerrors.ConfigError("failed to parse config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, kerrors.ConfigError("failed to parse config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load, except that a missing file at the default
// path yields the built-in defaults. An explicitly requested file must exist.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}
	if configPath == DefaultPath {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := loadEnvFile(); err != nil {
				slog.Warn("Ignoring unreadable env file", "error", err)
			}
			slog.Debug("No configuration file found, using defaults", "path", configPath)
			cfg := Default()
			normalize(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}
	return Load(configPath)
}

// Init writes an example configuration file containing the defaults.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return kerrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return kerrors.InternalError("failed to marshal config").WithCause(err).Build()
	}

	header := "# kitbuilder configuration. ${VAR} references are expanded from the environment.\n"
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return kerrors.FileSystemError("failed to create config directory").WithCause(err).Build()
		}
	}
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return kerrors.FileSystemError("failed to write config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}
	return nil
}

// clearOverriddenMaps drops default maps the file sets, since yaml.v3 merges
// mapping nodes into an existing map instead of replacing it.
func clearOverriddenMaps(data []byte, cfg *Config) error {
	var raw struct {
		Build map[string]yaml.Node `yaml:"build"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if _, ok := raw.Build["enterprise_env"]; ok {
		cfg.Build.EnterpriseEnv = nil
	}
	return nil
}

func normalize(cfg *Config) {
	for i := range cfg.Hosts {
		cfg.Hosts[i].Name = strings.TrimSpace(cfg.Hosts[i].Name)
		cfg.Hosts[i].Platform = strings.ToUpper(strings.TrimSpace(cfg.Hosts[i].Platform))
	}
	for i := range cfg.Artifacts {
		for j, p := range cfg.Artifacts[i].Platforms {
			cfg.Artifacts[i].Platforms[j] = strings.ToUpper(strings.TrimSpace(p))
		}
	}
	cfg.Release.ChecksumStyle = strings.ToLower(strings.TrimSpace(cfg.Release.ChecksumStyle))
	if cfg.Release.ChecksumStyle == "" {
		cfg.Release.ChecksumStyle = ChecksumStyleAuto
	}
	if mode := NormalizeRetryBackoff(string(cfg.SSH.Retry.Backoff)); mode != "" {
		cfg.SSH.Retry.Backoff = mode
	}
	cfg.Build.ScratchDir = expandHome(cfg.Build.ScratchDir)
	cfg.Release.Root = expandHome(cfg.Release.Root)
	cfg.SSH.ConfigFile = expandHome(cfg.SSH.ConfigFile)
	cfg.SSH.KnownHosts = expandHome(cfg.SSH.KnownHosts)
	cfg.History.Database = expandHome(cfg.History.Database)
	cfg.Metrics.Textfile = expandHome(cfg.Metrics.Textfile)
}

// ArtifactsFor returns the artifacts that apply to a platform.
func (c *Config) ArtifactsFor(platform string) []ArtifactConfig {
	out := make([]ArtifactConfig, 0, len(c.Artifacts))
	for _, a := range c.Artifacts {
		if a.AppliesTo(platform) {
			out = append(out, a)
		}
	}
	return out
}

// AppliesTo reports whether the artifact is produced on platform.
func (a ArtifactConfig) AppliesTo(platform string) bool {
	if len(a.Platforms) == 0 {
		return true
	}
	for _, p := range a.Platforms {
		if strings.EqualFold(p, platform) {
			return true
		}
	}
	return false
}

// CandidatePath is the location of the candidate symlink.
func (c *Config) CandidatePath() string {
	return filepath.Join(c.Release.Root, c.Release.Candidate)
}

// ReleaseDir is the release directory for a version.
func (c *Config) ReleaseDir(version string) string {
	return filepath.Join(c.Release.Root, version)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), strings.TrimPrefix(p, "~"))
	}
	return p
}
