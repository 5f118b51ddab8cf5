package config

import "time"

// Config is the kitbuilder configuration (kitbuilder.yaml).
type Config struct {
	Hosts     []HostConfig     `yaml:"hosts"`
	Source    SourceConfig     `yaml:"source"`
	Build     BuildConfig      `yaml:"build"`
	Release   ReleaseConfig    `yaml:"release"`
	Artifacts []ArtifactConfig `yaml:"artifacts"`
	SSH       SSHConfig        `yaml:"ssh"`
	History   HistoryConfig    `yaml:"history"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Notify    NotifyConfig     `yaml:"notify"`
	Schedule  ScheduleConfig   `yaml:"schedule"`
}

// HostConfig names one build machine. Name is looked up in the SSH config.
type HostConfig struct {
	Name     string `yaml:"name"`
	Platform string `yaml:"platform"`
	// Local runs commands on this machine instead of over SSH.
	Local bool `yaml:"local,omitempty"`
}

// SourceConfig describes the two source trees and how their URLs are derived.
type SourceConfig struct {
	CommunityPrefix   string `yaml:"community_prefix"`
	EnterprisePrefix  string `yaml:"enterprise_prefix"`
	CommunityDefault  string `yaml:"community_default"`
	EnterpriseDefault string `yaml:"enterprise_default"`
	CommunityDir      string `yaml:"community_dir"`
	EnterpriseDir     string `yaml:"enterprise_dir"`
	VersionFile       string `yaml:"version_file"`
}

// BuildConfig holds the remote scratch location and build commands.
type BuildConfig struct {
	ScratchDir        string            `yaml:"scratch_dir"`
	CommunityCommand  string            `yaml:"community_command"`
	EnterpriseCommand string            `yaml:"enterprise_command"`
	EnterpriseEnv     map[string]string `yaml:"enterprise_env,omitempty"`
	// StatusCheck runs "pwd" and "svn status" before each build for the log.
	StatusCheck bool `yaml:"status_check"`
	// Parallel builds all hosts concurrently instead of one after another.
	Parallel bool `yaml:"parallel"`
}

// ReleaseConfig controls the local release directory layout.
type ReleaseConfig struct {
	Root          string `yaml:"root"`
	Candidate     string `yaml:"candidate"`
	Manifest      string `yaml:"manifest"`
	ChecksumStyle string `yaml:"checksum_style"` // auto|gnu|bsd
}

// ArtifactConfig maps one remote build output to a name in the release directory.
// Remote and Local are text/template strings over BuildDir, CommunityDir,
// EnterpriseDir, Version and Platform.
type ArtifactConfig struct {
	Name      string   `yaml:"name"`
	Remote    string   `yaml:"remote"`
	Local     string   `yaml:"local"`
	Platforms []string `yaml:"platforms,omitempty"`
}

// SSHConfig controls connections to the build hosts.
type SSHConfig struct {
	ConfigFile string `yaml:"config_file"`
	// KnownHosts enables host key verification; empty disables it.
	KnownHosts     string        `yaml:"known_hosts,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Retry          RetryConfig   `yaml:"retry"`
}

// RetryConfig configures backoff for transient connection failures.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// HistoryConfig locates the sqlite run history. Empty disables it.
type HistoryConfig struct {
	Database string `yaml:"database,omitempty"`
}

// MetricsConfig locates the Prometheus textfile. Empty disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// NotifyConfig configures the candidate-published notification.
type NotifyConfig struct {
	NATSURL string        `yaml:"nats_url,omitempty"`
	Subject string        `yaml:"subject"`
	Timeout time.Duration `yaml:"timeout"`
}

// ScheduleConfig holds the default cron expression for scheduled builds.
type ScheduleConfig struct {
	Cron string `yaml:"cron,omitempty"`
}
