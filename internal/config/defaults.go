package config

import (
	"os"
	"os/user"
	"path/filepath"
	"time"
)

// Platform labels used in artifact names.
const (
	PlatformLinux = "LINUX"
	PlatformMac   = "MAC"
)

// Checksum manifest styles.
const (
	ChecksumStyleAuto = "auto"
	ChecksumStyleGNU  = "gnu"
	ChecksumStyleBSD  = "bsd"
)

// Default returns the configuration of the standard VoltDB kit release
// procedure: two hosts, the svn layout, ant builds and the fixed kit set.
func Default() *Config {
	return &Config{
		Hosts: []HostConfig{
			{Name: "volt5f", Platform: PlatformLinux},
			{Name: "voltmini", Platform: PlatformMac},
		},
		Source: SourceConfig{
			CommunityPrefix:   "https://svn.voltdb.com/eng/",
			EnterprisePrefix:  "https://svn.voltdb.com/pro/",
			CommunityDefault:  "trunk",
			EnterpriseDefault: "branches/rest",
			CommunityDir:      "eng",
			EnterpriseDir:     "pro",
			VersionFile:       "version.txt",
		},
		Build: BuildConfig{
			ScratchDir:        filepath.Join("/tmp", CurrentUser(), "buildtemp"),
			CommunityCommand:  "ant clean default dist",
			EnterpriseCommand: "ant -f mmt.xml clean dist.pro",
			EnterpriseEnv:     map[string]string{"VOLTCORE": "../eng"},
			StatusCheck:       true,
		},
		Release: ReleaseConfig{
			Root:          filepath.Join(homeDir(), "releases"),
			Candidate:     "candidate",
			Manifest:      "checksums.txt",
			ChecksumStyle: ChecksumStyleAuto,
		},
		Artifacts: DefaultArtifacts(),
		SSH: SSHConfig{
			ConfigFile:     filepath.Join(homeDir(), ".ssh", "config"),
			ConnectTimeout: 30 * time.Second,
			Retry: RetryConfig{
				Backoff:    RetryBackoffLinear,
				Initial:    2 * time.Second,
				Max:        30 * time.Second,
				MaxRetries: 2,
			},
		},
		Notify: NotifyConfig{
			Subject: "kitbuilder.candidate",
			Timeout: 5 * time.Second,
		},
	}
}

// DefaultArtifacts is the kit set produced by the community and enterprise builds.
func DefaultArtifacts() []ArtifactConfig {
	const eng = "{{.BuildDir}}/{{.CommunityDir}}/obj/release/"
	return []ArtifactConfig{
		{Name: "server", Remote: eng + "voltdb-{{.Version}}.tar.gz", Local: "{{.Platform}}-voltdb-{{.Version}}.tar.gz"},
		{Name: "client-java", Remote: eng + "voltdb-client-java-{{.Version}}.tar.gz", Local: "voltdb-client-java-{{.Version}}.tar.gz"},
		{Name: "studio-web", Remote: eng + "voltdb-studio.web-{{.Version}}.zip", Local: "voltdb-studio.web-{{.Version}}.zip"},
		{Name: "voltcache", Remote: eng + "voltdb-voltcache-{{.Version}}.tar.gz", Local: "{{.Platform}}-voltdb-voltcache-{{.Version}}.tar.gz"},
		{Name: "voltkv", Remote: eng + "voltdb-voltkv-{{.Version}}.tar.gz", Local: "{{.Platform}}-voltdb-voltkv-{{.Version}}.tar.gz"},
		{Name: "symbols", Remote: eng + "voltdb-{{.Version}}.sym", Local: "other/{{.Platform}}-voltdb-{{.Version}}.sym", Platforms: []string{PlatformLinux}},
		{Name: "enterprise", Remote: "{{.BuildDir}}/{{.EnterpriseDir}}/obj/pro/voltdb-ent-{{.Version}}.tar.gz", Local: "{{.Platform}}-voltdb-ent-{{.Version}}.tar.gz"},
	}
}

// CurrentUser is the login name from $USER, falling back to the OS account.
func CurrentUser() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "kitbuilder"
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
