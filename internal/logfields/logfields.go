package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyHost       = "host"
	KeyAddress    = "address"
	KeyPlatform   = "platform"
	KeyVersion    = "version"
	KeyStage      = "stage"
	KeyTree       = "tree"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyArtifact   = "artifact"
	KeyCommand    = "command"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Host(h string) slog.Attr         { return slog.String(KeyHost, h) }
func Address(a string) slog.Attr      { return slog.String(KeyAddress, a) }
func Platform(p string) slog.Attr     { return slog.String(KeyPlatform, p) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Tree(name string) slog.Attr      { return slog.String(KeyTree, name) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Artifact(name string) slog.Attr  { return slog.String(KeyArtifact, name) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
