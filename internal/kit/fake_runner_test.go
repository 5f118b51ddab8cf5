package kit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/kitbuilder/internal/hosts"
	"git.home.luguber.info/inful/kitbuilder/internal/remote"
)

// fakeRunner answers "cat" with a version and materializes retrieved files
// with their remote path as content.
type fakeRunner struct {
	name    string
	version string
	failOn  string
	failGet string

	mu       sync.Mutex
	commands []string
	gets     []string
	closed   bool
}

func (f *fakeRunner) Host() string { return f.name }

func (f *fakeRunner) Run(_ context.Context, cmd remote.Command) (string, error) {
	line := cmd.String()
	f.mu.Lock()
	f.commands = append(f.commands, line)
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(line, f.failOn) {
		return "", &remote.CommandError{Host: f.name, Command: line, ExitStatus: 1, Stderr: "boom"}
	}
	if strings.HasPrefix(cmd.Line, "cat ") {
		return f.version + "\n", nil
	}
	return "", nil
}

func (f *fakeRunner) Get(_ context.Context, remotePath, localPath string) (int64, error) {
	f.mu.Lock()
	f.gets = append(f.gets, remotePath)
	f.mu.Unlock()
	if f.failGet != "" && strings.Contains(remotePath, f.failGet) {
		return 0, &remote.CommandError{Host: f.name, Command: "cat " + remotePath, ExitStatus: 1}
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return 0, err
	}
	return int64(len(remotePath)), os.WriteFile(localPath, []byte(remotePath), 0o600)
}

func (f *fakeRunner) Close() error {
	f.closed = true
	return nil
}

func (f *fakeRunner) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type fakeResolver struct{}

func (fakeResolver) Resolve(name string) (hosts.Descriptor, error) {
	return hosts.Descriptor{Alias: name, Hostname: name + ".example.com", User: "builder"}, nil
}

// fleet maps host names to fake runners.
type fleet map[string]*fakeRunner

func (fl fleet) connector() Connector {
	return func(_ context.Context, h Host) (remote.Runner, error) {
		return fl[h.Name], nil
	}
}
