package remote

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/kitbuilder/internal/logfields"
)

// DryRunVersion is the output every command reports under a dry run, so the
// version read from each host agrees.
const DryRunVersion = "0.0.0-dryrun"

// DryRunner logs commands instead of executing them and records what it
// would have done.
type DryRunner struct {
	name string

	mu       sync.Mutex
	commands []string
	gets     [][2]string
}

// NewDryRunner returns a runner that never touches the named host.
func NewDryRunner(name string) *DryRunner {
	return &DryRunner{name: name}
}

func (r *DryRunner) Host() string { return r.name }

func (r *DryRunner) Run(_ context.Context, cmd Command) (string, error) {
	line := cmd.String()
	slog.Info("[dry-run] run", logfields.Host(r.name), logfields.Command(line))
	r.mu.Lock()
	r.commands = append(r.commands, line)
	r.mu.Unlock()
	return DryRunVersion + "\n", nil
}

func (r *DryRunner) Get(_ context.Context, remotePath, localPath string) (int64, error) {
	slog.Info("[dry-run] get", logfields.Host(r.name), slog.String("remote", remotePath), logfields.Path(localPath))
	r.mu.Lock()
	r.gets = append(r.gets, [2]string{remotePath, localPath})
	r.mu.Unlock()
	return 0, nil
}

func (r *DryRunner) Close() error { return nil }

// Commands returns the command lines seen so far.
func (r *DryRunner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

// Gets returns the (remote, local) pairs of requested retrievals.
func (r *DryRunner) Gets() [][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]string(nil), r.gets...)
}
