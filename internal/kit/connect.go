package kit

import (
	"context"
	"io"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
	"git.home.luguber.info/inful/kitbuilder/internal/hosts"
	"git.home.luguber.info/inful/kitbuilder/internal/remote"
	"git.home.luguber.info/inful/kitbuilder/internal/retry"
)

// Host is one configured build machine with its resolved connection data.
type Host struct {
	Name       string
	Platform   string
	Local      bool
	Descriptor hosts.Descriptor
}

// Resolver maps host names to connection descriptors.
type Resolver interface {
	Resolve(name string) (hosts.Descriptor, error)
}

// Connector opens a runner for a host.
type Connector func(ctx context.Context, h Host) (remote.Runner, error)

// NewConnector returns the connector used outside tests: local hosts run
// through the shell, all others over SSH. echo, when set, receives command
// output as it streams.
func NewConnector(cfg *config.Config, echo io.Writer) Connector {
	opts := remote.DialOptions{
		User:       config.CurrentUser(),
		KnownHosts: cfg.SSH.KnownHosts,
		Timeout:    cfg.SSH.ConnectTimeout,
		Retry:      retry.FromConfig(cfg.SSH.Retry),
		Echo:       echo,
	}
	return func(ctx context.Context, h Host) (remote.Runner, error) {
		if h.Local {
			return remote.NewLocalRunner(h.Name, echo), nil
		}
		return remote.Dial(ctx, h.Descriptor, opts)
	}
}

// ResolveHosts resolves every configured host in order.
func ResolveHosts(cfg *config.Config, r Resolver) ([]Host, error) {
	out := make([]Host, 0, len(cfg.Hosts))
	for _, hc := range cfg.Hosts {
		d, err := r.Resolve(hc.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, Host{Name: hc.Name, Platform: hc.Platform, Local: hc.Local, Descriptor: d})
	}
	return out, nil
}
