package commands

import (
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/kitbuilder/internal/hosts"
	"git.home.luguber.info/inful/kitbuilder/internal/kit"
)

// HostsCmd implements the 'hosts' command.
type HostsCmd struct{}

func (h *HostsCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	resolver, err := hosts.NewResolver(cfg.SSH.ConfigFile)
	if err != nil {
		return err
	}
	resolved, err := kit.ResolveHosts(cfg, resolver)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tPLATFORM\tADDRESS\tKEY")
	for _, host := range resolved {
		addr := host.Descriptor.Address()
		if host.Local {
			addr = "(local)"
		}
		key := host.Descriptor.KeyFile
		if key == "" {
			key = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", host.Name, host.Platform, addr, key)
	}
	return tw.Flush()
}
