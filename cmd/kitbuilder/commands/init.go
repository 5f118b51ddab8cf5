package commands

import (
	"fmt"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Configuration written to %s\n", root.Config)
	_, _ = fmt.Fprintln(g.out(), "Edit the hosts and release sections, then run: kitbuilder build --dry-run")
	return nil
}
