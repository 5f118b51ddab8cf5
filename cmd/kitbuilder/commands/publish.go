package commands

import (
	"fmt"
	"path/filepath"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/release"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	Dir string `arg:"" help:"Release directory the candidate link should point at"`
}

func (p *PublishCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	target, err := filepath.Abs(p.Dir)
	if err != nil {
		return kerrors.FileSystemError("failed to resolve release directory").WithCause(err).Build()
	}
	link, err := release.PublishCandidate(cfg.Release.Root, cfg.Release.Candidate, target)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "%s -> %s\n", link, target)
	return nil
}
