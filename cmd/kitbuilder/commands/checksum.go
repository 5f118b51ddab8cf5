package commands

import (
	"fmt"

	"git.home.luguber.info/inful/kitbuilder/internal/checksum"
)

// ChecksumCmd implements the 'checksum' command.
type ChecksumCmd struct {
	Dir string `arg:"" help:"Release directory" type:"existingdir"`
}

func (c *ChecksumCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	path, digests, err := checksum.WriteManifest(c.Dir, cfg.Release.Manifest, cfg.Release.ChecksumStyle)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Wrote %s (%d files)\n", path, len(digests))
	return nil
}
