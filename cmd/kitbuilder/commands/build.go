package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
	"git.home.luguber.info/inful/kitbuilder/internal/kit"
	"git.home.luguber.info/inful/kitbuilder/internal/source"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Branches []string `arg:"" optional:"" name:"branch" help:"Community and enterprise branch fragments or URLs (one fragment is used for both trees)"`
	DryRun   bool     `name:"dry-run" help:"Log remote commands and planned retrievals without running them"`
	Parallel bool     `help:"Build all hosts concurrently"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	trees, err := selectTrees(cfg, b.Branches)
	if err != nil {
		return err
	}
	if b.Parallel {
		cfg.Build.Parallel = true
	}

	var echo io.Writer
	if root.Verbose {
		echo = os.Stderr
	}
	p, err := newPipeline(cfg, echo)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.service.Run(g.context(), kit.Request{Trees: trees, DryRun: b.DryRun})
	if err != nil {
		return err
	}
	printResult(g.out(), trees, res)
	return nil
}

func selectTrees(cfg *config.Config, args []string) (source.Trees, error) {
	return source.Select(source.Defaults{
		CommunityPrefix:   cfg.Source.CommunityPrefix,
		EnterprisePrefix:  cfg.Source.EnterprisePrefix,
		CommunityDefault:  cfg.Source.CommunityDefault,
		EnterpriseDefault: cfg.Source.EnterpriseDefault,
	}, args)
}

func printResult(w io.Writer, trees source.Trees, res *kit.Result) {
	_, _ = fmt.Fprintf(w, "Community:  %s\n", trees.Community)
	_, _ = fmt.Fprintf(w, "Enterprise: %s\n", trees.Enterprise)
	for _, h := range res.Hosts {
		_, _ = fmt.Fprintf(w, "Built %s (%s) version %s in %s\n", h.Host, h.Platform, h.Version, h.Duration.Round(time.Millisecond))
	}
	if res.DryRun {
		_, _ = fmt.Fprintf(w, "Dry run %s: %d artifacts planned, nothing written\n", res.RunID, len(res.Artifacts))
		return
	}
	if res.Archived {
		_, _ = fmt.Fprintf(w, "Archived previous %s\n", res.ReleaseDir)
	}
	_, _ = fmt.Fprintf(w, "Release %s: %d artifacts in %s\n", res.Version, len(res.Artifacts), res.ReleaseDir)
	_, _ = fmt.Fprintf(w, "Checksums: %s\n", res.Manifest)
	_, _ = fmt.Fprintf(w, "Candidate: %s\n", res.Candidate)
}
