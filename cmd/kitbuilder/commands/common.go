// Package commands implements the kitbuilder subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
	"git.home.luguber.info/inful/kitbuilder/internal/eventstore"
	"git.home.luguber.info/inful/kitbuilder/internal/hosts"
	"git.home.luguber.info/inful/kitbuilder/internal/kit"
	"git.home.luguber.info/inful/kitbuilder/internal/logfields"
	"git.home.luguber.info/inful/kitbuilder/internal/metrics"
	"git.home.luguber.info/inful/kitbuilder/internal/notify"
)

// Global is shared state handed to every subcommand.
type Global struct {
	Ctx    context.Context
	Logger *slog.Logger
	// Out receives user-facing output.
	Out io.Writer
}

func (g *Global) context() context.Context {
	if g.Ctx == nil {
		return context.Background()
	}
	return g.Ctx
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"kitbuilder.yaml" env:"KITBUILDER_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Check out, build and assemble a release kit"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	Hosts    HostsCmd    `cmd:"" help:"Show the resolved connection parameters of every build host"`
	Checksum ChecksumCmd `cmd:"" help:"Regenerate the checksum manifest of a release directory"`
	Publish  PublishCmd  `cmd:"" help:"Point the candidate link at a release directory"`
	History  HistoryCmd  `cmd:"" help:"List past kit runs"`
	Schedule ScheduleCmd `cmd:"" help:"Run kit builds on a cron schedule until interrupted"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honours KITBUILDER_LOG_LEVEL, then the verbose flag.
func parseLogLevel(verbose bool) slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("KITBUILDER_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func loadConfig(root *CLI) (*config.Config, error) {
	return config.LoadOrDefault(root.Config)
}

// pipeline bundles the kit service with the resources it was given, so the
// caller can release them in one place.
type pipeline struct {
	cfg      *config.Config
	service  *kit.Service
	recorder *metrics.PrometheusRecorder
	store    eventstore.Store
	notifier notify.Notifier
}

func newPipeline(cfg *config.Config, echo io.Writer) (*pipeline, error) {
	resolver, err := hosts.NewResolver(cfg.SSH.ConfigFile)
	if err != nil {
		return nil, err
	}

	p := &pipeline{cfg: cfg, recorder: metrics.NewPrometheusRecorder(nil)}
	p.service = kit.NewService(cfg).
		WithResolver(resolver).
		WithConnector(kit.NewConnector(cfg, echo)).
		WithRecorder(p.recorder)

	if cfg.History.Database != "" {
		store, err := eventstore.NewSQLiteStore(cfg.History.Database)
		if err != nil {
			return nil, err
		}
		p.store = store
		p.service.WithEventStore(store)
	}

	n, err := notify.New(cfg.Notify)
	if err != nil {
		// The notification is a courtesy; a broker outage must not block a release.
		slog.Warn("Candidate notifications disabled", logfields.Error(err))
		n = notify.Noop{}
	}
	p.notifier = n
	p.service.WithNotifier(n)
	return p, nil
}

// flushMetrics writes the textfile when one is configured.
func (p *pipeline) flushMetrics() {
	if p.cfg.Metrics.Textfile == "" {
		return
	}
	if err := p.recorder.WriteTextfile(p.cfg.Metrics.Textfile); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(p.cfg.Metrics.Textfile), logfields.Error(err))
	}
}

func (p *pipeline) Close() {
	p.flushMetrics()
	p.notifier.Close()
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			slog.Warn("Failed to close history database", logfields.Error(err))
		}
	}
}
