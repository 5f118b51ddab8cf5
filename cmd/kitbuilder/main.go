package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/kitbuilder/cmd/kitbuilder/commands"
	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("kitbuilder"),
		kong.Description("Build release kits on remote hosts and assemble a versioned release directory."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	global := &commands.Global{Ctx: ctx, Logger: slog.Default(), Out: os.Stdout}
	err := parser.Run(global, &cli)
	stop()
	kerrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
