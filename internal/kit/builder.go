package kit

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/logfields"
	"git.home.luguber.info/inful/kitbuilder/internal/observability"
	"git.home.luguber.info/inful/kitbuilder/internal/remote"
)

type buildStep struct {
	tree string
	line string
	env  map[string]string
}

// Builder runs the community and then the enterprise build in the checked
// out trees.
type Builder struct {
	scratch     string
	statusCheck bool
	steps       []buildStep
}

// NewBuilder returns a builder for the configured commands.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		scratch:     cfg.Build.ScratchDir,
		statusCheck: cfg.Build.StatusCheck,
		steps: []buildStep{
			{tree: cfg.Source.CommunityDir, line: cfg.Build.CommunityCommand},
			{tree: cfg.Source.EnterpriseDir, line: cfg.Build.EnterpriseCommand, env: cfg.Build.EnterpriseEnv},
		},
	}
}

// Build runs both builds on r. The first failing command aborts.
func (b *Builder) Build(ctx context.Context, r remote.Runner) error {
	for _, step := range b.steps {
		dir := path.Join(b.scratch, step.tree)
		ctx := observability.WithStage(ctx, "build:"+step.tree)

		var cmds []remote.Command
		if b.statusCheck {
			cmds = append(cmds,
				remote.Command{Dir: dir, Line: "pwd"},
				remote.Command{Dir: dir, Line: "svn status"},
			)
		}
		cmds = append(cmds, remote.Command{Dir: dir, Env: step.env, Line: step.line})

		for _, cmd := range cmds {
			observability.InfoContext(ctx, "run", logfields.Command(cmd.String()))
			out, err := r.Run(ctx, cmd)
			if err != nil {
				return kerrors.BuildError("remote build failed").
					WithCause(err).
					WithContext("host", r.Host()).
					WithContext("tree", step.tree).
					WithContext("command", cmd.String()).
					Build()
			}
			if out = strings.TrimSpace(out); out != "" && cmd.Line != step.line {
				observability.DebugContext(ctx, "output", logfields.Command(cmd.Line), slog.String("output", out))
			}
		}
	}
	return nil
}
