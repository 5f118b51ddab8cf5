package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/kit"
	"git.home.luguber.info/inful/kitbuilder/internal/logfields"
	"git.home.luguber.info/inful/kitbuilder/internal/scheduler"
)

// ScheduleCmd implements the 'schedule' command.
type ScheduleCmd struct {
	Branches    []string `arg:"" optional:"" name:"branch" help:"Branch fragments passed to every scheduled build"`
	Cron        string   `help:"Cron expression (five fields, or six with seconds); defaults to schedule.cron"`
	MetricsAddr string   `name:"metrics-addr" help:"Serve Prometheus metrics on this address, e.g. :9464"`
	DryRun      bool     `name:"dry-run" help:"Schedule dry runs only"`
}

func (s *ScheduleCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	expr := s.Cron
	if expr == "" {
		expr = cfg.Schedule.Cron
	}
	if expr == "" {
		return kerrors.ValidationError("no cron expression (use --cron or schedule.cron)").Build()
	}
	trees, err := selectTrees(cfg, s.Branches)
	if err != nil {
		return err
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

	sched, err := scheduler.New()
	if err != nil {
		return err
	}
	ctx := g.context()
	task := func(ctx context.Context) error {
		res, err := p.service.Run(ctx, kit.Request{Trees: trees, DryRun: s.DryRun})
		p.flushMetrics()
		if err != nil {
			return err
		}
		printResult(g.out(), trees, res)
		return nil
	}
	if _, err := sched.ScheduleCron(ctx, "kit-build", expr, task); err != nil {
		return err
	}

	if s.MetricsAddr != "" {
		srv := &http.Server{Addr: s.MetricsAddr, Handler: p.recorder.HTTPHandler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("Serving metrics", slog.String("addr", s.MetricsAddr))
	}

	sched.Start()
	if next, err := sched.NextRun("kit-build"); err == nil {
		_, _ = fmt.Fprintf(g.out(), "Next build at %s\n", next.Local().Format(time.DateTime))
	}

	<-ctx.Done()
	if err := sched.Stop(); err != nil {
		slog.Warn("Scheduler did not stop cleanly", logfields.Error(err))
	}
	return nil
}
