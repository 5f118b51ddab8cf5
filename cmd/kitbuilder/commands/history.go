package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Maximum number of runs to list" default:"20"`
	RunID string `arg:"" optional:"" name:"run-id" help:"Show a single run in detail"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if cfg.History.Database == "" {
		return kerrors.ConfigError("run history is not configured").
			WithContext("setting", "history.database").
			Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	history := eventstore.NewHistory(store, h.Limit)
	ctx := g.context()
	if h.RunID != "" {
		run, found, err := history.Get(ctx, h.RunID)
		if err != nil {
			return err
		}
		if !found {
			return kerrors.ValidationError("run not found").WithContext("run_id", h.RunID).Build()
		}
		printRun(g.out(), run)
		return nil
	}

	runs, err := history.List(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(g.out(), "No runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tVERSION\tARTIFACTS\tDURATION")
	for _, r := range runs {
		status := r.Status
		if r.DryRun {
			status += " (dry-run)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.RunID, r.StartedAt.Local().Format(time.DateTime), status, dash(r.Version), r.Artifacts, r.Duration.Round(time.Second))
	}
	return tw.Flush()
}

func printRun(w io.Writer, r *eventstore.RunSummary) {
	_, _ = fmt.Fprintf(w, "Run:       %s\n", r.RunID)
	_, _ = fmt.Fprintf(w, "Status:    %s\n", r.Status)
	_, _ = fmt.Fprintf(w, "Started:   %s\n", r.StartedAt.Local().Format(time.DateTime))
	if r.CompletedAt != nil {
		_, _ = fmt.Fprintf(w, "Finished:  %s (%s)\n", r.CompletedAt.Local().Format(time.DateTime), r.Duration.Round(time.Second))
	}
	_, _ = fmt.Fprintf(w, "Hosts:     %v\n", r.Hosts)
	_, _ = fmt.Fprintf(w, "Version:   %s\n", dash(r.Version))
	_, _ = fmt.Fprintf(w, "Release:   %s\n", dash(r.ReleaseDir))
	_, _ = fmt.Fprintf(w, "Artifacts: %d\n", r.Artifacts)
	if r.ErrorMessage != "" {
		_, _ = fmt.Fprintf(w, "Failed in %s: %s\n", r.ErrorStage, r.ErrorMessage)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
