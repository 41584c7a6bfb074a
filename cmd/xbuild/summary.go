package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	core "github.com/3cpo-dev/xbuild/internal/core"
	"github.com/3cpo-dev/xbuild/pkg/api"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(
		w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders:  tw.BorderNone,
			Settings: tw.Settings{Separators: tw.Separators{BetweenColumns: tw.On, BetweenRows: tw.On}},
		})),
	)
}

// printSummary renders one row per target: artifact on success, reason on failure.
func printSummary(w io.Writer, r *core.Report) {
	tbl := newTable(w)
	tbl.Header([]string{"Target", "Status", "Artifact / Reason", "Duration"})
	rows := make([][]any, 0, len(r.Result.Outcomes))
	for _, o := range r.Result.Outcomes {
		detail := o.Artifact
		if !o.Succeeded() {
			detail = o.Reason()
		}
		rows = append(rows, []any{o.Target.String(), string(o.Status), detail, o.Duration.Round(time.Millisecond).String()})
	}
	_ = tbl.Bulk(rows)
	_ = tbl.Render()
	fmt.Fprintf(w, "%d succeeded, %d failed (run %s)\n", len(r.Result.Succeeded()), len(r.Result.Failed()), r.ID)
}

func printRuns(w io.Writer, runs []api.RunSummary) {
	tbl := newTable(w)
	tbl.Header([]string{"Run", "Started", "Revision", "Version", "Succeeded", "Failed"})
	rows := make([][]any, 0, len(runs))
	for _, r := range runs {
		rev := r.RevisionHash
		if len(rev) > 12 {
			rev = rev[:12]
		}
		rows = append(rows, []any{r.ID, r.StartedAt, rev, r.ProgramVersion, r.Succeeded, r.Failed})
	}
	_ = tbl.Bulk(rows)
	_ = tbl.Render()
}

func printOutcomes(w io.Writer, outcomes []api.OutcomeSummary) {
	tbl := newTable(w)
	tbl.Header([]string{"Target", "Status", "Artifact / Reason", "SHA256"})
	rows := make([][]any, 0, len(outcomes))
	for _, o := range outcomes {
		detail := o.Artifact
		if o.Status != api.BuildSucceeded {
			detail = o.Error
		}
		rows = append(rows, []any{o.Platform + "/" + o.Arch, string(o.Status), detail, o.SHA256})
	}
	_ = tbl.Bulk(rows)
	_ = tbl.Render()
}
