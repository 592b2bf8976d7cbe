package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"weeklens/internal/store"
)

var historyLimit int

// historyCmd lists archived runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived report runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.Storage.Enabled {
		return fmt.Errorf("storage is disabled in %s; runs are not archived", cfgPath)
	}
	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No archived runs yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Generated", "Run ID", "Period", "Mode", "Cited", "Issues"})
	for _, rec := range runs {
		issues := "-"
		if n := len(rec.InvalidCitations) + len(rec.DegradedSources); n > 0 {
			issues = fmt.Sprintf("%d", n)
		}
		t.AppendRow(table.Row{
			rec.GeneratedAt.Local().Format("2006-01-02 15:04"),
			shortID(rec.ID),
			rec.PeriodStart + " to " + rec.PeriodEnd,
			rec.CitationMode,
			fmt.Sprintf("%d/%d", rec.DistinctCited, rec.AvailableIDs),
			issues,
		})
	}
	t.Render()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
