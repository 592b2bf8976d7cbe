package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"weeklens/internal/store"
)

var (
	previewRaw   bool
	previewWidth int
)

// previewCmd renders an archived report in the terminal
var previewCmd = &cobra.Command{
	Use:   "preview [run-id]",
	Short: "Render an archived report in the terminal",
	Long: `Renders the report for the given run ID, or the most recent run when
no ID is given. Run IDs come from 'weeklens history'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().BoolVar(&previewRaw, "raw", false, "Print raw markdown without terminal rendering")
	previewCmd.Flags().IntVar(&previewWidth, "width", 100, "Word-wrap width for rendered output")
}

func runPreview(cmd *cobra.Command, args []string) error {
	rec, err := loadArchivedRun(args)
	if err != nil {
		return err
	}

	if previewRaw {
		fmt.Println(rec.Report)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(previewWidth),
	)
	if err != nil {
		fmt.Println(rec.Report)
		return nil
	}
	rendered, err := renderer.Render(rec.Report)
	if err != nil {
		fmt.Println(rec.Report)
		return nil
	}
	fmt.Print(rendered)
	return nil
}

func loadArchivedRun(args []string) (store.RunRecord, error) {
	if !cfg.Storage.Enabled {
		return store.RunRecord{}, fmt.Errorf("storage is disabled in %s; runs are not archived", cfgPath)
	}
	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return store.RunRecord{}, err
	}
	defer st.Close()

	if len(args) == 1 {
		return st.GetRun(args[0])
	}
	return st.LatestRun()
}
