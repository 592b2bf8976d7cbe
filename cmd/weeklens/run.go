package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"weeklens/internal/citation"
	"weeklens/internal/config"
	"weeklens/internal/narrative"
	"weeklens/internal/period"
	"weeklens/internal/publish"
	"weeklens/internal/report"
	"weeklens/internal/schema"
	"weeklens/internal/source"
	"weeklens/internal/store"
)

var (
	runPeriod  string
	runStart   string
	runEnd     string
	runCompare bool
	runMode    string
	runDryRun  bool
	runNoSave  bool
	runStdout  bool
)

// runCmd produces one report end to end
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch exports, generate the narrative, and write the report",
	Long: `Produces one weekly report:
  1. Fetch every configured source for the period (and the prior period
     when comparing)
  2. Normalize exports into the canonical schema and assign citation IDs
  3. Compose the prompt and generate the narrative with Gemini
  4. Validate every citation against the data tables
  5. Assemble narrative, tables, and verification footer into markdown

The finished report lands in the output directory and, unless disabled,
in the run archive for 'weeklens preview' and 'weeklens history'.`,
	RunE: runReport,
}

func init() {
	runCmd.Flags().StringVar(&runPeriod, "period", "", "Period preset: last-week, last-month, or last-quarter (default from config)")
	runCmd.Flags().StringVar(&runStart, "start", "", "Explicit period start, YYYY-MM-DD")
	runCmd.Flags().StringVar(&runEnd, "end", "", "Explicit period end, YYYY-MM-DD")
	runCmd.Flags().BoolVar(&runCompare, "compare", false, "Include the prior period for comparison (default from config)")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Citation mode: strict or lenient (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Compose and print the prompt without calling the model")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Skip archiving the run to the local database")
	runCmd.Flags().BoolVar(&runStdout, "stdout", false, "Write the report to stdout instead of the output directory")
}

func runReport(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	rng, err := resolvePeriod(cfg, runPeriod, runStart, runEnd, time.Now())
	if err != nil {
		return err
	}

	compare := cfg.Report.Compare
	if cmd.Flags().Changed("compare") {
		compare = runCompare
	}

	modeName := cfg.Report.CitationMode
	if runMode != "" {
		modeName = runMode
	}
	mode, err := citation.ParseMode(modeName)
	if err != nil {
		return err
	}

	feeds, err := buildFeeds(cfg)
	if err != nil {
		return err
	}

	var generator narrative.Generator
	if !runDryRun {
		gen, err := narrative.NewGeminiGenerator(geminiConfig(cfg))
		if err != nil {
			return err
		}
		defer gen.Close()
		generator = gen
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	pipeline := report.NewPipeline(cfg, logger, feeds, generator)
	run, err := pipeline.Run(ctx, report.Options{
		Period:  rng,
		Compare: compare,
		Mode:    mode,
		DryRun:  runDryRun,
	})
	if err != nil {
		return err
	}

	if runDryRun {
		fmt.Println(run.Prompt)
		return nil
	}

	if cfg.Storage.Enabled && !runNoSave {
		if err := archiveRun(cfg.Storage.Path, run); err != nil {
			return err
		}
	}

	doc := publish.Document{RunID: run.ID, Period: run.Period, Markdown: run.Report}
	if runStdout {
		return (&publish.StdoutPublisher{}).Publish(ctx, doc)
	}
	pub := publish.NewFilePublisher(cfg.Output.Dir)
	if err := pub.Publish(ctx, doc); err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n", pub.Path(doc))
	return nil
}

// resolvePeriod applies flag overrides to the configured default preset.
// Explicit dates win over any preset; period.Resolve rejects mixing them.
func resolvePeriod(cfg *config.Config, preset, start, end string, now time.Time) (period.Range, error) {
	if start != "" || end != "" {
		return period.Resolve(preset, start, end, now)
	}
	if preset == "" {
		preset = cfg.Report.Period
	}
	return period.Resolve(preset, "", "", now)
}

// buildFeeds turns configured sources into fetchers, preserving declared
// order so citation IDs stay reproducible.
func buildFeeds(cfg *config.Config) ([]report.Feed, error) {
	feeds := make([]report.Feed, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		var fetcher source.Fetcher
		switch src.Kind {
		case "file":
			fetcher = source.NewFileFetcher(schema.Source(src.Name), src.Path, src.LagDays)
		case "http":
			fetcher = source.NewHTTPFetcher(schema.Source(src.Name), src.URL, src.Token, src.LagDays, src.GetTimeout())
		default:
			return nil, fmt.Errorf("source %q: unsupported kind %q", src.Name, src.Kind)
		}
		feeds = append(feeds, report.Feed{Fetcher: fetcher, Required: src.Required})
	}
	return feeds, nil
}

func geminiConfig(cfg *config.Config) narrative.GeminiConfig {
	return narrative.GeminiConfig{
		APIKey:          cfg.Gemini.APIKey,
		Model:           cfg.Gemini.Model,
		Timeout:         cfg.GetGeminiTimeout(),
		Temperature:     cfg.Gemini.Temperature,
		TopP:            cfg.Gemini.TopP,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
	}
}

// archiveRun persists a finished run for preview and history.
func archiveRun(path string, run *report.Run) (err error) {
	st, err := store.New(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, st.Close())
	}()
	return st.SaveRun(toRunRecord(run))
}

// toRunRecord flattens a run into its archive row.
func toRunRecord(run *report.Run) store.RunRecord {
	rec := store.RunRecord{
		ID:               run.ID,
		GeneratedAt:      run.GeneratedAt,
		PeriodStart:      run.Period.Start.Format("2006-01-02"),
		PeriodEnd:        run.Period.End.Format("2006-01-02"),
		CitationMode:     string(run.Mode),
		CitedClaims:      run.Coverage.CitedClaims,
		AvailableIDs:     run.Coverage.AvailableIDs,
		DistinctCited:    run.Coverage.DistinctCited,
		UtilizationRate:  run.Coverage.UtilizationRate,
		InvalidCitations: run.Coverage.InvalidCitations,
		Report:           run.Report,
	}
	if run.Compare != nil {
		rec.CompareStart = run.Compare.Start.Format("2006-01-02")
		rec.CompareEnd = run.Compare.End.Format("2006-01-02")
	}
	for _, d := range run.Degraded {
		rec.DegradedSources = append(rec.DegradedSources, degradedLine(d))
	}
	return rec
}

func degradedLine(d *schema.DegradedSourceWarning) string {
	if d.Dimension != "" {
		return fmt.Sprintf("%s/%s: %s", d.Source, d.Dimension, d.Reason)
	}
	return fmt.Sprintf("%s: %s", d.Source, d.Reason)
}
