package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"weeklens/internal/narrative"
	"weeklens/internal/normalize"
	"weeklens/internal/store"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// checkCmd runs preflight checks without generating a report
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify config, exports, storage, and model connectivity",
	Long: `Checks everything a report run needs, without generating one:

  - config file validity
  - section mapping tables
  - one fetch per configured source
  - the run archive database
  - Gemini connectivity (skipped when no API key is set)`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	failed := 0

	pass := func(name, detail string) {
		if detail == "" {
			fmt.Printf("%s %s\n", okStyle.Render("ok"), name)
			return
		}
		fmt.Printf("%s %s: %s\n", okStyle.Render("ok"), name, detail)
	}
	warn := func(name, detail string) {
		fmt.Printf("%s %s: %s\n", warnStyle.Render("--"), name, detail)
	}
	fail := func(name string, err error) {
		failed++
		fmt.Printf("%s %s: %v\n", failStyle.Render("FAIL"), name, err)
	}

	if err := cfg.Validate(); err != nil {
		fail("config", err)
	} else {
		pass("config", cfgPath)
	}

	if err := normalize.ValidateMappings(); err != nil {
		fail("section mappings", err)
	} else {
		pass("section mappings", "")
	}

	rng, err := resolvePeriod(cfg, "", "", "", time.Now())
	if err != nil {
		fail("period", err)
	} else {
		pass("period", rng.String())
		feeds, err := buildFeeds(cfg)
		if err != nil {
			fail("sources", err)
		} else {
			for i, feed := range feeds {
				name := "source " + string(feed.Fetcher.Source())
				fctx, cancel := context.WithTimeout(ctx, cfg.Sources[i].GetTimeout())
				ds, err := feed.Fetcher.Fetch(fctx, rng)
				cancel()
				switch {
				case err != nil && feed.Required:
					fail(name, err)
				case err != nil:
					warn(name, fmt.Sprintf("optional, unavailable: %v", err))
				default:
					pass(name, fmt.Sprintf("%d sections", len(ds.Dimensions)))
				}
			}
		}
	}

	if cfg.Storage.Enabled {
		st, err := store.New(cfg.Storage.Path)
		if err != nil {
			fail("storage", err)
		} else {
			st.Close()
			pass("storage", cfg.Storage.Path)
		}
	} else {
		warn("storage", "disabled; preview and history will not work")
	}

	if cfg.Gemini.APIKey == "" {
		warn("gemini", "no API key set; only dry runs will work")
	} else if gen, err := narrative.NewGeminiGenerator(geminiConfig(cfg)); err != nil {
		fail("gemini", err)
	} else {
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = gen.Probe(pctx)
		cancel()
		gen.Close()
		if err != nil {
			fail("gemini", err)
		} else {
			pass("gemini", cfg.Gemini.Model)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
