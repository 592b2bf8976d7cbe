package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"weeklens/internal/citation"
	"weeklens/internal/compose"
	"weeklens/internal/config"
	"weeklens/internal/footer"
	"weeklens/internal/narrative"
	"weeklens/internal/normalize"
	"weeklens/internal/period"
	"weeklens/internal/registry"
	"weeklens/internal/schema"
	"weeklens/internal/source"
	"weeklens/internal/tabular"
)

// Feed is one configured source in declared order. Required feeds abort
// the run on failure; optional feeds degrade to an omission note.
type Feed struct {
	Fetcher  source.Fetcher
	Required bool
}

// Options selects what one run produces.
type Options struct {
	Period  period.Range
	Compare bool
	Mode    citation.Mode
	// DryRun stops after composition: the prompt is built but no model is
	// called and no document assembled.
	DryRun bool
}

// Pipeline wires the stages together. One Pipeline serves many runs; all
// per-run state lives on the Run.
type Pipeline struct {
	cfg       *config.Config
	log       *zap.Logger
	feeds     []Feed
	generator narrative.Generator
	now       func() time.Time
}

// NewPipeline builds a Pipeline. generator may be nil if every run will
// be a dry run.
func NewPipeline(cfg *config.Config, log *zap.Logger, feeds []Feed, generator narrative.Generator) *Pipeline {
	return &Pipeline{cfg: cfg, log: log, feeds: feeds, generator: generator, now: time.Now}
}

// Run produces one report.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Run, error) {
	if len(p.feeds) == 0 {
		return nil, errors.New("report: no sources configured")
	}
	if opts.Period.IsZero() {
		return nil, errors.New("report: period is required")
	}
	if _, err := citation.ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}

	run := &Run{
		ID:          uuid.NewString(),
		GeneratedAt: p.now().UTC(),
		Period:      opts.Period,
		Mode:        opts.Mode,
		Current:     registry.New(""),
	}
	if opts.Compare {
		prev := opts.Period.Previous()
		run.Compare = &prev
		run.Previous = registry.New(registry.PrefixPrevious)
	}

	log := p.log.Named("report").With(zap.String("run_id", run.ID))
	log.Info("report run starting",
		zap.Stringer("period", opts.Period),
		zap.Bool("compare", opts.Compare),
		zap.String("citation_mode", string(opts.Mode)),
		zap.Bool("dry_run", opts.DryRun))
	for _, src := range p.unconfigured() {
		run.Degraded = append(run.Degraded, &schema.DegradedSourceWarning{
			Source: src,
			Reason: "source not configured",
		})
		log.Debug("source not configured; its sections will be absent", zap.String("source", string(src)))
	}

	results, err := p.fetch(ctx, run)
	if err != nil {
		return nil, err
	}
	if err := p.build(run, results, log.Named("normalize")); err != nil {
		return nil, err
	}
	if err := p.composePrompt(run); err != nil {
		return nil, err
	}

	if opts.DryRun {
		log.Info("dry run: stopping before narrative generation",
			zap.Int("records", run.RecordCount()),
			zap.Int("sections", len(run.Blocks)))
		return run, nil
	}

	if err := p.generate(ctx, run, log.Named("generate")); err != nil {
		return nil, err
	}
	p.assemble(run)

	log.Info("report run finished",
		zap.Int("records", run.RecordCount()),
		zap.Int("cited_claims", run.Coverage.CitedClaims),
		zap.Int("distinct_cited", run.Coverage.DistinctCited),
		zap.Int("invalid_citations", len(run.Coverage.InvalidCitations)),
		zap.Int("degraded_sources", len(run.Degraded)))
	return run, nil
}

// fetchResult holds one feed's datasets. Each goroutine writes only its
// own slot.
type fetchResult struct {
	current     *schema.RawDataset
	previous    *schema.RawDataset
	currentErr  error
	previousErr error
}

// fetch pulls every (source, period) pair concurrently. A required
// source's failure cancels the group and aborts the run; optional
// failures land in the result slot for the build stage to degrade.
func (p *Pipeline) fetch(ctx context.Context, run *Run) ([]fetchResult, error) {
	results := make([]fetchResult, len(p.feeds))

	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range p.feeds {
		g.Go(func() error {
			ds, err := feed.Fetcher.Fetch(gctx, run.Period)
			if err != nil {
				if feed.Required {
					return fmt.Errorf("fetch %s: %w", feed.Fetcher.Source(), err)
				}
				results[i].currentErr = err
				return nil
			}
			results[i].current = &ds
			return nil
		})
		if run.Compare == nil {
			continue
		}
		g.Go(func() error {
			ds, err := feed.Fetcher.Fetch(gctx, *run.Compare)
			if err != nil {
				if feed.Required {
					return fmt.Errorf("fetch %s comparison period: %w", feed.Fetcher.Source(), err)
				}
				results[i].previousErr = err
				return nil
			}
			results[i].previous = &ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// build normalizes every fetched dataset in declared order, mints IDs,
// and groups records into sections. Declared-order iteration keeps IDs
// reproducible for identical input.
func (p *Pipeline) build(run *Run, results []fetchResult, log *zap.Logger) error {
	norm := normalize.New(p.cfg.Report.Precision, p.cfg.Report.PercentAllowlist)

	for i, feed := range p.feeds {
		src := feed.Fetcher.Source()
		res := results[i]

		if res.currentErr != nil {
			run.Degraded = append(run.Degraded, &schema.DegradedSourceWarning{
				Source: src,
				Reason: fmt.Sprintf("source omitted (fetch failed: %v)", res.currentErr),
			})
			log.Warn("optional source fetch failed; omitting source",
				zap.String("source", string(src)), zap.Error(res.currentErr))
			continue
		}

		secs, err := p.ingest(norm, run, run.Current, *res.current, "", feed.Required, log)
		if err != nil {
			return err
		}
		run.Sections = append(run.Sections, secs...)

		if run.Compare == nil {
			continue
		}
		if res.previousErr != nil {
			run.Degraded = append(run.Degraded, &schema.DegradedSourceWarning{
				Source: src,
				Reason: fmt.Sprintf("comparison period omitted (fetch failed: %v)", res.previousErr),
			})
			log.Warn("comparison fetch failed; omitting comparison period for source",
				zap.String("source", string(src)), zap.Error(res.previousErr))
			continue
		}
		prevSecs, err := p.ingest(norm, run, run.Previous, *res.previous, "-PREV", feed.Required, log)
		if err != nil {
			return err
		}
		run.PrevSections = append(run.PrevSections, prevSecs...)
	}
	return nil
}

// ingest normalizes one dataset and assigns IDs section by section. For a
// required source any dimension failure aborts; for an optional one the
// failed dimensions are omitted with a warning and the rest survive.
func (p *Pipeline) ingest(norm *normalize.Normalizer, run *Run, reg *registry.Registry, ds schema.RawDataset, suffix string, required bool, log *zap.Logger) ([]schema.Section, error) {
	res := norm.Normalize(ds)

	for _, w := range res.Warnings {
		log.Warn("normalization dropped data", zap.String("detail", w.String()))
	}
	run.Warnings = append(run.Warnings, res.Warnings...)

	if len(res.Failures) > 0 {
		if required {
			errs := make([]error, len(res.Failures))
			for i, f := range res.Failures {
				errs[i] = f
			}
			return nil, fmt.Errorf("normalize %s: %w", ds.Source, multierr.Combine(errs...))
		}
		for _, f := range res.Failures {
			reason := fmt.Sprintf("required field %q missing from export", f.Field)
			if suffix != "" {
				reason = "comparison period: " + reason
			}
			run.Degraded = append(run.Degraded, &schema.DegradedSourceWarning{
				Source: f.Source, Dimension: f.Dimension, Reason: reason,
			})
			log.Warn("section omitted",
				zap.String("source", string(f.Source)),
				zap.String("dimension", string(f.Dimension)),
				zap.String("field", f.Field))
		}
	}

	var sections []schema.Section
	for _, spec := range normalize.Sections(ds.Source) {
		var recs []schema.IdentifiedRecord
		for _, rec := range res.Records {
			if rec.Dimension != spec.Dimension {
				continue
			}
			recs = append(recs, reg.Assign(rec))
		}
		if len(recs) == 0 {
			continue
		}
		sections = append(sections, schema.Section{
			Name:      spec.Marker + suffix,
			Source:    ds.Source,
			Dimension: spec.Dimension,
			KeyLabel:  spec.KeyLabel,
			Columns:   spec.Columns,
			Records:   recs,
		})
	}
	return sections, nil
}

// composePrompt formats every section once and builds the prompt from the
// same blocks the published document will embed.
func (p *Pipeline) composePrompt(run *Run) error {
	fmtr := tabular.New(p.cfg.Report.Precision)
	run.Blocks = make([]string, 0, len(run.Sections)+len(run.PrevSections))
	for _, group := range [][]schema.Section{run.Sections, run.PrevSections} {
		for _, sec := range group {
			block, err := fmtr.Format(sec)
			if err != nil {
				return fmt.Errorf("format section %s: %w", sec.Name, err)
			}
			run.Blocks = append(run.Blocks, block)
		}
	}

	role, err := p.cfg.RoleText()
	if err != nil {
		return err
	}

	var exampleID string
	if ids := run.Current.IDs(); len(ids) > 0 {
		exampleID = ids[0]
	} else if run.Previous != nil {
		if ids := run.Previous.IDs(); len(ids) > 0 {
			exampleID = ids[0]
		}
	}

	prompt, err := compose.New(role).Compose(compose.Input{
		Period:    run.Period,
		Compare:   run.Compare,
		Sections:  run.Blocks,
		ExampleID: exampleID,
	})
	if err != nil {
		return err
	}
	run.Prompt = prompt
	return nil
}

// generate calls the model and validates every citation before anything
// downstream sees the text.
func (p *Pipeline) generate(ctx context.Context, run *Run, log *zap.Logger) error {
	if p.generator == nil {
		return errors.New("report: no narrative generator configured")
	}

	log.Info("generating narrative", zap.Int("prompt_bytes", len(run.Prompt)))
	text, err := p.generator.Generate(ctx, run.Prompt)
	if err != nil {
		return fmt.Errorf("generate narrative: %w", err)
	}

	resolver := registry.Resolver(run.Current)
	if run.Previous != nil {
		resolver = registry.Union{run.Current, run.Previous}
	}
	validated, cov, err := citation.New(run.Mode).Validate(text, resolver)
	if err != nil {
		return fmt.Errorf("validate citations: %w", err)
	}
	if len(cov.InvalidCitations) > 0 {
		log.Warn("stripped invalid citations", zap.Strings("ids", cov.InvalidCitations))
	}

	run.Narrative = validated
	run.Coverage = cov
	return nil
}

// assemble concatenates narrative, data tables, and verification footer
// into the published document.
func (p *Pipeline) assemble(run *Run) {
	foot := footer.Build(footer.Input{
		GeneratedAt:  run.GeneratedAt,
		Period:       run.Period,
		Compare:      run.Compare,
		Sections:     run.Sections,
		PrevSections: run.PrevSections,
		Coverage:     run.Coverage,
		Degraded:     run.Degraded,
		Precision:    p.cfg.Report.Precision,
	})

	var b strings.Builder
	b.WriteString(run.Narrative)
	b.WriteString("\n\n## Data Tables\n\n")
	b.WriteString(strings.Join(run.Blocks, "\n\n"))
	b.WriteString("\n\n")
	b.WriteString(foot)
	run.Report = b.String()
}

// unconfigured lists known sources absent from the feeds.
func (p *Pipeline) unconfigured() []schema.Source {
	configured := make(map[schema.Source]bool, len(p.feeds))
	for _, f := range p.feeds {
		configured[f.Fetcher.Source()] = true
	}
	var missing []schema.Source
	for _, s := range []schema.Source{schema.SourceTraffic, schema.SourceSearch, schema.SourceAds} {
		if !configured[s] {
			missing = append(missing, s)
		}
	}
	return missing
}
