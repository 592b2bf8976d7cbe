// Package report orchestrates one report production end to end: fetch,
// normalize, identify, format, compose, generate, validate, assemble.
package report

import (
	"time"

	"weeklens/internal/citation"
	"weeklens/internal/normalize"
	"weeklens/internal/period"
	"weeklens/internal/registry"
	"weeklens/internal/schema"
)

// Run holds everything one report production minted. All of it is scoped
// to this run; registries, sections, and coverage never carry across runs.
type Run struct {
	ID          string
	GeneratedAt time.Time
	Period      period.Range
	Compare     *period.Range
	Mode        citation.Mode

	// Current and Previous are the disjoint ID registries of the two
	// periods. Previous is nil when no comparison ran.
	Current  *registry.Registry
	Previous *registry.Registry

	// Sections and PrevSections in declared order; Blocks are their
	// rendered tables, current period first, exactly as the prompt and
	// the published document embed them.
	Sections     []schema.Section
	PrevSections []schema.Section
	Blocks       []string

	Prompt    string
	Narrative string
	Coverage  citation.Coverage

	// Report is the assembled document. Empty on dry runs.
	Report string

	Degraded []*schema.DegradedSourceWarning
	Warnings []normalize.Warning
}

// RecordCount returns how many IDs this run minted across both periods.
func (r *Run) RecordCount() int {
	n := r.Current.Len()
	if r.Previous != nil {
		n += r.Previous.Len()
	}
	return n
}
