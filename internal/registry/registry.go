// Package registry mints the run-scoped citation IDs that make every table
// row addressable from narrative text. IDs encode provenance
// (SOURCE-DIM-NNN) so a human can trace a citation without the table.
package registry

import (
	"fmt"

	"weeklens/internal/schema"
)

// PrefixPrevious namespaces comparison-period IDs. Current and comparison
// periods use disjoint registries so the two never share counters.
const PrefixPrevious = "PREV"

// Resolver is the read side of a registry, consumed by the citation
// validator and the footer generator.
type Resolver interface {
	Resolve(id string) (schema.IdentifiedRecord, bool)
	IDs() []string
}

// Registry assigns IDs from per-(source, dimension) counters. Assignment
// is deterministic given stable input ordering, and an ID is never reused
// within a run even if its record is later excluded from section output.
type Registry struct {
	prefix   string
	counters map[string]int
	byID     map[string]schema.IdentifiedRecord
	order    []string
}

// New returns an empty registry. A non-empty prefix is prepended to every
// minted ID (PrefixPrevious yields PREV-GA4-DEV-001).
func New(prefix string) *Registry {
	return &Registry{
		prefix:   prefix,
		counters: make(map[string]int),
		byID:     make(map[string]schema.IdentifiedRecord),
	}
}

// Assign mints the next ID for the record's source and dimension and
// stores the record under it.
func (r *Registry) Assign(rec schema.CanonicalRecord) schema.IdentifiedRecord {
	key := rec.Source.Code() + "-" + rec.Dimension.Code()
	r.counters[key]++

	id := fmt.Sprintf("%s-%03d", key, r.counters[key])
	if r.prefix != "" {
		id = r.prefix + "-" + id
	}

	identified := schema.IdentifiedRecord{CanonicalRecord: rec, ID: id}
	r.byID[id] = identified
	r.order = append(r.order, id)
	return identified
}

// Resolve returns the record assigned to id.
func (r *Registry) Resolve(id string) (schema.IdentifiedRecord, bool) {
	rec, ok := r.byID[id]
	return rec, ok
}

// IDs returns every assigned ID in assignment order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Records returns every identified record in assignment order.
func (r *Registry) Records() []schema.IdentifiedRecord {
	out := make([]schema.IdentifiedRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of assigned IDs.
func (r *Registry) Len() int {
	return len(r.order)
}

// Union resolves against several registries in order. The report run uses
// it to validate citations against both the current and the comparison
// period without merging their namespaces.
type Union []Resolver

// Resolve tries each member in order.
func (u Union) Resolve(id string) (schema.IdentifiedRecord, bool) {
	for _, r := range u {
		if rec, ok := r.Resolve(id); ok {
			return rec, true
		}
	}
	return schema.IdentifiedRecord{}, false
}

// IDs concatenates member IDs in member order.
func (u Union) IDs() []string {
	var out []string
	for _, r := range u {
		out = append(out, r.IDs()...)
	}
	return out
}
