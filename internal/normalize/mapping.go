package normalize

import (
	"fmt"

	"weeklens/internal/schema"
)

// metricMapping binds one canonical metric to the single raw field it
// reads. There is exactly one designated raw field per canonical metric
// per provider version; no fuzzy or heuristic name matching anywhere.
type metricMapping struct {
	Canonical string
	RawField  string
	Required  bool // absence fails the whole dimension, not just the row
	PreScaled bool // raw value is already 0-100; skip allowlist scaling
}

// dimensionMapping declares how one provider export section normalizes:
// which canonical dimension it becomes, where the natural key lives, and
// the metric columns in their fixed declared order.
type dimensionMapping struct {
	Dimension schema.Dimension
	Marker    string // section boundary name fragment, e.g. DEVICES
	KeyField  string // raw field holding the natural key; "" for overview
	KeyLabel  string
	Metrics   []metricMapping
}

// sectionOrder fixes the declared normalization and rendering order of
// each source's export sections. Iteration over the mapping tables always
// follows this order, never map order, so record IDs stay reproducible.
var sectionOrder = map[schema.Source][]string{
	schema.SourceTraffic: {"overview", "traffic_sources", "top_pages", "devices", "geo"},
	schema.SourceSearch:  {"overview", "top_queries", "top_pages", "devices", "countries", "opportunities"},
	schema.SourceAds:     {"overview", "campaigns"},
}

// mappings is the versioned field-mapping table, the only place in the
// codebase that knows provider field names.
var mappings = map[schema.Source]map[string]dimensionMapping{
	schema.SourceTraffic: {
		"overview": {
			Dimension: schema.DimOverview,
			Marker:    "OVERVIEW",
			KeyLabel:  "Period",
			Metrics: []metricMapping{
				{Canonical: schema.MetricSessions, RawField: "sessions", Required: true},
				{Canonical: schema.MetricActiveUsers, RawField: "activeUsers"},
				{Canonical: schema.MetricNewUsers, RawField: "newUsers"},
				{Canonical: schema.MetricPageViews, RawField: "screenPageViews"},
				{Canonical: schema.MetricBounceRate, RawField: "bounceRate"},
				{Canonical: schema.MetricEngagementRate, RawField: "engagementRate"},
				{Canonical: schema.MetricAvgSessionDuration, RawField: "averageSessionDuration"},
			},
		},
		"traffic_sources": {
			Dimension: schema.DimSegment,
			Marker:    "TRAFFIC",
			KeyField:  "sourceMedium",
			KeyLabel:  "Source / Medium",
			Metrics: []metricMapping{
				{Canonical: schema.MetricSessions, RawField: "sessions", Required: true},
				{Canonical: schema.MetricActiveUsers, RawField: "users"},
				{Canonical: schema.MetricBounceRate, RawField: "bounceRate"},
			},
		},
		"top_pages": {
			Dimension: schema.DimPage,
			Marker:    "PAGES",
			KeyField:  "pagePath",
			KeyLabel:  "Page",
			Metrics: []metricMapping{
				{Canonical: schema.MetricPageViews, RawField: "pageViews", Required: true},
				{Canonical: schema.MetricEngagementTime, RawField: "avgEngagementTime"},
				{Canonical: schema.MetricBounceRate, RawField: "bounceRate"},
			},
		},
		"devices": {
			Dimension: schema.DimDevice,
			Marker:    "DEVICES",
			KeyField:  "device",
			KeyLabel:  "Device",
			Metrics: []metricMapping{
				{Canonical: schema.MetricSessions, RawField: "sessions", Required: true},
				{Canonical: schema.MetricSharePct, RawField: "percentage"},
				{Canonical: schema.MetricActiveUsers, RawField: "users"},
				{Canonical: schema.MetricBounceRate, RawField: "bounceRate"},
				{Canonical: schema.MetricAvgSessionDuration, RawField: "avgSessionDuration"},
			},
		},
		"geo": {
			Dimension: schema.DimGeo,
			Marker:    "GEO",
			KeyField:  "country",
			KeyLabel:  "Country",
			Metrics: []metricMapping{
				{Canonical: schema.MetricSessions, RawField: "sessions", Required: true},
				{Canonical: schema.MetricSharePct, RawField: "percentage"},
				{Canonical: schema.MetricActiveUsers, RawField: "users"},
			},
		},
	},
	schema.SourceSearch: {
		"overview": {
			Dimension: schema.DimOverview,
			Marker:    "OVERVIEW",
			KeyLabel:  "Period",
			Metrics: []metricMapping{
				{Canonical: schema.MetricClicks, RawField: "clicks", Required: true},
				{Canonical: schema.MetricImpressions, RawField: "impressions"},
				{Canonical: schema.MetricCTR, RawField: "ctr"},
				{Canonical: schema.MetricPosition, RawField: "position"},
			},
		},
		"top_queries": {
			Dimension: schema.DimQuery,
			Marker:    "QUERIES",
			KeyField:  "query",
			KeyLabel:  "Query",
			Metrics: []metricMapping{
				{Canonical: schema.MetricClicks, RawField: "clicks", Required: true},
				{Canonical: schema.MetricImpressions, RawField: "impressions"},
				{Canonical: schema.MetricCTR, RawField: "ctr"},
				{Canonical: schema.MetricPosition, RawField: "position"},
			},
		},
		"top_pages": {
			Dimension: schema.DimPage,
			Marker:    "PAGES",
			KeyField:  "page",
			KeyLabel:  "Page",
			Metrics: []metricMapping{
				{Canonical: schema.MetricClicks, RawField: "clicks", Required: true},
				{Canonical: schema.MetricImpressions, RawField: "impressions"},
				{Canonical: schema.MetricCTR, RawField: "ctr"},
				{Canonical: schema.MetricPosition, RawField: "position"},
			},
		},
		"devices": {
			Dimension: schema.DimDevice,
			Marker:    "DEVICES",
			KeyField:  "device",
			KeyLabel:  "Device",
			Metrics: []metricMapping{
				{Canonical: schema.MetricClicks, RawField: "clicks", Required: true},
				{Canonical: schema.MetricImpressions, RawField: "impressions"},
				{Canonical: schema.MetricCTR, RawField: "ctr"},
				{Canonical: schema.MetricPosition, RawField: "position"},
			},
		},
		"countries": {
			Dimension: schema.DimGeo,
			Marker:    "COUNTRIES",
			KeyField:  "country",
			KeyLabel:  "Country",
			Metrics: []metricMapping{
				{Canonical: schema.MetricClicks, RawField: "clicks", Required: true},
				{Canonical: schema.MetricImpressions, RawField: "impressions"},
				{Canonical: schema.MetricCTR, RawField: "ctr"},
				{Canonical: schema.MetricPosition, RawField: "position"},
			},
		},
		"opportunities": {
			Dimension: schema.DimOpportunity,
			Marker:    "OPPORTUNITIES",
			KeyField:  "query",
			KeyLabel:  "Query",
			Metrics: []metricMapping{
				{Canonical: schema.MetricImpressions, RawField: "impressions", Required: true},
				{Canonical: schema.MetricCTR, RawField: "ctr"},
				{Canonical: schema.MetricPosition, RawField: "position"},
				{Canonical: schema.MetricPotentialClicks, RawField: "potentialClicks"},
			},
		},
	},
	schema.SourceAds: {
		"overview": {
			Dimension: schema.DimOverview,
			Marker:    "OVERVIEW",
			KeyLabel:  "Period",
			Metrics: []metricMapping{
				{Canonical: schema.MetricCost, RawField: "cost", Required: true},
				{Canonical: schema.MetricClicks, RawField: "clicks"},
				{Canonical: schema.MetricImpressions, RawField: "impressions"},
				{Canonical: schema.MetricConversions, RawField: "conversions"},
				// Ad platforms export CTR already on the 0-100 scale.
				{Canonical: schema.MetricCTR, RawField: "ctr", PreScaled: true},
			},
		},
		"campaigns": {
			Dimension: schema.DimSegment,
			Marker:    "CAMPAIGNS",
			KeyField:  "campaign",
			KeyLabel:  "Campaign",
			Metrics: []metricMapping{
				{Canonical: schema.MetricCost, RawField: "cost", Required: true},
				{Canonical: schema.MetricClicks, RawField: "clicks"},
				{Canonical: schema.MetricImpressions, RawField: "impressions"},
				{Canonical: schema.MetricConversions, RawField: "conversions"},
				{Canonical: schema.MetricCTR, RawField: "ctr", PreScaled: true},
			},
		},
	},
}

// SectionSpec is the public view of one declared (source, section) mapping
// used by the orchestrator and the table formatter.
type SectionSpec struct {
	Key       string
	Dimension schema.Dimension
	Marker    string // full boundary name, e.g. GA4-DEVICES
	KeyLabel  string
	Columns   []string
}

// Sections returns the declared section specs for a source, in the fixed
// declared order.
func Sections(source schema.Source) []SectionSpec {
	keys := sectionOrder[source]
	specs := make([]SectionSpec, 0, len(keys))
	for _, key := range keys {
		m := mappings[source][key]
		cols := make([]string, len(m.Metrics))
		for i, mm := range m.Metrics {
			cols[i] = mm.Canonical
		}
		specs = append(specs, SectionSpec{
			Key:       key,
			Dimension: m.Dimension,
			Marker:    source.Code() + "-" + m.Marker,
			KeyLabel:  m.KeyLabel,
			Columns:   cols,
		})
	}
	return specs
}

// ValidateMappings checks the whole mapping table for declaration
// mistakes: metrics outside the canonical vocabulary, two canonical
// metrics reading the same raw field within one dimension, unknown
// dimensions, and sections missing from the declared order. Run by tests
// and by the check command at startup.
func ValidateMappings() error {
	for source, byKey := range mappings {
		if !source.Known() {
			return fmt.Errorf("mapping declares unknown source %q", source)
		}
		ordered := sectionOrder[source]
		if len(ordered) != len(byKey) {
			return fmt.Errorf("source %s: declared order lists %d sections, mapping has %d", source, len(ordered), len(byKey))
		}
		for _, key := range ordered {
			m, ok := byKey[key]
			if !ok {
				return fmt.Errorf("source %s: section %q in declared order has no mapping", source, key)
			}
			if !m.Dimension.Known() {
				return fmt.Errorf("%s/%s: unknown dimension %q", source, key, m.Dimension)
			}
			if m.Marker == "" {
				return fmt.Errorf("%s/%s: empty section marker", source, key)
			}
			if m.KeyField == "" && m.Dimension != schema.DimOverview {
				return fmt.Errorf("%s/%s: only overview sections may omit the key field", source, key)
			}
			seenRaw := map[string]string{}
			seenCanonical := map[string]bool{}
			for _, mm := range m.Metrics {
				if !schema.KnownMetric(mm.Canonical) {
					return fmt.Errorf("%s/%s: metric %q is not in the canonical vocabulary", source, key, mm.Canonical)
				}
				if seenCanonical[mm.Canonical] {
					return fmt.Errorf("%s/%s: metric %q mapped twice", source, key, mm.Canonical)
				}
				seenCanonical[mm.Canonical] = true
				if prev, dup := seenRaw[mm.RawField]; dup {
					return fmt.Errorf("%s/%s: raw field %q feeds both %q and %q", source, key, mm.RawField, prev, mm.Canonical)
				}
				seenRaw[mm.RawField] = mm.Canonical
			}
		}
	}
	return nil
}
