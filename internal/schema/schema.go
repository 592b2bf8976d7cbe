// Package schema defines the canonical data model shared by every pipeline
// stage: sources, dimensions, the canonical metric vocabulary, normalized
// records, and the citable sections built from them.
package schema

import "weeklens/internal/period"

// Source identifies a class of analytics data. The uppercase code is the
// first segment of every record ID minted for that source.
type Source string

const (
	SourceTraffic Source = "traffic" // web-traffic analytics exports
	SourceSearch  Source = "search"  // search-performance exports
	SourceAds     Source = "ads"     // ad-spend exports
)

var sourceCodes = map[Source]string{
	SourceTraffic: "GA4",
	SourceSearch:  "GSC",
	SourceAds:     "ADS",
}

// Code returns the ID segment for the source, e.g. "GA4" for traffic.
func (s Source) Code() string {
	return sourceCodes[s]
}

// Known reports whether the source is part of the fixed vocabulary.
func (s Source) Known() bool {
	_, ok := sourceCodes[s]
	return ok
}

// Dimension identifies one breakdown of a source's data. Exactly one
// dimension renders per table; mixing dimensions in a table is disallowed.
type Dimension string

const (
	DimOverview    Dimension = "overview"
	DimDevice      Dimension = "device"
	DimGeo         Dimension = "geography"
	DimPage        Dimension = "page"
	DimQuery       Dimension = "query"
	DimSegment     Dimension = "segment"
	DimOpportunity Dimension = "opportunity"
)

var dimensionCodes = map[Dimension]string{
	DimOverview:    "OV",
	DimDevice:      "DEV",
	DimGeo:         "GEO",
	DimPage:        "PAGE",
	DimQuery:       "QRY",
	DimSegment:     "SEG",
	DimOpportunity: "OPP",
}

// Code returns the ID segment for the dimension, e.g. "DEV" for device.
func (d Dimension) Code() string {
	return dimensionCodes[d]
}

// Known reports whether the dimension is part of the fixed vocabulary.
func (d Dimension) Known() bool {
	_, ok := dimensionCodes[d]
	return ok
}

// Canonical metric names. The normalizer may only emit metrics from this
// vocabulary; unknown raw fields are dropped with a warning, never guessed.
const (
	MetricSessions           = "sessions"
	MetricActiveUsers        = "active_users"
	MetricNewUsers           = "new_users"
	MetricPageViews          = "page_views"
	MetricBounceRate         = "bounce_rate"
	MetricEngagementRate     = "engagement_rate"
	MetricAvgSessionDuration = "avg_session_duration"
	MetricEngagementTime     = "engagement_time"
	MetricClicks             = "clicks"
	MetricImpressions        = "impressions"
	MetricCTR                = "ctr"
	MetricPosition           = "position"
	MetricSharePct           = "share_pct"
	MetricPotentialClicks    = "potential_clicks"
	MetricCost               = "cost"
	MetricConversions        = "conversions"
)

// MetricKind classifies how a metric's value is displayed.
type MetricKind int

const (
	KindQuantity MetricKind = iota // fractional, rendered at configured precision
	KindCount                      // integral, rendered without decimals
	KindPercent                    // 0-100 scale, rendered with a trailing %
)

var vocabulary = map[string]MetricKind{
	MetricSessions:           KindCount,
	MetricActiveUsers:        KindCount,
	MetricNewUsers:           KindCount,
	MetricPageViews:          KindCount,
	MetricBounceRate:         KindPercent,
	MetricEngagementRate:     KindPercent,
	MetricAvgSessionDuration: KindQuantity,
	MetricEngagementTime:     KindQuantity,
	MetricClicks:             KindCount,
	MetricImpressions:        KindCount,
	MetricCTR:                KindPercent,
	MetricPosition:           KindQuantity,
	MetricSharePct:           KindPercent,
	MetricPotentialClicks:    KindCount,
	MetricCost:               KindQuantity,
	MetricConversions:        KindCount,
}

// KnownMetric reports whether name belongs to the canonical vocabulary.
func KnownMetric(name string) bool {
	_, ok := vocabulary[name]
	return ok
}

// Kind returns the display class of a canonical metric. Unknown names
// report as KindQuantity; callers are expected to have validated first.
func Kind(name string) MetricKind {
	return vocabulary[name]
}

// DefaultPercentAllowlist returns the metric names whose raw values arrive
// as 0-1 ratios and are scaled by 100 exactly once, at ingestion. Metrics
// like share_pct that every known provider already delivers on the 0-100
// scale are deliberately absent.
func DefaultPercentAllowlist() []string {
	return []string{MetricBounceRate, MetricEngagementRate, MetricCTR}
}

// RawRow is one key-value record exactly as a provider export shaped it.
type RawRow map[string]any

// RawDataset is the payload of one fetch call: dimension-keyed bags of raw
// rows, tagged with the source and the period actually fetched. Its field
// names are provider-specific and versioned; the normalizer's mapping
// tables are the only code that knows them. A dataset is consumed once by
// the normalizer and then discarded.
type RawDataset struct {
	Source     Source
	Period     period.Range
	Dimensions map[string][]RawRow
}

// CanonicalRecord is one normalized data row with provider-independent
// metric names. Percentages are stored on the 0-100 scale and every value
// is already rounded; downstream stages never re-round.
type CanonicalRecord struct {
	Source     Source
	Dimension  Dimension
	NaturalKey string
	Metrics    map[string]float64
	Period     period.Range
}

// IdentifiedRecord is a CanonicalRecord plus its run-scoped citation ID,
// formatted SOURCE-DIM-NNN (for example GA4-DEV-003).
type IdentifiedRecord struct {
	CanonicalRecord
	ID string
}

// Section is an ordered group of identified records sharing one source and
// dimension, rendered as a single boundary-marked table. Columns carries
// the canonical metric names in their fixed declared order.
type Section struct {
	Name      string
	Source    Source
	Dimension Dimension
	KeyLabel  string
	Columns   []string
	Records   []IdentifiedRecord
}
