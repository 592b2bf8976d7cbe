package source

import (
	"encoding/json"
	"math"
	"sort"

	"weeklens/internal/schema"
)

// Opportunity thresholds: queries already ranking (position <= 20) that
// get seen (impressions >= 50) but rarely clicked (ctr < 3%). Potential
// estimates the clicks a 5% CTR would have earned.
const (
	opportunityMinImpressions = 50
	opportunityMaxCTR         = 0.03
	opportunityMaxPosition    = 20.0
	opportunityTargetCTR      = 0.05
	opportunityLimit          = 10
)

// deriveOpportunities fills the opportunities section from top_queries
// when the export does not carry one. Rows keep the raw-ratio ctr of
// their origin; scaling stays the normalizer's job.
func deriveOpportunities(sections map[string][]schema.RawRow) {
	if len(sections["opportunities"]) > 0 {
		return
	}
	queries := sections["top_queries"]
	if len(queries) == 0 {
		return
	}

	var derived []schema.RawRow
	for _, row := range queries {
		impressions, ok := numeric(row["impressions"])
		if !ok || impressions < opportunityMinImpressions {
			continue
		}
		ctr, ok := numeric(row["ctr"])
		if !ok || ctr >= opportunityMaxCTR {
			continue
		}
		position, ok := numeric(row["position"])
		if !ok || position > opportunityMaxPosition {
			continue
		}
		query, ok := row["query"].(string)
		if !ok || query == "" {
			continue
		}
		derived = append(derived, schema.RawRow{
			"query":           query,
			"impressions":     impressions,
			"ctr":             ctr,
			"position":        position,
			"potentialClicks": math.Round(impressions * opportunityTargetCTR),
		})
	}
	if len(derived) == 0 {
		return
	}

	sort.SliceStable(derived, func(i, j int) bool {
		a, _ := numeric(derived[i]["impressions"])
		b, _ := numeric(derived[j]["impressions"])
		return a > b
	})
	if len(derived) > opportunityLimit {
		derived = derived[:opportunityLimit]
	}
	sections["opportunities"] = derived
}

// numeric reads a raw JSON value as float64. Exports decoded here carry
// json.Number; tests may hand in plain Go numbers.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
