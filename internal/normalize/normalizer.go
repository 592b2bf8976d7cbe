// Package normalize maps provider-shaped raw datasets onto the canonical
// record schema through explicit, versioned field-mapping tables. Every
// mapping is declared; a raw field either feeds exactly one canonical
// metric or is dropped with a warning. Nothing is guessed from names.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"weeklens/internal/schema"
)

// DefaultPrecision is the decimal precision applied once, here, to every
// normalized metric value. Downstream stages never re-round.
const DefaultPrecision = 2

// Warning records provider data that was dropped instead of normalized:
// an unmapped raw field, an unmapped export section (Dimension empty), or
// a declared field carrying a non-numeric value.
type Warning struct {
	Source    schema.Source
	Dimension schema.Dimension
	Field     string
	Reason    string
}

func (w Warning) String() string {
	if w.Dimension == "" {
		return fmt.Sprintf("%s: %s %q dropped", w.Source, w.Reason, w.Field)
	}
	return fmt.Sprintf("%s/%s: %s %q dropped", w.Source, w.Dimension, w.Reason, w.Field)
}

// Result carries everything one dataset normalization produced. Failures
// list the dimensions that could not normalize; the orchestrator decides
// omit-or-abort per the source's required flag before composition begins.
type Result struct {
	Records  []schema.CanonicalRecord
	Warnings []Warning
	Failures []*schema.SchemaMappingError
}

// Normalizer applies the mapping tables with a configured numeric
// precision and percentage allowlist. Safe for concurrent use; it holds
// no per-run state.
type Normalizer struct {
	precision int
	percents  map[string]bool
}

// New returns a Normalizer. A negative precision falls back to
// DefaultPrecision; a nil allowlist falls back to the schema default.
func New(precision int, percentAllowlist []string) *Normalizer {
	if precision < 0 {
		precision = DefaultPrecision
	}
	if percentAllowlist == nil {
		percentAllowlist = schema.DefaultPercentAllowlist()
	}
	percents := make(map[string]bool, len(percentAllowlist))
	for _, name := range percentAllowlist {
		percents[name] = true
	}
	return &Normalizer{precision: precision, percents: percents}
}

// Normalize maps a whole raw dataset in the declared section order.
// Declared sections missing a required field land in Result.Failures;
// export sections with no mapping are dropped with a warning.
func (n *Normalizer) Normalize(raw schema.RawDataset) Result {
	var res Result

	declared := make(map[string]bool)
	for _, spec := range Sections(raw.Source) {
		declared[spec.Key] = true
		if len(raw.Dimensions[spec.Key]) == 0 {
			continue
		}
		records, warnings, err := n.NormalizeDimension(raw, spec.Key)
		res.Warnings = append(res.Warnings, warnings...)
		if err != nil {
			var mapErr *schema.SchemaMappingError
			if errors.As(err, &mapErr) {
				res.Failures = append(res.Failures, mapErr)
			}
			continue
		}
		res.Records = append(res.Records, records...)
	}

	var unknown []string
	for key := range raw.Dimensions {
		if !declared[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		res.Warnings = append(res.Warnings, Warning{Source: raw.Source, Field: key, Reason: "unmapped export section"})
	}
	return res
}

// NormalizeDimension maps the rows of one declared export section into
// canonical records, in row order. It fails with *schema.SchemaMappingError
// the moment a required field is absent or unreadable, so a half-empty
// section is never rendered.
func (n *Normalizer) NormalizeDimension(raw schema.RawDataset, key string) ([]schema.CanonicalRecord, []Warning, error) {
	m, ok := mappings[raw.Source][key]
	if !ok {
		return nil, nil, fmt.Errorf("normalize: source %s has no mapping for export section %q", raw.Source, key)
	}

	known := make(map[string]bool, len(m.Metrics)+1)
	if m.KeyField != "" {
		known[m.KeyField] = true
	}
	for _, mm := range m.Metrics {
		known[mm.RawField] = true
	}

	rows := raw.Dimensions[key]
	records := make([]schema.CanonicalRecord, 0, len(rows))
	var warnings []Warning
	warned := make(map[string]bool)
	unknownFields := make(map[string]bool)

	for _, row := range rows {
		rec := schema.CanonicalRecord{
			Source:    raw.Source,
			Dimension: m.Dimension,
			Period:    raw.Period,
			Metrics:   make(map[string]float64, len(m.Metrics)),
		}

		if m.KeyField == "" {
			rec.NaturalKey = raw.Period.String()
		} else {
			keyVal, isString := row[m.KeyField].(string)
			if !isString || keyVal == "" {
				return nil, warnings, &schema.SchemaMappingError{Source: raw.Source, Dimension: m.Dimension, Field: m.KeyField}
			}
			rec.NaturalKey = keyVal
		}

		for _, mm := range m.Metrics {
			rawVal, present := row[mm.RawField]
			if !present {
				if mm.Required {
					return nil, warnings, &schema.SchemaMappingError{Source: raw.Source, Dimension: m.Dimension, Field: mm.RawField}
				}
				continue
			}
			v, numeric := toFloat(rawVal)
			if !numeric {
				if mm.Required {
					return nil, warnings, &schema.SchemaMappingError{Source: raw.Source, Dimension: m.Dimension, Field: mm.RawField}
				}
				if !warned[mm.RawField] {
					warned[mm.RawField] = true
					warnings = append(warnings, Warning{Source: raw.Source, Dimension: m.Dimension, Field: mm.RawField, Reason: "non-numeric value in raw field"})
				}
				continue
			}
			if n.percents[mm.Canonical] && !mm.PreScaled {
				v *= 100
			}
			rec.Metrics[mm.Canonical] = round(v, n.precision)
		}

		for field := range row {
			if !known[field] {
				unknownFields[field] = true
			}
		}

		records = append(records, rec)
	}

	dropped := make([]string, 0, len(unknownFields))
	for field := range unknownFields {
		dropped = append(dropped, field)
	}
	sort.Strings(dropped)
	for _, field := range dropped {
		warnings = append(warnings, Warning{Source: raw.Source, Dimension: m.Dimension, Field: field, Reason: "unmapped raw field"})
	}

	return records, warnings, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func round(v float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
