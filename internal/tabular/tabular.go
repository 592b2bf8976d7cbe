// Package tabular renders sections as boundary-marked Markdown tables, the
// citable data blocks the narrative model reads and the published report
// embeds verbatim.
package tabular

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"weeklens/internal/schema"
)

// StartMarker returns the opening boundary comment for a section name.
func StartMarker(name string) string {
	return "<!-- " + name + "-START -->"
}

// EndMarker returns the closing boundary comment for a section name.
func EndMarker(name string) string {
	return "<!-- " + name + "-END -->"
}

// Formatter renders sections at a fixed display precision. Values arrive
// already rounded from normalization; the precision here only controls how
// many decimals are printed.
type Formatter struct {
	precision int
}

// New returns a Formatter printing fractional values with the given number
// of decimals.
func New(precision int) *Formatter {
	if precision < 0 {
		precision = 2
	}
	return &Formatter{precision: precision}
}

// Format renders one section: start marker, Markdown table (ID column
// first, then the natural key, then metrics in declared column order), end
// marker. The table is NEVER wrapped in a code fence; the publishing
// target renders fenced tables as unstyled text. A section holds exactly
// one source and dimension.
func (f *Formatter) Format(sec schema.Section) (string, error) {
	if len(sec.Records) == 0 {
		return "", fmt.Errorf("tabular: section %s has no records", sec.Name)
	}
	for _, rec := range sec.Records {
		if rec.Source != sec.Source || rec.Dimension != sec.Dimension {
			return "", fmt.Errorf("tabular: section %s mixes dimensions: record %s is %s/%s",
				sec.Name, rec.ID, rec.Source, rec.Dimension)
		}
	}

	w := table.NewWriter()

	header := make(table.Row, 0, len(sec.Columns)+2)
	header = append(header, "ID", sec.KeyLabel)
	for _, name := range sec.Columns {
		header = append(header, headerName(name))
	}
	w.AppendHeader(header)

	for _, rec := range sec.Records {
		row := make(table.Row, 0, len(sec.Columns)+2)
		row = append(row, rec.ID, rec.NaturalKey)
		for _, name := range sec.Columns {
			row = append(row, f.cell(name, rec))
		}
		w.AppendRow(row)
	}

	cfgs := make([]table.ColumnConfig, 0, len(sec.Columns))
	for i := range sec.Columns {
		cfgs = append(cfgs, table.ColumnConfig{Number: i + 3, Align: text.AlignRight})
	}
	w.SetColumnConfigs(cfgs)

	var b strings.Builder
	b.WriteString(StartMarker(sec.Name))
	b.WriteByte('\n')
	b.WriteString(w.RenderMarkdown())
	b.WriteByte('\n')
	b.WriteString(EndMarker(sec.Name))
	return b.String(), nil
}

// cell renders one metric value by its display kind. Metrics absent from
// the record (optional fields the provider did not send) render empty.
func (f *Formatter) cell(name string, rec schema.IdentifiedRecord) string {
	v, ok := rec.Metrics[name]
	if !ok {
		return ""
	}
	return FormatValue(name, v, f.precision)
}

// FormatValue renders one metric value by its display kind. The
// verification footer uses it too, so a value prints identically wherever
// it appears.
func FormatValue(name string, v float64, precision int) string {
	switch schema.Kind(name) {
	case schema.KindPercent:
		return fmt.Sprintf("%.*f%%", precision, v)
	case schema.KindCount:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.*f", precision, v)
	}
}

var headerNames = map[string]string{
	schema.MetricCTR:      "CTR",
	schema.MetricSharePct: "Share %",
}

func headerName(name string) string {
	if h, ok := headerNames[name]; ok {
		return h
	}
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
