// Package footer renders the verification appendix of a report. Every
// number in it is copied from the normalized records, never from the
// narrative, so a reader can cross-check the prose against its sources
// without trusting the model.
package footer

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"weeklens/internal/citation"
	"weeklens/internal/period"
	"weeklens/internal/schema"
	"weeklens/internal/tabular"
)

// topQueryCount caps the query recap; the full table is in the report body.
const topQueryCount = 5

// Input is everything the footer derives from. Sections hold the
// current-period records in declared order; PrevSections the comparison
// period when one ran.
type Input struct {
	GeneratedAt  time.Time
	Period       period.Range
	Compare      *period.Range
	Sections     []schema.Section
	PrevSections []schema.Section
	Coverage     citation.Coverage
	Degraded     []*schema.DegradedSourceWarning
	Precision    int
}

// Build renders the footer. It is pure: same input, same text.
func Build(in Input) string {
	var b strings.Builder

	b.WriteString("---\n\n## Data Verification\n\n")
	b.WriteString("Values below come from the normalized source records, for manual cross-checking against the narrative above.\n\n")

	fmt.Fprintf(&b, "- Report period: %s\n", in.Period)
	if in.Compare != nil {
		fmt.Fprintf(&b, "- Comparison period: %s\n", *in.Compare)
	}
	fmt.Fprintf(&b, "- Generated: %s UTC\n", in.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))

	if metrics := keyMetrics(in); metrics != "" {
		b.WriteString("\n### Key Metrics\n\n")
		b.WriteString(metrics)
		b.WriteByte('\n')
	}
	if queries := topQueries(in); queries != "" {
		b.WriteString("\n### Top Queries\n\n")
		b.WriteString(queries)
		b.WriteByte('\n')
	}

	b.WriteString("\n### Citation Coverage\n\n")
	fmt.Fprintf(&b, "- Citation tokens in narrative: %d\n", in.Coverage.CitedClaims)
	fmt.Fprintf(&b, "- Records supplied: %d\n", in.Coverage.AvailableIDs)
	if in.Coverage.AvailableIDs > 0 {
		fmt.Fprintf(&b, "- Distinct records cited: %d (%.1f%% of supplied)\n",
			in.Coverage.DistinctCited, in.Coverage.UtilizationRate*100)
	} else {
		fmt.Fprintf(&b, "- Distinct records cited: %d\n", in.Coverage.DistinctCited)
	}
	if len(in.Coverage.InvalidCitations) > 0 {
		fmt.Fprintf(&b, "- Invalid citations removed: %s\n", strings.Join(in.Coverage.InvalidCitations, ", "))
	}

	if len(in.Degraded) > 0 {
		b.WriteString("\n### Omitted Data\n\n")
		for _, w := range in.Degraded {
			if w.Dimension != "" {
				fmt.Fprintf(&b, "- %s: %s section omitted (%s)\n", w.Source, w.Dimension, w.Reason)
			} else {
				fmt.Fprintf(&b, "- %s: %s\n", w.Source, w.Reason)
			}
		}
	}

	return b.String()
}

// keyMetrics tabulates every overview record metric, with the
// comparison-period value and delta when a comparison ran.
func keyMetrics(in Input) string {
	prev := previousOverview(in.PrevSections)
	compare := in.Compare != nil

	w := table.NewWriter()
	if compare {
		w.AppendHeader(table.Row{"ID", "Source", "Metric", "Value", "Previous", "Change"})
	} else {
		w.AppendHeader(table.Row{"ID", "Source", "Metric", "Value"})
	}

	rows := 0
	for _, sec := range in.Sections {
		if sec.Dimension != schema.DimOverview {
			continue
		}
		for _, rec := range sec.Records {
			for _, name := range sec.Columns {
				v, ok := rec.Metrics[name]
				if !ok {
					continue
				}
				row := table.Row{rec.ID, string(rec.Source), name, tabular.FormatValue(name, v, in.Precision)}
				if compare {
					row = append(row, previousCells(prev, rec.Source, name, v, in.Precision)...)
				}
				w.AppendRow(row)
				rows++
			}
		}
	}
	if rows == 0 {
		return ""
	}

	cfgs := []table.ColumnConfig{{Number: 4, Align: text.AlignRight}}
	if compare {
		cfgs = append(cfgs,
			table.ColumnConfig{Number: 5, Align: text.AlignRight},
			table.ColumnConfig{Number: 6, Align: text.AlignRight})
	}
	w.SetColumnConfigs(cfgs)
	return w.RenderMarkdown()
}

// previousOverview indexes comparison-period overview metrics by source
// and metric name.
func previousOverview(sections []schema.Section) map[string]float64 {
	prev := make(map[string]float64)
	for _, sec := range sections {
		if sec.Dimension != schema.DimOverview {
			continue
		}
		for _, rec := range sec.Records {
			for name, v := range rec.Metrics {
				prev[string(rec.Source)+"|"+name] = v
			}
		}
	}
	return prev
}

// previousCells renders the Previous and Change cells for one metric. The
// delta is the only derived number in the footer; both of its operands sit
// in the adjacent columns.
func previousCells(prev map[string]float64, source schema.Source, name string, current float64, precision int) table.Row {
	pv, ok := prev[string(source)+"|"+name]
	if !ok {
		return table.Row{"", ""}
	}
	cell := tabular.FormatValue(name, pv, precision)
	if pv == 0 {
		return table.Row{cell, "n/a"}
	}
	return table.Row{cell, fmt.Sprintf("%+.1f%%", (current-pv)/pv*100)}
}

// topQueries recaps the strongest search queries of the current period.
func topQueries(in Input) string {
	for _, sec := range in.Sections {
		if sec.Dimension != schema.DimQuery {
			continue
		}
		w := table.NewWriter()
		w.AppendHeader(table.Row{"ID", sec.KeyLabel, "Clicks", "Impressions"})
		for i, rec := range sec.Records {
			if i == topQueryCount {
				break
			}
			w.AppendRow(table.Row{
				rec.ID,
				rec.NaturalKey,
				cellValue(rec, schema.MetricClicks, in.Precision),
				cellValue(rec, schema.MetricImpressions, in.Precision),
			})
		}
		w.SetColumnConfigs([]table.ColumnConfig{
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
		})
		return w.RenderMarkdown()
	}
	return ""
}

func cellValue(rec schema.IdentifiedRecord, name string, precision int) string {
	v, ok := rec.Metrics[name]
	if !ok {
		return ""
	}
	return tabular.FormatValue(name, v, precision)
}
