// Package source fetches provider exports as raw datasets. Fetchers know
// transport and export shape only; field meanings belong to the
// normalizer's mapping tables.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"weeklens/internal/period"
	"weeklens/internal/schema"
)

// Fetcher produces one source's raw dataset for a date range. The
// returned dataset's period is the window actually fetched, which trails
// the requested one when the source reports with a lag.
type Fetcher interface {
	Source() schema.Source
	Fetch(ctx context.Context, p period.Range) (schema.RawDataset, error)
}

// decodeExport parses an export document: a JSON object keyed by section
// name, each value an array of row objects. Numbers decode as json.Number
// so large counts survive without float drift until normalization.
func decodeExport(data []byte) (map[string][]schema.RawRow, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var sections map[string][]schema.RawRow
	if err := dec.Decode(&sections); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	return sections, nil
}
