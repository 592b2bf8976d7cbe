package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"weeklens/internal/period"
	"weeklens/internal/schema"
)

// FileFetcher reads a provider export from <dir>/<source>.json. It is the
// default transport: export jobs drop files, weeklens reads them.
type FileFetcher struct {
	source  schema.Source
	dir     string
	lagDays int
}

// NewFileFetcher returns a FileFetcher for one source. lagDays shifts the
// effective window back for providers whose exports trail real time.
func NewFileFetcher(source schema.Source, dir string, lagDays int) *FileFetcher {
	return &FileFetcher{source: source, dir: dir, lagDays: lagDays}
}

func (f *FileFetcher) Source() schema.Source {
	return f.source
}

// Path returns the export file the fetcher reads.
func (f *FileFetcher) Path() string {
	return filepath.Join(f.dir, string(f.source)+".json")
}

// Fetch reads and decodes the export. The dataset is stamped with the
// lag-shifted window the file is expected to cover.
func (f *FileFetcher) Fetch(ctx context.Context, p period.Range) (schema.RawDataset, error) {
	if err := ctx.Err(); err != nil {
		return schema.RawDataset{}, err
	}
	p = p.ShiftBack(f.lagDays)

	data, err := os.ReadFile(f.Path())
	if err != nil {
		return schema.RawDataset{}, fmt.Errorf("source %s: %w", f.source, err)
	}
	sections, err := decodeExport(data)
	if err != nil {
		return schema.RawDataset{}, fmt.Errorf("source %s: %w", f.source, err)
	}
	if f.source == schema.SourceSearch {
		deriveOpportunities(sections)
	}
	return schema.RawDataset{Source: f.source, Period: p, Dimensions: sections}, nil
}
