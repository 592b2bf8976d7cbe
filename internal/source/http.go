package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"weeklens/internal/period"
	"weeklens/internal/schema"
)

// maxErrorBody caps how much of an error response is quoted back.
const maxErrorBody = 512

// HTTPFetcher pulls a provider export from an HTTP endpoint. The endpoint
// receives the requested window as start and end query parameters and
// returns the same JSON document the file transport reads.
type HTTPFetcher struct {
	source  schema.Source
	url     string
	token   string
	lagDays int
	client  *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher. token, when non-empty, is sent
// as a bearer credential.
func NewHTTPFetcher(source schema.Source, endpoint, token string, lagDays int, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		source:  source,
		url:     endpoint,
		token:   token,
		lagDays: lagDays,
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) Source() schema.Source {
	return f.source
}

// Fetch requests the lag-shifted window and decodes the response body.
func (f *HTTPFetcher) Fetch(ctx context.Context, p period.Range) (schema.RawDataset, error) {
	p = p.ShiftBack(f.lagDays)

	endpoint, err := url.Parse(f.url)
	if err != nil {
		return schema.RawDataset{}, fmt.Errorf("source %s: invalid url: %w", f.source, err)
	}
	q := endpoint.Query()
	q.Set("start", p.Start.Format("2006-01-02"))
	q.Set("end", p.End.Format("2006-01-02"))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return schema.RawDataset{}, fmt.Errorf("source %s: build request: %w", f.source, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return schema.RawDataset{}, fmt.Errorf("source %s: %w", f.source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.RawDataset{}, fmt.Errorf("source %s: read response: %w", f.source, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return schema.RawDataset{}, fmt.Errorf("source %s: export endpoint returned %d: %s", f.source, resp.StatusCode, snippet)
	}

	sections, err := decodeExport(body)
	if err != nil {
		return schema.RawDataset{}, fmt.Errorf("source %s: %w", f.source, err)
	}
	if f.source == schema.SourceSearch {
		deriveOpportunities(sections)
	}
	return schema.RawDataset{Source: f.source, Period: p, Dimensions: sections}, nil
}
