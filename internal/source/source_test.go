package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weeklens/internal/period"
	"weeklens/internal/schema"
)

const searchExport = `{
  "overview": [{"clicks": 326, "impressions": 20413, "ctr": 0.016, "position": 14.3}],
  "top_queries": [
    {"query": "analytics report generator", "clicks": 12, "impressions": 1900, "ctr": 0.0063, "position": 11.4},
    {"query": "weekly report tool", "clicks": 61, "impressions": 2400, "ctr": 0.0254, "position": 8.2},
    {"query": "dashboard", "clicks": 2, "impressions": 30, "ctr": 0.06, "position": 3.1}
  ]
}`

func week(t *testing.T, start, end string) period.Range {
	t.Helper()
	now := time.Date(2026, time.August, 25, 9, 0, 0, 0, time.UTC)
	r, err := period.Resolve("", start, end, now)
	require.NoError(t, err)
	return r
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search.json"), []byte(searchExport), 0o644))

	f := NewFileFetcher(schema.SourceSearch, dir, 3)
	ds, err := f.Fetch(context.Background(), week(t, "2026-08-17", "2026-08-23"))
	require.NoError(t, err)

	assert.Equal(t, schema.SourceSearch, ds.Source)
	assert.Equal(t, "2026-08-14 to 2026-08-20", ds.Period.String(), "window shifted back by the lag")
	assert.Len(t, ds.Dimensions["overview"], 1)
	assert.Len(t, ds.Dimensions["top_queries"], 3)
	require.Len(t, ds.Dimensions["opportunities"], 2, "qualifying queries become opportunities")
	assert.Equal(t, "weekly report tool", ds.Dimensions["opportunities"][0]["query"], "sorted by impressions")
}

func TestFileFetcherMissingFile(t *testing.T) {
	f := NewFileFetcher(schema.SourceTraffic, t.TempDir(), 0)
	_, err := f.Fetch(context.Background(), week(t, "2026-08-17", "2026-08-23"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source traffic")
}

func TestFileFetcherMalformedExport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "traffic.json"), []byte(`{"overview": "not an array"}`), 0o644))

	f := NewFileFetcher(schema.SourceTraffic, dir, 0)
	_, err := f.Fetch(context.Background(), week(t, "2026-08-17", "2026-08-23"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode export")
}

func TestHTTPFetcher(t *testing.T) {
	var gotPath, gotAuth, gotStart, gotEnd string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchExport))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(schema.SourceSearch, srv.URL+"/exports/search", "tok-123", 3, 5*time.Second)
	ds, err := f.Fetch(context.Background(), week(t, "2026-08-17", "2026-08-23"))
	require.NoError(t, err)

	assert.Equal(t, "/exports/search", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "2026-08-14", gotStart, "endpoint sees the lag-shifted window")
	assert.Equal(t, "2026-08-20", gotEnd)
	assert.Equal(t, "2026-08-14 to 2026-08-20", ds.Period.String())
	assert.NotEmpty(t, ds.Dimensions["opportunities"])
}

func TestHTTPFetcherBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(schema.SourceAds, srv.URL, "", 0, 5*time.Second)
	_, err := f.Fetch(context.Background(), week(t, "2026-08-17", "2026-08-23"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestHTTPFetcherContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewHTTPFetcher(schema.SourceTraffic, srv.URL, "", 0, 5*time.Second)
	_, err := f.Fetch(ctx, week(t, "2026-08-17", "2026-08-23"))
	assert.Error(t, err)
}

func TestDeriveOpportunities(t *testing.T) {
	sections := map[string][]schema.RawRow{
		"top_queries": {
			{"query": "low impressions", "impressions": 30, "ctr": 0.01, "position": 5.0},
			{"query": "ctr already fine", "impressions": 900, "ctr": 0.08, "position": 4.0},
			{"query": "ranked too deep", "impressions": 700, "ctr": 0.01, "position": 34.0},
			{"query": "second", "impressions": 600, "ctr": 0.02, "position": 9.0},
			{"query": "first", "impressions": 5000, "ctr": 0.004, "position": 12.0},
		},
	}
	deriveOpportunities(sections)

	got := sections["opportunities"]
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0]["query"])
	assert.Equal(t, float64(250), got[0]["potentialClicks"], "5% of 5000 impressions")
	assert.Equal(t, "second", got[1]["query"])
	assert.Equal(t, float64(30), got[1]["potentialClicks"])
}

func TestDeriveOpportunitiesKeepsExportedSection(t *testing.T) {
	exported := []schema.RawRow{{"query": "from export", "impressions": 100, "ctr": 0.01, "position": 2.0}}
	sections := map[string][]schema.RawRow{
		"top_queries":   {{"query": "first", "impressions": 5000, "ctr": 0.004, "position": 12.0}},
		"opportunities": exported,
	}
	deriveOpportunities(sections)
	assert.Equal(t, exported, sections["opportunities"], "exports that ship opportunities win")
}

func TestDeriveOpportunitiesCap(t *testing.T) {
	var rows []schema.RawRow
	for i := 0; i < 15; i++ {
		rows = append(rows, schema.RawRow{
			"query": "q" + string(rune('a'+i)), "impressions": 100 + i, "ctr": 0.01, "position": 5.0,
		})
	}
	sections := map[string][]schema.RawRow{"top_queries": rows}
	deriveOpportunities(sections)
	assert.Len(t, sections["opportunities"], 10)
}
