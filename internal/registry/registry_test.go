package registry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weeklens/internal/schema"
)

func deviceRecord(key string, sessions float64) schema.CanonicalRecord {
	return schema.CanonicalRecord{
		Source:     schema.SourceTraffic,
		Dimension:  schema.DimDevice,
		NaturalKey: key,
		Metrics:    map[string]float64{schema.MetricSessions: sessions},
	}
}

func TestAssignSequencesPerSourceAndDimension(t *testing.T) {
	reg := New("")

	mobile := reg.Assign(deviceRecord("mobile", 120))
	desktop := reg.Assign(deviceRecord("desktop", 80))
	assert.Equal(t, "GA4-DEV-001", mobile.ID)
	assert.Equal(t, "GA4-DEV-002", desktop.ID)

	// A different dimension starts its own sequence.
	geo := reg.Assign(schema.CanonicalRecord{
		Source:     schema.SourceTraffic,
		Dimension:  schema.DimGeo,
		NaturalKey: "Germany",
		Metrics:    map[string]float64{schema.MetricSessions: 40},
	})
	assert.Equal(t, "GA4-GEO-001", geo.ID)

	// As does a different source.
	query := reg.Assign(schema.CanonicalRecord{
		Source:     schema.SourceSearch,
		Dimension:  schema.DimQuery,
		NaturalKey: "weekly report tool",
		Metrics:    map[string]float64{schema.MetricClicks: 31},
	})
	assert.Equal(t, "GSC-QRY-001", query.ID)
}

func TestAssignIsDeterministic(t *testing.T) {
	input := []schema.CanonicalRecord{
		deviceRecord("mobile", 120),
		deviceRecord("desktop", 80),
		deviceRecord("tablet", 12),
	}

	first := New("")
	second := New("")
	var firstIDs, secondIDs []string
	for _, rec := range input {
		firstIDs = append(firstIDs, first.Assign(rec).ID)
		secondIDs = append(secondIDs, second.Assign(rec).ID)
	}

	if diff := cmp.Diff(firstIDs, secondIDs); diff != "" {
		t.Errorf("same ordered input produced different IDs (-first +second):\n%s", diff)
	}
}

func TestIDsAreNeverReused(t *testing.T) {
	reg := New("")
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := reg.Assign(deviceRecord("mobile", float64(i))).ID
		require.False(t, seen[id], "ID %s minted twice", id)
		seen[id] = true
	}
	assert.Len(t, reg.IDs(), 50)
}

func TestResolve(t *testing.T) {
	reg := New("")
	reg.Assign(deviceRecord("mobile", 120))

	rec, ok := reg.Resolve("GA4-DEV-001")
	require.True(t, ok)
	assert.Equal(t, "mobile", rec.NaturalKey)

	_, ok = reg.Resolve("GA4-DEV-999")
	assert.False(t, ok)
}

func TestPreviousPeriodPrefix(t *testing.T) {
	prev := New(PrefixPrevious)

	rec := prev.Assign(deviceRecord("mobile", 95))
	assert.Equal(t, "PREV-GA4-DEV-001", rec.ID)

	_, ok := prev.Resolve("GA4-DEV-001")
	assert.False(t, ok, "unprefixed ID must not resolve in the comparison registry")
}

func TestUnionResolvesAcrossPeriods(t *testing.T) {
	current := New("")
	previous := New(PrefixPrevious)
	current.Assign(deviceRecord("mobile", 120))
	previous.Assign(deviceRecord("mobile", 95))

	union := Union{current, previous}

	_, ok := union.Resolve("GA4-DEV-001")
	assert.True(t, ok)
	_, ok = union.Resolve("PREV-GA4-DEV-001")
	assert.True(t, ok)
	_, ok = union.Resolve("ADS-DEV-001")
	assert.False(t, ok)

	assert.Equal(t, []string{"GA4-DEV-001", "PREV-GA4-DEV-001"}, union.IDs())
}

func TestRecordsPreserveAssignmentOrder(t *testing.T) {
	reg := New("")
	reg.Assign(deviceRecord("mobile", 120))
	reg.Assign(deviceRecord("desktop", 80))

	recs := reg.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "mobile", recs[0].NaturalKey)
	assert.Equal(t, "desktop", recs[1].NaturalKey)
}
