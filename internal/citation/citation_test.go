package citation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weeklens/internal/period"
	"weeklens/internal/registry"
	"weeklens/internal/schema"
)

func testWeek(t *testing.T) period.Range {
	t.Helper()
	now := time.Date(2026, time.August, 25, 9, 0, 0, 0, time.UTC)
	r, err := period.Resolve("", "2026-08-17", "2026-08-23", now)
	require.NoError(t, err)
	return r
}

// seedRegistry mints deterministic IDs: GA4-DEV-001, GA4-DEV-002,
// GSC-QRY-001.
func seedRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New("")
	p := testWeek(t)
	for _, rec := range []schema.CanonicalRecord{
		{Source: schema.SourceTraffic, Dimension: schema.DimDevice, NaturalKey: "mobile", Metrics: map[string]float64{schema.MetricSessions: 812}, Period: p},
		{Source: schema.SourceTraffic, Dimension: schema.DimDevice, NaturalKey: "desktop", Metrics: map[string]float64{schema.MetricSessions: 540}, Period: p},
		{Source: schema.SourceSearch, Dimension: schema.DimQuery, NaturalKey: "weekly report tool", Metrics: map[string]float64{schema.MetricClicks: 61}, Period: p},
	} {
		reg.Assign(rec)
	}
	return reg
}

func TestTokens(t *testing.T) {
	text := "Mobile led [GA4-DEV-001], desktop trailed [GA4-DEV-002]. " +
		"Last week's mobile [PREV-GA4-DEV-001] was lower. " +
		"Brackets in prose [like this] and [lowercase-abc-001] are not citations."
	assert.Equal(t, []string{"GA4-DEV-001", "GA4-DEV-002", "PREV-GA4-DEV-001"}, Tokens(text))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("strict")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, m)

	m, err = ParseMode("lenient")
	require.NoError(t, err)
	assert.Equal(t, ModeLenient, m)

	_, err = ParseMode("loose")
	assert.Error(t, err)
}

func TestValidateAllResolved(t *testing.T) {
	reg := seedRegistry(t)
	narrative := "Mobile dominated sessions [GA4-DEV-001] while desktop slipped [GA4-DEV-002]. " +
		"The lead query held steady [GSC-QRY-001]. Mobile again [GA4-DEV-001]."

	got, cov, err := New(ModeStrict).Validate(narrative, reg)
	require.NoError(t, err)

	assert.Equal(t, narrative, got, "valid citations are never rewritten")
	assert.Equal(t, 4, cov.CitedClaims)
	assert.Equal(t, 3, cov.AvailableIDs)
	assert.Equal(t, 3, cov.DistinctCited)
	assert.InDelta(t, 1.0, cov.UtilizationRate, 1e-9)
	assert.Empty(t, cov.InvalidCitations)
}

func TestValidateStrictFailsOnUnknownID(t *testing.T) {
	reg := seedRegistry(t)
	narrative := "Desktop collapsed [GA4-DEV-999]. Mobile grew [GA4-DEV-001]. Again [GA4-DEV-999]."

	_, cov, err := New(ModeStrict).Validate(narrative, reg)
	require.Error(t, err)

	var invalid *schema.InvalidCitationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{"GA4-DEV-999"}, invalid.IDs, "offenders listed once each")
	assert.Equal(t, []string{"GA4-DEV-999"}, cov.InvalidCitations)
}

func TestValidateLenientStripsUnknownID(t *testing.T) {
	reg := seedRegistry(t)
	narrative := "Desktop collapsed [GA4-DEV-999]. Mobile grew [GA4-DEV-001]."

	got, cov, err := New(ModeLenient).Validate(narrative, reg)
	require.NoError(t, err)

	assert.Equal(t, "Desktop collapsed. Mobile grew [GA4-DEV-001].", got)
	assert.Equal(t, []string{"GA4-DEV-999"}, cov.InvalidCitations)
	assert.Equal(t, 2, cov.CitedClaims)
	assert.Equal(t, 1, cov.DistinctCited)

	// Nothing unresolved survives stripping.
	for _, id := range Tokens(got) {
		_, ok := reg.Resolve(id)
		assert.True(t, ok, "token %s should resolve", id)
	}
}

func TestValidateResolvesComparisonIDsThroughUnion(t *testing.T) {
	cur := seedRegistry(t)

	prev := registry.New(registry.PrefixPrevious)
	prev.Assign(schema.CanonicalRecord{
		Source: schema.SourceTraffic, Dimension: schema.DimDevice,
		NaturalKey: "mobile", Metrics: map[string]float64{schema.MetricSessions: 701},
		Period: testWeek(t).Previous(),
	})

	narrative := "Mobile rose [GA4-DEV-001] over last week [PREV-GA4-DEV-001]."
	got, cov, err := New(ModeStrict).Validate(narrative, registry.Union{cur, prev})
	require.NoError(t, err)

	assert.Equal(t, narrative, got)
	assert.Equal(t, 4, cov.AvailableIDs)
	assert.Equal(t, 2, cov.DistinctCited)
	assert.InDelta(t, 0.5, cov.UtilizationRate, 1e-9)
}

func TestValidateNoCitations(t *testing.T) {
	reg := seedRegistry(t)

	got, cov, err := New(ModeStrict).Validate("A quiet week with nothing cited.", reg)
	require.NoError(t, err)
	assert.Equal(t, "A quiet week with nothing cited.", got)
	assert.Zero(t, cov.CitedClaims)
	assert.Zero(t, cov.DistinctCited)
	assert.Zero(t, cov.UtilizationRate)
}

func TestValidateEmptyRegistry(t *testing.T) {
	got, cov, err := New(ModeLenient).Validate("Claims [GA4-DEV-001].", registry.New(""))
	require.NoError(t, err)
	assert.Equal(t, "Claims.", got)
	assert.Zero(t, cov.AvailableIDs)
	assert.Zero(t, cov.UtilizationRate, "no division by zero when nothing was minted")
}
