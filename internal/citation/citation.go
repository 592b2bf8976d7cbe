// Package citation scans generated narrative for citation tokens,
// resolves them against the run's record registries, and enforces the
// configured failure policy. It is the trust boundary between model
// output and the published report.
package citation

import (
	"fmt"
	"regexp"
	"strings"

	"weeklens/internal/registry"
	"weeklens/internal/schema"
)

// Mode selects what happens when the narrative cites an ID no registry
// minted this run.
type Mode string

const (
	// ModeStrict fails the whole run on the first unresolved citation.
	ModeStrict Mode = "strict"
	// ModeLenient strips unresolved tokens from the narrative and records
	// them in the coverage report.
	ModeLenient Mode = "lenient"
)

// ParseMode validates a mode string from config or flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStrict, ModeLenient:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("citation: mode must be %q or %q, got %q", ModeStrict, ModeLenient, s)
	}
}

// tokenPattern matches citation tokens: bracketed, dash-separated
// uppercase segments ending in a three-digit sequence, e.g. [GA4-DEV-003]
// or [PREV-GSC-QRY-012]. Matching is case sensitive; lowercase bracketed
// text is prose, not a citation.
var tokenPattern = regexp.MustCompile(`\[([A-Z][A-Z0-9]*(?:-[A-Z][A-Z0-9]*)*-\d{3})\]`)

// Tokens returns every citation token in the text, in order, brackets
// stripped. Repeats are kept.
func Tokens(text string) []string {
	matches := tokenPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m[1]
	}
	return out
}

// Coverage summarizes how the narrative used the records it was given.
// Every figure is computed from the narrative as generated, before any
// lenient-mode stripping.
type Coverage struct {
	// CitedClaims counts citation tokens found, repeats included.
	CitedClaims int
	// AvailableIDs counts the record IDs minted for the run.
	AvailableIDs int
	// DistinctCited counts unique IDs that resolved at least once.
	DistinctCited int
	// UtilizationRate is DistinctCited over AvailableIDs, zero when no IDs
	// were available.
	UtilizationRate float64
	// InvalidCitations lists unresolved IDs in first-seen order.
	InvalidCitations []string
}

// Validator applies one run's citation policy.
type Validator struct {
	mode Mode
}

// New returns a Validator for the mode.
func New(mode Mode) *Validator {
	return &Validator{mode: mode}
}

// Validate resolves every citation token in the narrative against the
// resolver. In strict mode an unresolved token fails the run with an
// InvalidCitationError naming every offending ID. In lenient mode
// unresolved tokens are removed from the returned narrative and listed in
// the coverage report. Valid citations are never rewritten.
func (v *Validator) Validate(narrative string, res registry.Resolver) (string, Coverage, error) {
	tokens := Tokens(narrative)

	cov := Coverage{
		CitedClaims:  len(tokens),
		AvailableIDs: len(res.IDs()),
	}

	cited := make(map[string]bool)
	invalid := make(map[string]bool)
	for _, id := range tokens {
		if _, ok := res.Resolve(id); ok {
			cited[id] = true
			continue
		}
		if !invalid[id] {
			invalid[id] = true
			cov.InvalidCitations = append(cov.InvalidCitations, id)
		}
	}
	cov.DistinctCited = len(cited)
	if cov.AvailableIDs > 0 {
		cov.UtilizationRate = float64(cov.DistinctCited) / float64(cov.AvailableIDs)
	}

	if len(cov.InvalidCitations) > 0 && v.mode == ModeStrict {
		return "", cov, &schema.InvalidCitationError{IDs: cov.InvalidCitations}
	}
	if len(cov.InvalidCitations) > 0 {
		narrative = strip(narrative, invalid)
	}
	return narrative, cov, nil
}

var (
	spaceRuns      = regexp.MustCompile(` {2,}`)
	spacePunct     = regexp.MustCompile(` ([.,;:!?])`)
	trailingSpaces = regexp.MustCompile(`(?m)[ \t]+$`)
)

// strip removes the given unresolved tokens and tidies the whitespace the
// removal leaves behind.
func strip(text string, invalid map[string]bool) string {
	out := tokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		id := strings.Trim(tok, "[]")
		if invalid[id] {
			return ""
		}
		return tok
	})
	out = spaceRuns.ReplaceAllString(out, " ")
	out = spacePunct.ReplaceAllString(out, "$1")
	return trailingSpaces.ReplaceAllString(out, "")
}
