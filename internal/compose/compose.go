// Package compose builds the prompt sent to the narrative model. The
// document has five parts in fixed order: role and task framing, the
// reporting period, the boundary-marked data tables, the citation
// instructions with a worked example, and the output requirements.
package compose

import (
	"errors"
	"fmt"
	"strings"

	"weeklens/internal/period"
)

// ErrEmptyInput signals that no sections survived normalization. A prompt
// without data would invite fabrication, so composition refuses instead.
var ErrEmptyInput = errors.New("compose: no data sections to analyze")

// Composer renders prompts with a fixed role. Stateless across runs.
type Composer struct {
	role string
}

// New returns a Composer. An empty role selects the built-in DefaultRole.
func New(role string) *Composer {
	if role == "" {
		role = DefaultRole
	}
	return &Composer{role: role}
}

// Input is everything one prompt needs. Sections are fully formatted
// table blocks in their declared order, current period first, comparison
// period after. ExampleID must be an ID actually minted this run; the
// worked example never shows a placeholder the model could parrot.
type Input struct {
	Period    period.Range
	Compare   *period.Range
	Sections  []string
	ExampleID string
}

// Compose renders the prompt. It fails on empty input rather than
// producing a dataless prompt.
func (c *Composer) Compose(in Input) (string, error) {
	if len(in.Sections) == 0 {
		return "", ErrEmptyInput
	}
	if in.ExampleID == "" {
		return "", errors.New("compose: worked example needs a record ID minted this run")
	}

	var b strings.Builder

	b.WriteString(c.role)
	b.WriteString("\n\n")

	b.WriteString("## Reporting Period\n\n")
	fmt.Fprintf(&b, "This report covers %s.\n", in.Period)
	if in.Compare != nil {
		fmt.Fprintf(&b, "Comparison tables (IDs prefixed PREV-) cover %s. ", *in.Compare)
		b.WriteString("Keep the two periods apart: never present a comparison-period value as current, and never blend values across periods.\n")
	}
	b.WriteString("\n")

	b.WriteString("## Data Tables\n\n")
	b.WriteString(strings.Join(in.Sections, "\n\n"))
	b.WriteString("\n\n")

	b.WriteString("## Citation Format\n\n")
	b.WriteString("Every factual statement must cite the ID of the record that supports it, in square brackets, exactly as printed in the ID column. ")
	fmt.Fprintf(&b, "Example: \"Mobile made up the largest share of sessions this week [%s].\"\n\n", in.ExampleID)

	b.WriteString(outputFormat)
	b.WriteString("\n")

	return b.String(), nil
}
