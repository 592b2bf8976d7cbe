package schema

import (
	"fmt"
	"strings"
)

// SchemaMappingError reports a required raw field absent from a requested
// (source, dimension) pair. The run either omits the section or aborts,
// depending on the source's required flag; it never renders an empty table.
type SchemaMappingError struct {
	Source    Source
	Dimension Dimension
	Field     string
}

func (e *SchemaMappingError) Error() string {
	return fmt.Sprintf("%s/%s: required field %q absent from raw record", e.Source, e.Dimension, e.Field)
}

// InvalidCitationError reports citation tokens in the narrative that do not
// resolve to any record minted this run. Raised only in strict mode; the
// report is not published.
type InvalidCitationError struct {
	IDs []string
}

func (e *InvalidCitationError) Error() string {
	return fmt.Sprintf("narrative cites unknown record ID(s): %s", strings.Join(e.IDs, ", "))
}

// ExternalCallError wraps a narrative-generation transport or quota
// failure. Fatal for the run; the pipeline never retries a partial run on
// its own, the caller decides whether to re-run the whole report.
type ExternalCallError struct {
	Operation string
	Err       error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("external call %s failed: %v", e.Operation, e.Err)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}

// DegradedSourceWarning records an optional source that failed or was left
// unconfigured. Non-fatal: its sections and any cross-source analyses are
// omitted and the verification footer names the omission.
type DegradedSourceWarning struct {
	Source    Source
	Dimension Dimension // zero value when the whole source degraded
	Reason    string
}

func (e *DegradedSourceWarning) Error() string {
	if e.Dimension != "" {
		return fmt.Sprintf("source %s degraded: dimension %s omitted: %s", e.Source, e.Dimension, e.Reason)
	}
	return fmt.Sprintf("source %s degraded: %s", e.Source, e.Reason)
}
