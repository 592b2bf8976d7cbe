// Package narrative turns a composed prompt into analyst prose. The
// pipeline only sees the Generator interface; the Gemini implementation
// lives behind it so runs can be tested and dry-run without a network.
package narrative

import "context"

// Generator produces the narrative for one composed prompt. A failed call
// is fatal for the run: implementations must not retry on their own, and
// the pipeline never salvages a partial report. The caller decides
// whether to re-run the whole report.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
