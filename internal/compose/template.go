package compose

// DefaultRole is the versioned role and task framing used when the
// configuration does not override it. It is the first part of every
// composed prompt.
const DefaultRole = `You are a senior web analytics consultant preparing the weekly performance report for a site's stakeholders.

Write a concise, insight-driven analysis of the data tables below: what changed, what stands out, and what deserves action next week. Ground every statement in the supplied data. Plain language, no filler, no invented numbers.`

// outputFormat closes every prompt. The two citation requirements are
// load-bearing; the structure hints keep reports consistent week to week.
const outputFormat = `## Requirements

- Every analytical claim must end with a citation token.
- Cite only IDs that appear in the tables above. Never invent an ID.
- Write GitHub-flavored Markdown prose under these headings: ## Summary, ## Traffic, ## Search Performance, ## Recommendations.
- Keep each heading to a handful of short paragraphs or bullets. No code fences.`
