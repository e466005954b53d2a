package pipeline

import "strings"

// Prompt text is opaque configuration: these defaults can be replaced
// wholesale from the config file without touching pipeline behavior.

// DefaultSummarySystemPrompt drives the first pass.
const DefaultSummarySystemPrompt = `You convert annotated video transcripts into structured Markdown study notes.
Organize the content into sections with Markdown headings (## Section Title).
Summarize faithfully; do not invent facts that are not in the transcript.
Output only the Markdown body, with no frontmatter and no code fences.`

// DefaultLinkingSystemPrompt drives the link-insertion pass.
const DefaultLinkingSystemPrompt = `You annotate Markdown section headings with time markers.
For each heading in the document, find the transcript moment that best
substantiates the section and append its marker token (marker:N, N in
seconds) to the heading line. Keep every heading and all body text exactly
as given; only append markers. Never reproduce the reference block or its
delimiter in your output.`

// summaryUserPrompt assembles the first-pass user message.
func summaryUserPrompt(title, annotated string) string {
	var b strings.Builder
	if title != "" {
		b.WriteString("Video title: ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	b.WriteString("Annotated transcript:\n")
	b.WriteString(annotated)
	return b.String()
}

// linkingUserPrompt assembles the per-chunk linking message. The annotated
// transcript rides along as fenced reference material the model must not
// echo back.
func linkingUserPrompt(chunk, annotated string) string {
	var b strings.Builder
	b.WriteString("Document section(s) to annotate:\n\n")
	b.WriteString(chunk)
	b.WriteString("\n\n")
	b.WriteString(ReferenceDelimiter)
	b.WriteString("\n")
	b.WriteString(annotated)
	b.WriteString("\n")
	b.WriteString(ReferenceDelimiter)
	return b.String()
}
