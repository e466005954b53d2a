// Package chunker splits a generated document body into heading-bounded
// chunks sized to fit an output token budget.
package chunker

import (
	"strings"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/models"
)

// charsPerToken is the flat approximation used for chunk sizing.
// Empirically chosen; tunable, not structural.
const charsPerToken = 4

// EstimateTokens approximates the token cost of text.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// Split partitions body into chunks whose concatenation is exactly body.
// Chunk boundaries fall only at heading lines: a running chunk is closed
// when appending the next heading would push its estimated cost past the
// budget. A single section larger than the whole budget stays intact as one
// oversized chunk; section integrity beats strict budget compliance, and
// the orchestrator's retry handles the resulting overflow risk.
func Split(body string, budget models.TokenBudget) []models.Chunk {
	if body == "" {
		return nil
	}

	lines := strings.SplitAfter(body, "\n")
	var out []models.Chunk
	var cur strings.Builder

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		text := cur.String()
		out = append(out, models.Chunk{
			Index:      len(out),
			Text:       text,
			HasHeading: document.CountHeadings(text) > 0,
		})
		cur.Reset()
	}

	for _, line := range lines {
		if document.IsHeading(strings.TrimSuffix(line, "\n")) && cur.Len() > 0 &&
			EstimateTokens(cur.String())+EstimateTokens(line) > budget.Tokens {
			flush()
		}
		cur.WriteString(line)
	}
	flush()

	return out
}
