// Package document splits vault notes into their frontmatter block and body
// and provides the structural heading primitives the pipeline keys off.
package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
)

const delim = "---"

// TranscriptKey is the frontmatter key holding the canonical annotated
// transcript.
const TranscriptKey = "transcript"

// headingRe matches a structural heading line: one to six marker characters
// followed by whitespace and text.
var headingRe = regexp.MustCompile(`^#{1,6}[ \t]`)

// Split separates a note into its raw metadata block and body.
// The metadata block keeps its delimiters verbatim so that
// MetadataBlock + Body reconstructs the input exactly. Content without a
// well-formed leading frontmatter block is all body.
func Split(content string) models.Document {
	if !strings.HasPrefix(content, delim+"\n") {
		return models.Document{Body: content}
	}
	rest := content[len(delim)+1:]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return models.Document{Body: content}
	}
	end := len(delim) + 1 + idx + 1 + len(delim)
	if end < len(content) && content[end] == '\n' {
		end++
	}
	return models.Document{MetadataBlock: content[:end], Body: content[end:]}
}

// Frontmatter parses the YAML inside a metadata block. Invalid or absent
// YAML yields nil, never an error; the block is opaque glue, not data the
// pipeline depends on.
func Frontmatter(d models.Document) map[string]any {
	block := strings.TrimPrefix(d.MetadataBlock, delim+"\n")
	idx := strings.Index(block, "\n"+delim)
	if idx < 0 {
		return nil
	}
	var fm map[string]any
	if err := yaml.Unmarshal([]byte(block[:idx]), &fm); err != nil {
		return nil
	}
	return fm
}

// AnnotatedTranscript returns the canonical annotated transcript stored in
// the metadata block, or empty string when absent.
func AnnotatedTranscript(d models.Document) string {
	fm := Frontmatter(d)
	if fm == nil {
		return ""
	}
	if s, ok := fm[TranscriptKey].(string); ok {
		return strings.TrimRight(s, "\n")
	}
	return ""
}

// VideoID returns the source video identifier from the metadata block.
func VideoID(d models.Document) string {
	fm := Frontmatter(d)
	if fm == nil {
		return ""
	}
	if s, ok := fm["video"].(string); ok {
		return s
	}
	return ""
}

// IsHeading reports whether line is a structural heading line.
func IsHeading(line string) bool {
	return headingRe.MatchString(line)
}

// CountHeadings returns the number of heading lines in text.
func CountHeadings(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if IsHeading(line) {
			n++
		}
	}
	return n
}

// BuildMetadataBlock renders the frontmatter for a newly created video note:
// title, video identifier, source, creation time, and the annotated
// transcript as a literal block under the transcript key.
func BuildMetadataBlock(title, videoID, source string, created time.Time, annotated string) string {
	var b strings.Builder
	b.WriteString(delim)
	b.WriteByte('\n')
	writeScalar(&b, "title", title)
	writeScalar(&b, "video", videoID)
	if source != "" {
		writeScalar(&b, "source", source)
	}
	b.WriteString("created: ")
	b.WriteString(created.UTC().Format(time.RFC3339))
	b.WriteByte('\n')
	b.WriteString(TranscriptKey)
	b.WriteString(": |\n")
	for _, line := range strings.Split(annotated, "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(delim)
	b.WriteByte('\n')
	return b.String()
}

// writeScalar emits one YAML key/value line, quoting through the YAML
// encoder so arbitrary titles stay valid.
func writeScalar(b *strings.Builder, key, value string) {
	out, err := yaml.Marshal(map[string]string{key: value})
	if err != nil {
		fmt.Fprintf(b, "%s: %q\n", key, value)
		return
	}
	b.Write(out)
}
