package mcpserver

// NoteFormatContract describes the canonical video-note format the pipeline
// produces and consumes.
const NoteFormatContract = `# Ansuz Video Note Format Contract

Every video note stored in Ansuz MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable video title   # REQUIRED
video: dQw4w9WgXcQ                  # REQUIRED – source video identifier
source: youtube                     # OPTIONAL – where the transcript came from
created: 2025-06-01T12:00:00Z       # RFC 3339 creation time
transcript: |                       # REQUIRED – canonical annotated transcript
  00:00:00 marker:0 opening remarks
  00:01:05 marker:65 main argument
---

## Section heading [00:01:05](https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=65s)

Body text in standard Markdown.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "```" + `---` + "```" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **The annotated transcript is canonical.** Each line reads
   ` + "`" + `HH:MM:SS marker:N text` + "`" + ` where N is the bucket start in seconds.
   Colons inside the text are escaped as ` + "`" + `&#58;` + "`" + `. Never edit these lines.
3. **Markers never appear in the body.** The pipeline converts every
   ` + "`" + `marker:N` + "`" + ` token in the body into a Markdown timestamp link; a marker in
   the body means a pipeline run was interrupted.
4. **Section headings** are standard Markdown headings (` + "`" + `#` + "`" + ` through
   ` + "`" + `######` + "`" + `). Enrichment appends one timestamp link per heading.
5. **File paths** end with ` + "`" + `.md` + "`" + `, use forward slashes, and live under
   ` + "`" + `videos/` + "`" + `.
6. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
title: A Good Talk
video: vid42
created: 2025-06-01T12:00:00Z
transcript: |
  00:00:00 marker:0 opening remarks
  00:01:05 marker:65 main argument
---

## Opening [00:00:00](https://www.youtube.com/watch?v=vid42&t=0s)

The speaker sets the stage.

## The argument [00:01:05](https://www.youtube.com/watch?v=vid42&t=65s)

The core claim and its support.
` + "```" + `
`
