package pipeline

import (
	"strings"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/transcript"
)

// ReferenceDelimiter fences the annotated transcript inside the linking
// prompt. The prompt forbids echoing it back; any candidate containing it
// leaked reference material and is rejected.
const ReferenceDelimiter = "=== TRANSCRIPT REFERENCE ==="

// Validate checks a candidate pass output against the chunk it was
// generated from. All checks must pass for acceptance; on rejection the
// reconstructor substitutes the original chunk text, so a single bad chunk
// never aborts the whole document.
func Validate(candidate, original string, wantLinks bool, videoID string) models.ValidationResult {
	if strings.TrimSpace(candidate) == "" {
		return models.Reject("empty output")
	}
	if got, want := document.CountHeadings(candidate), document.CountHeadings(original); got < want {
		return models.Reject("headings dropped")
	}
	if wantLinks && !hasTimestampRef(candidate, videoID) {
		return models.Reject("no timestamp references inserted")
	}
	if strings.Contains(candidate, ReferenceDelimiter) {
		return models.Reject("reference material echoed back")
	}
	return models.Accept()
}

// hasTimestampRef accepts either an internal marker token (converted to a
// link later) or an already-rendered link naming the expected identifier.
func hasTimestampRef(candidate, videoID string) bool {
	if transcript.CountMarkers(candidate) > 0 {
		return true
	}
	return videoID != "" && strings.Contains(candidate, videoID)
}
