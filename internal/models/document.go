package models

import "time"

// Document is a vault note split into its frontmatter block and body.
// MetadataBlock includes the surrounding delimiters verbatim, so
// MetadataBlock + Body reconstructs the original file exactly. Backend calls
// never see or mutate MetadataBlock; it is reattached after processing.
type Document struct {
	MetadataBlock string
	Body          string
}

// String returns the full note content.
func (d Document) String() string {
	return d.MetadataBlock + d.Body
}

// Chunk is a contiguous slice of a document body bounded by heading lines.
// Chunks partition the body with no overlap and no loss: concatenating them
// in Index order reconstructs the body exactly.
type Chunk struct {
	Index      int
	Text       string
	HasHeading bool
}

// ValidationResult is the outcome of checking one pass output against the
// chunk it was generated from.
type ValidationResult struct {
	Accepted bool
	Reason   string
}

// Accept returns an accepting result.
func Accept() ValidationResult {
	return ValidationResult{Accepted: true}
}

// Reject returns a rejecting result with the given reason.
func Reject(reason string) ValidationResult {
	return ValidationResult{Accepted: false, Reason: reason}
}

// NoteMetadata is a lightweight representation returned by vault list
// operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
