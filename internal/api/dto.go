package api

import (
	"github.com/starford/ansuz/internal/history"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/pipeline"
)

// SubmitTranscriptRequest is the request body for creating a note from a
// transcript.
type SubmitTranscriptRequest = models.Transcript

// EnrichRequest is the request body for running the linking pass over a
// stored note.
type EnrichRequest struct {
	Path string `json:"path"`
	// IfMatch, when set, must equal the note's current checksum.
	IfMatch string `json:"if_match,omitempty"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total"`
}

// EnrichResponse pairs the enriched note with the run report.
type EnrichResponse struct {
	Note   *NoteDetail      `json:"note"`
	Report *pipeline.Report `json:"report"`
}

// RunListResponse wraps paginated run listings.
type RunListResponse struct {
	Runs  []history.RunRow `json:"runs"`
	Total int              `json:"total"`
}

// ModelLimitsResponse is the payload for the model-limits endpoints.
type ModelLimitsResponse struct {
	Provider string             `json:"provider"`
	Model    string             `json:"model"`
	Limits   models.ModelLimits `json:"limits"`
}
