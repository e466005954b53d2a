package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/history"
	"github.com/starford/ansuz/internal/limits"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
	reg *limits.Registry
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, reg *limits.Registry) *Handler {
	return &Handler{svc: svc, reg: reg}
}

// wildcardParam extracts the trailing wildcard path component from the URL.
// Supports encoded slashes from generated clients (e.g. videos%2Fnote.md).
func wildcardParam(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// SubmitTranscript handles POST /api/transcripts: the first pass. The
// transcript is bucketed, summarized, and written to the vault as a new note.
//
//	@Summary		Create a video note from a transcript
//	@Tags			transcripts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SubmitTranscriptRequest	true	"Transcript to process"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transcripts [post]
func (h *Handler) SubmitTranscript(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req models.Transcript
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.VideoID == "" || len(req.Segments) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("video_id and segments are required"))
		return
	}

	note, err := h.svc.CreateFromTranscript(r.Context(), req)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("note already exists"))
		} else {
			slog.Error("transcript submission failed", slog.String("video", req.VideoID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errorBody("generation failed"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// Enrich handles POST /api/enrich: the linking pass over a stored note.
//
//	@Summary		Insert timestamp links into a note's headings
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EnrichRequest	true	"Note to enrich"
//	@Success		200		{object}	EnrichResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/enrich [post]
func (h *Handler) Enrich(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req EnrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	req.IfMatch = strings.Trim(req.IfMatch, `"`)

	note, report, err := h.svc.EnrichNote(r.Context(), req.Path, req.IfMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		case errors.Is(err, apperr.ErrUnprocessable):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody("note could not be enriched, left unchanged"))
		default:
			slog.Error("enrich failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errorBody("generation failed"))
		}
		return
	}
	writeJSON(w, http.StatusOK, EnrichResponse{Note: note, Report: report})
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List vault notes with pagination
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListNotes(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardParam(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/*.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			path	path	string	true	"Note path"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardParam(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), path); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRuns handles GET /api/runs. With ?path= it returns the run history of
// one note; otherwise a paginated global listing.
//
//	@Summary		List recorded pipeline runs
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			path	query		string	false	"Filter by note path"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if path := q.Get("path"); path != "" {
		runs, err := h.svc.RunsForNote(r.Context(), path)
		if err != nil {
			slog.Error("runs for note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		writeJSON(w, http.StatusOK, RunListResponse{Runs: nonNilRuns(runs), Total: len(runs)})
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	runs, total, err := h.svc.ListRuns(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: nonNilRuns(runs), Total: total})
}

// GetModelLimits handles GET /api/models/{provider}/*.
//
//	@Summary		Look up limits for a model
//	@Tags			models
//	@Produce		json
//	@Param			provider	path		string	true	"Provider name"
//	@Param			model		path		string	true	"Model name"
//	@Success		200			{object}	ModelLimitsResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/models/{provider}/{model} [get]
func (h *Handler) GetModelLimits(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	model := wildcardParam(r)
	if model == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("model is required"))
		return
	}
	lim, ok := h.reg.Lookup(provider, model)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown model"))
		return
	}
	writeJSON(w, http.StatusOK, ModelLimitsResponse{Provider: provider, Model: model, Limits: lim})
}

// PutModelLimits handles PUT /api/models/{provider}/*: an in-memory override
// replacing any previous limits for the model wholesale.
//
//	@Summary		Override limits for a model
//	@Tags			models
//	@Accept			json
//	@Produce		json
//	@Param			provider	path		string				true	"Provider name"
//	@Param			model		path		string				true	"Model name"
//	@Param			body		body		models.ModelLimits	true	"New limits"
//	@Success		200			{object}	ModelLimitsResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/models/{provider}/{model} [put]
func (h *Handler) PutModelLimits(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	model := wildcardParam(r)
	if model == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("model is required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var lim models.ModelLimits
	if err := json.NewDecoder(r.Body).Decode(&lim); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if lim.ContextTokens <= 0 || lim.MaxOutputTokens <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("context_tokens and max_output_tokens must be positive"))
		return
	}

	h.reg.Upsert(provider, model, lim)
	stored, _ := h.reg.Lookup(provider, model)
	writeJSON(w, http.StatusOK, ModelLimitsResponse{Provider: provider, Model: model, Limits: stored})
}

func nonNilRuns(runs []history.RunRow) []history.RunRow {
	if runs == nil {
		return []history.RunRow{}
	}
	return runs
}
