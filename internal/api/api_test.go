package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/limits"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/testutil"
)

// testEnv sets up a temp vault, history DB, service, and router for testing.
// authToken="" means disabled auth mode.
func testEnv(t *testing.T, fake *testutil.FakeBackend, authToken string) (http.Handler, storage.Provider) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	reg := limits.NewRegistry(nil)
	est := limits.NewEstimator(reg, 0, nil)
	svc := noteservice.NewService(store, db, fake, est, pipeline.Config{}, nil, nil)
	router := NewRouter(svc, reg, authToken != "", authToken, nil)
	return router, store
}

func submitBody() []byte {
	body, _ := json.Marshal(models.Transcript{
		VideoID: "vid42",
		Title:   "A Good Talk",
		Segments: []models.TranscriptSegment{
			{StartSeconds: 0, Text: "opening remarks"},
			{StartSeconds: 65, Text: "main argument"},
		},
	})
	return body
}

func seedNote(t *testing.T, store storage.Provider, path string) {
	t.Helper()
	annotated := "00:00:00 marker:0 opening remarks\n00:01:05 marker:65 main argument"
	content := document.BuildMetadataBlock("A Good Talk", "vid42", "", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), annotated) +
		"## First point\nsome prose\n## Second point\nmore prose\n"
	if err := store.Write(path, []byte(content)); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitTranscriptAndGetNote(t *testing.T) {
	fake := testutil.NewFakeBackend(testutil.FakeResponse{Text: "## Overview\ndraft body"})
	router, _ := testEnv(t, fake, "")

	req := httptest.NewRequest(http.MethodPost, "/transcripts", bytes.NewReader(submitBody()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Path != "videos/a-good-talk.md" {
		t.Errorf("path = %q", note.Path)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes/videos/a-good-talk.md", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.VideoID != "vid42" || note.Title != "A Good Talk" {
		t.Errorf("note = %+v", note)
	}

	// Duplicate submission conflicts.
	req = httptest.NewRequest(http.MethodPost, "/transcripts", bytes.NewReader(submitBody()))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate submit = %d, want 409", w.Code)
	}
}

func TestSubmitTranscriptValidation(t *testing.T) {
	router, _ := testEnv(t, testutil.NewFakeBackend(), "")

	body, _ := json.Marshal(models.Transcript{Title: "no id, no segments"})
	req := httptest.NewRequest(http.MethodPost, "/transcripts", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEnrich(t *testing.T) {
	fake := testutil.NewFakeBackend(testutil.FakeResponse{
		Text: "## First point marker:0\nsome prose\n## Second point marker:65\nmore prose\n",
	})
	router, store := testEnv(t, fake, "")
	seedNote(t, store, "videos/a-good-talk.md")

	body, _ := json.Marshal(EnrichRequest{Path: "videos/a-good-talk.md"})
	req := httptest.NewRequest(http.MethodPost, "/enrich", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("enrich status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp EnrichResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Report == nil || resp.Report.LinksAdded != 2 {
		t.Errorf("report = %+v", resp.Report)
	}
	if resp.Note == nil || resp.Note.Links != 2 {
		t.Errorf("note = %+v", resp.Note)
	}
}

func TestEnrichErrors(t *testing.T) {
	router, store := testEnv(t, testutil.NewFakeBackend(), "")
	seedNote(t, store, "videos/a-good-talk.md")

	// Missing note.
	body, _ := json.Marshal(EnrichRequest{Path: "videos/nope.md"})
	req := httptest.NewRequest(http.MethodPost, "/enrich", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}

	// Stale checksum.
	body, _ = json.Marshal(EnrichRequest{Path: "videos/a-good-talk.md", IfMatch: "deadbeef"})
	req = httptest.NewRequest(http.MethodPost, "/enrich", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("stale checksum = %d, want 409", w.Code)
	}

	// No headed sections.
	if err := store.Write("videos/flat.md", []byte("prose only\n")); err != nil {
		t.Fatal(err)
	}
	body, _ = json.Marshal(EnrichRequest{Path: "videos/flat.md"})
	req = httptest.NewRequest(http.MethodPost, "/enrich", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("flat note = %d, want 422", w.Code)
	}
}

func TestListAndDeleteNotes(t *testing.T) {
	router, store := testEnv(t, testutil.NewFakeBackend(), "")
	seedNote(t, store, "videos/a.md")
	seedNote(t, store, "videos/b.md")

	req := httptest.NewRequest(http.MethodGet, "/notes?limit=1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || len(list.Notes) != 1 {
		t.Errorf("list = %+v", list)
	}

	req = httptest.NewRequest(http.MethodDelete, "/notes/videos/a.md", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/notes/videos/a.md", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("double delete = %d, want 404", w.Code)
	}
}

func TestListRuns(t *testing.T) {
	fake := testutil.NewFakeBackend(testutil.FakeResponse{Text: "## Overview\ndraft body"})
	router, _ := testEnv(t, fake, "")

	req := httptest.NewRequest(http.MethodPost, "/transcripts", bytes.NewReader(submitBody()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("runs status = %d", w.Code)
	}
	var runs RunListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &runs)
	if runs.Total != 1 || len(runs.Runs) != 1 || runs.Runs[0].Pass != "summary" {
		t.Errorf("runs = %+v", runs)
	}

	// Filtered by note path.
	req = httptest.NewRequest(http.MethodGet, "/runs?path=videos/a-good-talk.md", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &runs)
	if runs.Total != 1 {
		t.Errorf("filtered runs = %+v", runs)
	}
}

func TestModelLimitsEndpoints(t *testing.T) {
	router, _ := testEnv(t, testutil.NewFakeBackend(), "")

	req := httptest.NewRequest(http.MethodGet, "/models/ollama/llama3.1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var resp ModelLimitsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Limits.MaxOutputTokens != 4096 {
		t.Errorf("limits = %+v", resp.Limits)
	}

	// Unknown model 404s.
	req = httptest.NewRequest(http.MethodGet, "/models/ollama/unknown-model", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown model = %d, want 404", w.Code)
	}

	// Override, then read it back. Model names with slashes route too.
	body, _ := json.Marshal(models.ModelLimits{ContextTokens: 64000, MaxOutputTokens: 9000})
	req = httptest.NewRequest(http.MethodPut, "/models/openrouter/some/nested-model", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Limits.MaxOutputTokens != 9000 {
		t.Errorf("stored limits = %+v", resp.Limits)
	}
	// A partial override inherits the provider default reserve.
	if resp.Limits.ReserveFraction != 0.10 {
		t.Errorf("reserve = %v, want hosted default", resp.Limits.ReserveFraction)
	}

	// Rejects non-positive limits.
	body, _ = json.Marshal(models.ModelLimits{ContextTokens: 0, MaxOutputTokens: 9000})
	req = httptest.NewRequest(http.MethodPut, "/models/ollama/llama3.1", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid put = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router, _ := testEnv(t, testutil.NewFakeBackend(), "sekrit")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("good token = %d, want 200", w.Code)
	}
}
