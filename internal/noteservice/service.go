// Package noteservice coordinates vault storage, the generative pipeline,
// and run history into the operations the API and MCP surfaces expose.
package noteservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/history"
	"github.com/starford/ansuz/internal/limits"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
)

// NoteDetail is the full representation of a video note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	VideoID     string         `json:"video_id"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Links       int            `json:"links"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage, pipeline, and history operations.
type Service struct {
	store   storage.Provider
	db      history.Store
	backend llm.Backend
	est     *limits.Estimator
	cfg     pipeline.Config
	broker  *sse.Broker
	logger  *slog.Logger
}

// NewService creates a new note service. broker may be nil when no event
// stream is wired (tests, one-shot CLI use).
func NewService(store storage.Provider, db history.Store, backend llm.Backend, est *limits.Estimator, cfg pipeline.Config, broker *sse.Broker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, db: db, backend: backend, est: est, cfg: cfg, broker: broker, logger: logger}
}

// CreateFromTranscript runs the first pass over a transcript and writes the
// resulting note to the vault. The note path is derived from the title (or
// video id when the title is empty) and must not already exist.
func (s *Service) CreateFromTranscript(ctx context.Context, t models.Transcript) (*NoteDetail, error) {
	path := NotePath(t)
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}

	s.publish(sse.RunStarted, path, map[string]any{"pass": "summary"})
	started := time.Now()

	runner := pipeline.NewRunner(s.backend, s.est, s.cfg, s.logger, nil)
	doc, err := runner.Summarize(ctx, t)
	if err != nil {
		s.recordRun(path, t.VideoID, "summary", history.StatusFailed, nil, err, started)
		s.publish(sse.RunFailed, path, map[string]any{"pass": "summary"})
		return nil, err
	}

	content := []byte(doc.String())
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}

	s.recordRun(path, t.VideoID, "summary", history.StatusOK, nil, nil, started)
	s.publish(sse.RunCompleted, path, map[string]any{"pass": "summary"})
	return s.buildNoteDetail(path, content), nil
}

// EnrichNote runs the linking pass over a stored note. ifMatch, when
// non-empty, must equal the note's current checksum; the same check is
// repeated after the pass so a concurrent edit never gets overwritten. On
// total pipeline failure the stored note is left untouched.
func (s *Service) EnrichNote(ctx context.Context, path, ifMatch string) (*NoteDetail, *pipeline.Report, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperr.ErrNotFound
		}
		return nil, nil, err
	}
	before := checksum.Sum(data)
	if ifMatch != "" && ifMatch != before {
		return nil, nil, apperr.ErrConflict
	}

	doc := document.Split(string(data))
	videoID := document.VideoID(doc)

	s.publish(sse.RunStarted, path, map[string]any{"pass": "linking"})
	started := time.Now()

	progress := func(done, total int) {
		s.publish(sse.RunChunk, path, map[string]any{"done": done, "total": total})
	}
	runner := pipeline.NewRunner(s.backend, s.est, s.cfg, s.logger, progress)

	enriched, report, err := runner.InsertLinks(ctx, doc)
	if err != nil {
		s.recordRun(path, videoID, "linking", history.StatusFailed, report, err, started)
		s.publish(sse.RunFailed, path, map[string]any{"pass": "linking"})
		if errors.Is(err, pipeline.ErrNoSections) || errors.Is(err, pipeline.ErrAllChunksFailed) {
			return nil, nil, errors.Join(apperr.ErrUnprocessable, err)
		}
		return nil, nil, err
	}

	// Re-check before writing back: a concurrent edit during the pass wins.
	current, err := s.store.Read(path)
	if err != nil {
		return nil, nil, err
	}
	if !checksum.Matches(current, before) {
		s.recordRun(path, videoID, "linking", history.StatusFailed, report, apperr.ErrConflict, started)
		return nil, nil, apperr.ErrConflict
	}

	content := []byte(enriched.String())
	if err := s.store.Write(path, content); err != nil {
		return nil, nil, err
	}

	status := history.StatusOK
	if report.ChunksFailed > 0 {
		status = history.StatusPartial
	}
	s.recordRun(path, videoID, "linking", status, report, nil, started)
	s.publish(sse.RunCompleted, path, map[string]any{"pass": "linking", "links": report.LinksAdded})
	return s.buildNoteDetail(path, content), report, nil
}

// GetNote reads a note from the vault.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildNoteDetail(path, data), nil
}

// ListNotes returns vault notes in path order with offset pagination.
func (s *Service) ListNotes(_ context.Context, limit, offset int) ([]NoteListItem, int, error) {
	metas, err := s.store.List(".", ".md")
	if err != nil {
		return nil, 0, err
	}
	total := len(metas)

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []NoteListItem{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	items := make([]NoteListItem, 0, end-offset)
	for _, m := range metas[offset:end] {
		items = append(items, NoteListItem{Path: m.Path, Checksum: m.Checksum, UpdatedAt: m.UpdatedAt})
	}
	return items, total, nil
}

// DeleteNote removes a note from the vault.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return nil
}

// ListRuns returns recorded pipeline runs, newest-first.
func (s *Service) ListRuns(_ context.Context, limit, offset int) ([]history.RunRow, int, error) {
	return s.db.ListRuns(limit, offset)
}

// RunsForNote returns every run recorded for a note path.
func (s *Service) RunsForNote(_ context.Context, path string) ([]history.RunRow, error) {
	return s.db.RunsForNote(path)
}

func (s *Service) buildNoteDetail(path string, data []byte) *NoteDetail {
	content := string(data)
	doc := document.Split(content)
	fm := document.Frontmatter(doc)

	title := ""
	if t, ok := fm["title"].(string); ok {
		title = t
	}
	return &NoteDetail{
		Path:        path,
		Title:       title,
		VideoID:     document.VideoID(doc),
		Content:     content,
		Checksum:    checksum.Sum(data),
		Links:       len(pipeline.ExtractLinks(doc.Body)),
		Frontmatter: fm,
	}
}

func (s *Service) recordRun(path, videoID, pass, status string, report *pipeline.Report, runErr error, started time.Time) {
	row := history.RunRow{
		Path:       path,
		VideoID:    videoID,
		Pass:       pass,
		Provider:   s.backend.Provider(),
		Model:      s.backend.Model(),
		Status:     status,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if report != nil {
		row.Sections = report.SectionsTotal
		row.LinksAdded = report.LinksAdded
		row.ChunksFailed = report.ChunksFailed
	}
	if runErr != nil {
		row.Error = runErr.Error()
	}
	if _, err := s.db.InsertRun(row); err != nil {
		s.logger.Error("failed to record run", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func (s *Service) publish(kind, path string, extra map[string]any) {
	if s.broker != nil {
		s.broker.PublishRunEvent(kind, path, extra)
	}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// NotePath derives the vault path for a transcript's note from its title,
// falling back to the video id.
func NotePath(t models.Transcript) string {
	base := strings.ToLower(strings.TrimSpace(t.Title))
	base = strings.Trim(slugRe.ReplaceAllString(base, "-"), "-")
	if base == "" {
		base = strings.ToLower(t.VideoID)
	}
	if base == "" {
		base = "untitled"
	}
	return "videos/" + base + ".md"
}
