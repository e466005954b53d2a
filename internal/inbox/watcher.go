// Package inbox watches a drop directory for transcript files and feeds
// them through the summary pass into the vault.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/storage"
)

// Subdirectories transcript files are archived to after processing.
const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Watcher consumes transcript JSON files dropped into the inbox directory.
// Each file holds one models.Transcript. Successfully processed files move
// to processed/, malformed or rejected ones to failed/; generation failures
// leave the file in place so a later sweep can retry.
type Watcher struct {
	store  storage.Provider
	svc    *noteservice.Service
	root   string
	logger *slog.Logger
}

// NewWatcher creates an inbox watcher. root is the absolute inbox path that
// store is rooted at.
func NewWatcher(store storage.Provider, svc *noteservice.Service, root string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{store: store, svc: svc, root: root, logger: logger}
}

// Sweep processes every transcript file already sitting in the inbox.
// Called once at startup before watching, so files dropped while the
// service was down are not lost.
func (w *Watcher) Sweep(ctx context.Context) error {
	metas, err := w.store.List(".", ".json")
	if err != nil {
		return err
	}
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		if archived(m.Path) {
			continue
		}
		w.process(ctx, m.Path)
	}
	return nil
}

// Watch starts an fsnotify watcher on the inbox root and processes dropped
// transcript files until ctx is cancelled.
//
// Archive subdirectories are not watched; a file reappearing there never
// re-enters the pipeline.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return err
	}

	w.logger.Info("inbox: started", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			rel, relErr := filepath.Rel(w.root, ev.Name)
			if relErr != nil || archived(rel) {
				continue
			}
			w.process(ctx, rel)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}

// process runs one transcript file through the summary pass and archives it.
func (w *Watcher) process(ctx context.Context, rel string) {
	data, err := w.store.Read(rel)
	if err != nil {
		// Create events can arrive before the writer finishes; the Write
		// event will retry.
		w.logger.Warn("inbox: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	var t models.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		w.logger.Warn("inbox: invalid transcript JSON", slog.String("path", rel), slog.String("error", err.Error()))
		w.archive(rel, failedDir)
		return
	}
	if t.VideoID == "" || len(t.Segments) == 0 {
		w.logger.Warn("inbox: transcript missing video_id or segments", slog.String("path", rel))
		w.archive(rel, failedDir)
		return
	}

	note, err := w.svc.CreateFromTranscript(ctx, t)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			w.logger.Warn("inbox: note already exists", slog.String("path", rel), slog.String("video", t.VideoID))
			w.archive(rel, failedDir)
			return
		}
		// Transient generation failure: keep the file for a later sweep.
		w.logger.Error("inbox: generation failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	w.logger.Info("inbox: note created", slog.String("path", rel), slog.String("note", note.Path))
	w.archive(rel, processedDir)
}

func (w *Watcher) archive(rel, dir string) {
	dst := filepath.Join(dir, filepath.Base(rel))
	if err := w.store.Move(rel, dst); err != nil {
		w.logger.Warn("inbox: archive failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// archived reports whether rel lives in one of the archive subdirectories.
func archived(rel string) bool {
	return strings.HasPrefix(rel, processedDir+string(filepath.Separator)) ||
		strings.HasPrefix(rel, failedDir+string(filepath.Separator))
}
