package inbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/limits"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/testutil"
)

func testWatcher(t *testing.T, fake *testutil.FakeBackend) (*Watcher, string, storage.Provider) {
	t.Helper()
	inboxDir := t.TempDir()
	inboxStore, err := storage.NewFS(inboxDir)
	if err != nil {
		t.Fatal(err)
	}

	_, vault := testutil.TestVault(t)
	db := testutil.TestDB(t)
	est := limits.NewEstimator(limits.NewRegistry(nil), 0, nil)
	svc := noteservice.NewService(vault, db, fake, est, pipeline.Config{}, nil, nil)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWatcher(inboxStore, svc, inboxDir, logger), inboxDir, vault
}

func transcriptJSON(t *testing.T, videoID, title string) []byte {
	t.Helper()
	data, err := json.Marshal(models.Transcript{
		VideoID: videoID,
		Title:   title,
		Segments: []models.TranscriptSegment{
			{StartSeconds: 0, Text: "opening"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestSweep_ProcessesExistingFiles(t *testing.T) {
	fake := testutil.NewFakeBackend(testutil.FakeResponse{Text: "## Overview\ndraft"})
	w, inboxDir, vault := testWatcher(t, fake)

	if err := os.WriteFile(filepath.Join(inboxDir, "talk.json"), transcriptJSON(t, "vid42", "Talk"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if _, err := vault.Read("videos/talk.md"); err != nil {
		t.Errorf("note not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(inboxDir, "processed", "talk.json")); err != nil {
		t.Errorf("transcript not archived: %v", err)
	}
	if _, err := os.Stat(filepath.Join(inboxDir, "talk.json")); !os.IsNotExist(err) {
		t.Error("transcript still in inbox after processing")
	}
}

func TestSweep_MalformedFileGoesToFailed(t *testing.T) {
	w, inboxDir, _ := testWatcher(t, testutil.NewFakeBackend())

	if err := os.WriteFile(filepath.Join(inboxDir, "junk.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inboxDir, "empty.json"), transcriptJSON(t, "", ""), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	for _, name := range []string{"junk.json", "empty.json"} {
		if _, err := os.Stat(filepath.Join(inboxDir, "failed", name)); err != nil {
			t.Errorf("%s not moved to failed/: %v", name, err)
		}
	}
}

func TestSweep_GenerationFailureKeepsFile(t *testing.T) {
	fake := testutil.NewFakeBackend(testutil.FakeResponse{Err: context.DeadlineExceeded})
	w, inboxDir, _ := testWatcher(t, fake)

	if err := os.WriteFile(filepath.Join(inboxDir, "talk.json"), transcriptJSON(t, "vid42", "Talk"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	// Still in place for a retry on the next sweep.
	if _, err := os.Stat(filepath.Join(inboxDir, "talk.json")); err != nil {
		t.Errorf("transcript should remain in inbox: %v", err)
	}
}

func TestWatch_ProcessesDroppedFile(t *testing.T) {
	fake := testutil.NewFakeBackend(testutil.FakeResponse{Text: "## Overview\ndraft"})
	w, inboxDir, vault := testWatcher(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx)

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(inboxDir, "dropped.json"), transcriptJSON(t, "vid99", "Dropped Talk"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := vault.Read("videos/dropped-talk.md")
		return err == nil
	}, "dropped transcript not processed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		_, err := os.Stat(filepath.Join(inboxDir, "processed", "dropped.json"))
		return err == nil
	}, "dropped transcript not archived")
}
