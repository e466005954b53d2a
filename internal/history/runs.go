package history

import (
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// RunRow is one recorded pipeline run.
type RunRow struct {
	ID           int64     `json:"id"`
	Path         string    `json:"path"`
	VideoID      string    `json:"video_id"`
	Pass         string    `json:"pass"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Status       string    `json:"status"`
	Sections     int       `json:"sections"`
	LinksAdded   int       `json:"links_added"`
	ChunksFailed int       `json:"chunks_failed"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// InsertRun records a completed run and returns its id.
func (db *DB) InsertRun(r RunRow) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO runs (path, video_id, pass, provider, model, status,
			sections, links_added, chunks_failed, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Path, r.VideoID, r.Pass, r.Provider, r.Model, r.Status,
		r.Sections, r.LinksAdded, r.ChunksFailed, r.Error, r.StartedAt, r.FinishedAt)
	if err != nil {
		return 0, fmt.Errorf("history: insert run: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns returns runs newest-first with the total count.
func (db *DB) ListRuns(limit, offset int) ([]RunRow, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("history: count runs: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, path, video_id, pass, provider, model, status,
			sections, links_added, chunks_failed, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	out, err := scanRuns(rows)
	return out, total, err
}

// RunsForNote returns every run recorded for a note path, newest-first.
func (db *DB) RunsForNote(path string) ([]RunRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, path, video_id, pass, provider, model, status,
			sections, links_added, chunks_failed, error, started_at, finished_at
		FROM runs WHERE path = ? ORDER BY started_at DESC, id DESC
	`, path)
	if err != nil {
		return nil, fmt.Errorf("history: runs for note: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRuns(rows rowScanner) ([]RunRow, error) {
	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.Path, &r.VideoID, &r.Pass, &r.Provider, &r.Model,
			&r.Status, &r.Sections, &r.LinksAdded, &r.ChunksFailed, &r.Error,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
