package mdpress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Build statuses recorded in the history.
const (
	BuildOK     = "ok"
	BuildFailed = "failed"
)

// BuildRecord is one static build run.
type BuildRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OutputDir  string    `json:"output_dir"`
	Pages      int       `json:"pages"`
	Assets     int       `json:"assets"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// NewBuildRecord starts a record for a build into outputDir.
func NewBuildRecord(outputDir string) BuildRecord {
	return BuildRecord{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		OutputDir: outputDir,
	}
}

// Store wraps a SQLite database holding the build history.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the dev server read history while a build writes it; writers
	// wait on the busy timeout instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS builds (
    id TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    output_dir TEXT NOT NULL,
    pages INTEGER NOT NULL DEFAULT 0,
    assets INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
`)
	return err
}

// SaveBuild inserts or replaces a build record.
func (s *Store) SaveBuild(ctx context.Context, b BuildRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO builds (id, started_at, finished_at, output_dir, pages, assets, status, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.StartedAt.UnixMilli(), b.FinishedAt.UnixMilli(), b.OutputDir, b.Pages, b.Assets, b.Status, b.Error)
	if err != nil {
		return fmt.Errorf("mdpress: save build %s: %w", b.ID, err)
	}
	return nil
}

// GetBuild returns a build by id; sql.ErrNoRows when it does not exist.
func (s *Store) GetBuild(ctx context.Context, id string) (BuildRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, output_dir, pages, assets, status, error FROM builds WHERE id = ?`, id)
	return scanBuild(row)
}

// ListBuilds returns up to limit builds, newest first.
func (s *Store) ListBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, output_dir, pages, assets, status, error FROM builds ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("mdpress: list builds: %w", err)
	}
	defer rows.Close()

	builds := []BuildRecord{}
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mdpress: list builds: %w", err)
	}
	return builds, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuild(r rowScanner) (BuildRecord, error) {
	var b BuildRecord
	var started, finished int64
	if err := r.Scan(&b.ID, &started, &finished, &b.OutputDir, &b.Pages, &b.Assets, &b.Status, &b.Error); err != nil {
		return BuildRecord{}, err
	}
	b.StartedAt = time.UnixMilli(started).UTC()
	b.FinishedAt = time.UnixMilli(finished).UTC()
	return b, nil
}
