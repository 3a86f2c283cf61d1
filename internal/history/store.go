package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/iqtlabs/gamutrf/internal/domain"
	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const jobsTable = "recording_jobs"

// Store persists recording job snapshots in SQLite. The latest snapshot of a
// job replaces earlier ones.
type Store struct {
	db     *sql.DB
	upsert *sql.Stmt
	path   string
}

// Open creates or opens the job history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, pkgerrors.New("history: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, pkgerrors.Wrap(err, "history: create database directory failed")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history: open sqlite database failed")
	}
	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := prepareSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	stmt, err := db.Prepare(`INSERT INTO ` + jobsTable + ` (
			id, status, center_freq, sample_count, sample_rate, sample_file,
			succeeded, exit_status, submitted_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			sample_file=excluded.sample_file,
			succeeded=excluded.succeeded,
			exit_status=excluded.exit_status,
			updated_at=excluded.updated_at,
			payload=excluded.payload
		WHERE excluded.status <> '` + string(domain.JobStatusQueued) + `'`)
	if err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "history: prepare upsert failed")
	}
	return &Store{db: db, upsert: stmt, path: path}, nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return pkgerrors.Wrapf(err, "history: execute %s failed", pragma)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return nil
}

func prepareSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + jobsTable + ` (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			center_freq REAL NOT NULL,
			sample_count INTEGER NOT NULL,
			sample_rate REAL NOT NULL,
			sample_file TEXT,
			succeeded INTEGER NOT NULL DEFAULT 0,
			exit_status INTEGER NOT NULL DEFAULT 0,
			submitted_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + jobsTable + `_submitted ON ` + jobsTable + ` (submitted_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return pkgerrors.Wrap(err, "history: prepare schema failed")
		}
	}
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Save upserts the snapshot of job. A queued snapshot never replaces a later
// one.
func (s *Store) Save(ctx context.Context, job domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return pkgerrors.Wrapf(err, "history: encode job %s failed", job.ID)
	}
	_, err = s.upsert.ExecContext(ctx,
		job.ID,
		string(job.Status),
		job.Request.CenterFreq,
		job.Request.SampleCount,
		job.Request.SampleRate,
		job.SampleFile,
		job.Succeeded,
		job.ExitStatus,
		job.SubmittedAt.UnixNano(),
		time.Now().UnixNano(),
		string(payload),
	)
	if err != nil {
		return pkgerrors.Wrapf(err, "history: save job %s failed", job.ID)
	}
	return nil
}

// Get returns one job by id. The bool is false when no such job exists.
func (s *Store) Get(ctx context.Context, id string) (domain.Job, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM `+jobsTable+` WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.Job{}, false, nil
	}
	if err != nil {
		return domain.Job{}, false, pkgerrors.Wrapf(err, "history: load job %s failed", id)
	}
	job, err := decodeJob(payload)
	if err != nil {
		return domain.Job{}, false, err
	}
	return job, true, nil
}

// Recent returns up to limit jobs, newest submission first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM `+jobsTable+` ORDER BY submitted_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history: query recent jobs failed")
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, pkgerrors.Wrap(err, "history: scan job failed")
		}
		job, err := decodeJob(payload)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "history: iterate jobs failed")
	}
	return jobs, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.upsert != nil {
		s.upsert.Close()
	}
	return s.db.Close()
}

func decodeJob(payload string) (domain.Job, error) {
	var job domain.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return domain.Job{}, pkgerrors.Wrap(err, "history: decode job payload failed")
	}
	return job, nil
}
