package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"PriceForecaster/internal/model"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			run_id          TEXT NOT NULL,
			started_at      INTEGER NOT NULL,
			finished_at     INTEGER NOT NULL,
			status          TEXT NOT NULL,
			error_kind      TEXT,
			error_message   TEXT,
			instruments     INTEGER,
			fetched         INTEGER,
			normalized_rows INTEGER,
			forecast_rows   INTEGER,
			charts          INTEGER,
			data_file       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS instrument_issues (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run        TEXT NOT NULL REFERENCES runs(id),
			instrument TEXT NOT NULL,
			stage      TEXT NOT NULL,
			kind       TEXT,
			detail     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_run ON instrument_issues(run)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO runs
		(id, run_id, started_at, finished_at, status, error_kind, error_message,
		 instruments, fetched, normalized_rows, forecast_rows, charts, data_file)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID.String(), rec.RunID, rec.StartedAt.Unix(), rec.FinishedAt.Unix(),
		rec.Status, rec.ErrorKind, rec.ErrorMessage,
		rec.Instruments, rec.Fetched, rec.NormalizedRows, rec.ForecastRows, rec.Charts,
		rec.DataFile,
	)
	return err
}

func (r *SQLiteRecorder) RecordIssues(runID uuid.UUID, issues []model.InstrumentIssue) error {
	if len(issues) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	for _, is := range issues {
		if _, err := tx.Exec(`INSERT INTO instrument_issues
			(run, instrument, stage, kind, detail) VALUES (?,?,?,?,?)`,
			runID.String(), is.Instrument, string(is.Stage), string(is.Kind), is.Detail,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert issue %s: %w", is.Instrument, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) LastRun() (*RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		rec               RunRecord
		id                string
		started, finished int64
		kind, msg, file   sql.NullString
	)
	err := r.db.QueryRow(`SELECT id, run_id, started_at, finished_at, status, error_kind, error_message,
		instruments, fetched, normalized_rows, forecast_rows, charts, data_file
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(
		&id, &rec.RunID, &started, &finished, &rec.Status, &kind, &msg,
		&rec.Instruments, &rec.Fetched, &rec.NormalizedRows, &rec.ForecastRows, &rec.Charts, &file,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	rec.StartedAt = time.Unix(started, 0)
	rec.FinishedAt = time.Unix(finished, 0)
	rec.ErrorKind = kind.String
	rec.ErrorMessage = msg.String
	rec.DataFile = file.String
	return &rec, nil
}

// IssueCount returns how many instrument issues were stored for a run.
func (r *SQLiteRecorder) IssueCount(runID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM instrument_issues WHERE run = ?`, runID.String()).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
