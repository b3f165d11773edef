package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases must be deleted and re-created.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const runColumns = `id, run_id, goals_json, status, error_message, artifact_count, created_at, updated_at`

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin records a new pending run.
func (s *Store) Begin(ctx context.Context, runID string, goals []string) (*Run, error) {
	goalsJSON, err := json.Marshal(goals)
	if err != nil {
		return nil, fmt.Errorf("marshal goals: %w", err)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs (run_id, goals_json, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		runID,
		string(goalsJSON),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetByRunID(ctx, runID)
}

// MarkRunning transitions a run to the running status.
func (s *Store) MarkRunning(ctx context.Context, runID string) error {
	return s.setStatus(ctx, runID, StatusRunning, "", -1)
}

// Complete marks a run finished and records its final artifact count.
func (s *Store) Complete(ctx context.Context, runID string, artifactCount int) error {
	return s.setStatus(ctx, runID, StatusCompleted, "", artifactCount)
}

// Fail marks a run failed with its error message.
func (s *Store) Fail(ctx context.Context, runID, message string) error {
	return s.setStatus(ctx, runID, StatusFailed, message, -1)
}

func (s *Store) setStatus(ctx context.Context, runID string, status Status, message string, artifactCount int) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	var res sql.Result
	var err error
	if artifactCount >= 0 {
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE runs SET status = ?, error_message = ?, artifact_count = ?, updated_at = ? WHERE run_id = ?`,
			status, nullableString(message), artifactCount, timestamp, runID,
		)
	} else {
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE runs SET status = ?, error_message = ?, updated_at = ? WHERE run_id = ?`,
			status, nullableString(message), timestamp, runID,
		)
	}
	if err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetByRunID fetches a run by its run identifier, or (nil, nil) when absent.
func (s *Store) GetByRunID(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns runs newest-first, up to limit. A non-positive limit returns
// everything.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the ledger database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		goalsJSON  string
		errMessage sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&run.ID, &run.RunID, &goalsJSON, &run.Status, &errMessage, &run.ArtifactCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(goalsJSON), &run.Goals); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	run.ErrorMessage = errMessage.String

	var err error
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
