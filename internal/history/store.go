package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/handiism/tubealbum/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// timeLayout has fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrSchemaMismatch indicates a database written by another schema version.
	ErrSchemaMismatch = errors.New("schema version mismatch")

	// ErrRunNotFound is returned when no run matches an id or id prefix.
	ErrRunNotFound = errors.New("run not found")
)

// Run summarizes one album download.
type Run struct {
	ID          string
	PlaylistURL string
	Artist      string
	Album       string
	OutputDir   string
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       int
	Succeeded   int
	Failed      int

	// FatalError is set when the run stopped before items were processed.
	FatalError string
}

// Item is the persisted outcome of one playlist item.
type Item struct {
	Position int
	ItemID   string
	URL      string
	Status   string
	Stage    string
	Title    string
	Path     string
	Reason   string
	Elapsed  time.Duration
}

// Store keeps the run ledger in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
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

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
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
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
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
	return tx.Commit()
}

// RecordRun stores run together with its item outcomes and returns the run
// id. An empty run.ID is replaced with a new UUID.
func (s *Store) RecordRun(ctx context.Context, run Run, outcomes []model.ItemOutcome) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, playlist_url, artist, album, output_dir, started_at, finished_at, total, succeeded, failed, fatal_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.PlaylistURL, run.Artist, run.Album, run.OutputDir,
		formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Total, run.Succeeded, run.Failed, run.FatalError,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_items
		(run_id, position, item_id, url, status, stage, title, path, reason, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare item insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		_, err := stmt.ExecContext(ctx,
			run.ID, o.Ref.Index, o.Ref.ID, o.Ref.URL, o.Status.String(), string(o.Stage),
			o.Title, o.Path, o.Reason(), o.Elapsed.Milliseconds(),
		)
		if err != nil {
			return "", fmt.Errorf("insert item %s: %w", o.Ref, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, playlist_url, artist, album, output_dir, started_at, finished_at,
		total, succeeded, failed, fatal_error FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FindRun returns the run whose id equals or starts with idPrefix.
// An ambiguous prefix is an error.
func (s *Store) FindRun(ctx context.Context, idPrefix string) (Run, error) {
	idPrefix = strings.TrimSpace(idPrefix)
	if idPrefix == "" {
		return Run{}, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, playlist_url, artist, album, output_dir, started_at, finished_at,
		total, succeeded, failed, fatal_error FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`,
		escapeLike(idPrefix)+"%")
	if err != nil {
		return Run{}, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, idPrefix)
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", idPrefix)
	}
}

// Items returns the stored outcomes of a run in playlist order.
func (s *Store) Items(ctx context.Context, runID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT position, item_id, url, status, stage, title, path, reason, elapsed_ms
		FROM run_items WHERE run_id = ? ORDER BY position, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			item      Item
			elapsedMS int64
		)
		if err := rows.Scan(&item.Position, &item.ItemID, &item.URL, &item.Status, &item.Stage,
			&item.Title, &item.Path, &item.Reason, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		items = append(items, item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run                 Run
		started, finished string
	)
	if err := row.Scan(&run.ID, &run.PlaylistURL, &run.Artist, &run.Album, &run.OutputDir,
		&started, &finished, &run.Total, &run.Succeeded, &run.Failed, &run.FatalError); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return run, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
