// Package sqliteindex records persisted documents and download outcomes in SQLite.
package sqliteindex

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"effectharvest/internal/core/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// gooseMu guards goose's package-level configuration.
var gooseMu sync.Mutex

// Store manages the record index.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the index database and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate index: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RecordDocument stores rec and returns its row ID.
func (s *Store) RecordDocument(ctx context.Context, rec domain.DocumentRecord) (int64, error) {
	created := rec.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (run_id, keyword, kind, path, item_count, partial, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Keyword,
		string(rec.Kind),
		rec.Path,
		rec.ItemCount,
		boolToInt(rec.Partial),
		created.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

const documentColumns = `id, run_id, keyword, kind, path, item_count, partial, created_at`

// LatestDocument returns the newest document of kind for keyword, or nil.
func (s *Store) LatestDocument(ctx context.Context, keyword string, kind domain.DocumentKind) (*domain.DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents
         WHERE keyword = ? AND kind = ?
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		keyword, string(kind),
	)
	rec, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest document for %q: %w", keyword, err)
	}
	return rec, nil
}

// ListDocuments returns documents newest first. An empty keyword lists all.
func (s *Store) ListDocuments(ctx context.Context, keyword string, limit int) ([]domain.DocumentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []any{}
	if keyword != "" {
		query += ` WHERE keyword = ?`
		args = append(args, keyword)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentRecord
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Keywords lists every keyword that has a document of kind, alphabetically.
func (s *Store) Keywords(ctx context.Context, kind domain.DocumentKind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT keyword FROM documents WHERE kind = ? ORDER BY keyword`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}

// RecordOutcomes stores one row per outcome in a single transaction.
func (s *Store) RecordOutcomes(ctx context.Context, runID, keyword string, outcomes []domain.DownloadOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outcomes tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO downloads (run_id, keyword, source_item_id, video_url, local_path, status, bytes, error, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	stamp := s.now().UTC().Format(timeLayout)
	for _, o := range outcomes {
		if _, err := stmt.ExecContext(ctx,
			runID,
			keyword,
			o.Descriptor.SourceItemID,
			o.Descriptor.VideoURL,
			nullableString(o.LocalPath),
			string(o.Status),
			o.Bytes,
			nullableString(o.ErrorMessage()),
			stamp,
		); err != nil {
			return fmt.Errorf("insert outcome: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outcomes: %w", err)
	}
	return nil
}

// CountOutcomes returns how many outcomes of status were recorded for runID.
func (s *Store) CountOutcomes(ctx context.Context, runID string, status domain.OutcomeStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM downloads WHERE run_id = ? AND status = ?`, runID, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.DocumentRecord, error) {
	var (
		rec     domain.DocumentRecord
		kind    string
		partial int
		created string
	)
	if err := row.Scan(&rec.ID, &rec.RunID, &rec.Keyword, &kind, &rec.Path, &rec.ItemCount, &partial, &created); err != nil {
		return nil, err
	}
	rec.Kind = domain.DocumentKind(kind)
	rec.Partial = partial != 0
	if ts, err := time.Parse(timeLayout, created); err == nil {
		rec.CreatedAt = ts
	}
	return &rec, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
