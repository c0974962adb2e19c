package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/resilience"
)

const schemaLockID int64 = 2026101901

type CatalogRepository struct {
	db   *sql.DB
	exec *resilience.Executor
}

func NewCatalogRepository(db *sql.DB, exec *resilience.Executor) *CatalogRepository {
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultPolicy())
	}
	return &CatalogRepository{db: db, exec: exec}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "sql open", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "db ping", err)
	}
	return db, nil
}

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	err := r.exec.Execute(ctx, "catalog.ensure_schema", r.ensureSchema, classifyPostgresError)
	if err != nil {
		return domain.WrapError(domain.ErrStoreWrite, "ensure catalog schema", err)
	}
	return nil
}

func (r *CatalogRepository) ensureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across catalog runs and api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS books (
	seq BIGINT GENERATED ALWAYS AS IDENTITY,
	filepath TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	file_type TEXT NOT NULL DEFAULT '',
	toc TEXT NOT NULL DEFAULT '',
	preface TEXT NOT NULL DEFAULT '',
	cataloged_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_books_category ON books(category);
CREATE INDEX IF NOT EXISTS idx_books_seq ON books(seq);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ListKnownPaths returns an empty set when the table has not been created yet.
func (r *CatalogRepository) ListKnownPaths(ctx context.Context) (map[string]struct{}, error) {
	known, err := resilience.Call(ctx, r.exec, "catalog.list_known_paths", r.listKnownPaths, classifyPostgresError)
	if err != nil {
		if isUndefinedTable(err) {
			return map[string]struct{}{}, nil
		}
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "list known paths", err)
	}
	return known, nil
}

func (r *CatalogRepository) listKnownPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT filepath FROM books`)
	if err != nil {
		return nil, fmt.Errorf("query known paths: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan known path: %w", err)
		}
		known[path] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate known paths: %w", err)
	}
	return known, nil
}

// AppendRecords inserts the whole batch in one transaction. Existing paths are left
// untouched by ON CONFLICT DO NOTHING.
func (r *CatalogRepository) AppendRecords(ctx context.Context, records []domain.BookRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := r.exec.Execute(ctx, "catalog.append_records", func(ctx context.Context) error {
		return r.appendRecords(ctx, records)
	}, classifyPostgresError)
	if err != nil {
		return domain.WrapError(domain.ErrStoreWrite, "append records", err)
	}
	return nil
}

func (r *CatalogRepository) appendRecords(ctx context.Context, records []domain.BookRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
INSERT INTO books (filepath, title, author, category, file_type, toc, preface, cataloged_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (filepath) DO NOTHING
`,
			rec.Filepath, rec.Title, rec.Author, rec.Category, rec.FileType, rec.TOC, rec.Preface, now,
		)
		if err != nil {
			return fmt.Errorf("insert book %s: %w", rec.Filepath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

// ListRecords returns books in catalog order. A non-positive limit returns every match.
func (r *CatalogRepository) ListRecords(ctx context.Context, filter domain.BookFilter) ([]domain.BookRecord, error) {
	limit := sql.NullInt64{Int64: int64(filter.Limit), Valid: filter.Limit > 0}
	records, err := resilience.Call(ctx, r.exec, "catalog.list_records", func(ctx context.Context) ([]domain.BookRecord, error) {
		rows, err := r.db.QueryContext(ctx, `
SELECT filepath, title, author, category, file_type, toc, preface
FROM books
WHERE ($1 = '' OR category = $1)
ORDER BY seq
LIMIT $2 OFFSET $3
`, filter.Category, limit, filter.Offset)
		if err != nil {
			return nil, fmt.Errorf("query books: %w", err)
		}
		defer rows.Close()

		out := make([]domain.BookRecord, 0)
		for rows.Next() {
			rec, err := scanBook(rows)
			if err != nil {
				return nil, fmt.Errorf("scan book: %w", err)
			}
			out = append(out, rec)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate books: %w", err)
		}
		return out, nil
	}, classifyPostgresError)
	if err != nil {
		if isUndefinedTable(err) {
			return []domain.BookRecord{}, nil
		}
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "list books", err)
	}
	return records, nil
}

func (r *CatalogRepository) GetByPath(ctx context.Context, path string) (*domain.BookRecord, error) {
	rec, err := resilience.Call(ctx, r.exec, "catalog.get_book", func(ctx context.Context) (domain.BookRecord, error) {
		row := r.db.QueryRowContext(ctx, `
SELECT filepath, title, author, category, file_type, toc, preface
FROM books
WHERE filepath = $1
`, path)
		return scanBook(row)
	}, classifyPostgresError)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
			return nil, domain.WrapError(domain.ErrBookNotFound, "get book by path", fmt.Errorf("filepath %q", path))
		}
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "get book by path", err)
	}
	return &rec, nil
}

type bookScanner interface {
	Scan(dest ...interface{}) error
}

func scanBook(row bookScanner) (domain.BookRecord, error) {
	var rec domain.BookRecord
	err := row.Scan(
		&rec.Filepath,
		&rec.Title,
		&rec.Author,
		&rec.Category,
		&rec.FileType,
		&rec.TOC,
		&rec.Preface,
	)
	if err != nil {
		return domain.BookRecord{}, err
	}
	return rec, nil
}

func classifyPostgresError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
		return resilience.Ignored
	}
	if errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return resilience.Transient
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return resilience.Transient
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01":
			return resilience.Transient
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return resilience.Transient
		}
	}
	return resilience.Permanent
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
