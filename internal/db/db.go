package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Adapter is the backend-agnostic query surface. Queries are written once with
// "?" positional placeholders; each implementation rewrites them for its engine
// and normalizes result shapes, so callers never branch on the dialect.
type Adapter interface {
	// Execute runs an INSERT, UPDATE or DELETE. For INSERT statements the
	// generated id is reported in Result.InsertedID.
	Execute(ctx context.Context, query string, args ...any) (Result, error)
	// FetchOne returns the first matching row, or a nil Row when nothing matched.
	FetchOne(ctx context.Context, query string, args ...any) (Row, error)
	// FetchMany returns all matching rows in order. Never nil.
	FetchMany(ctx context.Context, query string, args ...any) ([]Row, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Dialect() Dialect
	Close() error
}

type Result struct {
	InsertedID    int64
	HasInsertedID bool
	AffectedRows  int64
}

// Row is a single result row keyed by canonical column name.
type Row map[string]any

type Options struct {
	Driver       string
	SQLitePath   string
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	PingTO       time.Duration
}

// Open selects and connects the adapter named by opt.Driver.
func Open(ctx context.Context, opt Options) (Adapter, error) {
	if opt.PingTO == 0 {
		opt.PingTO = defaultPingTO
	}

	switch Dialect(strings.ToLower(opt.Driver)) {
	case DialectSQLite, "":
		a, err := OpenSQLite(ctx, opt)
		if err != nil {
			return nil, err
		}
		return a, nil
	case DialectPostgres:
		a, err := OpenPostgres(ctx, opt)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opt.Driver)
	}
}

func pingWithTimeout(ctx context.Context, db *sqlx.DB, d time.Duration) error {
	pctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return db.PingContext(pctx)
}

func fetchOne(ctx context.Context, db *sqlx.DB, dialect Dialect, query string, args []any) (Row, error) {
	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("fetch one", dialect, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, wrap("fetch one", dialect, err)
		}
		return nil, nil
	}

	row, err := scanRow(rows)
	if err != nil {
		return nil, wrap("fetch one", dialect, err)
	}
	return row, nil
}

func fetchMany(ctx context.Context, db *sqlx.DB, dialect Dialect, query string, args []any) ([]Row, error) {
	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("fetch many", dialect, err)
	}
	defer rows.Close()

	out := make([]Row, 0, 16)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, wrap("fetch many", dialect, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("fetch many", dialect, err)
	}
	return out, nil
}

func scanRow(rows *sqlx.Rows) (Row, error) {
	raw := make(map[string]any)
	if err := rows.MapScan(raw); err != nil {
		return nil, err
	}

	row := make(Row, len(raw))
	for col, v := range raw {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[CanonicalColumn(col)] = v
	}
	return row, nil
}

func isInsert(query string) bool {
	q := strings.TrimSpace(query)
	return len(q) >= 6 && strings.EqualFold(q[:6], "insert")
}
