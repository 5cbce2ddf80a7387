package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteAdapter runs against an embedded SQLite file (or ":memory:").
type SQLiteAdapter struct {
	db *sqlx.DB
}

// OpenSQLite opens the database at opt.SQLitePath. SQLite allows a single
// writer, so the pool is pinned to one connection.
func OpenSQLite(ctx context.Context, opt Options) (*SQLiteAdapter, error) {
	path := opt.SQLitePath
	if path == "" {
		path = "database.db"
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, wrap("open", DialectSQLite, err)
	}
	db.SetMaxOpenConns(1)

	if opt.PingTO == 0 {
		opt.PingTO = defaultPingTO
	}
	if err := pingWithTimeout(ctx, db, opt.PingTO); err != nil {
		db.Close()
		return nil, &Error{Op: "ping", Dialect: DialectSQLite, Kind: ErrStorageUnavailable, Err: err}
	}

	if path != ":memory:" {
		// Enable WAL mode for better concurrent read performance.
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", wrap("open", DialectSQLite, err))
		}
	}

	return &SQLiteAdapter{db: db}, nil
}

func (a *SQLiteAdapter) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, wrap("execute", DialectSQLite, err)
	}

	out := Result{}
	if out.AffectedRows, err = res.RowsAffected(); err != nil {
		return Result{}, wrap("execute", DialectSQLite, err)
	}
	if isInsert(query) {
		if out.InsertedID, err = res.LastInsertId(); err != nil {
			return Result{}, wrap("execute", DialectSQLite, err)
		}
		out.HasInsertedID = true
	}
	return out, nil
}

func (a *SQLiteAdapter) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	return fetchOne(ctx, a.db, DialectSQLite, query, args)
}

func (a *SQLiteAdapter) FetchMany(ctx context.Context, query string, args ...any) ([]Row, error) {
	return fetchMany(ctx, a.db, DialectSQLite, query, args)
}

func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return wrap("ping", DialectSQLite, err)
	}
	return nil
}

func (a *SQLiteAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return wrap("migrate", DialectSQLite, err)
		}
	}
	return nil
}

func (a *SQLiteAdapter) Dialect() Dialect { return DialectSQLite }

func (a *SQLiteAdapter) Close() error { return a.db.Close() }
