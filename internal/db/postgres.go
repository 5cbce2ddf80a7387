package db

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const defaultPingTO = 3 * time.Second

// PostgresAdapter runs against a client-server PostgreSQL database.
type PostgresAdapter struct {
	db *sqlx.DB
}

func OpenPostgres(ctx context.Context, opt Options) (*PostgresAdapter, error) {
	db, err := sqlx.Open("postgres", opt.URL)
	if err != nil {
		return nil, wrap("open", DialectPostgres, err)
	}

	if opt.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opt.MaxOpenConns)
	}
	if opt.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opt.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if opt.PingTO == 0 {
		opt.PingTO = defaultPingTO
	}
	// Fail fast
	if err := pingWithTimeout(ctx, db, opt.PingTO); err != nil {
		db.Close()
		return nil, &Error{Op: "ping", Dialect: DialectPostgres, Kind: ErrStorageUnavailable, Err: err}
	}

	return &PostgresAdapter{db: db}, nil
}

// NewPostgresAdapter wraps an already opened pool.
func NewPostgresAdapter(db *sqlx.DB) *PostgresAdapter {
	return &PostgresAdapter{db: db}
}

// Execute rebinds "?" to "$n" and, for INSERT statements, appends
// RETURNING id because lib/pq does not implement LastInsertId.
func (a *PostgresAdapter) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	q := a.rebind(query)

	if isInsert(q) {
		q = withReturningID(q)
		var id int64
		if err := a.db.QueryRowxContext(ctx, q, args...).Scan(&id); err != nil {
			return Result{}, wrap("execute", DialectPostgres, err)
		}
		return Result{InsertedID: id, HasInsertedID: true, AffectedRows: 1}, nil
	}

	res, err := a.db.ExecContext(ctx, q, args...)
	if err != nil {
		return Result{}, wrap("execute", DialectPostgres, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Result{}, wrap("execute", DialectPostgres, err)
	}
	return Result{AffectedRows: n}, nil
}

func (a *PostgresAdapter) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	return fetchOne(ctx, a.db, DialectPostgres, a.rebind(query), args)
}

func (a *PostgresAdapter) FetchMany(ctx context.Context, query string, args ...any) ([]Row, error) {
	return fetchMany(ctx, a.db, DialectPostgres, a.rebind(query), args)
}

func (a *PostgresAdapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return wrap("ping", DialectPostgres, err)
	}
	return nil
}

func (a *PostgresAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return wrap("migrate", DialectPostgres, err)
		}
	}
	return nil
}

func (a *PostgresAdapter) Dialect() Dialect { return DialectPostgres }

func (a *PostgresAdapter) Close() error { return a.db.Close() }

func (a *PostgresAdapter) rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

func withReturningID(query string) string {
	q := strings.TrimRight(strings.TrimSpace(query), ";")
	q = strings.TrimSpace(q)
	for _, word := range strings.Fields(strings.ToLower(q)) {
		if word == "returning" {
			return q
		}
	}
	return q + " RETURNING id"
}
