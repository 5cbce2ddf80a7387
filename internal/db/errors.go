package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrQuery               = errors.New("query failed")
)

// Error carries the backend error together with its classification, so both
// errors.Is(err, ErrQuery) and errors.As(err, &pqErr) keep working.
type Error struct {
	Op      string
	Dialect Dialect
	Kind    error
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Dialect, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func wrap(op string, dialect Dialect, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}
	return &Error{Op: op, Dialect: dialect, Kind: classify(err), Err: err}
}

func classify(err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return ErrStorageUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrStorageUnavailable
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "23":
			return ErrConstraintViolation
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53",
			pqErr.Code == "57P01", pqErr.Code == "57P02", pqErr.Code == "57P03":
			return ErrStorageUnavailable
		}
		return ErrQuery
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return ErrConstraintViolation
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_NOTADB:
			return ErrStorageUnavailable
		}
		return ErrQuery
	}

	// database/sql does not export its closed-pool error.
	if strings.Contains(err.Error(), "database is closed") {
		return ErrStorageUnavailable
	}

	return ErrQuery
}
