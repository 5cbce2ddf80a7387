package blob

import (
	"context"
	"errors"
	"io"
)

// ErrForeignRef is returned by Delete when the reference was not produced by
// the backend it is handed to.
var ErrForeignRef = errors.New("reference does not belong to this backend")

// Backend stores media objects and hands back a public reference for each.
type Backend interface {
	// Put writes r under key and returns the reference clients use to fetch it.
	// size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object behind ref. Missing objects are not an error.
	Delete(ctx context.Context, ref string) error
	Name() string
}
