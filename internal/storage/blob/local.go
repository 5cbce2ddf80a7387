package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PublicPrefix is the URL path under which local uploads are served.
const PublicPrefix = "/uploads/"

const tempPattern = ".tmp-*"

// Local stores objects on the local filesystem below root.
type Local struct {
	root    string
	baseURL string
}

func NewLocal(root, publicBaseURL string) (*Local, error) {
	if root == "" {
		root = "uploads"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &Local{
		root:    abs,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (l *Local) Name() string { return "local" }

// Root is the directory served under PublicPrefix.
func (l *Local) Root() string { return l.root }

// Put writes to a temp file in the target directory and renames it into place,
// so a reader never observes a partially written object.
func (l *Local) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := l.pathFor(key)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return "", fmt.Errorf("write file: %w", err)
	}
	if size >= 0 && n != size {
		cleanup()
		return "", fmt.Errorf("write file: short write (%d of %d bytes)", n, size)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename file: %w", err)
	}

	return l.baseURL + PublicPrefix + filepath.ToSlash(key), nil
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, ok := l.keyFor(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrForeignRef, ref)
	}
	path, err := l.pathFor(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// SweepTemp removes temp files abandoned by interrupted writes that are older
// than maxAge. It returns the number of files removed.
func (l *Local) SweepTemp(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func (l *Local) keyFor(ref string) (string, bool) {
	rest := ref
	if l.baseURL != "" {
		rest = strings.TrimPrefix(ref, l.baseURL)
	}
	key, ok := strings.CutPrefix(rest, PublicPrefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// pathFor maps a key to a path inside root, refusing keys that escape it.
func (l *Local) pathFor(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrForeignRef)
	}
	path := filepath.Join(l.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes upload dir", ErrForeignRef, key)
	}
	return path, nil
}
