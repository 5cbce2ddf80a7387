package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/p4solution/portfolio-backend/internal/storage/blob"
)

const sniffLen = 3072

// Upload is one file received from a client. Size is -1 when unknown.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type Options struct {
	Folder       string
	MaxBytes     int64
	MaxFiles     int
	PurgeTimeout time.Duration
}

// Manager turns uploads into stored references and removes references that a
// project no longer needs.
type Manager struct {
	backend blob.Backend
	log     *zap.Logger
	opt     Options

	purges sync.WaitGroup
	newID  func() string
}

func NewManager(backend blob.Backend, log *zap.Logger, opt Options) *Manager {
	if opt.PurgeTimeout <= 0 {
		opt.PurgeTimeout = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		backend: backend,
		log:     log.Named("media"),
		opt:     opt,
		newID:   uuid.NewString,
	}
}

// Validate checks a batch before anything is written.
func (m *Manager) Validate(uploads []Upload) error {
	if m.opt.MaxFiles > 0 && len(uploads) > m.opt.MaxFiles {
		return fmt.Errorf("%w: %d files, at most %d allowed", ErrTooManyFiles, len(uploads), m.opt.MaxFiles)
	}
	for _, u := range uploads {
		if err := m.check(u); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) check(u Upload) error {
	if _, err := Classify(u.Filename); err != nil {
		return fmt.Errorf("%w: %q (accepted: %s)", err, u.Filename, strings.Join(Extensions(), " "))
	}
	if m.opt.MaxBytes > 0 && u.Size > m.opt.MaxBytes {
		return fmt.Errorf("%w: %q is %d bytes, limit %d", ErrPayloadTooLarge, u.Filename, u.Size, m.opt.MaxBytes)
	}
	return nil
}

// Store writes one upload and returns its reference.
func (m *Manager) Store(ctx context.Context, u Upload) (string, error) {
	if err := m.check(u); err != nil {
		return "", err
	}
	kind, _ := Classify(u.Filename)
	ext := strings.ToLower(filepath.Ext(u.Filename))
	key := path.Join(m.opt.Folder, string(kind)+"s", m.newID()+ext)

	src := u.Body
	var capped *capReader
	if m.opt.MaxBytes > 0 {
		capped = &capReader{r: u.Body, left: m.opt.MaxBytes}
		src = capped
	}
	tooLarge := func() error {
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrPayloadTooLarge, u.Filename, m.opt.MaxBytes)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if capped != nil && capped.over {
		return "", tooLarge()
	}
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("read upload %q: %w", u.Filename, err)
	}
	head = head[:n]
	body := io.MultiReader(bytes.NewReader(head), src)

	ref, err := m.backend.Put(ctx, key, body, u.Size, contentType(kind, ext, head))
	if capped != nil && capped.over {
		if err == nil {
			m.Purge(context.WithoutCancel(ctx), []string{ref})
		}
		return "", tooLarge()
	}
	if err != nil {
		return "", fmt.Errorf("store %q on %s: %w", u.Filename, m.backend.Name(), err)
	}

	m.log.Debug("media stored", zap.String("ref", ref), zap.String("kind", string(kind)), zap.Int64("size", u.Size))
	return ref, nil
}

// StoreAll stores every upload in parallel and returns references in upload
// order. On any failure nothing from the batch is left behind.
func (m *Manager) StoreAll(ctx context.Context, uploads []Upload) ([]string, error) {
	if err := m.Validate(uploads); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return []string{}, nil
	}

	refs := make([]string, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range uploads {
		g.Go(func() error {
			ref, err := m.Store(gctx, u)
			if err != nil {
				return err
			}
			refs[i] = ref
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		stored := make([]string, 0, len(refs))
		for _, r := range refs {
			if r != "" {
				stored = append(stored, r)
			}
		}
		m.Purge(context.WithoutCancel(ctx), stored)
		return nil, err
	}
	return refs, nil
}

// Reconcile returns existing minus removal, in order, followed by added.
func Reconcile(existing, removal, added []string) []string {
	drop := make(map[string]struct{}, len(removal))
	for _, r := range removal {
		drop[r] = struct{}{}
	}

	out := make([]string, 0, len(existing)+len(added))
	for _, r := range existing {
		if _, ok := drop[r]; !ok {
			out = append(out, r)
		}
	}
	return append(out, added...)
}

// Purge deletes every reference independently. Failures are logged only.
func (m *Manager) Purge(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := m.backend.Delete(ctx, ref); err != nil {
			m.log.Warn("media purge failed", zap.String("ref", ref), zap.Error(err))
			continue
		}
		m.log.Debug("media purged", zap.String("ref", ref))
	}
}

// PurgeAsync runs Purge in the background on a context detached from any
// request, bounded by the configured purge timeout.
func (m *Manager) PurgeAsync(refs []string) {
	if len(refs) == 0 {
		return
	}
	refs = append([]string(nil), refs...)

	m.purges.Add(1)
	go func() {
		defer m.purges.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.opt.PurgeTimeout)
		defer cancel()
		m.Purge(ctx, refs)
	}()
}

// Wait blocks until background purges finish or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.purges.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// capReader passes through at most left bytes and fails once the source has
// more, so bodies of unknown size still honour the per-file limit.
type capReader struct {
	r    io.Reader
	left int64
	over bool
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.over {
		return 0, ErrPayloadTooLarge
	}
	if c.left <= 0 {
		var one [1]byte
		n, err := c.r.Read(one[:])
		if n > 0 {
			c.over = true
			return 0, ErrPayloadTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > c.left {
		p = p[:c.left]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	return n, err
}

func contentType(kind Kind, ext string, head []byte) string {
	if len(head) > 0 {
		mt := mimetype.Detect(head).String()
		if strings.HasPrefix(mt, string(kind)+"/") {
			return mt
		}
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
