package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/p4solution/portfolio-backend/internal/cache"
	"github.com/p4solution/portfolio-backend/internal/media"
	"github.com/p4solution/portfolio-backend/internal/projects/domain"
)

const listKey = "projects:all"

// ErrMediaStore marks a write that failed because an upload could not be stored.
var ErrMediaStore = errors.New("file upload failed")

func projectKey(id int64) string { return fmt.Sprintf("project:%d", id) }

// Repository is the persistence surface the service needs.
type Repository interface {
	List(ctx context.Context) ([]domain.Project, error)
	Get(ctx context.Context, id int64) (*domain.Project, error)
	Create(ctx context.Context, f domain.Fields, images []string) (*domain.Project, error)
	Update(ctx context.Context, id int64, f domain.Fields, images []string) (*domain.Project, error)
	Delete(ctx context.Context, id int64) error
}

// MediaStore is the part of the media manager used by project writes.
type MediaStore interface {
	Validate(uploads []media.Upload) error
	StoreAll(ctx context.Context, uploads []media.Upload) ([]string, error)
	Purge(ctx context.Context, refs []string)
	PurgeAsync(refs []string)
}

type CreateInput struct {
	domain.Fields
	Uploads []media.Upload
}

type UpdateInput struct {
	domain.Fields
	// KeepImages lists the current references to retain, in any order. When
	// KeepImagesSet is false every current reference is retained.
	KeepImages    []string
	KeepImagesSet bool
	Uploads       []media.Upload
}

// ProjectService coordinates media storage and persistence for projects.
type ProjectService struct {
	repo  Repository
	media MediaStore
	cache cache.Cache
	log   *zap.Logger
}

func NewProjectService(repo Repository, m MediaStore, c cache.Cache, log *zap.Logger) *ProjectService {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProjectService{repo: repo, media: m, cache: c, log: log.Named("projects")}
}

// List returns every project, newest first.
func (s *ProjectService) List(ctx context.Context) ([]domain.Project, error) {
	var cached []domain.Project
	if s.cacheGet(ctx, listKey, &cached) {
		return cached, nil
	}
	gen, genOK := s.cacheGeneration(ctx, listKey)

	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if genOK {
		s.cacheSet(ctx, listKey, gen, items)
	}
	return items, nil
}

func (s *ProjectService) Get(ctx context.Context, id int64) (*domain.Project, error) {
	key := projectKey(id)
	var cached domain.Project
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}
	gen, genOK := s.cacheGeneration(ctx, key)

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if genOK {
		s.cacheSet(ctx, key, gen, p)
	}
	return p, nil
}

// Create stores the uploads, then inserts the row. A row is never written
// unless every upload was stored.
func (s *ProjectService) Create(ctx context.Context, in CreateInput) (*domain.Project, error) {
	fields, err := in.Fields.Normalize()
	if err != nil {
		return nil, err
	}
	if err := s.media.Validate(in.Uploads); err != nil {
		return nil, err
	}

	refs, err := s.media.StoreAll(ctx, in.Uploads)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMediaStore, err)
	}

	p, err := s.repo.Create(ctx, fields, refs)
	if err != nil {
		s.media.Purge(context.WithoutCancel(ctx), refs)
		return nil, err
	}

	s.invalidate(ctx, p.ID)
	s.log.Info("project created", zap.Int64("id", p.ID), zap.Int("images", len(p.Images)))
	return p, nil
}

// Update replaces the project's fields and splices its image list: kept
// references stay in their current order and new uploads are appended.
// References dropped from the list are detached but not purged: a concurrent
// update that read the row earlier may still commit them.
func (s *ProjectService) Update(ctx context.Context, id int64, in UpdateInput) (*domain.Project, error) {
	fields, err := in.Fields.Normalize()
	if err != nil {
		return nil, err
	}
	if err := s.media.Validate(in.Uploads); err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var removal []string
	if in.KeepImagesSet {
		removal = removedRefs(current.Images, in.KeepImages)
	}

	added, err := s.media.StoreAll(ctx, in.Uploads)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMediaStore, err)
	}

	images := media.Reconcile(current.Images, removal, added)
	p, err := s.repo.Update(ctx, id, fields, images)
	if err != nil {
		s.media.Purge(context.WithoutCancel(ctx), added)
		return nil, err
	}

	s.invalidate(ctx, id)
	s.log.Info("project updated",
		zap.Int64("id", id),
		zap.Int("added", len(added)),
		zap.Int("detached", len(removal)),
	)
	if len(removal) > 0 {
		s.log.Debug("media detached", zap.Int64("id", id), zap.Strings("refs", removal))
	}
	return p, nil
}

// Delete removes the row and then purges its media in the background. Purge
// failures never reach the caller.
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.media.PurgeAsync(current.Images)
	s.log.Info("project deleted", zap.Int64("id", id), zap.Int("images", len(current.Images)))
	return nil
}

// removedRefs returns the current references that are not in keep.
// References in keep that the project does not hold are ignored.
func removedRefs(current, keep []string) []string {
	kept := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		kept[k] = struct{}{}
	}
	var out []string
	for _, ref := range current {
		if _, ok := kept[ref]; !ok {
			out = append(out, ref)
		}
	}
	return out
}

func (s *ProjectService) cacheGet(ctx context.Context, key string, dst any) bool {
	found, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

// cacheGeneration reports the key's generation before a source read. When it
// cannot be read the result must not be cached.
func (s *ProjectService) cacheGeneration(ctx context.Context, key string) (int64, bool) {
	gen, err := s.cache.Generation(ctx, key)
	if err != nil {
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	return gen, true
}

func (s *ProjectService) cacheSet(ctx context.Context, key string, gen int64, v any) {
	if _, err := s.cache.SetIfGeneration(ctx, key, gen, v); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidate runs after a commit, so it ignores request cancellation.
func (s *ProjectService) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), listKey, projectKey(id)); err != nil {
		s.log.Warn("cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
}
