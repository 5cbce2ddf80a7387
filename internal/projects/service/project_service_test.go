package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/p4solution/portfolio-backend/internal/cache"
	"github.com/p4solution/portfolio-backend/internal/db"
	"github.com/p4solution/portfolio-backend/internal/media"
	"github.com/p4solution/portfolio-backend/internal/projects/domain"
	"github.com/p4solution/portfolio-backend/internal/projects/repository"
	"github.com/p4solution/portfolio-backend/internal/storage/blob/blobtest"
)

type fixture struct {
	svc     *ProjectService
	repo    *repository.ProjectRepository
	media   *media.Manager
	backend *blobtest.Memory
}

func setup(t *testing.T, c cache.Cache) *fixture {
	t.Helper()

	a, err := db.OpenSQLite(context.Background(), db.Options{SQLitePath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, a.Migrate(context.Background()))
	t.Cleanup(func() { _ = a.Close() })

	backend := blobtest.NewMemory()
	m := media.NewManager(backend, zap.NewNop(), media.Options{
		Folder:   "p4-solution-projects",
		MaxBytes: 1 << 20,
		MaxFiles: 10,
	})
	repo := repository.NewProjectRepository(a)

	return &fixture{
		svc:     NewProjectService(repo, m, c, zap.NewNop()),
		repo:    repo,
		media:   m,
		backend: backend,
	}
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.media.Wait(ctx))
}

func file(name, body string) media.Upload {
	return media.Upload{Filename: name, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestCreate_RiversideTower(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, CreateInput{
		Fields:  domain.Fields{Title: "  Riverside Tower ", Category: "Commercial"},
		Uploads: []media.Upload{file("a.jpg", "aaa"), file("b.jpg", "bbb")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Riverside Tower", p.Title)
	require.Len(t, p.Images, 2)
	assert.True(t, strings.HasSuffix(p.Images[0], ".jpg"))

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Images, got.Images)
	assert.Len(t, f.backend.Refs(), 2)

	other, err := f.svc.Create(ctx, CreateInput{Fields: domain.Fields{Title: "Harbour"}})
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, other.ID)
	assert.Equal(t, []string{}, other.Images)
}

func TestCreate_Validation(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{Fields: domain.Fields{Title: "   "}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Create(ctx, CreateInput{
		Fields:  domain.Fields{Title: "x"},
		Uploads: []media.Upload{file("a.jpg", "1"), file("brochure.pdf", "2")},
	})
	assert.ErrorIs(t, err, media.ErrUnsupportedMediaType)

	many := make([]media.Upload, 11)
	for i := range many {
		many[i] = file("a.jpg", "x")
	}
	_, err = f.svc.Create(ctx, CreateInput{Fields: domain.Fields{Title: "x"}, Uploads: many})
	assert.ErrorIs(t, err, media.ErrTooManyFiles)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.backend.Refs())
}

func TestCreate_FailedUploadWritesNoRow(t *testing.T) {
	f := setup(t, nil)
	f.backend.FailBody = "broken"

	_, err := f.svc.Create(context.Background(), CreateInput{
		Fields:  domain.Fields{Title: "Riverside Tower"},
		Uploads: []media.Upload{file("a.jpg", "ok"), file("b.jpg", "broken")},
	})
	require.Error(t, err)

	list, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.backend.Refs())
}

type failingCreateRepo struct {
	*repository.ProjectRepository
}

func (failingCreateRepo) Create(context.Context, domain.Fields, []string) (*domain.Project, error) {
	return nil, db.ErrStorageUnavailable
}

func TestCreate_InsertFailurePurgesStoredMedia(t *testing.T) {
	f := setup(t, nil)
	svc := NewProjectService(failingCreateRepo{f.repo}, f.media, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateInput{
		Fields:  domain.Fields{Title: "x"},
		Uploads: []media.Upload{file("a.jpg", "1")},
	})
	assert.ErrorIs(t, err, db.ErrStorageUnavailable)
	assert.Empty(t, f.backend.Refs())
	assert.Len(t, f.backend.Deleted(), 1)
}

func TestUpdate_KeepOneAddOne(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, CreateInput{
		Fields:  domain.Fields{Title: "Riverside Tower"},
		Uploads: []media.Upload{file("a.jpg", "a"), file("b.jpg", "b")},
	})
	require.NoError(t, err)
	a, b := p.Images[0], p.Images[1]

	updated, err := f.svc.Update(ctx, p.ID, UpdateInput{
		Fields:        domain.Fields{Title: "Riverside Tower", Location: "Leeds"},
		KeepImages:    []string{b},
		KeepImagesSet: true,
		Uploads:       []media.Upload{file("c.jpg", "c")},
	})
	require.NoError(t, err)
	require.Len(t, updated.Images, 2)
	assert.Equal(t, b, updated.Images[0])
	assert.NotEqual(t, a, updated.Images[1])
	assert.Equal(t, "Leeds", updated.Location)

	f.drain(t)
	assert.True(t, f.backend.Has(a), "detached media is left in place")
	assert.Empty(t, f.backend.Deleted())
	assert.True(t, f.backend.Has(b))
	assert.True(t, f.backend.Has(updated.Images[1]))
}

func TestUpdate_WithoutKeepListRetainsAll(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, CreateInput{
		Fields:  domain.Fields{Title: "t"},
		Uploads: []media.Upload{file("a.jpg", "a")},
	})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, p.ID, UpdateInput{
		Fields:  domain.Fields{Title: "t2"},
		Uploads: []media.Upload{file("b.mp4", "b")},
	})
	require.NoError(t, err)
	require.Len(t, updated.Images, 2)
	assert.Equal(t, p.Images[0], updated.Images[0])
	assert.Contains(t, updated.Images[1], "/videos/")

	f.drain(t)
	assert.Empty(t, f.backend.Deleted())
}

func TestUpdate_UnknownKeepEntriesIgnored(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, CreateInput{
		Fields:  domain.Fields{Title: "t"},
		Uploads: []media.Upload{file("a.jpg", "a")},
	})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, p.ID, UpdateInput{
		Fields:        domain.Fields{Title: "t"},
		KeepImages:    []string{p.Images[0], "https://elsewhere/x.jpg"},
		KeepImagesSet: true,
	})
	require.NoError(t, err)
	assert.Equal(t, p.Images, updated.Images)
}

func TestUpdate_FailedUploadLeavesRowUnchanged(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, CreateInput{
		Fields:  domain.Fields{Title: "t"},
		Uploads: []media.Upload{file("a.jpg", "a"), file("b.jpg", "b")},
	})
	require.NoError(t, err)

	f.backend.FailBody = "broken"
	_, err = f.svc.Update(ctx, p.ID, UpdateInput{
		Fields:        domain.Fields{Title: "changed"},
		KeepImages:    []string{},
		KeepImagesSet: true,
		Uploads:       []media.Upload{file("c.jpg", "broken")},
	})
	require.Error(t, err)

	f.drain(t)
	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
	assert.Equal(t, p.Images, got.Images)
	assert.True(t, f.backend.Has(p.Images[0]))
	assert.True(t, f.backend.Has(p.Images[1]))
}

func TestUpdate_NotFound(t *testing.T) {
	f := setup(t, nil)
	_, err := f.svc.Update(context.Background(), 99, UpdateInput{
		Fields:  domain.Fields{Title: "t"},
		Uploads: []media.Upload{file("a.jpg", "a")},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.backend.Refs())
}

func TestDelete_UnreachableMediaBackend(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, CreateInput{
		Fields:  domain.Fields{Title: "t"},
		Uploads: []media.Upload{file("a.jpg", "a"), file("b.jpg", "b")},
	})
	require.NoError(t, err)

	f.backend.FailDelete = true
	require.NoError(t, f.svc.Delete(ctx, p.ID))

	_, err = f.svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.drain(t)
	assert.ElementsMatch(t, p.Images, f.backend.Deleted())

	assert.ErrorIs(t, f.svc.Delete(ctx, p.ID), domain.ErrNotFound)
}

func TestCache_InvalidatedOnWrite(t *testing.T) {
	c, mr := newMiniredisCache(t)
	f := setup(t, c)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, CreateInput{Fields: domain.Fields{Title: "v1"}})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("portfolio:project:1"))
	assert.True(t, mr.Exists("portfolio:projects:all"))

	_, err = f.svc.Update(ctx, p.ID, UpdateInput{Fields: domain.Fields{Title: "v2"}})
	require.NoError(t, err)
	assert.False(t, mr.Exists("portfolio:project:1"))
	assert.False(t, mr.Exists("portfolio:projects:all"))

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
}

// parkingRepo holds the first Get between its database read and its return
// until release is closed.
type parkingRepo struct {
	*repository.ProjectRepository
	once    sync.Once
	parked  chan struct{}
	release chan struct{}
}

func newParkingRepo(r *repository.ProjectRepository) *parkingRepo {
	return &parkingRepo{ProjectRepository: r, parked: make(chan struct{}), release: make(chan struct{})}
}

func (r *parkingRepo) Get(ctx context.Context, id int64) (*domain.Project, error) {
	p, err := r.ProjectRepository.Get(ctx, id)
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.parked)
		<-r.release
	}
	return p, err
}

func newMiniredisCache(t *testing.T) (cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return cache.NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute), mr
}

func TestCache_SlowReadCannotResurrectDeletedProject(t *testing.T) {
	c, mr := newMiniredisCache(t)
	f := setup(t, c)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, CreateInput{Fields: domain.Fields{Title: "Riverside Tower"}})
	require.NoError(t, err)

	repo := newParkingRepo(f.repo)
	svc := NewProjectService(repo, f.media, c, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Get(ctx, p.ID)
		done <- err
	}()
	<-repo.parked

	require.NoError(t, svc.Delete(ctx, p.ID))
	close(repo.release)
	require.NoError(t, <-done)

	assert.False(t, mr.Exists("portfolio:project:1"))
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCache_SlowListDoesNotHideNewProject(t *testing.T) {
	c, _ := newMiniredisCache(t)
	f := setup(t, c)
	ctx := context.Background()

	repo := &parkingList{ProjectRepository: f.repo, parked: make(chan struct{}), release: make(chan struct{})}
	svc := NewProjectService(repo, f.media, c, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := svc.List(ctx)
		done <- err
	}()
	<-repo.parked

	_, err := svc.Create(ctx, CreateInput{Fields: domain.Fields{Title: "Harbour"}})
	require.NoError(t, err)
	close(repo.release)
	require.NoError(t, <-done)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Harbour", list[0].Title)
}

type parkingList struct {
	*repository.ProjectRepository
	once    sync.Once
	parked  chan struct{}
	release chan struct{}
}

func (r *parkingList) List(ctx context.Context) ([]domain.Project, error) {
	items, err := r.ProjectRepository.List(ctx)
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.parked)
		<-r.release
	}
	return items, err
}

func TestUpdate_ConcurrentKeepNeverReferencesPurgedMedia(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, CreateInput{
		Fields:  domain.Fields{Title: "t"},
		Uploads: []media.Upload{file("x.jpg", "x")},
	})
	require.NoError(t, err)
	x := p.Images[0]

	repo := newParkingRepo(f.repo)
	svc := NewProjectService(repo, f.media, nil, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Update(ctx, p.ID, UpdateInput{
			Fields:        domain.Fields{Title: "keeps x"},
			KeepImages:    []string{x},
			KeepImagesSet: true,
		})
		done <- err
	}()
	<-repo.parked

	_, err = svc.Update(ctx, p.ID, UpdateInput{
		Fields:        domain.Fields{Title: "drops x"},
		KeepImages:    []string{},
		KeepImagesSet: true,
	})
	require.NoError(t, err)
	f.drain(t)

	close(repo.release)
	require.NoError(t, <-done)
	f.drain(t)

	got, err := f.repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{x}, got.Images)
	for _, ref := range got.Images {
		assert.True(t, f.backend.Has(ref), "row references missing object %s", ref)
	}
}

type brokenCache struct{ cache.Nop }

func (brokenCache) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("redis down")
}

func TestCache_FailureFallsBackToDatabase(t *testing.T) {
	f := setup(t, brokenCache{})
	ctx := context.Background()

	p, err := f.svc.Create(ctx, CreateInput{Fields: domain.Fields{Title: "t"}})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
}

func TestRemovedRefs(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, removedRefs([]string{"a", "b", "c"}, []string{"b", "zzz"}))
	assert.Nil(t, removedRefs([]string{"a"}, []string{"a"}))
}
