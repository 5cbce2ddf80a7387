package media

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/p4solution/portfolio-backend/internal/storage/blob/blobtest"
)

func upload(name, body string) Upload {
	return Upload{Filename: name, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func newTestManager(t *testing.T) (*Manager, *blobtest.Memory) {
	t.Helper()
	backend := blobtest.NewMemory()
	m := NewManager(backend, zap.NewNop(), Options{
		Folder:   "p4-solution-projects",
		MaxBytes: 1 << 20,
		MaxFiles: 10,
	})
	return m, backend
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"a.jpg", KindImage},
		{"a.JPEG", KindImage},
		{"b.png", KindImage},
		{"c.gif", KindImage},
		{"d.webp", KindImage},
		{"clip.mp4", KindVideo},
		{"clip.MOV", KindVideo},
		{"clip.avi", KindVideo},
		{"clip.webm", KindVideo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, _ := Classify(tt.name)
			assert.Equal(t, got, again)
		})
	}

	for _, name := range []string{"doc.pdf", "noext", "archive.tar.gz", "x.jpg.exe", ""} {
		_, err := Classify(name)
		assert.ErrorIs(t, err, ErrUnsupportedMediaType, name)
	}
}

func TestStore_KeyLayout(t *testing.T) {
	m, backend := newTestManager(t)
	m.newID = func() string { return "fixed" }

	ref, err := m.Store(context.Background(), upload("Cover.JPG", "img"))
	require.NoError(t, err)
	assert.Equal(t, "mem://p4-solution-projects/images/fixed.jpg", ref)
	assert.True(t, backend.Has(ref))

	ref, err = m.Store(context.Background(), upload("walk.mp4", "vid"))
	require.NoError(t, err)
	assert.Equal(t, "mem://p4-solution-projects/videos/fixed.mp4", ref)
}

func TestStore_RejectsBeforeWriting(t *testing.T) {
	m, backend := newTestManager(t)
	m.opt.MaxBytes = 4

	_, err := m.Store(context.Background(), upload("notes.txt", "hi"))
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)

	_, err = m.Store(context.Background(), upload("big.png", "too large"))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	assert.Empty(t, backend.Refs())
}

func TestStore_UnknownSizeStillCapped(t *testing.T) {
	m, backend := newTestManager(t)
	m.opt.MaxBytes = 4096
	unknown := func(name, body string) Upload {
		return Upload{Filename: name, Size: -1, Body: strings.NewReader(body)}
	}

	_, err := m.Store(context.Background(), unknown("big.png", strings.Repeat("x", 4097)))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	m.opt.MaxBytes = 4
	_, err = m.Store(context.Background(), unknown("small.png", "12345"))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Empty(t, backend.Refs())

	ref, err := m.Store(context.Background(), unknown("fits.png", "1234"))
	require.NoError(t, err)
	assert.True(t, backend.Has(ref))
}

func TestStoreAll_KeepsUploadOrder(t *testing.T) {
	m, backend := newTestManager(t)
	var n atomic.Int64
	m.newID = func() string { return string(rune('a' + n.Add(1) - 1)) }

	uploads := []Upload{upload("1.jpg", "one"), upload("2.png", "two"), upload("3.mp4", "three")}
	refs, err := m.StoreAll(context.Background(), uploads)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.True(t, strings.HasSuffix(refs[0], ".jpg"))
	assert.True(t, strings.HasSuffix(refs[1], ".png"))
	assert.True(t, strings.HasSuffix(refs[2], ".mp4"))
	assert.Len(t, backend.Refs(), 3)
}

func TestStoreAll_Empty(t *testing.T) {
	m, _ := newTestManager(t)
	refs, err := m.StoreAll(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, refs)
	assert.Empty(t, refs)
}

func TestStoreAll_FailureLeavesNothingBehind(t *testing.T) {
	m, backend := newTestManager(t)
	backend.FailBody = "broken"

	uploads := []Upload{upload("a.jpg", "fine"), upload("b.jpg", "broken"), upload("c.jpg", "also fine")}
	refs, err := m.StoreAll(context.Background(), uploads)
	require.Error(t, err)
	assert.ErrorIs(t, err, blobtest.ErrInjected)
	assert.Nil(t, refs)
	assert.Empty(t, backend.Refs())
}

func TestStoreAll_ValidatesWholeBatchFirst(t *testing.T) {
	m, backend := newTestManager(t)
	m.opt.MaxFiles = 2

	_, err := m.StoreAll(context.Background(), []Upload{upload("a.jpg", "1"), upload("b.jpg", "2"), upload("c.jpg", "3")})
	assert.ErrorIs(t, err, ErrTooManyFiles)

	_, err = m.StoreAll(context.Background(), []Upload{upload("a.jpg", "1"), upload("b.exe", "2")})
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)

	assert.Empty(t, backend.Refs())
	assert.Empty(t, backend.Deleted())
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		removal  []string
		added    []string
		want     []string
	}{
		{name: "keep one add one", existing: []string{"a.jpg", "b.jpg"}, removal: []string{"a.jpg"}, added: []string{"c.jpg"}, want: []string{"b.jpg", "c.jpg"}},
		{name: "nothing removed", existing: []string{"a", "b"}, added: []string{"c", "d"}, want: []string{"a", "b", "c", "d"}},
		{name: "remove all", existing: []string{"a", "b"}, removal: []string{"b", "a"}, want: []string{}},
		{name: "unknown removal ignored", existing: []string{"a", "b", "c"}, removal: []string{"zzz", "b"}, want: []string{"a", "c"}},
		{name: "empty", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.existing, tt.removal, tt.added)
			assert.Equal(t, tt.want, got)

			removed := 0
			for _, e := range tt.existing {
				for _, r := range tt.removal {
					if e == r {
						removed++
						break
					}
				}
			}
			assert.Len(t, got, len(tt.existing)-removed+len(tt.added))
		})
	}
}

func TestPurge_ContinuesPastFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	backend := blobtest.NewMemory()
	backend.FailDelete = true
	m := NewManager(backend, zap.New(core), Options{Folder: "p"})

	m.Purge(context.Background(), []string{"mem://a", "", "mem://b"})

	assert.Equal(t, []string{"mem://a", "mem://b"}, backend.Deleted())
	assert.Equal(t, 2, logs.FilterMessage("media purge failed").Len())
}

func TestPurgeAsync_WaitDrains(t *testing.T) {
	m, backend := newTestManager(t)

	ref, err := m.Store(context.Background(), upload("a.jpg", "x"))
	require.NoError(t, err)

	m.PurgeAsync([]string{ref})
	m.PurgeAsync(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
	assert.False(t, backend.Has(ref))
}
