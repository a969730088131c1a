package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puzzlepages/shelf/internal/cache"
	"github.com/puzzlepages/shelf/internal/content"
	"github.com/puzzlepages/shelf/internal/images"
	"github.com/puzzlepages/shelf/internal/indexer"
	"github.com/puzzlepages/shelf/internal/keyword"
	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/internal/records"
	"github.com/puzzlepages/shelf/internal/storage"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

type fixture struct {
	root    string
	deriver *records.Deriver
	store   *storage.SQLiteStorage
	indexer *indexer.Indexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "libraries")
	writeFile(t, filepath.Join(root, "corner-shelf", "index.md"), "---\nlibrary_id: 1\ntitle: Corner Shelf\ntags: [kids]\n---\nTidy box.\n")
	writeFile(t, filepath.Join(root, "corner-shelf", "logbook", "2025-01-01.md"), "Visited.")
	writeFile(t, filepath.Join(root, "harbour", "index.md"), "---\nlibrary_id: \"00002\"\ntitle: Harbour Box\n---\nPoetry by the water.\n")

	reader := content.NewReader(root)
	store, err := storage.NewSQLiteStorage(filepath.Join(base, "shelf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return &fixture{
		root:    root,
		deriver: records.NewDeriver(reader, images.NewResolver(filepath.Join(base, "public")), nil),
		store:   store,
		indexer: indexer.NewIndexer(store, reader),
	}
}

func slugs(list []models.LibrarySummary) []string {
	out := make([]string, len(list))
	for i, l := range list {
		out[i] = l.Slug
	}
	return out
}

func TestListLibraries_primary(t *testing.T) {
	f := newFixture(t)
	_, err := f.indexer.IndexAll(context.Background())
	require.NoError(t, err)

	s := NewService(f.deriver, WithStorage(f.store))
	recs, src := s.ListRecords(context.Background())
	assert.Equal(t, SourcePrimary, src)
	assert.Len(t, recs, 2, "logbook entries are excluded")

	list := s.ListLibraries(context.Background())
	assert.ElementsMatch(t, []string{"corner-shelf", "harbour-box"}, slugs(list))
	for _, l := range list {
		assert.NotContains(t, l.Path, "/logbook/")
	}
}

func TestListLibraries_primaryReusesCachedImages(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.root, "corner-shelf", "front.png")
	writeFile(t, src, "png")
	writeFile(t, filepath.Join(f.root, "corner-shelf", "index.md"), "---\nlibrary_id: 1\ntitle: Corner Shelf\nphoto: front.png\n---\nTidy box.\n")
	_, err := f.indexer.IndexAll(context.Background())
	require.NoError(t, err)
	c := cache.New(f.deriver)
	defer c.Close()
	s := NewService(f.deriver, WithStorage(f.store), WithCache(c))

	photoOf := func() string {
		recs, source := s.ListRecords(context.Background())
		require.Equal(t, SourcePrimary, source)
		for _, r := range recs {
			if r.LibraryID == "00001" {
				return r.Photo
			}
		}
		t.Fatal("corner shelf not listed")
		return ""
	}
	assert.Equal(t, "/images/libraries/00001/front.png", photoOf())
	require.True(t, c.Primed())

	require.NoError(t, os.Remove(src))
	assert.Equal(t, "/images/libraries/00001/front.png", photoOf(), "unchanged library reuses the cached photo")
	d, err := s.GetLibrary(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"/images/libraries/00001/front.png"}, d.Images)

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(f.root, "corner-shelf", "index.md"), later, later))
	_, err = f.indexer.IndexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, images.DefaultPlaceholder, photoOf(), "an edited library is resolved again")
}

func TestFind_primedCacheSkipsTreeScan(t *testing.T) {
	f := newFixture(t)
	c := cache.New(f.deriver, cache.WithDebounce(10*time.Millisecond))
	defer c.Close()
	s := NewService(f.deriver, WithCache(c))
	_, err := s.Find(context.Background(), "corner-shelf")
	require.NoError(t, err)

	writeFile(t, filepath.Join(f.root, "new-box", "index.md"), "---\nlibrary_id: 3\ntitle: Reading Nook\n---\n")
	_, err = s.Find(context.Background(), "reading-nook")
	assert.True(t, errors.Is(err, ErrNotFound), "slug lookups wait for the next snapshot")

	rec, err := s.Find(context.Background(), "new-box")
	require.NoError(t, err, "a folder still reads straight from disk")
	assert.Equal(t, "reading-nook", rec.Slug)

	c.Invalidate()
	require.Eventually(t, func() bool {
		rec, err := s.Find(context.Background(), "reading-nook")
		return err == nil && rec.LibraryID == "00003"
	}, 2*time.Second, 10*time.Millisecond)
}

type countingRefresher struct {
	calls atomic.Int32
	inner Refresher
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	if r.inner != nil {
		return r.inner.Refresh(ctx)
	}
	return nil
}

func TestListLibraries_emptyPrimaryFallsBackAndRetriesOnce(t *testing.T) {
	f := newFixture(t)
	ref := &countingRefresher{inner: f.indexer}
	c := cache.New(f.deriver)
	defer c.Close()
	s := NewService(f.deriver, WithStorage(f.store), WithCache(c),
		WithRefresher(ref), WithRetryDelay(20*time.Millisecond))
	defer s.Close()

	recs, src := s.ListRecords(context.Background())
	assert.Equal(t, SourceCache, src)
	assert.Len(t, recs, 2)
	_, _ = s.ListRecords(context.Background())

	require.Eventually(t, func() bool { return ref.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, src := s.ListRecords(context.Background())
		return src == SourcePrimary
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), ref.calls.Load(), "retry is scheduled once per service")
}

func TestListLibraries_filesystemAndEmpty(t *testing.T) {
	f := newFixture(t)
	s := NewService(f.deriver)
	_, src := s.ListRecords(context.Background())
	assert.Equal(t, SourceFilesystem, src)

	missing := records.NewDeriver(content.NewReader(filepath.Join(t.TempDir(), "nope")), images.NewResolver(t.TempDir()), nil)
	s = NewService(missing)
	recs, src := s.ListRecords(context.Background())
	assert.Equal(t, SourceNone, src)
	assert.NotNil(t, recs)
	assert.Empty(t, s.ListLibraries(context.Background()))
}

func TestGetLibrary(t *testing.T) {
	f := newFixture(t)
	_, err := f.indexer.IndexAll(context.Background())
	require.NoError(t, err)
	c := cache.New(f.deriver)
	defer c.Close()

	for _, s := range []*Service{
		NewService(f.deriver, WithStorage(f.store), WithCache(c)),
		NewService(f.deriver, WithCache(c)),
		NewService(f.deriver),
	} {
		for _, identity := range []string{"1", "00001", "corner-shelf", "00001-corner-shelf", "00001-anything"} {
			d, err := s.GetLibrary(context.Background(), identity)
			if assert.NoError(t, err, identity) {
				assert.Equal(t, "00001", d.LibraryID, identity)
				assert.Equal(t, "Tidy box.", strings.TrimSpace(d.FullContent))
				assert.Equal(t, 1, d.LogbookCount)
			}
		}
		d, err := s.GetLibrary(context.Background(), "harbour-box")
		require.NoError(t, err)
		assert.Equal(t, "00002", d.LibraryID)

		_, err = s.GetLibrary(context.Background(), "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = s.GetLibrary(context.Background(), "  ")
		assert.True(t, errors.Is(err, ErrNotFound))
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	idx, err := keyword.NewBleveIndex()
	require.NoError(t, err)
	defer idx.Close()
	c := cache.New(f.deriver, cache.WithOnPublish(func(s *cache.Snapshot) { _ = idx.Rebuild(s.Records) }))
	defer c.Close()

	s := NewService(f.deriver, WithCache(c), WithSearch(idx))
	resp, err := s.Search(context.Background(), &models.SearchQuery{Query: "poetry"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "harbour-box", resp.Results[0].Library.Slug)
	assert.Equal(t, 1, resp.Results[0].Rank)

	_, err = s.Search(context.Background(), &models.SearchQuery{})
	assert.Error(t, err)

	_, err = NewService(f.deriver).Search(context.Background(), &models.SearchQuery{Query: "x"})
	assert.ErrorIs(t, err, ErrSearchUnavailable)
}
