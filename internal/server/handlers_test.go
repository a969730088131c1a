package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/puzzlepages/shelf/internal/cache"
	"github.com/puzzlepages/shelf/internal/config"
	"github.com/puzzlepages/shelf/internal/content"
	"github.com/puzzlepages/shelf/internal/images"
	"github.com/puzzlepages/shelf/internal/keyword"
	"github.com/puzzlepages/shelf/internal/library"
	"github.com/puzzlepages/shelf/internal/manifest"
	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/internal/records"
	"github.com/puzzlepages/shelf/internal/storage"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{Mode: config.ModeProduction}
	cfg.Content.Root = filepath.Join(base, "content")
	cfg.Public.Dir = filepath.Join(base, "public")
	cfg.Public.ImagePrefix = "/images/libraries"
	cfg.Storage.DatabasePath = filepath.Join(base, "shelf.db")

	root := filepath.Join(cfg.Content.Root, "libraries")
	writeFile(t, filepath.Join(root, "corner", "index.md"), "---\nlibrary_id: 1\ntitle: Corner Shelf\nphoto: front.jpg\n---\nTidy box.\n")
	writeFile(t, filepath.Join(root, "corner", "front.jpg"), "jpeg")
	writeFile(t, filepath.Join(root, "harbour", "index.md"), "---\nlibrary_id: 123456\ntitle: Harbour Box\n---\nPoetry.\n")

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	idx, err := keyword.NewBleveIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	deriver := records.NewDeriver(content.NewReader(root), images.NewResolver(cfg.Public.Dir), nil)
	c := cache.New(deriver, cache.WithOnPublish(func(s *cache.Snapshot) { _ = idx.Rebuild(s.Records) }))
	t.Cleanup(func() { _ = c.Close() })
	svc := library.NewService(deriver, library.WithStorage(store), library.WithCache(c), library.WithSearch(idx))
	t.Cleanup(svc.Close)
	return NewServer(svc, cfg, zap.NewNop(), append([]Option{WithCache(c), WithStorage(store)}, opts...)...)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLibraryPage_canonical(t *testing.T) {
	h := newTestServer(t).Handler()
	w := get(t, h, "/library/00001/corner-shelf/")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var d models.LibraryDetail
	if err := json.NewDecoder(w.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if d.LibraryID != "00001" || d.Title != "Corner Shelf" || d.Photo != "/images/libraries/00001/front.jpg" {
		t.Errorf("detail = %+v", d)
	}
}

func TestLibraryPage_redirects(t *testing.T) {
	h := newTestServer(t).Handler()
	tests := []struct {
		path string
		want string
	}{
		{"/library/00001-corner-shelf", "/library/00001/corner-shelf/"},
		{"/library/00001", "/library/00001/corner-shelf/"},
		{"/library/corner-shelf", "/library/00001/corner-shelf/"},
		{"/library/corner", "/library/00001/corner-shelf/"},
		{"/library/00001/old-title/", "/library/00001/corner-shelf/"},
		{"/library/00001/corner-shelf", "/library/00001/corner-shelf/"},
		{"/library/123456-harbour-box", "/library/123456/harbour-box/"},
	}
	for _, tt := range tests {
		w := get(t, h, tt.path)
		if w.Code != http.StatusMovedPermanently {
			t.Errorf("%s: status %d, want 301", tt.path, w.Code)
			continue
		}
		if loc := w.Header().Get("Location"); loc != tt.want {
			t.Errorf("%s: Location %q, want %q", tt.path, loc, tt.want)
		}
	}
}

func TestLibraryPage_notFound(t *testing.T) {
	h := newTestServer(t).Handler()
	for _, path := range []string{
		"/library/99999-missing",
		"/library/no-such-library",
		"/library/1-short-id",
		"/library/00001/a/b/",
	} {
		if w := get(t, h, path); w.Code != http.StatusNotFound {
			t.Errorf("%s: status %d, want 404", path, w.Code)
		}
	}
}

func TestLibraryPage_legacySlugFromManifest(t *testing.T) {
	m := manifest.FromEntries([]models.LibraryManifestEntry{
		{LibraryID: "00001", Slug: "corner-shelf", Title: "Corner Shelf", Folder: "corner-shelf-2019"},
	}, nil)
	m.SlugToID["old-corner"] = "00001"

	if w := get(t, newTestServer(t).Handler(), "/library/corner-shelf-2019"); w.Code != http.StatusNotFound {
		t.Fatalf("without manifest: status %d, want 404", w.Code)
	}
	h := newTestServer(t, WithManifest(m)).Handler()
	for _, path := range []string{"/library/corner-shelf-2019", "/library/old-corner"} {
		w := get(t, h, path)
		if w.Code != http.StatusMovedPermanently {
			t.Errorf("%s: status %d, want 301", path, w.Code)
			continue
		}
		if loc := w.Header().Get("Location"); loc != "/library/00001/corner-shelf/" {
			t.Errorf("%s: Location %q", path, loc)
		}
	}
	if w := get(t, h, "/library/no-such-library"); w.Code != http.StatusNotFound {
		t.Errorf("unknown slug: status %d, want 404", w.Code)
	}
}

func TestAPI_listAndGet(t *testing.T) {
	h := newTestServer(t).Handler()

	w := get(t, h, "/api/libraries")
	if w.Code != http.StatusOK {
		t.Fatalf("list status: %d", w.Code)
	}
	var list []models.LibrarySummary
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("list: got %d libraries", len(list))
	}

	w = get(t, h, "/api/libraries/harbour-box")
	if w.Code != http.StatusOK {
		t.Fatalf("get status: %d", w.Code)
	}
	var d models.LibraryDetail
	if err := json.NewDecoder(w.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if d.LibraryID != "123456" {
		t.Errorf("library_id = %q", d.LibraryID)
	}

	if w := get(t, h, "/api/libraries/nope"); w.Code != http.StatusNotFound {
		t.Errorf("missing: status %d", w.Code)
	}
}

func TestAPI_search(t *testing.T) {
	h := newTestServer(t).Handler()
	w := get(t, h, "/api/libraries/search?q=poetry")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Library.Slug != "harbour-box" {
		t.Errorf("search = %+v", resp)
	}

	if w := get(t, h, "/api/libraries/search"); w.Code != http.StatusBadRequest {
		t.Errorf("empty query: status %d", w.Code)
	}
	if w := get(t, h, "/api/libraries/search?q=x&limit=abc"); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status %d", w.Code)
	}
}

func TestLegacyImageEndpointGone(t *testing.T) {
	h := newTestServer(t).Handler()
	w := get(t, h, "/api/library-image/corner-shelf/front.jpg")
	if w.Code != http.StatusGone {
		t.Fatalf("status: %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["location"] != "/images/libraries/corner-shelf/front.jpg" {
		t.Errorf("location = %q", body["location"])
	}
}

func TestStaticImages(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()
	// Listing publishes the photo into the public tree.
	get(t, h, "/api/libraries")
	w := get(t, h, "/images/libraries/00001/front.jpg")
	if w.Code != http.StatusOK || w.Body.String() != "jpeg" {
		t.Errorf("static image: status %d body %q", w.Code, w.Body.String())
	}
	if w := get(t, h, "/images/libraries/00001/missing.jpg"); w.Code != http.StatusNotFound {
		t.Errorf("missing image: status %d", w.Code)
	}
}

func TestHealthAndStatus(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()
	if w := get(t, h, "/health"); w.Code != http.StatusOK {
		t.Errorf("health: %d", w.Code)
	}

	if _, err := srv.cache.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	w := get(t, h, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var body struct {
		Mode  string `json:"mode"`
		Cache struct {
			Primed     bool   `json:"primed"`
			Generation string `json:"generation"`
			Libraries  int    `json:"libraries"`
		} `json:"cache"`
		Documents int64 `json:"documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Mode != "production" || !body.Cache.Primed || body.Cache.Libraries != 2 || body.Cache.Generation == "" {
		t.Errorf("status body = %+v", body)
	}
}
