// Package library answers list, detail and search queries about libraries,
// falling back from the primary content index to the in-process cache and
// finally to reading the content tree directly.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/puzzlepages/shelf/internal/cache"
	"github.com/puzzlepages/shelf/internal/content"
	"github.com/puzzlepages/shelf/internal/keyword"
	"github.com/puzzlepages/shelf/internal/libraryurl"
	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/internal/records"
	"github.com/puzzlepages/shelf/internal/storage"
	"github.com/puzzlepages/shelf/pkg/utils"
)

// DefaultRetryDelay is how long after an empty primary read the refresher runs.
const DefaultRetryDelay = time.Second

var (
	// ErrNotFound is returned when an identity resolves to no library.
	ErrNotFound = errors.New("library not found")
	// ErrSearchUnavailable is returned by Search when no keyword index is configured.
	ErrSearchUnavailable = errors.New("search unavailable")
)

// Source names the tier that answered a list query.
type Source string

const (
	SourcePrimary    Source = "primary"
	SourceCache      Source = "cache"
	SourceFilesystem Source = "filesystem"
	SourceNone       Source = "none"
)

// Refresher repopulates the primary content index.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Service is the query façade over libraries. Every tier is optional except
// the record deriver, which backs the filesystem fallback.
type Service struct {
	deriver    *records.Deriver
	store      storage.Storage
	cache      *cache.Cache
	search     keyword.LibraryIndex
	refresher  Refresher
	retryDelay time.Duration
	logger     *zap.Logger

	emptyOnce sync.Once
	mu        sync.Mutex
	retry     *time.Timer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// WithStorage sets the primary content index.
func WithStorage(st storage.Storage) Option { return func(s *Service) { s.store = st } }

// WithCache sets the library index cache.
func WithCache(c *cache.Cache) Option { return func(s *Service) { s.cache = c } }

// WithSearch sets the keyword index used by Search.
func WithSearch(idx keyword.LibraryIndex) Option { return func(s *Service) { s.search = idx } }

// WithRefresher sets what runs once after the primary index is first seen empty.
func WithRefresher(r Refresher) Option { return func(s *Service) { s.refresher = r } }

// WithRetryDelay sets the delay before the refresher runs.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// NewService creates a Service.
func NewService(deriver *records.Deriver, opts ...Option) *Service {
	s := &Service{deriver: deriver, retryDelay: DefaultRetryDelay}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// ListLibraries returns every library as a summary. It never fails: when no
// tier has data the result is empty.
func (s *Service) ListLibraries(ctx context.Context) []models.LibrarySummary {
	recs, _ := s.ListRecords(ctx)
	out := make([]models.LibrarySummary, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].Summary())
	}
	return out
}

// ListRecords returns every library record and the tier that supplied them.
func (s *Service) ListRecords(ctx context.Context) ([]models.LibraryRecord, Source) {
	if recs := s.fromPrimary(ctx); len(recs) > 0 {
		return recs, SourcePrimary
	}
	if snap := s.snapshot(ctx); snap.Len() > 0 {
		return snap.Records, SourceCache
	}
	recs, err := s.deriver.Build(ctx)
	if err != nil {
		s.logger.Warn("filesystem listing failed", zap.Error(err))
	}
	if len(recs) > 0 {
		return recs, SourceFilesystem
	}
	return []models.LibraryRecord{}, SourceNone
}

// fromPrimary reads top-level library documents from the content index.
// Logbook entries and nested paths are excluded.
func (s *Service) fromPrimary(ctx context.Context) []models.LibraryRecord {
	if s.store == nil {
		return nil
	}
	docs, err := s.store.FindByPrefix(ctx, content.PathPrefix)
	if err != nil {
		s.logger.Warn("primary content query failed", zap.Error(err))
		return nil
	}
	libs := make([]*models.ContentDoc, 0, len(docs))
	for _, d := range docs {
		if content.IsLibraryPath(d.Path) {
			libs = append(libs, d)
		}
	}
	if len(libs) == 0 {
		s.primaryEmpty()
		return nil
	}
	snap := s.snapshot(ctx)
	out := make([]models.LibraryRecord, 0, len(libs))
	for _, d := range libs {
		raw := rawDoc(d)
		rec, err := s.deriver.Describe(raw)
		if err != nil {
			s.logger.Debug("omitting library", zap.String("path", d.Path), zap.Error(err))
			continue
		}
		s.enrich(snap, raw, &rec)
		out = append(out, rec)
	}
	return out
}

// enrich copies images and the logbook count from snap when it holds the same
// revision of the library, and resolves them from disk otherwise.
func (s *Service) enrich(snap *cache.Snapshot, raw *models.RawLibraryDoc, rec *models.LibraryRecord) {
	if cached, ok := snap.Find(rec.LibraryID); ok &&
		cached.LibraryID == rec.LibraryID && cached.Folder == rec.Folder &&
		cached.LastModified.Equal(rec.LastModified) {
		rec.Photo = cached.Photo
		rec.Images = cached.Images
		rec.LogbookCount = cached.LogbookCount
		return
	}
	s.deriver.Enrich(raw, rec)
}

// primaryEmpty logs once per Service and schedules a single refresh.
func (s *Service) primaryEmpty() {
	s.emptyOnce.Do(func() {
		s.logger.Info("primary content index is empty, using fallback", zap.Duration("retry_in", s.retryDelay))
		if s.refresher == nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.retry = time.AfterFunc(s.retryDelay, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := s.refresher.Refresh(ctx); err != nil {
				s.logger.Warn("content index refresh failed", zap.Error(err))
				return
			}
			s.logger.Info("content index refreshed")
		})
	})
}

func rawDoc(d *models.ContentDoc) *models.RawLibraryDoc {
	return &models.RawLibraryDoc{
		Identity:    strings.TrimPrefix(d.Path, content.PathPrefix),
		Frontmatter: d.Frontmatter,
		Body:        d.Body,
		SourcePath:  d.SourcePath,
		ModTime:     time.Unix(0, d.SourceMtime),
		Size:        d.SourceSize,
	}
}

// snapshot primes the cache if needed. It returns nil without a cache or
// when priming fails.
func (s *Service) snapshot(ctx context.Context) *cache.Snapshot {
	if s.cache == nil {
		return nil
	}
	snap, err := s.cache.Init(ctx)
	if err != nil {
		s.logger.Warn("library cache unavailable", zap.Error(err))
		return nil
	}
	return snap
}

// GetLibrary resolves identity (library id in any padding, slug, folder or
// legacy "{id}-{slug}" param) to a library.
func (s *Service) GetLibrary(ctx context.Context, identity string) (*models.LibraryDetail, error) {
	rec, err := s.Find(ctx, identity)
	if err != nil {
		return nil, err
	}
	return rec.Detail(), nil
}

// Find resolves identity to its record, trying the primary index by id,
// then the cache, then the content tree. A full tree scan runs only when no
// cache snapshot is available.
func (s *Service) Find(ctx context.Context, identity string) (*models.LibraryRecord, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrNotFound)
	}
	if rec := s.findPrimary(ctx, identity); rec != nil {
		return rec, nil
	}
	snap := s.snapshot(ctx)
	if rec, ok := snap.Find(identity); ok {
		return &rec, nil
	}
	if rec, err := s.deriver.Read(ctx, identity); err == nil && rec != nil {
		return rec, nil
	}
	if snap != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	recs, err := s.deriver.Build(ctx)
	if err != nil {
		return nil, err
	}
	if rec, ok := cache.NewSnapshot(recs).Find(identity); ok {
		return &rec, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, identity)
}

func (s *Service) findPrimary(ctx context.Context, identity string) *models.LibraryRecord {
	if s.store == nil {
		return nil
	}
	id := identity
	if parts, ok := libraryurl.ParseLegacySingleParam(identity); ok && parts.LibraryID != "" {
		id = parts.LibraryID
	}
	if !libraryurl.AllDigits(id) {
		return nil
	}
	docs, err := s.store.FindByLibraryID(ctx, libraryurl.PadLibraryID(id))
	if err != nil {
		s.logger.Debug("primary lookup failed", zap.String("id", id), zap.Error(err))
		return nil
	}
	for _, d := range docs {
		if !content.IsLibraryPath(d.Path) {
			continue
		}
		raw := rawDoc(d)
		if rec, err := s.deriver.Describe(raw); err == nil {
			var snap *cache.Snapshot
			if s.cache != nil {
				snap = s.cache.Current()
			}
			s.enrich(snap, raw, &rec)
			return &rec
		}
	}
	return nil
}

// Search runs a keyword query over cached libraries.
func (s *Service) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if s.search == nil {
		return nil, ErrSearchUnavailable
	}
	snap := s.snapshot(ctx)
	hits, err := s.search.Search(ctx, q.Query, q.Limit, nil)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	results := make([]*models.SearchResult, 0, len(hits))
	for _, h := range hits {
		rec, ok := snap.Find(h.ID)
		if !ok {
			continue
		}
		results = append(results, &models.SearchResult{
			Library: rec.Summary(),
			Score:   h.Score,
			Rank:    len(results) + 1,
		})
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
		Query:     q.Query,
	}, nil
}

// Close stops a pending refresh.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retry != nil {
		s.retry.Stop()
	}
}
