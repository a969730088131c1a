package cache

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/puzzlepages/shelf/internal/libraryurl"
	"github.com/puzzlepages/shelf/internal/models"
)

// Snapshot is an immutable view of every library produced by one priming
// pass. Readers share it freely; a rebuild publishes a new Snapshot.
type Snapshot struct {
	Generation string
	PrimedAt   time.Time
	Records    []models.LibraryRecord

	byID     map[string]int
	bySlug   map[string]int
	byFolder map[string]int
}

// NewSnapshot indexes records by padded id, slug and folder. Records are
// ordered by id; on a duplicate key the lower id keeps it.
func NewSnapshot(records []models.LibraryRecord) *Snapshot {
	recs := append([]models.LibraryRecord(nil), records...)
	sort.SliceStable(recs, func(i, j int) bool { return idLess(recs[i].LibraryID, recs[j].LibraryID) })

	s := &Snapshot{
		Generation: uuid.New().String(),
		PrimedAt:   time.Now(),
		Records:    recs,
		byID:       make(map[string]int, len(recs)),
		bySlug:     make(map[string]int, len(recs)),
		byFolder:   make(map[string]int, len(recs)),
	}
	for i, r := range recs {
		putFirst(s.byID, idKey(r.LibraryID), i)
		putFirst(s.bySlug, r.Slug, i)
		putFirst(s.byFolder, r.Folder, i)
	}
	return s
}

func putFirst(m map[string]int, key string, i int) {
	if key == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = i
	}
}

// idKey collapses padding on numeric ids; other ids key verbatim.
func idKey(id string) string {
	if libraryurl.AllDigits(id) {
		return libraryurl.NormalizeID(id)
	}
	return id
}

// idLess orders padded numeric ids numerically, then anything else lexically.
func idLess(a, b string) bool {
	if len(a) != len(b) && libraryurl.AllDigits(a) && libraryurl.AllDigits(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Len returns the number of libraries in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Find looks a library up by numeric id, slug, folder or legacy
// "{id}-{slug}" param, in that order.
func (s *Snapshot) Find(identity string) (models.LibraryRecord, bool) {
	if s == nil || identity == "" {
		return models.LibraryRecord{}, false
	}
	if i, ok := s.byID[idKey(identity)]; ok {
		return s.Records[i], true
	}
	if i, ok := s.bySlug[identity]; ok {
		return s.Records[i], true
	}
	if i, ok := s.byFolder[identity]; ok {
		return s.Records[i], true
	}
	if parts, ok := libraryurl.ParseLegacySingleParam(identity); ok && parts.LibraryID != "" {
		if i, ok := s.byID[idKey(parts.LibraryID)]; ok {
			return s.Records[i], true
		}
	}
	return models.LibraryRecord{}, false
}
