// Package records derives LibraryRecords from stored library documents:
// identity, slug, resolved photo, gallery and description.
package records

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/puzzlepages/shelf/internal/content"
	"github.com/puzzlepages/shelf/internal/images"
	"github.com/puzzlepages/shelf/internal/libraryurl"
	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/pkg/utils"
)

// ErrMissingLibraryID is returned for a document with no resolvable library_id.
var ErrMissingLibraryID = errors.New("library_id missing")

// Deriver turns raw documents into LibraryRecords.
type Deriver struct {
	reader   content.Reader
	resolver *images.Resolver
	logger   *zap.Logger
}

// NewDeriver creates a deriver over reader and resolver.
func NewDeriver(reader content.Reader, resolver *images.Resolver, logger *zap.Logger) *Deriver {
	return &Deriver{reader: reader, resolver: resolver, logger: utils.OrNop(logger)}
}

// Reader returns the underlying content reader.
func (d *Deriver) Reader() content.Reader { return d.reader }

// Build derives every readable library in one pass. Libraries that fail are
// logged and omitted. A missing content root yields an empty result.
func (d *Deriver) Build(ctx context.Context) ([]models.LibraryRecord, error) {
	docs, err := d.reader.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		d.logger.Warn("listing libraries", zap.String("root", d.reader.Root()), zap.Error(err))
	}
	out := make([]models.LibraryRecord, 0, len(docs))
	for i := range docs {
		rec, err := d.FromDoc(&docs[i])
		if err != nil {
			d.logger.Warn("omitting library", zap.String("identity", docs[i].Identity), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Read derives one library by storage identity. It returns (nil, nil) when
// the identity does not resolve to a file.
func (d *Deriver) Read(ctx context.Context, identity string) (*models.LibraryRecord, error) {
	doc, err := d.reader.Read(ctx, identity)
	if err != nil || doc == nil {
		return nil, err
	}
	rec, err := d.FromDoc(doc)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FromDoc derives the record for one document: Describe followed by Enrich.
func (d *Deriver) FromDoc(doc *models.RawLibraryDoc) (models.LibraryRecord, error) {
	rec, err := d.Describe(doc)
	if err != nil {
		return rec, err
	}
	d.Enrich(doc, &rec)
	return rec, nil
}

// Describe derives the fields that come from the document alone. It touches
// neither the asset directory nor the public image tree; Photo, Images and
// LogbookCount are left zero.
func (d *Deriver) Describe(doc *models.RawLibraryDoc) (models.LibraryRecord, error) {
	id := content.DocLibraryID(doc, d.reader.Layout())
	if id == "" {
		return models.LibraryRecord{}, fmt.Errorf("%s: %w", doc.Identity, ErrMissingLibraryID)
	}
	fm := doc.Frontmatter
	return models.LibraryRecord{
		LibraryID:    id,
		Slug:         libraryurl.LibrarySlug(content.Title(fm), doc.Identity, id),
		Title:        content.TitleOr(fm, id),
		Location:     content.Location(fm),
		Tags:         content.Tags(fm),
		Description:  content.Description(doc.Body),
		Path:         d.reader.LogicalPath(doc.Identity),
		Folder:       doc.Identity,
		LastModified: doc.ModTime,
		Frontmatter:  fm,
		Body:         doc.Body,
	}, nil
}

// Enrich fills the filesystem-derived fields of rec: the published photo, the
// gallery and the logbook count.
func (d *Deriver) Enrich(doc *models.RawLibraryDoc, rec *models.LibraryRecord) {
	target := images.Target{
		Identity: rec.LibraryID,
		BaseDir:  filepath.Dir(doc.SourcePath),
		AssetDir: d.reader.AssetDir(doc.Identity),
	}
	rec.Photo = d.resolver.ResolvePhoto(target, content.Photo(doc.Frontmatter))
	rec.Images = d.resolver.Gallery(target, rec.Photo, content.Images(doc.Frontmatter))
	rec.LogbookCount = content.LogbookCount(d.reader, doc.Identity)
}
