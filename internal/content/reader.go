// Package content reads library markdown records from either storage layout:
// one directory per library holding index.md, or one flat file per library
// named by its zero-padded id.
package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/pkg/utils"
)

var (
	// ErrStorageUnavailable is returned when the libraries root is missing or unreadable.
	ErrStorageUnavailable = errors.New("content storage unavailable")
	// ErrMalformedContent is returned when a content file fails to parse.
	ErrMalformedContent = errors.New("malformed content")
)

// Layout is an on-disk storage convention.
type Layout int

const (
	// LayoutDirectory stores each library as {root}/{dir}/index.md.
	LayoutDirectory Layout = iota
	// LayoutFlat stores each library as {root}/{NNNNN}.md.
	LayoutFlat
)

func (l Layout) String() string {
	if l == LayoutFlat {
		return "flat"
	}
	return "directory"
}

const (
	indexFile  = "index.md"
	logbookDir = "logbook"
	// PathPrefix is the logical content path prefix of every library document.
	PathPrefix = "/libraries/"
	// LogbooksPathPrefix is the logical prefix of flat-layout logbook entries.
	LogbooksPathPrefix = "/logbooks/"
)

var flatFile = regexp.MustCompile(`^\d{5,}\.md$`)

// Reader loads library records without callers knowing the layout in effect.
type Reader interface {
	Layout() Layout
	// Root is the libraries directory.
	Root() string
	// Identities returns the storage identity of every library, sorted,
	// without parsing any file.
	Identities() ([]string, error)
	// SourcePath is the markdown file backing identity.
	SourcePath(identity string) string
	// List returns every readable library. Malformed files are skipped.
	List(ctx context.Context) ([]models.RawLibraryDoc, error)
	// Read returns one library, or (nil, nil) when identity does not resolve to a file.
	Read(ctx context.Context, identity string) (*models.RawLibraryDoc, error)
	// AssetDir is the directory walked for a library's gallery images.
	AssetDir(identity string) string
	// LogicalPath is the content path of the library document.
	LogicalPath(identity string) string
	// Logbook lists the library's logbook entry files.
	Logbook(identity string) ([]LogbookFile, error)
}

// LogbookFile is one logbook entry on disk.
type LogbookFile struct {
	SourcePath  string
	LogicalPath string
}

// Option configures a reader.
type Option func(*base)

// WithLogger sets a logger for skipped-file warnings.
func WithLogger(l *zap.Logger) Option {
	return func(b *base) { b.logger = utils.OrNop(l) }
}

// WithLayout forces a layout instead of probing the root.
func WithLayout(l Layout) Option {
	return func(b *base) { b.forced = &l }
}

type base struct {
	root   string
	logger *zap.Logger
	forced *Layout
}

// NewReader returns the reader strategy for root. The layout is chosen by
// probing: any file named like "00001.md" selects the flat layout; otherwise
// the directory layout is used.
func NewReader(root string, opts ...Option) Reader {
	b := base{root: filepath.Clean(root), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	var layout Layout
	if b.forced != nil {
		layout = *b.forced
	} else {
		layout = Probe(b.root)
	}
	b.logger.Debug("content reader", zap.String("root", b.root), zap.Stringer("layout", layout))
	if layout == LayoutFlat {
		return &flatReader{base: b}
	}
	return &dirReader{base: b}
}

// Probe reports which layout root uses.
func Probe(root string) Layout {
	entries, err := os.ReadDir(root)
	if err != nil {
		return LayoutDirectory
	}
	for _, e := range entries {
		if !e.IsDir() && flatFile.MatchString(e.Name()) {
			return LayoutFlat
		}
	}
	return LayoutDirectory
}

func (b *base) Root() string { return b.root }

func (b *base) LogicalPath(identity string) string { return PathPrefix + identity }

func (b *base) readDir() ([]os.DirEntry, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, b.root, err)
	}
	return entries, nil
}

// load reads and parses one file. A missing file yields (nil, nil).
func (b *base) load(identity, path string) (*models.RawLibraryDoc, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}
	fm, body, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return &models.RawLibraryDoc{
		Identity:    identity,
		Frontmatter: fm,
		Body:        body,
		SourcePath:  path,
		ModTime:     info.ModTime(),
		Size:        info.Size(),
	}, nil
}

// collect loads each identity, logging and skipping failures.
func (b *base) collect(ctx context.Context, identities []string, pathFor func(string) string) ([]models.RawLibraryDoc, error) {
	docs := make([]models.RawLibraryDoc, 0, len(identities))
	for _, id := range identities {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		doc, err := b.load(id, pathFor(id))
		if err != nil {
			b.logger.Warn("skipping library", zap.String("identity", id), zap.Error(err))
			continue
		}
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

func markdownFiles(dir string, logical func(name string) string) ([]LogbookFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []LogbookFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".md") {
			continue
		}
		files = append(files, LogbookFile{
			SourcePath:  filepath.Join(dir, name),
			LogicalPath: logical(strings.TrimSuffix(name, filepath.Ext(name))),
		})
	}
	return files, nil
}

// validIdentity rejects identities that would escape the root.
func validIdentity(identity string) bool {
	return identity != "" && identity != "." && identity != ".." &&
		!strings.ContainsAny(identity, `/\`) && !strings.HasPrefix(identity, ".")
}

// dirReader implements the directory-per-library layout.
type dirReader struct{ base }

func (r *dirReader) Layout() Layout { return LayoutDirectory }

func (r *dirReader) Identities() ([]string, error) {
	entries, err := r.readDir()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || !isDir(r.root, e) {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.root, name, indexFile)); err != nil {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *dirReader) List(ctx context.Context) ([]models.RawLibraryDoc, error) {
	ids, err := r.Identities()
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, ids, r.SourcePath)
}

func (r *dirReader) Read(_ context.Context, identity string) (*models.RawLibraryDoc, error) {
	if !validIdentity(identity) {
		return nil, nil
	}
	return r.load(identity, r.SourcePath(identity))
}

func (r *dirReader) SourcePath(identity string) string {
	return filepath.Join(r.root, identity, indexFile)
}

func (r *dirReader) AssetDir(identity string) string { return filepath.Join(r.root, identity) }

func (r *dirReader) Logbook(identity string) ([]LogbookFile, error) {
	if !validIdentity(identity) {
		return nil, nil
	}
	return markdownFiles(filepath.Join(r.root, identity, logbookDir), func(name string) string {
		return PathPrefix + identity + "/" + logbookDir + "/" + name
	})
}

// flatReader implements the file-per-library layout. Logbooks live in a
// sibling "logbooks/{id}" directory of the libraries root.
type flatReader struct{ base }

func (r *flatReader) Layout() Layout { return LayoutFlat }

func (r *flatReader) Identities() ([]string, error) {
	entries, err := r.readDir()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !flatFile.MatchString(e.Name()) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *flatReader) List(ctx context.Context) ([]models.RawLibraryDoc, error) {
	ids, err := r.Identities()
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, ids, r.SourcePath)
}

func (r *flatReader) Read(_ context.Context, identity string) (*models.RawLibraryDoc, error) {
	identity = strings.TrimSuffix(identity, ".md")
	if !validIdentity(identity) || !flatFile.MatchString(identity+".md") {
		return nil, nil
	}
	return r.load(identity, r.SourcePath(identity))
}

func (r *flatReader) SourcePath(identity string) string {
	return filepath.Join(r.root, identity+".md")
}

func (r *flatReader) AssetDir(identity string) string { return filepath.Join(r.root, identity) }

func (r *flatReader) Logbook(identity string) ([]LogbookFile, error) {
	if !validIdentity(identity) {
		return nil, nil
	}
	dir := filepath.Join(r.logbooksDir(), identity)
	return markdownFiles(dir, func(name string) string {
		return LogbooksPathPrefix + identity + "/" + name
	})
}

// logbooksDir is the flat layout's sibling logbook tree.
func (r *flatReader) logbooksDir() string { return filepath.Join(filepath.Dir(r.root), "logbooks") }

// WatchRoots lists the directories whose changes affect what r reads: the
// libraries root, plus the sibling logbooks tree for the flat layout.
func WatchRoots(r Reader) []string {
	roots := []string{r.Root()}
	if f, ok := r.(*flatReader); ok {
		roots = append(roots, f.logbooksDir())
	}
	return roots
}

func isDir(root string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(root, e.Name()))
	return err == nil && info.IsDir()
}

// LogbookCount returns the number of logbook entries for identity, or 0.
func LogbookCount(r Reader, identity string) int {
	files, err := r.Logbook(identity)
	if err != nil {
		return 0
	}
	return len(files)
}

// IsLibraryPath reports whether a logical path addresses a top-level library
// document rather than a logbook entry or auxiliary file.
func IsLibraryPath(path string) bool {
	if !strings.HasPrefix(path, PathPrefix) {
		return false
	}
	rest := strings.Trim(strings.TrimPrefix(path, PathPrefix), "/")
	return rest != "" && !strings.Contains(rest, "/")
}
