// Package images maps frontmatter image references to stable public URLs,
// copying source files from content storage into the public directory on demand.
package images

import (
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/puzzlepages/shelf/pkg/utils"
)

const (
	// DefaultURLPrefix is the public URL root of copied library images.
	DefaultURLPrefix = "/images/libraries"
	// DefaultPlaceholder is served for any unresolved photo reference.
	DefaultPlaceholder = "/images/libraries/placeholder-library.jpg"
)

// Extensions are the gallery image extensions, matched case-insensitively.
var Extensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif", ".avif"}

var remoteURL = regexp.MustCompile(`(?i)^https?://`)

// Target identifies where one library's images live.
type Target struct {
	// Identity names the public subdirectory ({prefix}/{identity}/{file}).
	Identity string
	// BaseDir resolves relative frontmatter references.
	BaseDir string
	// AssetDir is walked recursively for gallery images.
	AssetDir string
}

// Resolver resolves and copies library images.
type Resolver struct {
	publicDir   string
	urlPrefix   string
	placeholder string
	logger      *zap.Logger
	copies      atomic.Int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets a logger for resolution and copy failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = utils.OrNop(l) }
}

// WithURLPrefix overrides DefaultURLPrefix.
func WithURLPrefix(prefix string) Option {
	return func(r *Resolver) { r.urlPrefix = "/" + strings.Trim(prefix, "/") }
}

// WithPlaceholder overrides DefaultPlaceholder.
func WithPlaceholder(p string) Option {
	return func(r *Resolver) { r.placeholder = p }
}

// NewResolver creates a resolver copying into publicDir.
func NewResolver(publicDir string, opts ...Option) *Resolver {
	r := &Resolver{
		publicDir:   publicDir,
		urlPrefix:   DefaultURLPrefix,
		placeholder: DefaultPlaceholder,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Placeholder returns the fallback photo URL.
func (r *Resolver) Placeholder() string { return r.placeholder }

// Copies returns the number of physical copies performed.
func (r *Resolver) Copies() int64 { return r.copies.Load() }

// URLPrefix returns the public URL root.
func (r *Resolver) URLPrefix() string { return r.urlPrefix }

// PublicDir returns the directory images are copied into.
func (r *Resolver) PublicDir() string { return r.publicDir }

// ResolvePhoto returns a servable URL for raw, or the placeholder.
func (r *Resolver) ResolvePhoto(t Target, raw string) string {
	if u, ok := r.Resolve(t, raw); ok {
		return u
	}
	return r.placeholder
}

// Resolve maps a frontmatter reference to a public URL. Remote URLs and rooted
// paths pass through. Relative references are resolved against t.BaseDir and
// copied into the public directory; ok is false when the source is missing or
// the copy fails.
func (r *Resolver) Resolve(t Target, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if remoteURL.MatchString(raw) || strings.HasPrefix(raw, "/") {
		return raw, true
	}
	rel := strings.TrimPrefix(raw, "./")
	src := filepath.Join(t.BaseDir, filepath.FromSlash(rel))
	if !isFile(src) {
		found, ok := findByName(t.AssetDir, path.Base(rel))
		if !ok {
			r.logger.Warn("image not found", zap.String("library", t.Identity), zap.String("photo", raw))
			return "", false
		}
		src = found
	}
	return r.publish(t.Identity, src)
}

// Gallery returns photoURL followed by every image under t.AssetDir and any
// extra frontmatter references, deduplicated. The placeholder is never listed.
func (r *Resolver) Gallery(t Target, photoURL string, extra []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if u == "" || u == r.placeholder || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	add(photoURL)
	if t.AssetDir != "" {
		_ = filepath.WalkDir(t.AssetDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if p != t.AssetDir && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !IsImage(p) {
				return nil
			}
			if u, ok := r.publish(t.Identity, p); ok {
				add(u)
			}
			return nil
		})
	}
	for _, raw := range extra {
		if u, ok := r.Resolve(t, raw); ok {
			add(u)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// publish copies src to {publicDir}/{identity}/{basename} when needed and
// returns its URL.
func (r *Resolver) publish(identity, src string) (string, bool) {
	if !safeSegment(identity) {
		r.logger.Warn("unsafe image directory, not copying", zap.String("library", identity), zap.String("src", src))
		return "", false
	}
	name := filepath.Base(src)
	dst := filepath.Join(r.publicDir, identity, name)
	if rel, err := filepath.Rel(r.publicDir, dst); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		r.logger.Warn("image destination outside public dir", zap.String("dst", dst))
		return "", false
	}
	copied, err := CopyIfNewer(src, dst)
	if err != nil {
		r.logger.Warn("image copy failed", zap.String("src", src), zap.String("dst", dst), zap.Error(err))
		return "", false
	}
	if copied {
		r.copies.Add(1)
		r.logger.Debug("image copied", zap.String("src", src), zap.String("dst", dst))
	}
	return r.URL(identity, name), true
}

// URL returns the public URL of a copied image.
func (r *Resolver) URL(identity, filename string) string {
	return r.urlPrefix + "/" + url.PathEscape(identity) + "/" + url.PathEscape(filename)
}

// IsImage reports whether path has a gallery image extension.
func IsImage(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// safeSegment reports whether s can name a single directory under the public
// image root.
func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." &&
		!strings.ContainsAny(s, `/\`) && !strings.HasPrefix(s, ".")
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// findByName returns the first image under dir whose base name equals name.
func findByName(dir, name string) (string, bool) {
	if dir == "" || name == "" || name == "." {
		return "", false
	}
	var found string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == name && IsImage(p) {
			found = p
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}
