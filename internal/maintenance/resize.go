// Package maintenance holds offline jobs over the content tree.
package maintenance

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/puzzlepages/shelf/internal/images"
	"github.com/puzzlepages/shelf/pkg/utils"
)

const (
	DefaultMaxDimension = 800
	DefaultConcurrency  = 4
	backupSuffix        = ".orig"
)

// ResizeOptions configures Resize.
type ResizeOptions struct {
	MaxDimension int
	Concurrency  int
	DryRun       bool
	// Backup keeps the original next to the resized file as "<name>.orig".
	Backup bool
	Logger *zap.Logger
}

func (o *ResizeOptions) applyDefaults() {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	o.Logger = utils.OrNop(o.Logger)
}

// ResizedImage is one image that was (or in a dry run, would be) downscaled.
type ResizedImage struct {
	Path       string
	Width      int
	Height     int
	NewWidth   int
	NewHeight  int
	BytesFrom  int64
	BytesTo    int64
	BackupPath string
}

// ResizeReport summarises a Resize run.
type ResizeReport struct {
	Scanned int
	Resized []ResizedImage
	Failed  map[string]error
	DryRun  bool
}

// BytesSaved is the total size reduction over every resized image.
func (r *ResizeReport) BytesSaved() int64 {
	var n int64
	for _, img := range r.Resized {
		n += img.BytesFrom - img.BytesTo
	}
	return n
}

// Resize walks root and downscales every PNG or JPEG whose largest side
// exceeds opts.MaxDimension, keeping the aspect ratio. Work runs on a pool of
// opts.Concurrency workers; the report is returned after the pool drains.
// Per-file failures are collected in the report. Only walk and context errors
// are returned.
func Resize(ctx context.Context, root string, opts ResizeOptions) (*ResizeReport, error) {
	opts.applyDefaults()
	report := &ResizeReport{Failed: map[string]error{}, DryRun: opts.DryRun}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if format(path) != "" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	report.Scanned = len(paths)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, done, err := resizeFile(path, opts)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				opts.Logger.Warn("resize failed", zap.String("path", path), zap.Error(err))
				report.Failed[path] = err
			case done:
				opts.Logger.Debug("image resized", zap.String("path", path),
					zap.Int("width", img.NewWidth), zap.Int("height", img.NewHeight))
				report.Resized = append(report.Resized, img)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	sortResized(report.Resized)
	return report, nil
}

func sortResized(imgs []ResizedImage) {
	sort.Slice(imgs, func(i, j int) bool { return imgs[i].Path < imgs[j].Path })
}

func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	default:
		return ""
	}
}

// fit scales w×h so the larger side equals limit.
func fit(w, h, limit int) (int, int) {
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

func resizeFile(path string, opts ResizeOptions) (ResizedImage, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ResizedImage{}, false, err
	}
	f, err := os.Open(path)
	if err != nil {
		return ResizedImage{}, false, err
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return ResizedImage{}, false, fmt.Errorf("decode: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= opts.MaxDimension && h <= opts.MaxDimension {
		return ResizedImage{}, false, nil
	}
	nw, nh := fit(w, h, opts.MaxDimension)
	out := ResizedImage{Path: path, Width: w, Height: h, NewWidth: nw, NewHeight: nh, BytesFrom: info.Size()}
	if opts.DryRun {
		out.BytesTo = info.Size()
		return out, true, nil
	}

	if opts.Backup {
		out.BackupPath = path + backupSuffix
		if _, err := images.CopyIfNewer(path, out.BackupPath); err != nil {
			return ResizedImage{}, false, fmt.Errorf("backup: %w", err)
		}
	}
	dst := resize.Resize(uint(nw), uint(nh), src, resize.Lanczos3)
	tmp := path + ".tmp"
	if err := encode(tmp, dst, format(path)); err != nil {
		os.Remove(tmp)
		return ResizedImage{}, false, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return ResizedImage{}, false, err
	}
	if st, err := os.Stat(path); err == nil {
		out.BytesTo = st.Size()
	}
	return out, true, nil
}

func encode(path string, img image.Image, kind string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if kind == "png" {
		err = png.Encode(f, img)
	} else {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 85})
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
