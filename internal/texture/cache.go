package texture

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/scenery/internal/logger"
)

// Converter turns source textures into downscaled WebP files in CacheDir.
type Converter struct {
	CacheDir string
	MaxSize  int
	Workers  int
	Log      *zap.Logger
}

// CachedName returns the cache file name for a source texture path. The
// name keeps the base name readable and adds a hash of the full path so
// equal base names in different folders do not collide.
func CachedName(source string) string {
	sum := sha1.Sum([]byte(filepath.ToSlash(source)))
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return fmt.Sprintf("%s_%s.webp", base, hex.EncodeToString(sum[:4]))
}

// ConvertAll converts every file (relative to srcDir unless absolute) and
// returns the cache file names in the same order. Files already in the
// cache and newer than their source are reused. The first failure cancels
// the remaining conversions.
func (c *Converter) ConvertAll(ctx context.Context, srcDir string, files []string) ([]string, error) {
	log := logger.OrNop(c.Log)
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create texture cache: %w", err)
	}

	workers := c.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		src := file
		if !filepath.IsAbs(src) {
			src = filepath.Join(srcDir, file)
		}
		out[i] = CachedName(file)
		dst := filepath.Join(c.CacheDir, out[i])

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if fresh(src, dst) {
				log.Debug("texture cache hit", zap.String("source", src))
				return nil
			}
			log.Debug("texture cache miss", zap.String("source", src), zap.String("cached", dst))
			return c.convert(src, dst)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info("textures converted", zap.Int("count", len(files)), zap.String("cache", c.CacheDir))
	return out, nil
}

func fresh(src, dst string) bool {
	d, err := os.Stat(dst)
	if err != nil {
		return false
	}
	s, err := os.Stat(src)
	if err != nil {
		return false
	}
	return !d.ModTime().Before(s.ModTime())
}

func (c *Converter) convert(src, dst string) error {
	img, err := Loader{MaxSize: c.MaxSize}.Load(src)
	if err != nil {
		return err
	}

	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, dst)
}
