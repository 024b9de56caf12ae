package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/currax/manudash/internal/archiver"
	"github.com/currax/manudash/internal/bgtask"
	"github.com/currax/manudash/internal/domain"
)

// sizeCache holds pre-computed bundle sizes, keyed by msid and kind. The
// download handler surfaces them as X-Bundle-Size so clients can show an
// estimate before any bytes arrive.
type sizeCache struct {
	mu    sync.RWMutex
	sizes map[string]map[domain.FileKind]int64
}

func newSizeCache() *sizeCache {
	return &sizeCache{sizes: make(map[string]map[domain.FileKind]int64)}
}

func (c *sizeCache) put(msid string, kind domain.FileKind, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sizes[msid] == nil {
		c.sizes[msid] = make(map[domain.FileKind]int64)
	}
	c.sizes[msid][kind] = size
}

func (c *sizeCache) get(msid string, kind domain.FileKind) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	size, ok := c.sizes[msid][kind]
	return size, ok
}

type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// warmBundleSizes zips every manuscript's file sets to a counting writer,
// one job per manuscript, and fills the size cache. Bundles are small
// enough that doing this eagerly at startup is cheaper than making the
// first downloader wait for a Content-Length it never gets.
func (s *Server) warmBundleSizes(ctx context.Context) {
	start := time.Now()
	pool := bgtask.NewWorkerPool(ctx)
	for _, ms := range s.corpus.List() {
		pool.Spawn(func() error {
			for _, kind := range []domain.FileKind{domain.EssentialFiles, domain.AllFiles} {
				if err := pool.Ctx.Err(); err != nil {
					return err
				}
				files, ok := s.corpus.Files(ms.MSID, kind)
				if !ok {
					continue
				}
				size, err := measureBundle(pool.Ctx, files)
				if err != nil {
					return err
				}
				s.sizes.put(ms.MSID, kind, size)
			}
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		slog.Error("warming bundle sizes", "err", err)
		return
	}
	slog.Info("bundle sizes warmed", "manuscripts", len(s.corpus.List()), "took", time.Since(start).Round(time.Millisecond))
}

func measureBundle(ctx context.Context, files []domain.FileEntry) (int64, error) {
	cw := &countingWriter{}
	if err := archiver.New(nil).WriteBundle(ctx, cw, files); err != nil {
		return 0, err
	}
	return cw.n, nil
}
