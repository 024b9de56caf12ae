// Package archiver assembles manuscript file bundles into zip archives,
// reporting per-file progress while it writes. The mock review API uses it
// to back the download endpoint.
package archiver

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/currax/manudash/internal/domain"
)

type compressionAlgo = uint16

const (
	Store   compressionAlgo = 0 // no compression
	Deflate compressionAlgo = 8 // max compression
)

// Progress is one assembly progress report. Reports are emitted before and
// after each file, and carry cumulative counters.
type Progress struct {
	TotalFiles   int
	DoneFiles    int
	CurrentFile  string
	CurrentSize  int64
	BytesWritten uint64
}

// ReportFunc receives progress reports. It is called synchronously from the
// assembly goroutine and must not block.
type ReportFunc func(Progress)

// Archiver builds zip bundles from in-memory manuscript files. A single
// Archiver may be reused across bundles; the byte counter resets per
// bundle.
type Archiver struct {
	report  ReportFunc
	written atomic.Uint64
}

// New creates an Archiver. report may be nil for no progress reporting.
func New(report ReportFunc) *Archiver {
	return &Archiver{report: report}
}

// WriteBundle writes the given files as a zip archive into w.
// If ctx is canceled between files the bundle is abandoned and ctx's error
// returned; the caller owns whatever bytes were already written.
//
// Already-compressed content (images, archives, PDFs) is stored, everything
// else is deflated.
func (a *Archiver) WriteBundle(ctx context.Context, w io.Writer, files []domain.FileEntry) error {
	a.written.Store(0)
	zw := zip.NewWriter(w)

	for i, f := range files {
		select {
		case <-ctx.Done():
			_ = zw.Close()
			return ctx.Err()
		default:
		}

		a.send(Progress{
			TotalFiles:   len(files),
			DoneFiles:    i,
			CurrentFile:  f.Name,
			CurrentSize:  int64(len(f.Content)),
			BytesWritten: a.written.Load(),
		})

		fh := &zip.FileHeader{
			Name:   f.Name,
			Method: methodFor(f),
		}
		fw, err := zw.CreateHeader(fh)
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("creating header for %q: %w", f.Name, err)
		}
		n, err := fw.Write(f.Content)
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("writing %q to archive: %w", f.Name, err)
		}
		a.written.Add(uint64(n))
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	a.send(Progress{
		TotalFiles:   len(files),
		DoneFiles:    len(files),
		BytesWritten: a.written.Load(),
	})
	return nil
}

func (a *Archiver) send(p Progress) {
	if a.report != nil {
		a.report(p)
	}
}

// methodFor picks the compression method by file type: content that is
// already compressed gains nothing from deflate.
func methodFor(f domain.FileEntry) compressionAlgo {
	t := strings.ToLower(f.Type)
	switch {
	case strings.HasPrefix(t, "image/"),
		strings.Contains(t, "zip"),
		strings.Contains(t, "pdf"):
		return Store
	default:
		return Deflate
	}
}
