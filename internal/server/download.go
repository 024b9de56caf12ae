package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/currax/manudash/internal/archiver"
	"github.com/currax/manudash/internal/domain"
	"github.com/dustin/go-humanize"
)

// downloadBundle streams a zip of the requested file set and publishes
// progress events on the manuscript's stream while writing it.
func (s *Server) downloadBundle(w http.ResponseWriter, r *http.Request) {
	msid := r.PathValue("id")
	if format := r.URL.Query().Get("format"); format != "" && format != "zip" {
		s.badRequestResponse(w, r, fmt.Errorf("unsupported format %q, only zip is available", format))
		return
	}
	kind := domain.FileKind(r.URL.Query().Get("type"))
	if kind == "" {
		kind = domain.AllFiles
	}
	files, ok := s.corpus.Files(msid, kind)
	if !ok {
		s.notFoundResponse(w, r)
		return
	}

	filename := fmt.Sprintf("%s_%s_files.zip", msid, kind)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if size, ok := s.sizes.get(msid, kind); ok {
		w.Header().Set("X-Bundle-Size", strconv.FormatInt(size, 10))
	}

	// per-request override for demos, e.g. ?throttle=500ms
	throttle := s.Throttle
	if v := r.URL.Query().Get("throttle"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			throttle = d
		}
	}

	start := time.Now()
	arc := archiver.New(func(p archiver.Progress) {
		s.hub.publish(msid, progressEvent(p, start))
		if throttle > 0 && p.DoneFiles < p.TotalFiles {
			select {
			case <-time.After(throttle):
			case <-r.Context().Done():
			}
		}
	})

	err := arc.WriteBundle(r.Context(), w, files)
	switch {
	case err == nil:
		s.hub.publish(msid, domain.StreamEvent{
			Type:            domain.EventComplete,
			Status:          "Download completed",
			Progress:        100,
			Filename:        filename,
			TotalFiles:      len(files),
			SuccessfulFiles: len(files),
		})
	case errors.Is(err, context.Canceled):
		s.hub.publish(msid, domain.StreamEvent{
			Type:    domain.EventCancelled,
			Message: "Cancelled by the client",
		})
	default:
		// headers are long gone, the stream is the only place left to report
		s.hub.publish(msid, domain.StreamEvent{
			Type:  domain.EventError,
			Error: err.Error(),
		})
		s.logError(r, err)
	}
}

func progressEvent(p archiver.Progress, start time.Time) domain.StreamEvent {
	ev := domain.StreamEvent{
		Type:            domain.EventProgress,
		Status:          "Downloading files",
		CurrentFile:     p.CurrentFile,
		TotalFiles:      p.TotalFiles,
		DownloadedFiles: p.DoneFiles,
		CurrentFileSize: humanize.Bytes(uint64(p.CurrentSize)),
	}
	if p.TotalFiles > 0 {
		ev.Progress = p.DoneFiles * 100 / p.TotalFiles
	}
	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		rate := uint64(float64(p.BytesWritten) / elapsed)
		ev.DownloadSpeed = humanize.Bytes(rate) + "/s"
	}
	return ev
}
