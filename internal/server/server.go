// Package server implements the mock review-system API the dashboard talks
// to during development: manuscript listings, zip bundle downloads and the
// per-manuscript progress stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/currax/manudash/internal/bgtask"
	"github.com/currax/manudash/internal/domain"
	"github.com/currax/manudash/internal/mockdata"
	"github.com/justinas/alice"
)

type Server struct {
	// Once Done, the server will exit
	StopCtx context.Context
	// Cancel func for StopCtx
	StopCancel context.CancelFunc
	// Every goroutine must run through BT Run function
	BT *bgtask.BackgroundTask

	addr   string
	corpus *mockdata.Corpus
	hub    *progressHub
	sizes  *sizeCache
	// Throttle is an artificial per-file delay while bundling, so progress
	// events are observable on a fast localhost loop.
	Throttle time.Duration
}

func New(addr string, corpus *mockdata.Corpus) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		StopCtx:    ctx,
		StopCancel: cancel,
		BT:         bgtask.New(),
		addr:       addr,
		corpus:     corpus,
		hub:        newProgressHub(),
		sizes:      newSizeCache(),
	}
}

// Start runs the HTTP server until the stop context is canceled or an OS
// termination signal (SIGINT, SIGTERM) arrives, then shuts down gracefully.
func (s *Server) Start() error {
	server := &http.Server{
		Addr:              s.addr,
		ReadTimeout:       4 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       time.Minute,
		Handler:           s.routes(),
	}
	errChan := s.listenAndShutdown(server)
	s.BT.Run(s.warmBundleSizes)
	slog.Info("Starting mock review API", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listening on address %q: %v", server.Addr, err)
	}
	if err := <-errChan; err != nil {
		return fmt.Errorf("server shutting down: %v", err)
	}
	if err := s.BT.Shutdown(5 * time.Second); err != nil {
		return fmt.Errorf("shutting down background tasks: %v", err)
	}
	return nil
}

func (s *Server) listenAndShutdown(server *http.Server) chan error {
	errChan := make(chan error)
	go func() {
		defer close(errChan)
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-s.StopCtx.Done():
		case <-quit:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			errChan <- fmt.Errorf("shutting down server: %v", err)
		}
	}()
	return errChan
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	std := alice.New(s.recoverPanic, s.logRequest)
	mux.Handle("GET /v1/manuscripts", std.ThenFunc(s.listManuscripts))
	mux.Handle("GET /v1/manuscripts/{id}", std.ThenFunc(s.getManuscript))
	mux.Handle("GET /v1/manuscripts/{id}/download", std.ThenFunc(s.downloadBundle))
	mux.Handle("GET /v1/manuscripts/{id}/download/progress", std.ThenFunc(s.streamProgress))
	return mux
}

func (s *Server) listManuscripts(w http.ResponseWriter, r *http.Request) {
	if err := s.writeJSON(w, envelop{"manuscripts": s.corpus.List()}, http.StatusOK, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) getManuscript(w http.ResponseWriter, r *http.Request) {
	ms, ok := s.corpus.Get(r.PathValue("id"))
	if !ok {
		s.notFoundResponse(w, r)
		return
	}
	if err := s.writeJSON(w, envelop{"manuscript": ms}, http.StatusOK, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	msid := r.PathValue("id")
	if _, ok := s.corpus.Get(msid); !ok {
		s.notFoundResponse(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.serverErrorResponse(w, r, fmt.Errorf("streaming unsupported by %T", w))
		return
	}
	flusher.Flush()

	events, unsubscribe := s.hub.subscribe(msid)
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.StopCtx.Done():
			return
		case ev := <-events:
			if err := writeEvent(w, ev); err != nil {
				slog.Error("writing progress event", "msid", msid, "err", err)
				return
			}
			flusher.Flush()
			if ev.Type != domain.EventProgress {
				// terminal event, the stream is done
				return
			}
		}
	}
}
