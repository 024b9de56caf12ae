// Package download owns the per-manuscript download sessions: it triggers
// the server-side zip-assembly job, consumes the server-push progress
// channel, supports cancellation, and guarantees cleanup on success,
// failure, and user abort.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/currax/manudash/internal/client"
	"github.com/currax/manudash/internal/domain"
)

// Terminal status texts written into progress snapshots.
const (
	StatusFailed    = "Download failed"
	StatusCancelled = "Download cancelled"
	StatusConnError = "Connection error"
)

const (
	defaultCleanupDelay   = 5 * time.Second
	defaultToastHideDelay = 10 * time.Second
	defaultAlertDelay     = 300 * time.Millisecond
)

// Upstream is the slice of the review API this package consumes: the
// download trigger and the progress push channel. *client.Client satisfies
// it; tests substitute fakes.
type Upstream interface {
	FetchArchive(ctx context.Context, msid string, kind domain.FileKind) (*client.Archive, error)
	StreamProgress(msid string, onEvent func(domain.StreamEvent), onErr func(error)) io.Closer
}

// Alert is a failure that must be surfaced to the user through a blocking
// dialog, in addition to the inline progress snapshot. Downloads are often
// multi-minute operations and the user may not be watching the panel.
type Alert struct {
	MSID    string
	Title   string
	Message string
}

// Manager is the session registry plus lifecycle controller. All session
// state lives behind one mutex; sessions for different manuscripts never
// share state beyond the map itself.
type Manager struct {
	// CleanupDelay is how long a terminal session stays registered as
	// active before its resources are released. ToastHideDelay runs after
	// that and hides the toast unless the user already dismissed it.
	// AlertDelay postpones the failure dialog slightly so the inline
	// status lands first. Adjust before the first StartDownload.
	CleanupDelay   time.Duration
	ToastHideDelay time.Duration
	AlertDelay     time.Duration

	upstream Upstream
	dir      string

	mu       sync.Mutex
	sessions map[string]*session

	updates chan string
	alerts  chan Alert
}

// New creates a Manager saving finished bundles into downloadDir.
func New(upstream Upstream, downloadDir string) *Manager {
	return &Manager{
		CleanupDelay:   defaultCleanupDelay,
		ToastHideDelay: defaultToastHideDelay,
		AlertDelay:     defaultAlertDelay,
		upstream:       upstream,
		dir:            downloadDir,
		sessions:       make(map[string]*session),
		updates:        make(chan string, 100),
		alerts:         make(chan Alert, 8),
	}
}

// Updates emits the manuscript id whose session state changed. Sends are
// non-blocking; a slow consumer misses intermediate updates, never state.
func (m *Manager) Updates() <-chan string { return m.updates }

// Alerts emits failure dialogs for the UI to render modally.
func (m *Manager) Alerts() <-chan Alert { return m.alerts }

// StartDownload begins a download session for one manuscript and returns
// immediately; all outcomes are observed through the registry, never
// returned. A session already registered under msid is superseded: its
// cancel handle and stream are released and fresh ones are allocated.
//
// useRemoteAPI does not alter the request today; both sources key the
// download by the same manuscript id, so a single code path is kept.
func (m *Manager) StartDownload(msid, title string, kind domain.FileKind, useRemoteAPI bool) {
	if msid == "" {
		slog.Warn("ignoring download start with empty manuscript id")
		return
	}
	_ = useRemoteAPI

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		msid:         msid,
		title:        title,
		kind:         kind,
		startedAt:    time.Now(),
		active:       true,
		toastVisible: true,
		cancel:       cancel,
	}

	m.mu.Lock()
	if old := m.sessions[msid]; old != nil {
		old.release() // last allocation wins
	}
	m.sessions[msid] = s
	m.mu.Unlock()
	m.notify(msid)

	// the push channel opens asynchronously; progress is best-effort and
	// decoupled from the transfer itself
	stream := m.upstream.StreamProgress(msid,
		func(ev domain.StreamEvent) { m.applyEvent(s, ev) },
		func(err error) { m.streamBroken(s, err) },
	)
	m.mu.Lock()
	if m.sessions[msid] == s {
		s.stream = stream
	} else {
		_ = stream.Close() // superseded while connecting
	}
	m.mu.Unlock()

	go m.run(ctx, s)
}

// run drives one session from fetch to terminal state and schedules the
// delayed cleanup that follows every outcome.
func (m *Manager) run(ctx context.Context, s *session) {
	err := m.fetchAndSave(ctx, s)
	if err != nil && !errors.Is(err, context.Canceled) {
		// user cancellation is owned by AbortDownload and must never
		// reach the failure surfaces
		m.failSession(s, err.Error())
	}
	m.scheduleCleanup(s)
}

func (m *Manager) fetchAndSave(ctx context.Context, s *session) error {
	a, err := m.upstream.FetchArchive(ctx, s.msid, s.kind)
	if err != nil {
		return err
	}
	defer a.Body.Close()

	path := filepath.Join(m.dir, a.Filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %q: %v", path, err)
	}
	if _, err = io.Copy(f, a.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(path) // don't leave a truncated bundle behind
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing %q: %v", path, err)
	}
	slog.Info("bundle saved", "msid", s.msid, "file", path)
	return nil
}

// failSession records the terminal failure snapshot and schedules the
// blocking alert. Fetch errors, non-2xx responses, and body-read errors all
// funnel through here; a user-initiated transfer never fails silently.
func (m *Manager) failSession(s *session, errText string) {
	m.mu.Lock()
	if m.sessions[s.msid] != s {
		m.mu.Unlock()
		return
	}
	s.prog = &domain.DownloadProgress{
		Status:      StatusFailed,
		Progress:    0,
		CurrentFile: errText,
	}
	m.scheduleAlertLocked(s, errText)
	m.mu.Unlock()
	m.notify(s.msid)
}

// scheduleAlertLocked arms the delayed failure dialog. Callers hold m.mu.
func (m *Manager) scheduleAlertLocked(s *session, errText string) {
	if s.alertTimer != nil {
		s.alertTimer.Stop()
	}
	s.alertTimer = time.AfterFunc(m.AlertDelay, func() {
		m.mu.Lock()
		current := m.sessions[s.msid] == s
		m.mu.Unlock()
		if !current { // aborted or superseded before the timer fired
			return
		}
		trySend(m.alerts, Alert{MSID: s.msid, Title: s.title, Message: errText})
	})
}

// scheduleCleanup arms the two-stage teardown: resources after
// CleanupDelay, toast after ToastHideDelay more. Both callbacks re-check
// that the session is still the current one for its id, so a late timer can
// never clear a superseding session's state.
func (m *Manager) scheduleCleanup(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.msid] != s {
		return
	}
	s.cleanupTimer = time.AfterFunc(m.CleanupDelay, func() {
		m.mu.Lock()
		if m.sessions[s.msid] != s {
			m.mu.Unlock()
			return
		}
		if s.stream != nil {
			_ = s.stream.Close()
			s.stream = nil
		}
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.active = false
		s.toastTimer = time.AfterFunc(m.ToastHideDelay, func() {
			m.mu.Lock()
			if m.sessions[s.msid] != s {
				m.mu.Unlock()
				return
			}
			s.toastVisible = false
			m.mu.Unlock()
			m.notify(s.msid)
		})
		m.mu.Unlock()
		m.notify(s.msid)
	})
}

// AbortDownload tears the session down synchronously: the in-flight fetch
// is aborted, the stream closed, the id dropped from the active set, the
// toast hidden, and the progress entry deleted entirely so a stale panel
// cannot render. Idempotent; safe with no session registered.
func (m *Manager) AbortDownload(msid string) {
	m.mu.Lock()
	s := m.sessions[msid]
	if s == nil {
		m.mu.Unlock()
		return
	}
	s.release()
	delete(m.sessions, msid)
	m.mu.Unlock()
	m.notify(msid)
}

// HideToast hides the progress toast without touching the session. A hidden
// download keeps running and keeps receiving progress in the background.
func (m *Manager) HideToast(msid string) {
	m.mu.Lock()
	s := m.sessions[msid]
	if s != nil {
		s.toastVisible = false
	}
	m.mu.Unlock()
	if s != nil {
		m.notify(msid)
	}
}

// applyEvent dispatches one stream message into the session's snapshot.
// The snapshot is replaced wholesale on every event, last writer wins;
// events are trusted verbatim and never merged field by field.
func (m *Manager) applyEvent(s *session, ev domain.StreamEvent) {
	m.mu.Lock()
	if m.sessions[s.msid] != s {
		m.mu.Unlock()
		return
	}
	switch ev.Type {
	case domain.EventProgress:
		s.prog = &domain.DownloadProgress{
			Status:          ev.Status,
			Progress:        ev.Progress,
			CurrentFile:     ev.CurrentFile,
			TotalFiles:      ev.TotalFiles,
			DownloadedFiles: ev.DownloadedFiles,
			CurrentFileSize: ev.CurrentFileSize,
			DownloadSpeed:   ev.DownloadSpeed,
		}
	case domain.EventComplete:
		s.prog = &domain.DownloadProgress{
			Status:          ev.Status,
			Progress:        ev.Progress,
			CurrentFile:     ev.Filename,
			TotalFiles:      ev.TotalFiles,
			DownloadedFiles: ev.SuccessfulFiles,
		}
	case domain.EventError:
		s.prog = &domain.DownloadProgress{
			Status:      StatusFailed,
			Progress:    0,
			CurrentFile: ev.Error,
		}
		m.scheduleAlertLocked(s, ev.Error)
	case domain.EventCancelled:
		msg := ev.Message
		if msg == "" {
			msg = "Cancelled by the server"
		}
		s.prog = &domain.DownloadProgress{
			Status:      StatusCancelled,
			Progress:    ev.Progress,
			CurrentFile: msg,
		}
	default:
		m.mu.Unlock()
		slog.Warn("dropping unrecognized progress event", "msid", s.msid, "type", ev.Type)
		return
	}
	m.mu.Unlock()
	m.notify(s.msid)
}

// streamBroken degrades progress reporting after a connection-level stream
// failure. The session stays alive: the blob fetch may still succeed on its
// own channel.
func (m *Manager) streamBroken(s *session, err error) {
	slog.Warn("progress stream failed", "msid", s.msid, "err", err)
	m.mu.Lock()
	if m.sessions[s.msid] != s {
		m.mu.Unlock()
		return
	}
	s.prog = &domain.DownloadProgress{
		Status:      StatusConnError,
		Progress:    0,
		CurrentFile: "Failed to connect to download progress",
	}
	m.mu.Unlock()
	m.notify(s.msid)
}

// Active reports whether a session is registered and not yet cleaned up.
func (m *Manager) Active(msid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[msid]
	return s != nil && s.active
}

// ActiveIDs returns the ids of all active sessions, sorted for stable
// rendering.
func (m *Manager) ActiveIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s.active {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Progress returns the session's snapshot, reporting false when no entry
// exists for the id.
func (m *Manager) Progress(msid string) (domain.DownloadProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[msid]
	if s == nil || s.prog == nil {
		return domain.DownloadProgress{}, false
	}
	return *s.prog, true
}

// ToastVisible reports whether the progress toast for the id should render.
func (m *Manager) ToastVisible(msid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[msid]
	return s != nil && s.toastVisible
}

// Toasts returns a render-ready view of every toast-visible session,
// oldest first.
func (m *Manager) Toasts() []SessionView {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := make([]SessionView, 0, len(m.sessions))
	for _, s := range m.sessions {
		if !s.toastVisible {
			continue
		}
		v := SessionView{
			MSID:      s.msid,
			Title:     s.title,
			Kind:      s.kind,
			StartedAt: s.startedAt,
			Active:    s.active,
		}
		if s.prog != nil {
			p := *s.prog
			v.Progress = &p
		}
		views = append(views, v)
	}
	slices.SortFunc(views, func(a, b SessionView) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return views
}

func (m *Manager) notify(msid string) {
	trySend(m.updates, msid)
}

func trySend[T any](ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}
