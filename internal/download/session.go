package download

import (
	"io"
	"time"

	"github.com/currax/manudash/internal/domain"
)

// session is the full state and resource bundle for one in-flight or
// recently-finished download of one manuscript. The stream handle and the
// cancel func are exclusively owned by the session; once released they are
// never reused, a superseding start allocates fresh ones.
type session struct {
	msid, title  string
	kind         domain.FileKind
	startedAt    time.Time
	active       bool
	toastVisible bool
	// prog is the last-writer-wins snapshot; nil means no entry, which is
	// distinct from a zero snapshot
	prog   *domain.DownloadProgress
	stream io.Closer
	cancel func()

	cleanupTimer, toastTimer, alertTimer *time.Timer
}

// release frees every resource the session owns. Safe to call more than
// once and on partially-initialized sessions. Callers hold the manager
// mutex.
func (s *session) release() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}
	for _, t := range []*time.Timer{s.cleanupTimer, s.toastTimer, s.alertTimer} {
		if t != nil {
			t.Stop()
		}
	}
	s.active = false
	s.toastVisible = false
	s.prog = nil
}

// SessionView is a copy of one session's renderable state, safe to hold
// outside the manager's lock.
type SessionView struct {
	MSID      string
	Title     string
	Kind      domain.FileKind
	StartedAt time.Time
	Active    bool
	Progress  *domain.DownloadProgress
}
