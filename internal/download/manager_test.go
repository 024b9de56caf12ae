package download

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/currax/manudash/internal/client"
	"github.com/currax/manudash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	closed atomic.Int32
}

func (f *fakeStream) Close() error {
	f.closed.Add(1)
	return nil
}

// fakeUpstream captures the per-manuscript event handlers so tests can play
// the server's role on both channels.
type fakeUpstream struct {
	mu      sync.Mutex
	fetchFn func(ctx context.Context, msid string, kind domain.FileKind) (*client.Archive, error)
	events  map[string]func(domain.StreamEvent)
	errs    map[string]func(error)
	streams map[string][]*fakeStream
}

func newFakeUpstream(fetchFn func(ctx context.Context, msid string, kind domain.FileKind) (*client.Archive, error)) *fakeUpstream {
	return &fakeUpstream{
		fetchFn: fetchFn,
		events:  make(map[string]func(domain.StreamEvent)),
		errs:    make(map[string]func(error)),
		streams: make(map[string][]*fakeStream),
	}
}

func (f *fakeUpstream) FetchArchive(ctx context.Context, msid string, kind domain.FileKind) (*client.Archive, error) {
	return f.fetchFn(ctx, msid, kind)
}

func (f *fakeUpstream) StreamProgress(msid string, onEvent func(domain.StreamEvent), onErr func(error)) io.Closer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[msid] = onEvent
	f.errs[msid] = onErr
	st := &fakeStream{}
	f.streams[msid] = append(f.streams[msid], st)
	return st
}

func (f *fakeUpstream) push(msid string, ev domain.StreamEvent) {
	f.mu.Lock()
	fn := f.events[msid]
	f.mu.Unlock()
	fn(ev)
}

func (f *fakeUpstream) breakStream(msid string, err error) {
	f.mu.Lock()
	fn := f.errs[msid]
	f.mu.Unlock()
	fn(err)
}

// blockingFetch hangs until the session's cancel handle fires, keeping the
// session in-flight for as long as the test needs it.
func blockingFetch(ctx context.Context, _ string, _ domain.FileKind) (*client.Archive, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func instantFetch(name string) func(ctx context.Context, msid string, kind domain.FileKind) (*client.Archive, error) {
	return func(_ context.Context, _ string, _ domain.FileKind) (*client.Archive, error) {
		return &client.Archive{
			Filename: name,
			Body:     io.NopCloser(strings.NewReader("zip-bytes")),
		}, nil
	}
}

func newTestManager(t *testing.T, up Upstream) *Manager {
	t.Helper()
	m := New(up, t.TempDir())
	m.CleanupDelay = 60 * time.Millisecond
	m.ToastHideDelay = 60 * time.Millisecond
	m.AlertDelay = 20 * time.Millisecond
	return m
}

func TestRegistryIsolation(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("A"); m.AbortDownload("B") })

	m.StartDownload("A", "Manuscript A", domain.EssentialFiles, false)
	m.StartDownload("B", "Manuscript B", domain.AllFiles, false)

	up.push("A", domain.StreamEvent{Type: domain.EventProgress, Status: "downloading", Progress: 42, CurrentFile: "fig1.tif"})

	got, ok := m.Progress("A")
	require.True(t, ok, "A must have a progress entry after its event")
	assert.Equal(t, 42, got.Progress)

	_, ok = m.Progress("B")
	assert.False(t, ok, "B must not receive A's progress")
	assert.True(t, m.Active("B"), "B must stay active and untouched")
}

func TestProgressEventRoundTrip(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("M1") })

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	up.push("M1", domain.StreamEvent{
		Type:            domain.EventProgress,
		Status:          "downloading",
		Progress:        50,
		TotalFiles:      10,
		DownloadedFiles: 5,
		CurrentFile:     "test.pdf",
	})

	got, ok := m.Progress("M1")
	require.True(t, ok)
	assert.Exactly(t, domain.DownloadProgress{
		Status:          "downloading",
		Progress:        50,
		TotalFiles:      10,
		DownloadedFiles: 5,
		CurrentFile:     "test.pdf",
	}, got)
}

func TestCompleteEventRemapping(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("M1") })

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	up.push("M1", domain.StreamEvent{
		Type:            domain.EventComplete,
		Status:          "completed",
		Progress:        100,
		TotalFiles:      10,
		SuccessfulFiles: 10,
		Filename:        "test.zip",
	})

	got, ok := m.Progress("M1")
	require.True(t, ok)
	assert.Equal(t, 10, got.DownloadedFiles, "successfulFiles must map onto downloadedFiles")
	assert.Equal(t, "test.zip", got.CurrentFile, "filename must map onto currentFile")
	assert.Equal(t, "completed", got.Status)
}

func TestFetchErrorPath(t *testing.T) {
	up := newFakeUpstream(func(context.Context, string, domain.FileKind) (*client.Archive, error) {
		return nil, errors.New("Network error")
	})
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("M1") })

	m.StartDownload("M1", "Some Title", domain.AllFiles, false)

	assert.Eventually(t, func() bool {
		p, ok := m.Progress("M1")
		return ok && p.Status == StatusFailed
	}, time.Second, 5*time.Millisecond, "fetch failure must land in the snapshot")

	p, _ := m.Progress("M1")
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, 0, p.Progress)
	assert.Equal(t, "Network error", p.CurrentFile)

	select {
	case a := <-m.Alerts():
		assert.Equal(t, "M1", a.MSID)
		assert.Equal(t, "Some Title", a.Title)
		assert.Equal(t, "Network error", a.Message)
	case <-time.After(time.Second):
		t.Fatal("expected a failure alert")
	}
}

func TestIdempotentAbort(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	up.push("M1", domain.StreamEvent{Type: domain.EventProgress, Status: "downloading", Progress: 10})

	m.AbortDownload("M1")
	m.AbortDownload("M1") // second call must be a no-op
	m.AbortDownload("never-started")

	assert.False(t, m.Active("M1"))
	assert.False(t, m.ToastVisible("M1"))
	_, ok := m.Progress("M1")
	assert.False(t, ok, "abort must delete the progress entry, not mark it terminal")

	up.mu.Lock()
	closed := up.streams["M1"][0].closed.Load()
	up.mu.Unlock()
	assert.GreaterOrEqual(t, closed, int32(1), "abort must close the stream handle")
}

func TestAbortAfterCompletionDoesNotResurrect(t *testing.T) {
	up := newFakeUpstream(instantFetch("M1_essential_files.zip"))
	m := newTestManager(t, up)

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	assert.Eventually(t, func() bool { return !m.Active("M1") }, time.Second, 5*time.Millisecond)

	m.AbortDownload("M1")
	assert.False(t, m.Active("M1"))
	assert.False(t, m.ToastVisible("M1"))
	_, ok := m.Progress("M1")
	assert.False(t, ok)
}

func TestTerminalCleanupTiming(t *testing.T) {
	fetched := make(chan struct{})
	up := newFakeUpstream(func(context.Context, string, domain.FileKind) (*client.Archive, error) {
		defer close(fetched)
		return &client.Archive{Filename: "b.zip", Body: io.NopCloser(strings.NewReader("x"))}, nil
	})
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("M1") })

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	<-fetched

	// terminal, but inside the cleanup window: still active, toast still up
	assert.True(t, m.Active("M1"), "active must not drop immediately on completion")
	assert.True(t, m.ToastVisible("M1"))

	assert.Eventually(t, func() bool { return !m.Active("M1") }, time.Second, 5*time.Millisecond,
		"active must drop after the cleanup delay")
	assert.True(t, m.ToastVisible("M1"), "toast must outlive the active flag")

	assert.Eventually(t, func() bool { return !m.ToastVisible("M1") }, time.Second, 5*time.Millisecond,
		"toast must drop after the toast-hide delay")
}

func TestAbortSuppressesFailureAlert(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	m.AbortDownload("M1")

	time.Sleep(m.CleanupDelay + m.AlertDelay + 50*time.Millisecond)

	select {
	case a := <-m.Alerts():
		t.Fatalf("abort must not raise a failure alert, got %+v", a)
	default:
	}
	_, ok := m.Progress("M1")
	assert.False(t, ok, "abort must delete progress, not set an error state")
}

func TestHideToastWithoutAbort(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("M1") })

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	m.HideToast("M1")

	assert.False(t, m.ToastVisible("M1"))
	assert.True(t, m.Active("M1"), "hiding the toast must not stop the session")

	up.push("M1", domain.StreamEvent{Type: domain.EventProgress, Status: "downloading", Progress: 77})
	p, ok := m.Progress("M1")
	require.True(t, ok, "a hidden session must keep receiving progress")
	assert.Equal(t, 77, p.Progress)

	// a fresh start brings the toast back
	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	assert.True(t, m.ToastVisible("M1"))
}

func TestStartSupersedesPriorSession(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("M1") })

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	up.mu.Lock()
	staleEvent := up.events["M1"]
	up.mu.Unlock()

	m.StartDownload("M1", "Title", domain.AllFiles, false)

	up.mu.Lock()
	first := up.streams["M1"][0].closed.Load()
	second := up.streams["M1"][1].closed.Load()
	up.mu.Unlock()
	assert.GreaterOrEqual(t, first, int32(1), "superseded stream must be closed")
	assert.Zero(t, second, "fresh stream must stay open")

	// a late event from the superseded stream must not touch the new session
	staleEvent(domain.StreamEvent{Type: domain.EventProgress, Status: "stale", Progress: 99})
	_, ok := m.Progress("M1")
	assert.False(t, ok, "stale writer must not mutate the superseding session")
	assert.True(t, m.Active("M1"))
}

func TestStreamTransportErrorDegradesOnly(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("M1") })

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	up.breakStream("M1", errors.New("connection refused"))

	p, ok := m.Progress("M1")
	require.True(t, ok)
	assert.Equal(t, StatusConnError, p.Status)
	assert.Equal(t, "Failed to connect to download progress", p.CurrentFile)
	assert.True(t, m.Active("M1"), "a broken stream must not fail the download")
}

func TestUnrecognizedEventDropped(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("M1") })

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	up.push("M1", domain.StreamEvent{Type: "telemetry", Status: "???", Progress: 12})

	_, ok := m.Progress("M1")
	assert.False(t, ok, "unknown event types must not mutate state")
}

func TestCancelledEventDefaults(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("M1") })

	m.StartDownload("M1", "Title", domain.EssentialFiles, false)
	up.push("M1", domain.StreamEvent{Type: domain.EventCancelled})

	p, ok := m.Progress("M1")
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, p.Status)
	assert.Equal(t, 0, p.Progress)
	assert.NotEmpty(t, p.CurrentFile, "cancelled without a message must fall back to a default text")

	up.push("M1", domain.StreamEvent{Type: domain.EventCancelled, Progress: 40, Message: "job evicted"})
	p, _ = m.Progress("M1")
	assert.Equal(t, 40, p.Progress)
	assert.Equal(t, "job evicted", p.CurrentFile)
}

func TestErrorEventRaisesAlert(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)
	t.Cleanup(func() { m.AbortDownload("M1") })

	m.StartDownload("M1", "Important MS", domain.EssentialFiles, false)
	up.push("M1", domain.StreamEvent{Type: domain.EventError, Error: "disk full"})

	p, ok := m.Progress("M1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, "disk full", p.CurrentFile)

	select {
	case a := <-m.Alerts():
		assert.Equal(t, "disk full", a.Message)
		assert.Equal(t, "Important MS", a.Title)
	case <-time.After(time.Second):
		t.Fatal("expected the stream error to raise the failure alert")
	}
}

func TestBundleSavedToDownloadFolder(t *testing.T) {
	up := newFakeUpstream(instantFetch("EMM-2024-0117_essential_files.zip"))
	dir := t.TempDir()
	m := New(up, dir)
	m.CleanupDelay = 30 * time.Millisecond
	m.ToastHideDelay = 30 * time.Millisecond
	t.Cleanup(func() { m.AbortDownload("EMM-2024-0117") })

	m.StartDownload("EMM-2024-0117", "Title", domain.EssentialFiles, false)

	path := filepath.Join(dir, "EMM-2024-0117_essential_files.zip")
	assert.Eventually(t, func() bool {
		b, err := os.ReadFile(path)
		return err == nil && string(b) == "zip-bytes"
	}, time.Second, 5*time.Millisecond, "bundle must be saved under the suggested filename")
}

func TestActiveIDsSorted(t *testing.T) {
	up := newFakeUpstream(blockingFetch)
	m := newTestManager(t, up)
	t.Cleanup(func() {
		for _, id := range []string{"a", "b", "c"} {
			m.AbortDownload(id)
		}
	})

	for _, id := range []string{"c", "a", "b"} {
		m.StartDownload(id, "t", domain.EssentialFiles, false)
	}
	assert.Equal(t, []string{"a", "b", "c"}, m.ActiveIDs())
}
