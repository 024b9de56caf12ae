package server

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/currax/manudash/internal/domain"
	"github.com/currax/manudash/internal/mockdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New("localhost:0", mockdata.NewCorpus(42, 5))
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestListManuscripts(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/manuscripts")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Manuscripts []domain.Manuscript `json:"manuscripts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Manuscripts, 5)
	for _, ms := range body.Manuscripts {
		assert.NotEmpty(t, ms.MSID)
		assert.NotEmpty(t, ms.Files)
	}
}

func TestGetManuscript(t *testing.T) {
	s, ts := newTestServer(t)
	msid := s.corpus.List()[0].MSID

	resp, err := http.Get(ts.URL + "/v1/manuscripts/" + msid)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Manuscript domain.Manuscript `json:"manuscript"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, msid, body.Manuscript.MSID)

	resp, err = http.Get(ts.URL + "/v1/manuscripts/EMM-0000-0000")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadBundle(t *testing.T) {
	s, ts := newTestServer(t)
	msid := s.corpus.List()[0].MSID

	resp, err := http.Get(ts.URL + "/v1/manuscripts/" + msid + "/download?format=zip&type=essential")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), msid+"_essential_files.zip")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	want, _ := s.corpus.Files(msid, domain.EssentialFiles)
	assert.Len(t, zr.File, len(want))
}

func TestDownloadBundleSizeHeader(t *testing.T) {
	s, ts := newTestServer(t)
	s.warmBundleSizes(context.Background())
	msid := s.corpus.List()[0].MSID

	resp, err := http.Get(ts.URL + "/v1/manuscripts/" + msid + "/download?type=all")
	require.NoError(t, err)
	defer resp.Body.Close()

	size, err := strconv.ParseInt(resp.Header.Get("X-Bundle-Size"), 10, 64)
	require.NoError(t, err, "warmed downloads must advertise their bundle size")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, size, int64(len(raw)), "advertised size must match the served bundle")
}

func TestDownloadBundleRejectsUnknownFormat(t *testing.T) {
	s, ts := newTestServer(t)
	msid := s.corpus.List()[0].MSID

	resp, err := http.Get(ts.URL + "/v1/manuscripts/" + msid + "/download?format=tar")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProgressStreamDeliversEvents(t *testing.T) {
	s, ts := newTestServer(t)
	msid := s.corpus.List()[0].MSID

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/manuscripts/"+msid+"/download/progress", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// give the subscription a moment to register before downloading
	time.Sleep(50 * time.Millisecond)
	dlResp, err := http.Get(ts.URL + "/v1/manuscripts/" + msid + "/download?format=zip&type=all")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, dlResp.Body)
	dlResp.Body.Close()

	var events []domain.StreamEvent
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev domain.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &ev))
		events = append(events, ev)
		if ev.Type != domain.EventProgress {
			break
		}
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventComplete, last.Type)
	assert.Equal(t, msid+"_all_files.zip", last.Filename)
	assert.Equal(t, last.TotalFiles, last.SuccessfulFiles)
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, domain.EventProgress, ev.Type)
	}
}

func TestProgressStreamUnknownManuscript(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/manuscripts/EMM-0000-0000/download/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
