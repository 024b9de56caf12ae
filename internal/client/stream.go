package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/currax/manudash/internal/domain"
)

// ProgressStream is one open server-push connection to the progress
// endpoint. It is exclusively owned by its download session and must be
// closed exactly once; Close is idempotent.
type ProgressStream struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (s *ProgressStream) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// StreamProgress opens the server-push progress channel for a manuscript.
// Connection open is asynchronous; the returned handle is live immediately
// and the caller does not block on the connect.
//
// onEvent receives parsed events in transport order. Malformed payloads are
// logged and dropped. onErr is invoked at most once, for connection-level
// failures only; progress reporting is best-effort and a stream failure
// never fails the download itself.
func (c *Client) StreamProgress(msid string, onEvent func(domain.StreamEvent), onErr func(error)) io.Closer {
	ctx, cancel := context.WithCancel(context.Background())
	ps := &ProgressStream{cancel: cancel}

	go func() {
		addr := fmt.Sprintf("%s%s/%s/download/progress", c.baseURL, manuscriptsPath, url.PathEscape(msid))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
		if err != nil {
			onErr(fmt.Errorf("creating progress stream request: %v", err))
			return
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := c.dl.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return // closed before the connect finished
			}
			onErr(err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			onErr(fmt.Errorf("progress stream returned status %d", resp.StatusCode))
			return
		}

		consumeEvents(ctx, msid, resp.Body, onEvent, onErr)
	}()

	return ps
}

// consumeEvents reads SSE frames ("data: {...}" lines terminated by a blank
// line) and dispatches each JSON payload in arrival order. No reordering or
// coalescing is performed.
func consumeEvents(ctx context.Context, msid string, r io.Reader, onEvent func(domain.StreamEvent), onErr func(error)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if line == "" { // frame boundary
			if data.Len() > 0 {
				dispatch(msid, data.String(), onEvent)
				data.Reset()
			}
			continue
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			data.WriteString(strings.TrimSpace(payload))
		}
		// "event:" and comment lines carry no payload we need, the type
		// discriminator lives inside the JSON body
	}
	if data.Len() > 0 {
		dispatch(msid, data.String(), onEvent)
	}

	if err := sc.Err(); err != nil && ctx.Err() == nil {
		onErr(fmt.Errorf("reading progress stream: %v", err))
	}
}

func dispatch(msid, payload string, onEvent func(domain.StreamEvent)) {
	var ev domain.StreamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Warn("dropping malformed progress event", "msid", msid, "err", err)
		return
	}
	onEvent(ev)
}
