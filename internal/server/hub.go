package server

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/currax/manudash/internal/domain"
)

// progressHub fans progress events out to the stream subscribers of each
// manuscript. Publishing never blocks, a subscriber that cannot keep up
// loses events and catches up on the next snapshot.
type progressHub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.StreamEvent]struct{}
}

func newProgressHub() *progressHub {
	return &progressHub{subs: make(map[string]map[chan domain.StreamEvent]struct{})}
}

func (h *progressHub) subscribe(msid string) (<-chan domain.StreamEvent, func()) {
	ch := make(chan domain.StreamEvent, 32)
	h.mu.Lock()
	if h.subs[msid] == nil {
		h.subs[msid] = make(map[chan domain.StreamEvent]struct{})
	}
	h.subs[msid][ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs[msid], ch)
		if len(h.subs[msid]) == 0 {
			delete(h.subs, msid)
		}
		h.mu.Unlock()
	}
}

func (h *progressHub) publish(msid string, ev domain.StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[msid] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// writeEvent frames one event for the wire: a data line with the JSON
// payload, then a blank line.
func writeEvent(w io.Writer, ev domain.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
