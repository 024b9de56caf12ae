package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/currax/manudash/internal/domain"
)

const manuscriptsPath = "/v1/manuscripts"

// Client talks to the upstream manuscript review API.
type Client struct {
	// api serves the short JSON calls, dl the long-running archive
	// fetches and progress streams, which are bounded by contexts
	// instead of a client timeout.
	api     *http.Client
	dl      *http.Client
	baseURL string
}

func New(baseURL string) *Client {
	return &Client{
		api:     &http.Client{Timeout: 10 * time.Second},
		dl:      &http.Client{},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// LimitConcurrentDownloads caps the simultaneous archive fetches and
// progress streams at n connections per host. Zero or negative leaves the
// transport unbounded.
func (c *Client) LimitConcurrentDownloads(n int) {
	if n <= 0 {
		return
	}
	c.dl.Transport = &http.Transport{MaxConnsPerHost: n}
}

// Manuscripts fetches the validation queue listing.
func (c *Client) Manuscripts(ctx context.Context) ([]domain.Manuscript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+manuscriptsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %v", err)
	}

	resp, err := c.api.Do(req)
	var urlErr *url.Error
	if err != nil {
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, fmt.Errorf("listing manuscripts: request timed out")
		}
		return nil, fmt.Errorf("listing manuscripts: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d while listing manuscripts", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading manuscript listing response: %v", err)
	}

	var r map[string][]domain.Manuscript
	if err = json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parsing manuscript listing JSON: %v", err)
	}

	return r["manuscripts"], nil
}

// Manuscript fetches a single manuscript with its figures, QC checks and
// linked identifiers.
func (c *Client) Manuscript(ctx context.Context, msid string) (*domain.Manuscript, error) {
	addr := fmt.Sprintf("%s%s/%s", c.baseURL, manuscriptsPath, url.PathEscape(msid))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %v", err)
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching manuscript %q: %v", msid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("manuscript %q not found", msid)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d while fetching manuscript %q", resp.StatusCode, msid)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading manuscript response: %v", err)
	}

	var r map[string]*domain.Manuscript
	if err = json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parsing manuscript JSON: %v", err)
	}

	return r["manuscript"], nil
}
