package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/currax/manudash/internal/domain"
)

// Archive is an in-flight zip bundle response. The caller owns Body and
// must close it.
type Archive struct {
	// Filename as suggested by the server, or the generated fallback
	Filename string
	Body     io.ReadCloser
}

// FetchArchive triggers the server-side zip-assembly job for a manuscript
// and returns the response stream. The request is aborted when ctx is
// canceled; callers must distinguish that from a real failure via
// context.Canceled.
func (c *Client) FetchArchive(ctx context.Context, msid string, kind domain.FileKind) (*Archive, error) {
	addr := fmt.Sprintf("%s%s/%s/download?format=zip&type=%s",
		c.baseURL, manuscriptsPath, url.PathEscape(msid), url.QueryEscape(string(kind)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %v", err)
	}

	resp, err := c.dl.Do(req)
	if err != nil {
		return nil, err // may wrap context.Canceled, keep the chain intact
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return &Archive{
		Filename: archiveFilename(resp.Header.Get("Content-Disposition"), msid, kind),
		Body:     resp.Body,
	}, nil
}

// archiveFilename extracts the suggested filename from a Content-Disposition
// header, falling back to "{msid}_{kind}_files.zip" when the header is
// absent or unparseable.
func archiveFilename(disposition, msid string, kind domain.FileKind) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	return fmt.Sprintf("%s_%s_files.zip", msid, kind)
}
