package archiver

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/currax/manudash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFiles() []domain.FileEntry {
	return []domain.FileEntry{
		{Name: "manuscript.pdf", Type: "application/pdf", Content: []byte("%PDF-1.7 fake body")},
		{Name: "figures/fig1.tif", Type: "image/tiff", Content: bytes.Repeat([]byte{0xAB}, 2048)},
		{Name: "source_data/table1.csv", Type: "text/csv", Content: []byte("gene,expression\nTP53,2.4\n")},
	}
}

func TestWriteBundle(t *testing.T) {
	var reports []Progress
	a := New(func(p Progress) { reports = append(reports, p) })

	buf := new(bytes.Buffer)
	files := testFiles()
	require.NoError(t, a.WriteBundle(t.Context(), buf, files))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err, "bundle must be a valid zip")
	require.Len(t, zr.File, len(files))

	for i, zf := range zr.File {
		assert.Equal(t, files[i].Name, zf.Name)
		rc, err := zf.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.NoError(t, rc.Close())
		assert.Equal(t, files[i].Content, got, "content of %q must round-trip", zf.Name)
	}

	// one report per file plus the final one
	require.Len(t, reports, len(files)+1)
	assert.Equal(t, "manuscript.pdf", reports[0].CurrentFile)
	assert.Equal(t, len(files), reports[len(reports)-1].DoneFiles)
	assert.Positive(t, reports[len(reports)-1].BytesWritten)
}

func TestWriteBundleCompressionByType(t *testing.T) {
	a := New(nil)
	buf := new(bytes.Buffer)
	require.NoError(t, a.WriteBundle(t.Context(), buf, testFiles()))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	methods := make(map[string]uint16, len(zr.File))
	for _, zf := range zr.File {
		methods[zf.Name] = zf.Method
	}
	assert.Equal(t, uint16(Store), methods["manuscript.pdf"], "pdf must be stored")
	assert.Equal(t, uint16(Store), methods["figures/fig1.tif"], "image must be stored")
	assert.Equal(t, uint16(Deflate), methods["source_data/table1.csv"], "csv must be deflated")
}

func TestWriteBundleCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	a := New(nil)
	err := a.WriteBundle(ctx, new(bytes.Buffer), testFiles())
	assert.ErrorIs(t, err, context.Canceled)
}
