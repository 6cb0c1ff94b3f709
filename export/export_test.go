package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opdss/tablib/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	files map[string][]byte
	err   error
}

func (m *memStorage) PutStream(_ context.Context, filename string, rs io.Reader) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(rs)
	if err != nil {
		return err
	}
	m.files[filename] = b
	return nil
}

func (m *memStorage) Url(fileKey string) string {
	return "mem://" + fileKey
}

var fixed = func() time.Time {
	return time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
}

func newTable(t *testing.T) *dataset.Table {
	t.Helper()
	spec, err := dataset.StoredSpec("id", "field1")
	require.NoError(t, err)
	tab := dataset.NewTable(spec)
	require.NoError(t, tab.AppendRow("1", "foo"))
	require.NoError(t, tab.AppendRow("2", "bar"))
	return tab
}

func TestNew(t *testing.T) {
	_, err := New(newTable(t), "pdf")
	assert.True(t, ErrUnsupportedFormat.Has(err))

	_, err = New(newTable(t), "csv", WithEncoding("no-such-charset"))
	assert.True(t, ErrExport.Has(err))
}

func TestFilename(t *testing.T) {
	e, err := New(newTable(t), "csv", WithFilename("simple-%Y%m%d"), WithNow(fixed))
	require.NoError(t, err)
	assert.Equal(t, "simple-20240309.csv", e.Filename())
	assert.Equal(t, "text/csv; charset=utf-8", e.ContentType())

	e, err = New(newTable(t), "xls")
	require.NoError(t, err)
	assert.Equal(t, "export.xls", e.Filename())

	e, err = New(newTable(t), "json", WithZip(), WithNow(fixed))
	require.NoError(t, err)
	assert.Equal(t, "export.zip", e.Filename())
	assert.Equal(t, ZipMimeType, e.ContentType())
}

func TestExportTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := ToStream(context.Background(), newTable(t), "csv", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "id,field1\r\n1,foo\r\n2,bar\r\n", buf.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ToStream(ctx, newTable(t), "csv", &buf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExportZip(t *testing.T) {
	e, err := New(newTable(t), "csv", WithZip(), WithFilename("data"), WithNow(fixed))
	require.NoError(t, err)
	b, err := e.Bytes(context.Background())
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "data.csv", zr.File[0].Name)
	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, "id,field1\r\n1,foo\r\n2,bar\r\n", string(content))
}

func TestExportFile(t *testing.T) {
	dir := t.TempDir()
	fp, err := ToFile(context.Background(), newTable(t), "json", WithTempDir(dir), WithFilename("simple"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(fp))
	assert.Equal(t, ".json", filepath.Ext(fp))
	b, err := os.ReadFile(fp)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1","field1":"foo"},{"id":"2","field1":"bar"}]`, string(b))
}

func TestExportToStorage(t *testing.T) {
	fs := &memStorage{files: map[string][]byte{}}
	url, err := ToStorage(context.Background(), newTable(t), "csv", fs, WithFilename("s-%Y"), WithNow(fixed))
	require.NoError(t, err)
	assert.Equal(t, "mem://s-2024.csv", url)
	assert.Equal(t, "id,field1\r\n1,foo\r\n2,bar\r\n", string(fs.files["s-2024.csv"]))

	fs.err = errors.New("down")
	_, err = ToStorage(context.Background(), newTable(t), "csv", fs)
	assert.True(t, ErrExport.Has(err))
}
