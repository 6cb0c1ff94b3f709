package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewLocal(LocalConfig{Root: dir, Endpoint: "http://localhost/files/"})
	require.NoError(t, err)

	require.NoError(t, fs.PutStream(ctx, "/reports/simple.csv", strings.NewReader("id,title\r\n1,foo\r\n")))
	assert.True(t, fs.Exists(ctx, "reports/simple.csv"))
	assert.False(t, fs.Missing(ctx, "./reports/simple.csv"))
	assert.Equal(t, "http://localhost/files/reports/simple.csv", fs.Url("reports/simple.csv"))

	content, err := fs.Get(ctx, "reports/simple.csv")
	require.NoError(t, err)
	assert.Equal(t, "id,title\r\n1,foo\r\n", string(content))

	size, err := fs.Size(ctx, "reports/simple.csv")
	require.NoError(t, err)
	assert.EqualValues(t, len(content), size)

	mime, err := fs.MimeType(ctx, "reports/simple.csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", mime)

	_, err = fs.LastModified(ctx, "reports/simple.csv")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "reports"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, fs.Delete(ctx, "reports/simple.csv"))
	assert.True(t, fs.Missing(ctx, "reports/simple.csv"))

	err = fs.Delete(ctx, "reports")
	assert.True(t, ErrStorage.Has(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("broken")
}

func TestLocalPutStreamFailure(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewLocal(LocalConfig{Root: dir})
	require.NoError(t, err)

	err = fs.PutStream(context.Background(), "a.csv", failingReader{})
	require.Error(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalRoot(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewLocal(LocalConfig{Root: dir})
	require.NoError(t, err)
	require.NoError(t, fs.Put(context.Background(), "../../escape.json", []byte("[]")))
	_, err = os.Stat(filepath.Join(dir, "escape.json"))
	assert.NoError(t, err)
}

func TestNew(t *testing.T) {
	_, err := New(Config{Driver: ""})
	assert.True(t, ErrStorage.Has(err))
	_, err = New(Config{Driver: "ftp"})
	assert.True(t, ErrStorage.Has(err))
	_, err = New(Config{Driver: S3})
	assert.True(t, ErrStorage.Has(err))

	fs, err := New(Config{Driver: Local, Local: LocalConfig{Root: t.TempDir()}})
	require.NoError(t, err)
	assert.NotNil(t, fs)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/vnd.ms-excel", ContentType("a/b.xls", nil))
	assert.Equal(t, "application/zip", ContentType("b.csv.zip", nil))
	assert.Equal(t, "application/json", ContentType("b.JSON", nil))
	assert.Equal(t, "image/png", ContentType("logo", []byte("\x89PNG\r\n\x1a\n")))
}
