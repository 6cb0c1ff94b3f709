package storage

import (
	"context"
	"io"
	"time"
)

// FileSystem 导出文件的存放位置
type FileSystem interface {
	// Delete deletes the given file(s).
	Delete(ctx context.Context, file ...string) error
	// Exists determines if a file exists.
	Exists(ctx context.Context, file string) bool
	// Missing determines if a file is missing.
	Missing(ctx context.Context, file string) bool
	// Get gets the contents of a file.
	Get(ctx context.Context, file string) ([]byte, error)
	GetStream(ctx context.Context, file string) (io.ReadCloser, error)
	// LastModified gets the file's last modified time.
	LastModified(ctx context.Context, file string) (time.Time, error)
	// MimeType gets the file's mime type.
	MimeType(ctx context.Context, file string) (string, error)
	// Put writes the contents of a file.
	Put(ctx context.Context, file string, content []byte) error
	PutStream(ctx context.Context, file string, rs io.Reader) error
	// Size gets the file size of a given file.
	Size(ctx context.Context, file string) (int64, error)
	// Url get the URL for the file at the given path.
	Url(file string) string
}
