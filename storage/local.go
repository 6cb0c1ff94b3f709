package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/opdss/tablib/contracts/storage"
)

type LocalConfig struct {
	Endpoint string `help:"访问地址" default:"http://localhost:8989/files"`
	Root     string `help:"根目录" default:"$ROOT/exports"`
}

var _ storage.FileSystem = (*LocalStorage)(nil)

// LocalStorage 本地目录存储
type LocalStorage struct {
	root     string
	endpoint string
}

func NewLocal(config LocalConfig) (*LocalStorage, error) {
	if config.Root == "" {
		return nil, ErrStorage.New("local: root is required")
	}
	root, err := filepath.Abs(os.ExpandEnv(config.Root))
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}
	return &LocalStorage{
		root:     root,
		endpoint: strings.TrimSuffix(config.Endpoint, "/"),
	}, nil
}

// Root 存储根目录
func (r *LocalStorage) Root() string {
	return r.root
}

func (r *LocalStorage) Delete(ctx context.Context, files ...string) error {
	for _, file := range files {
		fileInfo, err := os.Stat(r.fullPath(file))
		if err != nil {
			return ErrStorage.Wrap(err)
		}
		if fileInfo.IsDir() {
			return ErrStorage.New("local: %s is a directory", file)
		}
	}
	for _, file := range files {
		if err := os.Remove(r.fullPath(file)); err != nil {
			return ErrStorage.Wrap(err)
		}
	}
	return nil
}

func (r *LocalStorage) Exists(ctx context.Context, file string) bool {
	_, err := os.Stat(r.fullPath(file))
	return err == nil
}

func (r *LocalStorage) Missing(ctx context.Context, file string) bool {
	return !r.Exists(ctx, file)
}

func (r *LocalStorage) Get(ctx context.Context, file string) ([]byte, error) {
	rs, err := r.GetStream(ctx, file)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rs.Close()
	}()
	return io.ReadAll(rs)
}

func (r *LocalStorage) GetStream(ctx context.Context, file string) (io.ReadCloser, error) {
	f, err := os.Open(r.fullPath(file))
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}
	return f, nil
}

func (r *LocalStorage) LastModified(ctx context.Context, file string) (time.Time, error) {
	fi, err := os.Stat(r.fullPath(file))
	if err != nil {
		return time.Time{}, ErrStorage.Wrap(err)
	}
	return fi.ModTime(), nil
}

func (r *LocalStorage) MimeType(ctx context.Context, file string) (string, error) {
	if ct, ok := exportType(file); ok {
		return ct, nil
	}
	mtype, err := mimetype.DetectFile(r.fullPath(file))
	if err != nil {
		return "", ErrStorage.Wrap(err)
	}
	return mtype.String(), nil
}

func (r *LocalStorage) Put(ctx context.Context, file string, content []byte) error {
	return r.PutStream(ctx, file, bytes.NewReader(content))
}

// PutStream 先写临时文件再改名，中途失败不会留下半个文件
func (r *LocalStorage) PutStream(ctx context.Context, file string, rs io.Reader) (err error) {
	file = r.fullPath(file)
	if err = os.MkdirAll(filepath.Dir(file), os.ModePerm); err != nil {
		return ErrStorage.Wrap(err)
	}
	f, err := os.CreateTemp(filepath.Dir(file), "."+filepath.Base(file)+".*")
	if err != nil {
		return ErrStorage.Wrap(err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = io.Copy(f, rs); err != nil {
		return ErrStorage.Wrap(err)
	}
	if err = ctx.Err(); err != nil {
		return ErrStorage.Wrap(err)
	}
	if err = f.Close(); err != nil {
		return ErrStorage.Wrap(err)
	}
	if err = os.Rename(f.Name(), file); err != nil {
		return ErrStorage.Wrap(err)
	}
	return nil
}

func (r *LocalStorage) Size(ctx context.Context, file string) (int64, error) {
	fi, err := os.Stat(r.fullPath(file))
	if err != nil {
		return 0, ErrStorage.Wrap(err)
	}
	return fi.Size(), nil
}

func (r *LocalStorage) Url(file string) string {
	return r.endpoint + "/" + objectKey(file)
}

// fullPath 不允许越出根目录
func (r *LocalStorage) fullPath(file string) string {
	return filepath.Join(r.root, filepath.FromSlash(objectKey(file)))
}
