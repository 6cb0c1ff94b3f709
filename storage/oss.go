package storage

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/opdss/tablib/contracts/storage"
)

type OssConfig struct {
	AccessKeyId     string `help:"accessKeyId" default:""`
	AccessKeySecret string `help:"accessKeySecret" default:""`
	Bucket          string `help:"存储桶" default:""`
	Url             string `help:"加速访问地址" default:""`
	Endpoint        string `help:"api入口" default:""`
}

var _ storage.FileSystem = (*OssStorage)(nil)

/*
 * OssStorage 阿里云 OSS
 * Document: https://help.aliyun.com/document_detail/32144.html
 */
type OssStorage struct {
	config         OssConfig
	bucketInstance *oss.Bucket
}

func NewOss(config OssConfig) (*OssStorage, error) {
	if config.AccessKeyId == "" || config.AccessKeySecret == "" || config.Bucket == "" || config.Endpoint == "" {
		return nil, ErrStorage.New("oss: please set configuration")
	}

	client, err := oss.New(config.Endpoint, config.AccessKeyId, config.AccessKeySecret)
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}

	bucketInstance, err := client.Bucket(config.Bucket)
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}

	if config.Url == "" {
		config.Url = config.Endpoint
	}
	config.Url = strings.TrimSuffix(config.Url, "/")
	return &OssStorage{
		config:         config,
		bucketInstance: bucketInstance,
	}, nil
}

func (r *OssStorage) Delete(ctx context.Context, files ...string) error {
	keys := make([]string, len(files))
	for i, file := range files {
		keys[i] = objectKey(file)
	}
	_, err := r.bucketInstance.DeleteObjects(keys, oss.DeleteObjectsQuiet(true), oss.WithContext(ctx))
	return ErrStorage.Wrap(err)
}

func (r *OssStorage) Exists(ctx context.Context, file string) bool {
	exist, err := r.bucketInstance.IsObjectExist(objectKey(file), oss.WithContext(ctx))
	if err != nil {
		return false
	}
	return exist
}

func (r *OssStorage) Missing(ctx context.Context, file string) bool {
	return !r.Exists(ctx, file)
}

func (r *OssStorage) Get(ctx context.Context, file string) ([]byte, error) {
	rs, err := r.GetStream(ctx, file)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rs.Close()
	}()
	return io.ReadAll(rs)
}

func (r *OssStorage) GetStream(ctx context.Context, file string) (io.ReadCloser, error) {
	rs, err := r.bucketInstance.GetObject(objectKey(file), oss.WithContext(ctx))
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}
	return rs, nil
}

func (r *OssStorage) meta(ctx context.Context, file string) (http.Header, error) {
	headers, err := r.bucketInstance.GetObjectDetailedMeta(objectKey(file), oss.WithContext(ctx))
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}
	return headers, nil
}

func (r *OssStorage) LastModified(ctx context.Context, file string) (time.Time, error) {
	headers, err := r.meta(ctx, file)
	if err != nil {
		return time.Time{}, err
	}
	return http.ParseTime(headers.Get("Last-Modified"))
}

func (r *OssStorage) MimeType(ctx context.Context, file string) (string, error) {
	headers, err := r.meta(ctx, file)
	if err != nil {
		return "", err
	}
	return headers.Get("Content-Type"), nil
}

func (r *OssStorage) Put(ctx context.Context, file string, content []byte) error {
	return r.PutStream(ctx, file, bytes.NewReader(content))
}

// PutStream 按前 512 字节识别类型，导出格式按后缀
func (r *OssStorage) PutStream(ctx context.Context, file string, rs io.Reader) error {
	br := bufio.NewReaderSize(rs, 512)
	head, _ := br.Peek(512)
	err := r.bucketInstance.PutObject(objectKey(file), br,
		oss.WithContext(ctx),
		oss.ContentType(ContentType(file, head)))
	return ErrStorage.Wrap(err)
}

func (r *OssStorage) Size(ctx context.Context, file string) (int64, error) {
	headers, err := r.meta(ctx, file)
	if err != nil {
		return 0, err
	}
	size, err := strconv.ParseInt(headers.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0, ErrStorage.Wrap(err)
	}
	return size, nil
}

func (r *OssStorage) Url(file string) string {
	return r.config.Url + "/" + objectKey(file)
}
