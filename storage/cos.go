package storage

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/opdss/tablib/contracts/storage"
	"github.com/tencentyun/cos-go-sdk-v5"
)

/*
* CosStorage 腾讯云 COS
* Document: https://cloud.tencent.com/document/product/436/31215
 */

type CosConfig struct {
	AccessKeyId     string `help:"accessKeyId" default:""`
	AccessKeySecret string `help:"accessKeySecret" default:""`
	Endpoint        string `help:"存储桶地址,如 https://<bucket>.cos.<region>.myqcloud.com" default:""`
}

var _ storage.FileSystem = (*CosStorage)(nil)

type CosStorage struct {
	config   CosConfig
	instance *cos.Client
}

func NewCos(config CosConfig) (*CosStorage, error) {
	if config.AccessKeyId == "" || config.AccessKeySecret == "" || config.Endpoint == "" {
		return nil, ErrStorage.New("cos: please set configuration")
	}

	u, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  config.AccessKeyId,
			SecretKey: config.AccessKeySecret,
		},
	})
	return &CosStorage{
		config:   config,
		instance: client,
	}, nil
}

func (r *CosStorage) Delete(ctx context.Context, files ...string) error {
	obs := make([]cos.Object, 0, len(files))
	for _, v := range files {
		obs = append(obs, cos.Object{Key: objectKey(v)})
	}
	_, _, err := r.instance.Object.DeleteMulti(ctx, &cos.ObjectDeleteMultiOptions{
		Objects: obs,
		Quiet:   true,
	})
	return ErrStorage.Wrap(err)
}

func (r *CosStorage) Exists(ctx context.Context, file string) bool {
	ok, err := r.instance.Object.IsExist(ctx, objectKey(file))
	if err != nil {
		return false
	}
	return ok
}

func (r *CosStorage) Missing(ctx context.Context, file string) bool {
	return !r.Exists(ctx, file)
}

func (r *CosStorage) Get(ctx context.Context, file string) ([]byte, error) {
	rs, err := r.GetStream(ctx, file)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rs.Close()
	}()
	return io.ReadAll(rs)
}

func (r *CosStorage) GetStream(ctx context.Context, file string) (io.ReadCloser, error) {
	resp, err := r.instance.Object.Get(ctx, objectKey(file), nil)
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}
	return resp.Body, nil
}

func (r *CosStorage) head(ctx context.Context, file string) (http.Header, error) {
	resp, err := r.instance.Object.Head(ctx, objectKey(file), nil)
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}
	return resp.Header, nil
}

func (r *CosStorage) LastModified(ctx context.Context, file string) (time.Time, error) {
	header, err := r.head(ctx, file)
	if err != nil {
		return time.Time{}, err
	}
	return http.ParseTime(header.Get("Last-Modified"))
}

func (r *CosStorage) MimeType(ctx context.Context, file string) (string, error) {
	header, err := r.head(ctx, file)
	if err != nil {
		return "", err
	}
	return header.Get("Content-Type"), nil
}

func (r *CosStorage) Put(ctx context.Context, file string, content []byte) error {
	return r.PutStream(ctx, file, bytes.NewReader(content))
}

func (r *CosStorage) PutStream(ctx context.Context, file string, rs io.Reader) error {
	br := bufio.NewReaderSize(rs, 512)
	head, _ := br.Peek(512)
	_, err := r.instance.Object.Put(ctx, objectKey(file), br, &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType: ContentType(file, head),
		},
	})
	return ErrStorage.Wrap(err)
}

func (r *CosStorage) Size(ctx context.Context, file string) (int64, error) {
	header, err := r.head(ctx, file)
	if err != nil {
		return 0, err
	}
	size, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0, ErrStorage.Wrap(err)
	}
	return size, nil
}

func (r *CosStorage) Url(file string) string {
	return r.instance.Object.GetObjectURL(objectKey(file)).String()
}
