package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/opdss/tablib/contracts/storage"
)

/*
* S3 兼容存储（AWS S3、R2、MinIO）
* Document: https://github.com/awsdocs/aws-doc-sdk-examples/blob/main/gov2/s3
 */

type S3Config struct {
	AccessKeyId     string `help:"accessKeyId" default:""`
	AccessKeySecret string `help:"accessKeySecret" default:""`
	RoleArn         string `help:"设置后通过 sts 扮演角色" default:""`
	Bucket          string `help:"存储桶" default:""`
	Region          string `help:"地区" default:"auto"`
	Url             string `help:"访问地址" default:""`
	Endpoint        string `help:"api入口" default:""`
	PathStyle       bool   `help:"使用 path-style 地址" default:"false"`
}

var _ storage.FileSystem = (*S3Storage)(nil)

type S3Storage struct {
	config   S3Config
	instance *s3.Client
}

func NewS3(config S3Config) (*S3Storage, error) {
	if config.AccessKeyId == "" || config.AccessKeySecret == "" || config.Endpoint == "" || config.Bucket == "" {
		return nil, ErrStorage.New("s3: please set configuration")
	}

	cfg, err := awsConfig.LoadDefaultConfig(context.Background(),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.AccessKeyId, config.AccessKeySecret, "")),
		awsConfig.WithRegion(config.Region),
	)
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}
	if config.RoleArn != "" {
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), config.RoleArn))
	}

	if config.Url == "" {
		config.Url = strings.TrimSuffix(config.Endpoint, "/") + "/" + config.Bucket
	}
	config.Url = strings.TrimSuffix(config.Url, "/")

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(config.Endpoint)
		o.UsePathStyle = config.PathStyle
	})
	return &S3Storage{
		config:   config,
		instance: client,
	}, nil
}

func (r *S3Storage) Delete(ctx context.Context, files ...string) error {
	objectIdentifiers := make([]types.ObjectIdentifier, 0, len(files))
	for _, file := range files {
		objectIdentifiers = append(objectIdentifiers, types.ObjectIdentifier{
			Key: aws.String(objectKey(file)),
		})
	}
	_, err := r.instance.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(r.config.Bucket),
		Delete: &types.Delete{
			Objects: objectIdentifiers,
			Quiet:   aws.Bool(true),
		},
	})
	return ErrStorage.Wrap(err)
}

func (r *S3Storage) head(ctx context.Context, file string) (*s3.HeadObjectOutput, error) {
	resp, err := r.instance.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.config.Bucket),
		Key:    aws.String(objectKey(file)),
	})
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}
	return resp, nil
}

func (r *S3Storage) Exists(ctx context.Context, file string) bool {
	_, err := r.head(ctx, file)
	return err == nil
}

func (r *S3Storage) Missing(ctx context.Context, file string) bool {
	return !r.Exists(ctx, file)
}

func (r *S3Storage) Get(ctx context.Context, file string) ([]byte, error) {
	rs, err := r.GetStream(ctx, file)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rs.Close()
	}()
	return io.ReadAll(rs)
}

func (r *S3Storage) GetStream(ctx context.Context, file string) (io.ReadCloser, error) {
	resp, err := r.instance.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.config.Bucket),
		Key:    aws.String(objectKey(file)),
	})
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}
	return resp.Body, nil
}

func (r *S3Storage) LastModified(ctx context.Context, file string) (time.Time, error) {
	resp, err := r.head(ctx, file)
	if err != nil {
		return time.Time{}, err
	}
	return aws.ToTime(resp.LastModified), nil
}

func (r *S3Storage) MimeType(ctx context.Context, file string) (string, error) {
	resp, err := r.head(ctx, file)
	if err != nil {
		return "", err
	}
	return aws.ToString(resp.ContentType), nil
}

func (r *S3Storage) Put(ctx context.Context, file string, content []byte) error {
	_, err := r.instance.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.config.Bucket),
		Key:           aws.String(objectKey(file)),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(ContentType(file, content)),
	})
	return ErrStorage.Wrap(err)
}

// PutStream PutObject 需要长度，先读入内存
func (r *S3Storage) PutStream(ctx context.Context, file string, rs io.Reader) error {
	content, err := io.ReadAll(rs)
	if err != nil {
		return ErrStorage.Wrap(err)
	}
	return r.Put(ctx, file, content)
}

func (r *S3Storage) Size(ctx context.Context, file string) (int64, error) {
	resp, err := r.head(ctx, file)
	if err != nil {
		return 0, err
	}
	return aws.ToInt64(resp.ContentLength), nil
}

func (r *S3Storage) Url(file string) string {
	return r.config.Url + "/" + objectKey(file)
}
