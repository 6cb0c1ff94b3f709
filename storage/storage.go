package storage

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/opdss/tablib/contracts/storage"
	"github.com/opdss/tablib/format"
	"github.com/zeebo/errs"
)

var ErrStorage = errs.Class("storage")

// 存储驱动
const (
	Local = "local"
	S3    = "s3"
	Oss   = "oss"
	Cos   = "cos"
)

// Config 导出文件的存储配置，Driver 为空时不启用
type Config struct {
	Driver string      `help:"存储驱动,可选[local|s3|oss|cos],为空不启用" default:"local"`
	Local  LocalConfig `help:"本地存储"`
	S3     S3Config    `help:"S3 兼容存储"`
	Oss    OssConfig   `help:"阿里云 OSS"`
	Cos    CosConfig   `help:"腾讯云 COS"`
}

// New 按驱动创建存储
func New(conf Config) (storage.FileSystem, error) {
	switch conf.Driver {
	case Local:
		return NewLocal(conf.Local)
	case S3:
		return NewS3(conf.S3)
	case Oss:
		return NewOss(conf.Oss)
	case Cos:
		return NewCos(conf.Cos)
	case "":
		return nil, ErrStorage.New("storage is disabled")
	}
	return nil, ErrStorage.New("unsupported driver %q", conf.Driver)
}

// ContentType 导出格式按后缀取 MIME，其他文件按内容识别
func ContentType(file string, head []byte) string {
	if ct, ok := exportType(file); ok {
		return ct
	}
	return mimetype.Detect(head).String()
}

func exportType(file string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(file), "."))
	if ext == "zip" {
		return "application/zip", true
	}
	if f, ok := format.Lookup(ext); ok {
		return f.MIME, true
	}
	return "", false
}

// objectKey 对象存储的 key，去掉开头的 ./ 和 / 以及 ..
func objectKey(file string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(file, "\\", "/")), "/")
}
