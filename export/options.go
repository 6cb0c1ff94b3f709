package export

import (
	"os"
	"time"
)

type Option func(opt *options)

// WithFilename 导出文件名，不用加后缀，支持 strftime 格式如 export-%Y%m%d
func WithFilename(filename string) Option {
	return func(opt *options) {
		if filename != "" {
			opt.filename = filename
		}
	}
}

// WithEncoding 文本格式的输出编码，默认 utf-8
func WithEncoding(charset string) Option {
	return func(opt *options) {
		if charset != "" {
			opt.charset = charset
		}
	}
}

// WithZip 导出结果打包成 zip
func WithZip() Option {
	return func(opt *options) {
		opt.zip = true
	}
}

// WithNow 文件名格式化使用的时间
func WithNow(now func() time.Time) Option {
	return func(opt *options) {
		if now != nil {
			opt.now = now
		}
	}
}

// WithTempDir 导出到本地文件时的目录，默认系统临时目录
func WithTempDir(dir string) Option {
	return func(opt *options) {
		if dir != "" {
			opt.tempDir = dir
		}
	}
}

type options struct {
	filename string           //文件名，不要加后缀，会自动加
	charset  string           //文本格式输出编码
	zip      bool             //是否打包 zip
	now      func() time.Time //文件名时间
	tempDir  string           //本地文件目录
}

func newOptions(opts ...Option) *options {
	o := &options{
		filename: DefaultFilename,
		charset:  "utf-8",
		now:      time.Now,
		tempDir:  os.TempDir(),
	}
	for i := range opts {
		opts[i](o)
	}
	return o
}
