package export

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"sync"

	"github.com/ncruces/go-strftime"
	"github.com/opdss/tablib/contracts/tablib"
	"github.com/opdss/tablib/format"
	"github.com/zeebo/errs"
)

var (
	ErrExport            = errs.Class("export")
	ErrUnsupportedFormat = errs.Class("unsupported format")
)

// DefaultFilename 默认导出文件名
const DefaultFilename = "export"

// ZipSuffix zip 文件后缀
const ZipSuffix = "zip"

// ZipMimeType zip 文件的 MIME
const ZipMimeType = "application/zip"

var _ tablib.Exporter = (*Exporter)(nil)

// Exporter 把一张表按指定格式导出
type Exporter struct {
	table   tablib.Tabular
	format  format.Format
	options *options
}

func New(t tablib.Tabular, formatName string, opts ...Option) (*Exporter, error) {
	f, ok := format.Lookup(formatName)
	if !ok {
		return nil, ErrUnsupportedFormat.New("%q, please choose from: %v", formatName, format.Names())
	}
	o := newOptions(opts...)
	if _, err := format.Charset(o.charset); err != nil {
		return nil, ErrExport.Wrap(err)
	}
	return &Exporter{
		table:   t,
		format:  f,
		options: o,
	}, nil
}

// Format 导出格式
func (e *Exporter) Format() format.Format {
	return e.format
}

// Charset 输出编码
func (e *Exporter) Charset() string {
	return e.options.charset
}

// Stem 格式化后的文件名，不含后缀
func (e *Exporter) Stem() string {
	return strftime.Format(e.options.filename, e.options.now())
}

// Filename 下载文件名 <stem>.<format>，打包时为 <stem>.zip
func (e *Exporter) Filename() string {
	return e.filename(e.Stem())
}

func (e *Exporter) filename(stem string) string {
	if e.options.zip {
		return stem + "." + ZipSuffix
	}
	return stem + "." + e.format.Name
}

// ContentType 响应的 Content-Type
func (e *Exporter) ContentType() string {
	if e.options.zip {
		return ZipMimeType
	}
	return format.ContentType(e.format.Name, e.options.charset)
}

// ExportTo 导出到io.Writer
func (e *Exporter) ExportTo(ctx context.Context, w io.Writer) (int64, error) {
	return e.exportTo(ctx, w, e.Stem())
}

func (e *Exporter) exportTo(ctx context.Context, w io.Writer, stem string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cw := &countWriter{w: w}
	if !e.options.zip {
		if err := e.format.Encode(cw, e.table, e.options.charset); err != nil {
			return cw.n, ErrExport.Wrap(err)
		}
		return cw.n, nil
	}
	zw := zip.NewWriter(cw)
	fw, err := newZipWriter(zw, stem+"."+e.format.Name, e.options.now())
	if err != nil {
		return cw.n, ErrExport.Wrap(err)
	}
	if err = e.format.Encode(fw, e.table, e.options.charset); err != nil {
		_ = zw.Close()
		return cw.n, ErrExport.Wrap(err)
	}
	if err = zw.Close(); err != nil {
		return cw.n, ErrExport.Wrap(err)
	}
	return cw.n, nil
}

// Bytes 导出到内存
func (e *Exporter) Bytes(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.ExportTo(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Export 导出到本地文件，返回本地文件路径
func (e *Exporter) Export(ctx context.Context) (string, error) {
	stem := e.Stem()
	fp := getFilename(e.options.tempDir, stem, e.filename(""))
	ef, err := os.Create(fp)
	if err != nil {
		return "", ErrExport.Wrap(err)
	}
	defer func() {
		if cErr := ef.Close(); cErr != nil {
			log.Println("export Export() close err:", cErr)
		}
	}()
	if _, err = e.exportTo(ctx, ef, stem); err != nil {
		_ = os.Remove(fp)
		return "", err
	}
	return fp, nil
}

// ExportToStorage 导出到文件存储，返回下载地址
func (e *Exporter) ExportToStorage(ctx context.Context, fs tablib.FileStorage) (string, error) {
	stem := e.Stem()
	fk := e.filename(stem)
	fr, fw := io.Pipe()
	wg := sync.WaitGroup{}
	wg.Add(2)
	var wErr, rErr error
	go func() {
		defer wg.Done()
		if _, wErr = e.exportTo(ctx, fw, stem); wErr != nil {
			log.Println("io pipe write error", wErr.Error())
		}
		_ = fw.CloseWithError(wErr)
	}()
	go func() {
		defer wg.Done()
		if rErr = fs.PutStream(ctx, fk, fr); rErr != nil {
			log.Println("io pipe read error", rErr.Error())
		}
		_ = fr.CloseWithError(rErr)
	}()
	wg.Wait()
	if wErr != nil {
		return "", wErr
	}
	if rErr != nil {
		return "", ErrExport.Wrap(rErr)
	}
	return fs.Url(fk), nil
}

// ToStream 导出到io.Writer的快捷方法
func ToStream(ctx context.Context, t tablib.Tabular, formatName string, w io.Writer, opt ...Option) (int64, error) {
	e, err := New(t, formatName, opt...)
	if err != nil {
		return 0, err
	}
	return e.ExportTo(ctx, w)
}

// ToFile 导出到本地文件的快捷方法
func ToFile(ctx context.Context, t tablib.Tabular, formatName string, opt ...Option) (string, error) {
	e, err := New(t, formatName, opt...)
	if err != nil {
		return "", err
	}
	return e.Export(ctx)
}

// ToStorage 导出到文件存储的快捷方法
func ToStorage(ctx context.Context, t tablib.Tabular, formatName string, fs tablib.FileStorage, opt ...Option) (string, error) {
	e, err := New(t, formatName, opt...)
	if err != nil {
		return "", err
	}
	return e.ExportToStorage(ctx, fs)
}
