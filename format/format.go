package format

import (
	"io"
	"sort"
	"strings"

	"github.com/opdss/tablib/contracts/tablib"
	"github.com/zeebo/errs"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrFormat = errs.Class("format")

// DefaultCharset 默认输出编码
const DefaultCharset = "utf-8"

// DefaultMimeType 未知格式的 MIME
const DefaultMimeType = "application/octet-stream"

// Encoder 把表写成某种文件格式
type Encoder func(w io.Writer, t tablib.Tabular) error

// Format 导出格式
type Format struct {
	Name string //格式名，同时作为文件后缀
	MIME string
	Text bool //文本格式，输出时按 charset 转码
	enc  Encoder
}

// 进程内只读的格式表，初始化后不再修改
var formats = map[string]Format{
	"xls":  {Name: "xls", MIME: "application/vnd.ms-excel", enc: encodeXlsx},
	"xlsx": {Name: "xlsx", MIME: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", enc: encodeXlsx},
	"csv":  {Name: "csv", MIME: "text/csv", Text: true, enc: encodeCsv},
	"tsv":  {Name: "tsv", MIME: "text/tab-separated-values", Text: true, enc: encodeTsv},
	"html": {Name: "html", MIME: "text/html", Text: true, enc: encodeHtml},
	"md":   {Name: "md", MIME: "text/markdown", Text: true, enc: encodeMarkdown},
	"json": {Name: "json", MIME: "application/json", Text: true, enc: encodeJson},
	"yaml": {Name: "yaml", MIME: "text/yaml", Text: true, enc: encodeYaml},
}

// Lookup 按名称查找格式
func Lookup(name string) (Format, bool) {
	f, ok := formats[name]
	return f, ok
}

// Names 所有支持的格式名，按字母排序
func Names() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MimeType 格式对应的 MIME，未知格式返回 application/octet-stream
func MimeType(name string) string {
	if f, ok := formats[name]; ok {
		return f.MIME
	}
	return DefaultMimeType
}

// ContentType 响应头 Content-Type
func ContentType(name, charset string) string {
	if charset == "" {
		charset = DefaultCharset
	}
	return MimeType(name) + "; charset=" + charset
}

// Charset 按名称解析字符编码（WHATWG 名称及别名）
func Charset(name string) (encoding.Encoding, error) {
	if name == "" || IsUTF8(name) {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, ErrFormat.New("unknown charset %q", name)
	}
	return enc, nil
}

// IsUTF8 是否为 utf-8 编码名
func IsUTF8(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	return n == "utf-8" || n == "utf8"
}

// Encode 按格式写出表，文本格式会转成 charset 编码，无法表示的字符转成 &#NNN;
func (f Format) Encode(w io.Writer, t tablib.Tabular, charset string) error {
	if !f.Text || charset == "" || IsUTF8(charset) {
		return ErrFormat.Wrap(f.enc(w, t))
	}
	enc, err := Charset(charset)
	if err != nil {
		return err
	}
	tw := transform.NewWriter(w, encoding.HTMLEscapeUnsupported(enc.NewEncoder()))
	if err = f.enc(tw, t); err != nil {
		return ErrFormat.Wrap(err)
	}
	return ErrFormat.Wrap(tw.Close())
}

// Encode 按格式名写出表
func Encode(w io.Writer, name string, t tablib.Tabular, charset string) error {
	f, ok := Lookup(name)
	if !ok {
		return ErrFormat.New("unsupported format %q", name)
	}
	return f.Encode(w, t, charset)
}
