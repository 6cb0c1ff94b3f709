package dataset

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/opdss/tablib/format"
	"github.com/spf13/cast"
	"golang.org/x/text/encoding"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// DefaultShortDateFormat 默认短日期格式 (m/d/Y)
const DefaultShortDateFormat = "%m/%d/%Y"

// 可调用值嵌套调用的最大深度
const maxCallDepth = 8

// 无效 utf-8 字节替换成的字符引用
const invalidUTF8 = "&#65533;"

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// 布尔值的本地化 Y/N
var yesNo = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, pair := range map[language.Tag][2]string{
		language.English:    {"Y", "N"},
		language.German:     {"J", "N"},
		language.French:     {"O", "N"},
		language.Spanish:    {"S", "N"},
		language.Italian:    {"S", "N"},
		language.Portuguese: {"S", "N"},
		language.Dutch:      {"J", "N"},
		language.Chinese:    {"是", "否"},
	} {
		_ = b.SetString(tag, "Y", pair[0])
		_ = b.SetString(tag, "N", pair[1])
	}
	return b
}()

// DefaultNormalizer 英文、utf-8、m/d/Y
var DefaultNormalizer = NewNormalizer()

type NormalizerOption func(n *Normalizer)

// WithLanguage 布尔值本地化使用的语言，如 en、de、zh-CN
func WithLanguage(lang string) NormalizerOption {
	return func(n *Normalizer) {
		if lang != "" {
			n.lang = language.Make(lang)
		}
	}
}

// WithShortDateFormat 日期输出格式，strftime 语法
func WithShortDateFormat(layout string) NormalizerOption {
	return func(n *Normalizer) {
		if layout != "" {
			n.dateFormat = layout
		}
	}
}

// WithLocation 日期格式化前先转换时区
func WithLocation(loc *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		n.location = loc
	}
}

// WithCharset 输出编码名，未知编码按 utf-8 处理
//
// 只在单独使用 Normalizer 输出文本时设置，经 format 编码的导出由编码器转码，重复设置会转义两次
func WithCharset(name string) NormalizerOption {
	return func(n *Normalizer) {
		n.charset = name
		n.enc = nil
		if name == "" || format.IsUTF8(name) {
			return
		}
		if enc, err := format.Charset(name); err == nil {
			n.enc = enc
		}
	}
}

// WithEncoding 直接指定输出编码
func WithEncoding(enc encoding.Encoding) NormalizerOption {
	return func(n *Normalizer) {
		n.enc = enc
	}
}

// Normalizer 把任意属性值转换成可导出的字符串
type Normalizer struct {
	lang       language.Tag
	dateFormat string
	location   *time.Location
	charset    string
	enc        encoding.Encoding
	yes, no    string
}

func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		lang:       language.English,
		dateFormat: DefaultShortDateFormat,
		charset:    format.DefaultCharset,
	}
	for i := range opts {
		opts[i](n)
	}
	p := message.NewPrinter(n.lang, message.Catalog(yesNo))
	n.yes = p.Sprintf("Y")
	n.no = p.Sprintf("N")
	return n
}

// Charset 输出编码名
func (n *Normalizer) Charset() string {
	return n.charset
}

// Normalize 转换单个值，不会返回错误也不会 panic
func (n *Normalizer) Normalize(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = ""
		}
	}()
	s = n.text(v, 0)
	if s == "None" {
		return ""
	}
	return n.escape(s)
}

func (n *Normalizer) text(v any, depth int) string {
	if depth > maxCallDepth {
		return ""
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return ""
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Interface:
		if rv.IsNil() {
			return ""
		}
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return n.boolean(val)
	case time.Time:
		return n.date(val)
	case *time.Time:
		return n.date(*val)
	case []byte:
		return string(val)
	case func() any:
		return n.text(val(), depth+1)
	case func() string:
		return val()
	case func() (any, error):
		r, err := val()
		if err != nil {
			return ""
		}
		return n.text(r, depth+1)
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil {
			return ""
		}
		return n.text(dv, depth+1)
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return n.text(rv.Elem().Interface(), depth+1)
	case reflect.Func:
		return n.call(rv, depth)
	case reflect.Bool:
		return n.boolean(rv.Bool())
	case reflect.String:
		return rv.String()
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// call 调用无参函数，最后一个返回值是非空 error 时输出空串
func (n *Normalizer) call(fn reflect.Value, depth int) string {
	typ := fn.Type()
	if fn.IsNil() || typ.NumIn() != 0 || typ.NumOut() == 0 {
		return ""
	}
	out := fn.Call(nil)
	if len(out) > 1 {
		if last := out[len(out)-1]; last.Type().Implements(errorType) && !last.IsNil() {
			return ""
		}
	}
	return n.text(out[0].Interface(), depth+1)
}

func (n *Normalizer) boolean(b bool) string {
	if b {
		return n.yes
	}
	return n.no
}

func (n *Normalizer) date(t time.Time) string {
	if n.location != nil {
		t = t.In(n.location)
	}
	return strftime.Format(n.dateFormat, t)
}

// escape 无效字节替换，目标编码无法表示的字符转成 &#NNN;
func (n *Normalizer) escape(s string) string {
	s = strings.ToValidUTF8(s, invalidUTF8)
	if n.enc == nil {
		return s
	}
	encoded, err := encoding.HTMLEscapeUnsupported(n.enc.NewEncoder()).String(s)
	if err != nil {
		return s
	}
	decoded, err := n.enc.NewDecoder().String(encoded)
	if err != nil {
		return s
	}
	return decoded
}
