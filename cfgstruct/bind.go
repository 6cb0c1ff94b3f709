// Package cfgstruct 把配置结构体绑定为命令行参数
package cfgstruct

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
)

// 变量名，默认值中的 $ROOT、$CONFDIR 会被替换
const (
	RootVar    = "ROOT"
	ConfDirVar = "CONFDIR"
)

type bindOpts struct {
	dev  bool
	vars map[string]string
}

// BindOpt 绑定参数
type BindOpt func(o *bindOpts)

// ConfDir 设置 $CONFDIR，同时作为未设置时的 $ROOT
func ConfDir(path string) BindOpt {
	return func(o *bindOpts) {
		o.vars[ConfDirVar] = filepathClean(path)
		if _, ok := o.vars[RootVar]; !ok {
			o.vars[RootVar] = filepathClean(path)
		}
	}
}

// RootDir 设置 $ROOT
func RootDir(path string) BindOpt {
	return func(o *bindOpts) {
		o.vars[RootVar] = filepathClean(path)
	}
}

// UseDevDefaults 使用 devDefault 标签
func UseDevDefaults() BindOpt {
	return func(o *bindOpts) {
		o.dev = true
	}
}

// UseReleaseDefaults 使用 releaseDefault 标签
func UseReleaseDefaults() BindOpt {
	return func(o *bindOpts) {
		o.dev = false
	}
}

// Bind 为 config 的每个字段注册参数，嵌套结构体以 . 分隔，字段名转为小写连字符
//
//	type Config struct {
//		Database db.Config `help:"数据库"`
//	}
//
// 得到 --database.max-idle-conn 等参数
func Bind(f *pflag.FlagSet, config interface{}, opts ...BindOpt) {
	o := bindOpts{vars: map[string]string{}}
	for _, opt := range opts {
		opt(&o)
	}
	ptr := reflect.ValueOf(config)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("invalid config type: %#v. Expected pointer to struct.", config))
	}
	bindConfig(f, "", ptr.Elem(), &o)
}

var durationType = reflect.TypeOf(time.Duration(0))

func bindConfig(f *pflag.FlagSet, prefix string, val reflect.Value, o *bindOpts) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() || field.Tag.Get("internal") == "true" {
			continue
		}
		fv := val.Field(i)
		name := prefix + hyphenate(snakeCase(field.Name))
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			bindConfig(f, prefix, fv, o)
			continue
		}
		if field.Type.Kind() == reflect.Struct && field.Type != durationType {
			bindConfig(f, name+".", fv, o)
			continue
		}
		help := field.Tag.Get("help")
		bindField(f, name, fv, defaultValue(field, o), help)
		if field.Tag.Get("hidden") == "true" {
			_ = f.MarkHidden(name)
		}
	}
}

// defaultValue 按模式取默认值并展开变量
func defaultValue(field reflect.StructField, o *bindOpts) string {
	def, ok := field.Tag.Lookup("default")
	tag := "releaseDefault"
	if o.dev {
		tag = "devDefault"
	}
	if v, found := field.Tag.Lookup(tag); found {
		def, ok = v, true
	}
	if !ok {
		return ""
	}
	return os.Expand(def, func(key string) string {
		if v, ok := o.vars[key]; ok {
			return v
		}
		return "$" + key
	})
}

func bindField(f *pflag.FlagSet, name string, fv reflect.Value, def, help string) {
	ptr := fv.Addr().Interface()
	switch p := ptr.(type) {
	case *string:
		f.StringVar(p, name, def, help)
	case *bool:
		f.BoolVar(p, name, mustParse(name, def, func(v any) (bool, error) {
			return ParseBool(cast.ToString(v))
		}), help)
	case *int:
		f.IntVar(p, name, mustParse(name, def, cast.ToIntE), help)
	case *int32:
		f.Int32Var(p, name, mustParse(name, def, cast.ToInt32E), help)
	case *int64:
		f.Int64Var(p, name, mustParse(name, def, cast.ToInt64E), help)
	case *uint:
		f.UintVar(p, name, mustParse(name, def, cast.ToUintE), help)
	case *uint64:
		f.Uint64Var(p, name, mustParse(name, def, cast.ToUint64E), help)
	case *float64:
		f.Float64Var(p, name, mustParse(name, def, cast.ToFloat64E), help)
	case *time.Duration:
		f.DurationVar(p, name, mustParse(name, def, cast.ToDurationE), help)
	case *[]string:
		var list []string
		if def != "" {
			list = strings.Split(def, ",")
		}
		f.StringSliceVar(p, name, list, help)
	default:
		panic(fmt.Sprintf("invalid field type %s for flag %s", fv.Type(), name))
	}
}

func mustParse[T any](name, def string, parse func(any) (T, error)) T {
	var zero T
	if def == "" {
		return zero
	}
	v, err := parse(def)
	if err != nil {
		panic(fmt.Sprintf("invalid default value %q for flag %s: %v", def, name, err))
	}
	return v
}

// snakeCase MaxIdleConn -> max_idle_conn，连续大写视为一个词 (DNSName -> dns_name)
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func hyphenate(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

func filepathClean(path string) string {
	if path == "" {
		return path
	}
	return strings.TrimSuffix(os.ExpandEnv(path), string(os.PathSeparator))
}

// FlagName 字段路径对应的参数名，("Database", "MaxIdleConn") -> database.max-idle-conn
func FlagName(fields ...string) string {
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = hyphenate(snakeCase(field))
	}
	return strings.Join(names, ".")
}

// ParseBool 兼容 yes/no
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return strconv.ParseBool(s)
}
