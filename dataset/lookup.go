package dataset

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"gorm.io/gorm/schema"
)

// Attributer 自定义属性读取
type Attributer interface {
	Attr(name string) (any, bool)
}

var _ Attributer = (*Annotated)(nil)

// Annotated 模型记录加上查询附加的列（聚合、别名等）
type Annotated struct {
	Record any
	Extra  map[string]any
}

func (a *Annotated) Attr(name string) (any, bool) {
	if v, ok := a.Extra[name]; ok {
		return v, true
	}
	if a.Record == nil {
		return nil, false
	}
	v, err := Lookup(a.Record, name)
	return v, err == nil
}

var (
	schemaCache = &sync.Map{}
	//解析失败的类型，不再重复解析
	schemaMiss = &sync.Map{}
)

// parseSchema 解析结构体对应的 gorm schema
func parseSchema(typ reflect.Type) (*schema.Schema, error) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if err, ok := schemaMiss.Load(typ); ok {
		return nil, err.(error)
	}
	sch, err := schema.Parse(reflect.New(typ).Interface(), schemaCache, schema.NamingStrategy{})
	if err != nil {
		schemaMiss.Store(typ, err)
		return nil, err
	}
	return sch, nil
}

// Lookup 读取记录的属性
//
// 结构体依次查找 gorm 字段（列名或字段名）、导出字段、无参方法，方法以函数值返回，由 Normalizer 调用。
func Lookup(record any, name string) (any, error) {
	switch r := record.(type) {
	case nil:
		return nil, missingAttribute(record, name)
	case Attributer:
		if v, ok := r.Attr(name); ok {
			return v, nil
		}
		return nil, missingAttribute(record, name)
	case map[string]any:
		if v, ok := r[name]; ok {
			return v, nil
		}
		return nil, missingAttribute(record, name)
	}
	rv := reflect.ValueOf(record)
	elem := reflect.Indirect(rv)
	switch elem.Kind() {
	case reflect.Map:
		if elem.Type().Key().Kind() == reflect.String {
			if v := elem.MapIndex(reflect.ValueOf(name).Convert(elem.Type().Key())); v.IsValid() {
				return v.Interface(), nil
			}
		}
	case reflect.Struct:
		if v, ok := structField(elem, name); ok {
			return v, nil
		}
	}
	if m, ok := method(rv, name); ok {
		return m.Interface(), nil
	}
	return nil, missingAttribute(record, name)
}

func structField(rv reflect.Value, name string) (any, bool) {
	if sch, err := parseSchema(rv.Type()); err == nil {
		if f := sch.LookUpField(name); f != nil && f.Readable && f.ValueOf != nil {
			v, _ := f.ValueOf(context.Background(), rv)
			return v, true
		}
	}
	sf, ok := rv.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return nil, false
	}
	fv, err := rv.FieldByIndexErr(sf.Index)
	if err != nil {
		//嵌入的空指针
		return nil, true
	}
	return fv.Interface(), true
}

// method 查找无参方法，先按原名再按驼峰名
func method(rv reflect.Value, name string) (reflect.Value, bool) {
	if !rv.IsValid() {
		return reflect.Value{}, false
	}
	for _, n := range []string{name, camelCase(name)} {
		if n == "" {
			continue
		}
		m := rv.MethodByName(n)
		if !m.IsValid() && rv.Kind() != reflect.Ptr {
			p := reflect.New(rv.Type())
			p.Elem().Set(rv)
			m = p.MethodByName(n)
		}
		if m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() > 0 {
			return m, true
		}
	}
	return reflect.Value{}, false
}

// camelCase user_name => UserName
func camelCase(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

func missingAttribute(record any, name string) error {
	return ErrAttribute.New("%T has no attribute %q", record, name)
}
