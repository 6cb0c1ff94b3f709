package dataset

import (
	"reflect"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// Field 声明一列
type Field struct {
	Attribute string               //记录属性名，默认为声明名
	Header    string               //列名，默认为声明名
	Compute   func(record any) any //计算列，设置后忽略 Attribute
	Choices   map[string]string    //属性值到展示值的映射
	Width     float64              //列宽度，导出 excel 生效
	Style     *excelize.Style      //列样式，导出 excel 生效
}

// NamedField 带声明名的列
type NamedField struct {
	Name  string
	Field Field
}

// Declare 声明一列
func Declare(name string, f Field) NamedField {
	return NamedField{Name: name, Field: f}
}

// clone 深拷贝，继承时各定义互不影响
func (f Field) clone() Field {
	c := f
	if f.Choices != nil {
		c.Choices = make(map[string]string, len(f.Choices))
		for k, v := range f.Choices {
			c.Choices[k] = v
		}
	}
	if f.Style != nil {
		style := *f.Style
		c.Style = &style
	}
	return c
}

// column 生成列定义，展示函数在此时确定
func (f Field) column(name string, typ reflect.Type) Column {
	c := Column{
		Header: f.Header,
		Width:  f.Width,
		Style:  f.Style,
	}
	if c.Header == "" {
		c.Header = name
	}
	if f.Compute != nil {
		c.Source = Computed(f.Compute)
		return c
	}
	attr := f.Attribute
	if attr == "" {
		attr = name
	}
	c.Source = Stored(attr)
	if f.Choices != nil {
		c.Display = choicesDisplay(attr, f.Choices)
	} else {
		c.Display = methodDisplay(attr, typ)
	}
	return c
}

// choicesDisplay 按映射输出展示值，未映射的值原样输出
func choicesDisplay(attr string, choices map[string]string) DisplayFunc {
	return func(record any) (any, error) {
		v, err := Lookup(record, attr)
		if err != nil {
			return nil, err
		}
		if label, ok := choices[cast.ToString(v)]; ok {
			return label, nil
		}
		return v, nil
	}
}

// methodDisplay 模型有 Get<Attr>Display 方法时使用该方法的返回值
func methodDisplay(attr string, typ reflect.Type) DisplayFunc {
	if typ == nil {
		return nil
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	name := "Get" + camelCase(goFieldName(attr, typ)) + "Display"
	m, ok := reflect.PointerTo(typ).MethodByName(name)
	if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() == 0 {
		return nil
	}
	return func(record any) (any, error) {
		target := record
		if a, ok := record.(*Annotated); ok {
			target = a.Record
		}
		if fn, ok := method(reflect.ValueOf(target), name); ok {
			return fn.Interface(), nil
		}
		return Lookup(record, attr)
	}
}

// goFieldName 列名转成结构体字段名，找不到时原样返回
func goFieldName(attr string, typ reflect.Type) string {
	if sch, err := parseSchema(typ); err == nil {
		if f := sch.LookUpField(attr); f != nil {
			return f.Name
		}
	}
	return attr
}

// DisplayHooks 为 Stored 列补上模型的 Get<Attr>Display 方法
func DisplayHooks(spec Spec, typ reflect.Type) Spec {
	if typ == nil {
		return spec
	}
	columns := spec.Columns()
	for i := range columns {
		if columns[i].Display != nil {
			continue
		}
		if attr := columns[i].Attribute(); attr != "" {
			columns[i].Display = methodDisplay(attr, typ)
		}
	}
	s, err := NewSpec(columns...)
	if err != nil {
		return spec
	}
	return s
}
