package dataset

import (
	"fmt"

	"github.com/opdss/tablib/contracts/tablib"
	"github.com/xuri/excelize/v2"
)

// Source 列取值方式，只有 Stored 和 Computed 两种
type Source interface {
	source()
}

// Stored 从记录的属性取值
type Stored string

func (Stored) source() {}

// Computed 以记录为参数计算取值
type Computed func(record any) any

func (Computed) source() {}

// DisplayFunc 属性的展示值，构建列时确定
type DisplayFunc func(record any) (any, error)

// Column 一列
type Column struct {
	Header  string
	Source  Source
	Display DisplayFunc     //仅 Stored 列有效
	Width   float64         //列宽度，导出 excel 生效
	Style   *excelize.Style //列样式，导出 excel 生效
}

// Attribute Stored 列的属性名，Computed 列返回空串
func (c Column) Attribute() string {
	if s, ok := c.Source.(Stored); ok {
		return string(s)
	}
	return ""
}

// Spec 有序的列定义，创建后不可修改
type Spec struct {
	columns []Column
	index   map[string]int
}

// NewSpec 表头必须非空且唯一，属性可以重复
func NewSpec(columns ...Column) (Spec, error) {
	s := Spec{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if c.Header == "" {
			return Spec{}, ErrConfig.Wrap(fmt.Errorf("column %d: %w", i, ErrEmptyHeader))
		}
		if c.Source == nil {
			return Spec{}, ErrConfig.Wrap(fmt.Errorf("column %q: %w", c.Header, ErrNilSource))
		}
		if _, ok := s.index[c.Header]; ok {
			return Spec{}, ErrConfig.Wrap(fmt.Errorf("%w: %q", ErrDuplicateHeader, c.Header))
		}
		s.index[c.Header] = i
		s.columns[i] = c
	}
	return s, nil
}

// StoredSpec 表头与属性同名的列
func StoredSpec(attributes ...string) (Spec, error) {
	columns := make([]Column, len(attributes))
	for i, attr := range attributes {
		columns[i] = Column{Header: attr, Source: Stored(attr)}
	}
	return NewSpec(columns...)
}

// Len 列数
func (s Spec) Len() int {
	return len(s.columns)
}

// Headers 表头
func (s Spec) Headers() []string {
	headers := make([]string, len(s.columns))
	for i := range s.columns {
		headers[i] = s.columns[i].Header
	}
	return headers
}

// Columns 列定义的副本
func (s Spec) Columns() []Column {
	columns := make([]Column, len(s.columns))
	copy(columns, s.columns)
	return columns
}

// Column 按表头查找列
func (s Spec) Column(header string) (Column, bool) {
	i, ok := s.index[header]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// Attributes Stored 列的属性名，Computed 列为空串
func (s Spec) Attributes() []string {
	attrs := make([]string, len(s.columns))
	for i := range s.columns {
		attrs[i] = s.columns[i].Attribute()
	}
	return attrs
}

// Layouts 列宽度及样式
func (s Spec) Layouts() []tablib.ColumnLayout {
	layouts := make([]tablib.ColumnLayout, len(s.columns))
	for i := range s.columns {
		layouts[i] = tablib.ColumnLayout{Width: s.columns[i].Width, Style: s.columns[i].Style}
	}
	return layouts
}
