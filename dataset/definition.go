package dataset

import (
	"context"
	"reflect"

	"gorm.io/gorm"
)

// Meta 数据集定义的元信息
type Meta struct {
	Model   any                       //模型结构体指针或 *Model，默认数据为该模型的全量查询
	Records any                       //固定数据切片，可重复导出，设置后不再查询数据库
	Scopes  []func(*gorm.DB) *gorm.DB //模型查询条件
	Fields  []string                  //只导出这些列，顺序以模型为准
	Exclude []string                  //不导出的列
	Headers map[string]string         //列名到表头的映射
}

// Definition 预先声明的数据集
type Definition struct {
	name   string
	meta   Meta
	model  *Model
	fields []NamedField
	spec   Spec
}

// Define 声明数据集，列在此时确定
func Define(name string, meta Meta, fields ...NamedField) (*Definition, error) {
	d := &Definition{
		name:   name,
		meta:   meta,
		fields: mergeFields(nil, fields),
	}
	if err := d.resolve(); err != nil {
		return nil, err
	}
	return d, nil
}

// Extend 继承当前定义，同名列覆盖，meta 为 nil 时沿用父定义的 Meta
func (d *Definition) Extend(name string, meta *Meta, fields ...NamedField) (*Definition, error) {
	child := &Definition{
		name:   name,
		meta:   d.meta,
		fields: mergeFields(d.fields, fields),
	}
	if meta != nil {
		child.meta = *meta
	}
	if err := child.resolve(); err != nil {
		return nil, err
	}
	return child, nil
}

// mergeFields 父定义的列在前并深拷贝，同名列原位覆盖
func mergeFields(base, own []NamedField) []NamedField {
	merged := make([]NamedField, 0, len(base)+len(own))
	index := make(map[string]int, len(base)+len(own))
	for _, nf := range base {
		index[nf.Name] = len(merged)
		merged = append(merged, NamedField{Name: nf.Name, Field: nf.Field.clone()})
	}
	for _, nf := range own {
		f := NamedField{Name: nf.Name, Field: nf.Field.clone()}
		if i, ok := index[nf.Name]; ok {
			merged[i] = f
			continue
		}
		index[nf.Name] = len(merged)
		merged = append(merged, f)
	}
	return merged
}

func (d *Definition) resolve() error {
	if d.meta.Model == nil && d.meta.Records == nil {
		return ErrNoObjects.New("%s: you must set a model or records for each dataset definition", d.name)
	}
	if d.meta.Records != nil {
		if k := reflect.TypeOf(d.meta.Records).Kind(); k != reflect.Slice && k != reflect.Array {
			return ErrConfig.New("%s: records must be a slice, got %T, use BuildFrom for a one-shot source", d.name, d.meta.Records)
		}
	}
	m, err := d.resolveModel()
	if err != nil {
		return err
	}
	d.model = m

	included := m.Attributes()
	if len(d.meta.Fields) > 0 {
		included = keep(included, d.meta.Fields)
	}
	if len(d.meta.Exclude) > 0 {
		included = drop(included, d.meta.Exclude)
	}
	declared := make(map[string]Field, len(d.fields))
	for _, nf := range d.fields {
		declared[nf.Name] = nf.Field
	}
	columns := make([]Column, 0, len(included)+len(d.fields))
	seen := make(map[string]bool, len(included))
	for _, attr := range included {
		f := declared[attr]
		if f.Header == "" {
			f.Header = d.meta.Headers[attr]
		}
		columns = append(columns, f.column(attr, m.Type()))
		seen[attr] = true
	}
	for _, nf := range d.fields {
		if seen[nf.Name] {
			continue
		}
		f := nf.Field
		if f.Header == "" {
			f.Header = d.meta.Headers[nf.Name]
		}
		columns = append(columns, f.column(nf.Name, m.Type()))
	}
	d.spec, err = NewSpec(columns...)
	return err
}

func (d *Definition) resolveModel() (*Model, error) {
	switch m := d.meta.Model.(type) {
	case *Model:
		return m, nil
	case nil:
	default:
		return ParseModel(m)
	}
	typ := reflect.TypeOf(d.meta.Records).Elem()
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, ErrConfig.New("%s: records must be a slice of structs when no model is set, got %T", d.name, d.meta.Records)
	}
	return ParseModel(reflect.New(typ).Interface())
}

func keep(attrs, names []string) []string {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	res := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		if set[attr] {
			res = append(res, attr)
		}
	}
	return res
}

func drop(attrs, names []string) []string {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	res := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		if !set[attr] {
			res = append(res, attr)
		}
	}
	return res
}

// Name 定义名
func (d *Definition) Name() string {
	return d.name
}

// Model 定义使用的模型
func (d *Definition) Model() *Model {
	return d.model
}

// Spec 解析后的列定义
func (d *Definition) Spec() Spec {
	return d.spec
}

// Source 定义的默认数据源
func (d *Definition) Source(db *gorm.DB) (RecordSource, error) {
	if d.meta.Records != nil {
		return Records(d.meta.Records), nil
	}
	if db == nil {
		return nil, ErrConfig.New("%s: a database connection is required to query %s", d.name, d.model.Table())
	}
	return d.model.Source(db, d.meta.Scopes...), nil
}

// Build 读取默认数据源生成表
func (d *Definition) Build(ctx context.Context, db *gorm.DB, opts ...Option) (*Table, error) {
	src, err := d.Source(db)
	if err != nil {
		return nil, err
	}
	return d.BuildFrom(ctx, src, opts...)
}

// BuildFrom 使用指定数据源生成表
func (d *Definition) BuildFrom(ctx context.Context, src RecordSource, opts ...Option) (*Table, error) {
	cursor, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	return Build(ctx, cursor.Records, d.spec, append([]Option{WithTitle(d.name)}, opts...)...)
}
