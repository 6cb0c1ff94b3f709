package dataset

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Model 可导出的记录类型，结构体模型或者数据表
type Model struct {
	table      string
	typ        reflect.Type
	schema     *schema.Schema
	attributes []string
	primaryKey string
	dataTypes  map[string]schema.DataType //数据表模型的列类型
	relations  map[string]Relation        //数据表模型声明的关联
}

// Relation 数据表模型的关联，过滤时 Column IN (SELECT References FROM Model.Table())
type Relation struct {
	Name       string
	Model      *Model
	Column     string //本表列
	References string //关联表列，默认关联表主键
}

// ParseModel 解析 gorm 模型，使用默认命名策略
func ParseModel(v any) (*Model, error) {
	sch, err := schema.Parse(v, schemaCache, schema.NamingStrategy{})
	if err != nil {
		return nil, ErrConfig.Wrap(err)
	}
	return newModel(sch), nil
}

// ParseModelWith 使用连接的命名策略解析模型
func ParseModelWith(db *gorm.DB, v any) (*Model, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(v); err != nil {
		return nil, ErrConfig.Wrap(err)
	}
	return newModel(stmt.Schema), nil
}

func newModel(sch *schema.Schema) *Model {
	m := &Model{
		table:      sch.Table,
		typ:        sch.ModelType,
		schema:     sch,
		attributes: make([]string, len(sch.DBNames)),
	}
	copy(m.attributes, sch.DBNames)
	if sch.PrioritizedPrimaryField != nil {
		m.primaryKey = sch.PrioritizedPrimaryField.DBName
	}
	return m
}

// TableModel 没有结构体定义的数据表，列从数据库读取
func TableModel(ctx context.Context, db *gorm.DB, table string) (*Model, error) {
	tx := db.WithContext(ctx)
	if !tx.Migrator().HasTable(table) {
		return nil, ErrConfig.New("table %q does not exist", table)
	}
	columns, err := tx.Migrator().ColumnTypes(table)
	if err != nil {
		return nil, ErrConfig.Wrap(err)
	}
	m := &Model{
		table:      table,
		attributes: make([]string, 0, len(columns)),
		dataTypes:  make(map[string]schema.DataType, len(columns)),
		relations:  make(map[string]Relation),
	}
	for _, c := range columns {
		m.attributes = append(m.attributes, c.Name())
		m.dataTypes[c.Name()] = columnDataType(c)
		if pk, ok := c.PrimaryKey(); ok && pk && m.primaryKey == "" {
			m.primaryKey = c.Name()
		}
	}
	if m.primaryKey == "" {
		for _, attr := range m.attributes {
			if attr == "id" {
				m.primaryKey = attr
			}
		}
	}
	return m, nil
}

// columnDataType 按数据库类型名推断，推断不出时看驱动的扫描类型
func columnDataType(c gorm.ColumnType) schema.DataType {
	name := strings.ToUpper(c.DatabaseTypeName())
	switch {
	case strings.Contains(name, "BOOL"):
		return schema.Bool
	case strings.Contains(name, "INT") && strings.Contains(name, "UNSIGNED"):
		return schema.Uint
	case strings.Contains(name, "INT"):
		return schema.Int
	case strings.Contains(name, "REAL"), strings.Contains(name, "FLOA"), strings.Contains(name, "DOUB"),
		strings.Contains(name, "NUMERIC"), strings.Contains(name, "DECIMAL"):
		return schema.Float
	case strings.Contains(name, "DATE"), strings.Contains(name, "TIME"):
		return schema.Time
	case strings.Contains(name, "CHAR"), strings.Contains(name, "TEXT"), strings.Contains(name, "CLOB"):
		return schema.String
	}
	typ := c.ScanType()
	if typ == nil {
		return schema.String
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == reflect.TypeOf(time.Time{}) {
		return schema.Time
	}
	switch typ.Kind() {
	case reflect.Bool:
		return schema.Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return schema.Int
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return schema.Uint
	case reflect.Float32, reflect.Float64:
		return schema.Float
	}
	return schema.String
}

// Table 表名
func (m *Model) Table() string {
	return m.table
}

// Type 结构体类型，数据表模型为 nil
func (m *Model) Type() reflect.Type {
	return m.typ
}

// Schema gorm schema，数据表模型为 nil
func (m *Model) Schema() *schema.Schema {
	return m.schema
}

// Attributes 所有列名，按声明顺序
func (m *Model) Attributes() []string {
	attrs := make([]string, len(m.attributes))
	copy(attrs, m.attributes)
	return attrs
}

// PrimaryKey 主键列名
func (m *Model) PrimaryKey() string {
	return m.primaryKey
}

// HasAttribute 是否有该列
func (m *Model) HasAttribute(name string) bool {
	if m.schema != nil {
		return m.schema.LookUpField(name) != nil
	}
	for _, attr := range m.attributes {
		if attr == name {
			return true
		}
	}
	return false
}

// Field gorm 字段，数据表模型或不存在时返回 nil
func (m *Model) Field(name string) *schema.Field {
	if m.schema == nil {
		return nil
	}
	return m.schema.LookUpField(name)
}

// DataType 列的数据类型，未知列为空
func (m *Model) DataType(name string) schema.DataType {
	if m.schema != nil {
		if f := m.schema.LookUpField(name); f != nil {
			return f.DataType
		}
		return ""
	}
	return m.dataTypes[name]
}

// Relate 给数据表模型声明关联，column 默认 <name>_id，references 默认关联表主键
//
// 结构体模型的关联来自 gorm 定义，不能在这里声明。启动时调用，之后不能再修改。
func (m *Model) Relate(name string, related *Model, column, references string) error {
	if m.schema != nil {
		return ErrConfig.New("%s: relations of struct models come from their gorm associations", m.table)
	}
	if name == "" || related == nil {
		return ErrConfig.New("%s: relation needs a name and a model", m.table)
	}
	if _, ok := m.relations[name]; ok {
		return ErrConfig.New("%s: relation %q is declared twice", m.table, name)
	}
	if column == "" {
		column = name + "_id"
	}
	if references == "" {
		references = related.PrimaryKey()
	}
	if !m.HasAttribute(column) {
		return ErrConfig.New("%s: relation %q: no column %q", m.table, name, column)
	}
	if references == "" || !related.HasAttribute(references) {
		return ErrConfig.New("%s: relation %q: %s has no column %q", m.table, name, related.Table(), references)
	}
	if f := related.Field(references); f != nil {
		references = f.DBName
	}
	m.relations[name] = Relation{Name: name, Model: related, Column: column, References: references}
	return nil
}

// Relation 数据表模型声明的关联
func (m *Model) Relation(name string) (Relation, bool) {
	rel, ok := m.relations[name]
	return rel, ok
}

// New 新建一条空记录
func (m *Model) New() any {
	if m.typ == nil {
		return map[string]any{}
	}
	return reflect.New(m.typ).Interface()
}

// Query 模型的全量查询
func (m *Model) Query(db *gorm.DB) *gorm.DB {
	if m.typ == nil {
		return db.Table(m.table)
	}
	return db.Model(m.New())
}

// Source 模型全量数据的记录源
func (m *Model) Source(db *gorm.DB, scopes ...func(*gorm.DB) *gorm.DB) RecordSource {
	return Query(m.Query(db).Scopes(scopes...))
}

// Registry 按名称注册的模型
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register 注册模型，同名覆盖
func (r *Registry) Register(name string, m *Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = m
}

// Get 按名称获取模型
func (r *Registry) Get(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Names 所有模型名，按字母排序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
