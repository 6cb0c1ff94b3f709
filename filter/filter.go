package filter

import (
	"sort"
	"strings"

	"github.com/opdss/tablib/dataset"
	"github.com/spf13/cast"
	"github.com/zeebo/errs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

var ErrFilter = errs.Class("filter")

// Separator 关联字段与查询操作的分隔符
const Separator = "__"

// Exact 默认查询操作
const Exact = "exact"

// Lookups 支持的查询操作
var Lookups = []string{
	"exact", "iexact",
	"contains", "icontains",
	"startswith", "istartswith",
	"endswith", "iendswith",
	"gt", "gte", "lt", "lte",
	"in", "isnull", "range",
}

var namer = schema.NamingStrategy{}

var lookupSet = func() map[string]bool {
	m := make(map[string]bool, len(Lookups))
	for _, l := range Lookups {
		m[l] = true
	}
	return m
}()

// IsLookup 是否为支持的查询操作
func IsLookup(name string) bool {
	return lookupSet[name]
}

// Split simple__title__iexact => (simple__title, iexact)，末段不是查询操作时整体作为字段，操作为 exact
func Split(key string) (path, lookup string) {
	i := strings.LastIndex(key, Separator)
	if i < 0 {
		return key, Exact
	}
	if last := key[i+len(Separator):]; IsLookup(last) {
		return key[:i], last
	}
	return key, Exact
}

// Filter 一个过滤条件
type Filter struct {
	Key    string //原始键
	Path   string //字段路径，关联用 __ 连接
	Lookup string
	Value  string
}

// Parse 解析查询参数
func Parse(key, value string) Filter {
	path, lookup := Split(key)
	return Filter{Key: key, Path: path, Lookup: lookup, Value: value}
}

// FromQuery 把查询参数解析成过滤条件，按键排序
func FromQuery(query map[string][]string, ignore ...string) []Filter {
	skip := make(map[string]bool, len(ignore))
	for _, k := range ignore {
		skip[k] = true
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	filters := make([]Filter, 0, len(keys))
	for _, k := range keys {
		var v string
		if values := query[k]; len(values) > 0 {
			v = values[len(values)-1]
		}
		filters = append(filters, Parse(k, v))
	}
	return filters
}

// Apply 把过滤条件加到查询上
func Apply(tx *gorm.DB, m *dataset.Model, filters ...Filter) (*gorm.DB, error) {
	for _, f := range filters {
		expr, err := Condition(tx, m, f)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(expr)
	}
	return tx, nil
}

// Condition 单个过滤条件的 SQL 表达式，关联字段生成 IN 子查询
func Condition(db *gorm.DB, m *dataset.Model, f Filter) (clause.Expression, error) {
	if !IsLookup(f.Lookup) {
		return nil, ErrFilter.New("unsupported lookup %q", f.Lookup)
	}
	return modelCondition(db, m, strings.Split(f.Path, Separator), f)
}

func modelCondition(db *gorm.DB, m *dataset.Model, segments []string, f Filter) (clause.Expression, error) {
	if m.Schema() != nil {
		return condition(db, m.Schema(), m.Table(), segments, f)
	}
	if len(segments) == 1 {
		if !m.HasAttribute(segments[0]) {
			return nil, ErrFilter.New("%s has no column %q", m.Table(), segments[0])
		}
		col := clause.Column{Table: m.Table(), Name: segments[0]}
		return lookupExpr(col, f.Lookup, f.Value, m.DataType(segments[0]))
	}
	rel, ok := m.Relation(segments[0])
	if !ok {
		return nil, ErrFilter.New("%s has no relation %q", m.Table(), segments[0])
	}
	cond, err := modelCondition(db, rel.Model, segments[1:], f)
	if err != nil {
		return nil, err
	}
	sub := db.Session(&gorm.Session{NewDB: true}).
		Table(rel.Model.Table()).
		Select(rel.References).
		Where(cond)
	return clause.Expr{SQL: "? IN (?)", Vars: []any{clause.Column{Table: m.Table(), Name: rel.Column}, sub}}, nil
}

func condition(db *gorm.DB, sch *schema.Schema, table string, segments []string, f Filter) (clause.Expression, error) {
	if len(segments) == 1 {
		field := sch.LookUpField(segments[0])
		if field == nil || field.DBName == "" {
			return nil, ErrFilter.New("%s has no column %q", sch.Table, segments[0])
		}
		return lookupExpr(clause.Column{Table: table, Name: field.DBName}, f.Lookup, f.Value, field.DataType)
	}
	rel, err := relation(sch, segments[0])
	if err != nil {
		return nil, err
	}
	outer, inner, err := joinColumns(rel)
	if err != nil {
		return nil, err
	}
	related := rel.FieldSchema
	cond, err := condition(db, related, related.Table, segments[1:], f)
	if err != nil {
		return nil, err
	}
	sub := db.Session(&gorm.Session{NewDB: true}).
		Table(related.Table).
		Select(inner).
		Where(cond)
	return clause.Expr{SQL: "? IN (?)", Vars: []any{clause.Column{Table: table, Name: outer}, sub}}, nil
}

// relation 按字段名或列名风格的名字查找关联
func relation(sch *schema.Schema, name string) (*schema.Relationship, error) {
	if rel, ok := sch.Relationships.Relations[name]; ok {
		return rel, nil
	}
	for fieldName, rel := range sch.Relationships.Relations {
		if strings.EqualFold(fieldName, name) || namer.ColumnName("", fieldName) == name {
			return rel, nil
		}
	}
	return nil, ErrFilter.New("%s has no relation %q", sch.Table, name)
}

// joinColumns 外层表用于 IN 的列和子查询选择的列
func joinColumns(rel *schema.Relationship) (outer, inner string, err error) {
	if rel.JoinTable != nil {
		return "", "", ErrFilter.New("filtering across many to many relation %q is not supported", rel.Name)
	}
	for _, ref := range rel.References {
		if ref.PrimaryKey == nil || ref.ForeignKey == nil {
			continue
		}
		if ref.OwnPrimaryKey {
			return ref.PrimaryKey.DBName, ref.ForeignKey.DBName, nil
		}
		return ref.ForeignKey.DBName, ref.PrimaryKey.DBName, nil
	}
	return "", "", ErrFilter.New("relation %q has no usable reference", rel.Name)
}

// Validate 校验字段路径和允许的查询操作，启动时调用
func Validate(m *dataset.Model, path string, lookups []string) error {
	for _, l := range lookups {
		if !IsLookup(l) {
			return ErrFilter.New("%s: unsupported lookup %q, choose from: %s", path, l, strings.Join(Lookups, " "))
		}
	}
	return validatePath(m, strings.Split(path, Separator))
}

func validatePath(m *dataset.Model, segments []string) error {
	if m.Schema() != nil {
		return validateSchema(m.Schema(), segments)
	}
	if len(segments) == 1 {
		if !m.HasAttribute(segments[0]) {
			return ErrFilter.New("%s has no column %q", m.Table(), segments[0])
		}
		return nil
	}
	rel, ok := m.Relation(segments[0])
	if !ok {
		return ErrFilter.New("%s has no relation %q", m.Table(), segments[0])
	}
	return validatePath(rel.Model, segments[1:])
}

func validateSchema(sch *schema.Schema, segments []string) error {
	for _, seg := range segments[:len(segments)-1] {
		rel, err := relation(sch, seg)
		if err != nil {
			return err
		}
		if _, _, err = joinColumns(rel); err != nil {
			return err
		}
		sch = rel.FieldSchema
	}
	if field := sch.LookUpField(segments[len(segments)-1]); field == nil || field.DBName == "" {
		return ErrFilter.New("%s has no column %q", sch.Table, segments[len(segments)-1])
	}
	return nil
}

func lookupExpr(col clause.Column, lookup, value string, dt schema.DataType) (clause.Expression, error) {
	switch lookup {
	case "exact":
		v, err := convert(col.Name, dt, value)
		if err != nil {
			return nil, err
		}
		return clause.Eq{Column: col, Value: v}, nil
	case "iexact":
		return clause.Expr{SQL: "LOWER(?) = LOWER(?)", Vars: []any{col, value}}, nil
	case "contains":
		return like(col, "%"+escapeLike(value)+"%", false), nil
	case "icontains":
		return like(col, "%"+escapeLike(value)+"%", true), nil
	case "startswith":
		return like(col, escapeLike(value)+"%", false), nil
	case "istartswith":
		return like(col, escapeLike(value)+"%", true), nil
	case "endswith":
		return like(col, "%"+escapeLike(value), false), nil
	case "iendswith":
		return like(col, "%"+escapeLike(value), true), nil
	case "gt", "gte", "lt", "lte":
		v, err := convert(col.Name, dt, value)
		if err != nil {
			return nil, err
		}
		switch lookup {
		case "gt":
			return clause.Gt{Column: col, Value: v}, nil
		case "gte":
			return clause.Gte{Column: col, Value: v}, nil
		case "lt":
			return clause.Lt{Column: col, Value: v}, nil
		}
		return clause.Lte{Column: col, Value: v}, nil
	case "in":
		parts := strings.Split(value, ",")
		values := make([]any, len(parts))
		for i, p := range parts {
			v, err := convert(col.Name, dt, strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return clause.IN{Column: col, Values: values}, nil
	case "isnull":
		null, err := cast.ToBoolE(value)
		if err != nil {
			return nil, ErrFilter.New("isnull expects a boolean, got %q", value)
		}
		if null {
			return clause.Expr{SQL: "? IS NULL", Vars: []any{col}}, nil
		}
		return clause.Expr{SQL: "? IS NOT NULL", Vars: []any{col}}, nil
	case "range":
		parts := strings.Split(value, ",")
		if len(parts) != 2 {
			return nil, ErrFilter.New("range expects two comma separated values, got %q", value)
		}
		lo, err := convert(col.Name, dt, strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, err
		}
		hi, err := convert(col.Name, dt, strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		return clause.Expr{SQL: "? BETWEEN ? AND ?", Vars: []any{col, lo, hi}}, nil
	}
	return nil, ErrFilter.New("unsupported lookup %q", lookup)
}

func like(col clause.Column, pattern string, insensitive bool) clause.Expression {
	if insensitive {
		return clause.Expr{SQL: "LOWER(?) LIKE LOWER(?) ESCAPE '!'", Vars: []any{col, pattern}}
	}
	return clause.Expr{SQL: "? LIKE ? ESCAPE '!'", Vars: []any{col, pattern}}
}

var likeReplacer = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeReplacer.Replace(s)
}

// convert 按列类型转换查询值，未知类型保持字符串
func convert(name string, dt schema.DataType, value string) (any, error) {
	var (
		v   any
		err error
	)
	switch dt {
	case schema.Bool:
		v, err = cast.ToBoolE(value)
	case schema.Int:
		v, err = cast.ToInt64E(value)
	case schema.Uint:
		v, err = cast.ToUint64E(value)
	case schema.Float:
		v, err = cast.ToFloat64E(value)
	case schema.Time:
		v, err = cast.ToTimeE(value)
	default:
		v = value
	}
	if err != nil {
		return nil, ErrFilter.New("invalid value %q for %s", value, name)
	}
	return v, nil
}
