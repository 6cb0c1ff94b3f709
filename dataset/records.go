package dataset

import (
	"context"
	"database/sql"
	"io"
	"reflect"
	"sort"

	"github.com/opdss/tablib/contracts/iterator"
	iter "github.com/opdss/tablib/iterator"
	"gorm.io/gorm"
)

// RecordSource 记录来源，每次导出打开一次
type RecordSource interface {
	Open(ctx context.Context) (*Cursor, error)
}

// Cursor 打开后的记录源
type Cursor struct {
	Records iterator.Iterator[any]
	Columns []string     //数据源自带的列，用于自动表头
	Type    reflect.Type //记录的结构体类型，未知为 nil
}

// Close 释放底层连接
func (c *Cursor) Close() error {
	if closer, ok := c.Records.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Query gorm 查询作为记录源，整个导出只发起一次查询
//
// 设置了 Model 时结果行填充为模型结构体，模型之外的列（Select 增加的别名、聚合）放进 Annotated.Extra；
// 否则每行是 map[string]any。
func Query(tx *gorm.DB) RecordSource {
	return querySource{tx: tx}
}

type querySource struct {
	tx *gorm.DB
}

func (q querySource) Open(ctx context.Context) (*Cursor, error) {
	tx := q.tx.WithContext(ctx)
	cursor := &Cursor{}
	stmt := tx.Statement
	if stmt.Model != nil {
		if _, ok := stmt.Model.(map[string]any); !ok {
			if err := stmt.Parse(stmt.Model); err != nil {
				return nil, ErrDataset.Wrap(err)
			}
			cursor.Type = stmt.Schema.ModelType
		}
	}
	rows, err := tx.Rows()
	if err != nil {
		return nil, ErrDataset.Wrap(err)
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, ErrDataset.Wrap(err)
	}
	cursor.Columns = columns
	sch := stmt.Schema
	scan := func(rows *sql.Rows) (any, error) {
		values := map[string]any{}
		if err := tx.ScanRows(rows, &values); err != nil {
			return nil, ErrDataset.Wrap(err)
		}
		if cursor.Type == nil {
			return values, nil
		}
		rec := reflect.New(cursor.Type)
		var extra map[string]any
		for _, col := range columns {
			if f := sch.LookUpField(col); f != nil && f.DBName == col && f.Set != nil {
				if err := f.Set(ctx, rec.Elem(), values[col]); err != nil {
					return nil, ErrDataset.Wrap(err)
				}
				continue
			}
			if extra == nil {
				extra = make(map[string]any)
			}
			extra[col] = values[col]
		}
		if extra == nil {
			return rec.Interface(), nil
		}
		return &Annotated{Record: rec.Interface(), Extra: extra}, nil
	}
	cursor.Records = iter.NewRowsIterator[any](rows, scan)
	return cursor, nil
}

// Records 切片或迭代器作为记录源
func Records(data any) RecordSource {
	return recordsSource{data: data}
}

type recordsSource struct {
	data any
}

func (r recordsSource) Open(_ context.Context) (*Cursor, error) {
	if it, ok := r.data.(iterator.Iterator[any]); ok {
		p := newPeekIterator(it)
		cursor := &Cursor{Records: p}
		if first, ok := p.peek(); ok {
			cursor.Type, cursor.Columns = recordColumns(reflect.TypeOf(first), first)
		}
		return cursor, nil
	}
	it, ok := iter.FromSlice(r.data)
	if !ok {
		return nil, ErrDataset.New("unsupported records type %T", r.data)
	}
	cursor := &Cursor{Records: it}
	var first any
	if rv := reflect.ValueOf(r.data); rv.Len() > 0 {
		first = rv.Index(0).Interface()
	}
	cursor.Type, cursor.Columns = recordColumns(reflect.TypeOf(r.data).Elem(), first)
	return cursor, nil
}

// recordColumns 结构体取模型列，map 取第一条记录的键（排序）
func recordColumns(typ reflect.Type, first any) (reflect.Type, []string) {
	if a, ok := first.(*Annotated); ok && a.Record != nil {
		t, columns := recordColumns(reflect.TypeOf(a.Record), a.Record)
		extra := make([]string, 0, len(a.Extra))
		for k := range a.Extra {
			extra = append(extra, k)
		}
		sort.Strings(extra)
		return t, append(columns, extra...)
	}
	if (typ == nil || typ.Kind() == reflect.Interface) && first != nil {
		typ = reflect.TypeOf(first)
	}
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ != nil && typ.Kind() == reflect.Struct {
		return typ, structColumns(typ)
	}
	rv := reflect.Indirect(reflect.ValueOf(first))
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, nil
	}
	columns := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		columns = append(columns, k.String())
	}
	sort.Strings(columns)
	return nil, columns
}

func structColumns(typ reflect.Type) []string {
	if sch, err := parseSchema(typ); err == nil {
		columns := make([]string, len(sch.DBNames))
		copy(columns, sch.DBNames)
		return columns
	}
	columns := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		if f := typ.Field(i); f.IsExported() && !f.Anonymous {
			columns = append(columns, f.Name)
		}
	}
	return columns
}

// peekIterator 可预读第一条的迭代器
type peekIterator struct {
	it      iterator.Iterator[any]
	first   any
	peeked  bool
	pending bool
}

func newPeekIterator(it iterator.Iterator[any]) *peekIterator {
	return &peekIterator{it: it}
}

func (p *peekIterator) peek() (any, bool) {
	if !p.peeked {
		p.peeked = true
		if p.it.Next() {
			p.first = p.it.Value()
			p.pending = true
		}
	}
	return p.first, p.pending
}

func (p *peekIterator) Next() bool {
	if !p.peeked {
		return p.it.Next()
	}
	if p.pending {
		return true
	}
	return p.it.Next()
}

func (p *peekIterator) Value() any {
	if p.pending {
		p.pending = false
		return p.first
	}
	return p.it.Value()
}

func (p *peekIterator) Err() error {
	return p.it.Err()
}

func (p *peekIterator) Close() error {
	if closer, ok := p.it.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
