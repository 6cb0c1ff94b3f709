package dataset

import (
	"context"
	"log"
	"sort"
)

// Headers 表头声明方式：nil 自动、HeaderList、HeaderMap、HeaderPairs
type Headers interface {
	columns() []Column
}

// HeaderList 属性列表，表头与属性同名
type HeaderList []string

func (h HeaderList) columns() []Column {
	columns := make([]Column, len(h))
	for i, attr := range h {
		columns[i] = Column{Header: attr, Source: Stored(attr)}
	}
	return columns
}

// HeaderMap 表头到属性的映射，按表头排序
type HeaderMap map[string]string

func (h HeaderMap) columns() []Column {
	headers := make([]string, 0, len(h))
	for header := range h {
		headers = append(headers, header)
	}
	sort.Strings(headers)
	columns := make([]Column, len(headers))
	for i, header := range headers {
		columns[i] = Column{Header: header, Source: Stored(h[header])}
	}
	return columns
}

// Pair 表头与属性
type Pair struct {
	Header    string
	Attribute string
}

// HeaderPairs 按给定顺序的表头到属性映射
type HeaderPairs []Pair

func (h HeaderPairs) columns() []Column {
	columns := make([]Column, len(h))
	for i, p := range h {
		columns[i] = Column{Header: p.Header, Source: Stored(p.Attribute)}
	}
	return columns
}

// Simple 即席数据集，headers 为 nil 时使用数据源自带的列（包括查询中的别名和聚合列）
func Simple(ctx context.Context, src RecordSource, headers Headers, opts ...Option) (*Table, error) {
	cursor, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	if headers == nil {
		headers = HeaderList(cursor.Columns)
	}
	spec, err := NewSpec(headers.columns()...)
	if err != nil {
		if cErr := cursor.Close(); cErr != nil {
			log.Println("dataset Simple() close err:", cErr)
		}
		return nil, err
	}
	return Build(ctx, cursor.Records, DisplayHooks(spec, cursor.Type), opts...)
}
