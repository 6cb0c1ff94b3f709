package iterator

import (
	"database/sql"

	"github.com/opdss/tablib/contracts/iterator"
)

var _ iterator.Iterator[any] = (*RowsIterator[any])(nil)

// RowsScanFn 把当前行扫描成一条记录
type RowsScanFn[T any] func(rows *sql.Rows) (T, error)

// RowsIterator 基于 *sql.Rows 的流式迭代器，整个导出只发起一次查询
type RowsIterator[T any] struct {
	rows   *sql.Rows
	scan   RowsScanFn[T]
	value  T
	err    error
	closed bool
}

func NewRowsIterator[T any](rows *sql.Rows, scan RowsScanFn[T]) *RowsIterator[T] {
	return &RowsIterator[T]{
		rows: rows,
		scan: scan,
	}
}

func (it *RowsIterator[T]) Next() bool {
	if it.closed {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		_ = it.Close()
		return false
	}
	v, err := it.scan(it.rows)
	if err != nil {
		it.err = err
		_ = it.Close()
		return false
	}
	it.value = v
	return true
}

func (it *RowsIterator[T]) Value() T {
	return it.value
}

func (it *RowsIterator[T]) Err() error {
	return it.err
}

// Close 释放数据库连接，可重复调用
func (it *RowsIterator[T]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.rows.Close()
}
