package iterator

import (
	"reflect"

	"github.com/opdss/tablib/contracts/iterator"
)

var _ iterator.Iterator[any] = (*SliceIterator[any])(nil)

// SliceIterator 数组数据迭代器
type SliceIterator[T any] struct {
	index int
	size  int
	data  []T
}

func NewSliceIterator[T any](data []T) *SliceIterator[T] {
	return &SliceIterator[T]{
		data:  data,
		index: 0,
		size:  len(data),
	}
}

// FromSlice 任意数组/切片转为 any 迭代器，非切片返回 false
func FromSlice(data any) (*SliceIterator[any], bool) {
	if items, ok := data.([]any); ok {
		return NewSliceIterator(items), true
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		item := rv.Index(i)
		//结构体元素取地址，保证指针接收者的方法可用
		if item.Kind() == reflect.Struct && item.CanAddr() {
			items[i] = item.Addr().Interface()
			continue
		}
		items[i] = item.Interface()
	}
	return NewSliceIterator(items), true
}

func (dp *SliceIterator[T]) Next() bool {
	return dp.index < dp.size
}

func (dp *SliceIterator[T]) Value() T {
	defer func() {
		dp.index++
	}()
	if dp.index < dp.size {
		return dp.data[dp.index]
	}
	var v T
	return v
}

func (dp *SliceIterator[T]) Err() error {
	return nil
}

// Len 数据总数
func (dp *SliceIterator[T]) Len() int {
	return dp.size
}
