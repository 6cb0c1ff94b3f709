package dataset

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/opdss/tablib/contracts/iterator"
	"github.com/opdss/tablib/contracts/tablib"
)

// MaxRows 默认最大数据行数，防止数据源出错无限导出
const MaxRows = 1000000

var (
	_ tablib.Tabular  = (*Table)(nil)
	_ tablib.Layouter = (*Table)(nil)
)

type Option func(opt *options)

// WithNormalizer 设置取值转换器
func WithNormalizer(n *Normalizer) Option {
	return func(opt *options) {
		if n != nil {
			opt.normalizer = n
		}
	}
}

// WithMaxRows 最大数据行数，超过会报异常
func WithMaxRows(n int) Option {
	return func(opt *options) {
		if n > 0 {
			opt.maxRows = n
		}
	}
}

// WithTitle 表名
func WithTitle(title string) Option {
	return func(opt *options) {
		opt.title = title
	}
}

type options struct {
	normalizer *Normalizer
	maxRows    int
	title      string
}

func newOptions(opts ...Option) *options {
	o := &options{
		normalizer: DefaultNormalizer,
		maxRows:    MaxRows,
	}
	for i := range opts {
		opts[i](o)
	}
	return o
}

// Table 表头加数据行，每行长度与表头一致
type Table struct {
	spec    Spec
	headers []string
	rows    [][]string
	options *options
}

func NewTable(spec Spec, opts ...Option) *Table {
	return &Table{
		spec:    spec,
		headers: spec.Headers(),
		options: newOptions(opts...),
	}
}

// Build 按迭代顺序解析所有记录
func Build(ctx context.Context, records iterator.Iterator[any], spec Spec, opts ...Option) (t *Table, err error) {
	if closer, ok := records.(io.Closer); ok {
		defer func() {
			if cErr := closer.Close(); cErr != nil {
				log.Println("dataset Build() close err:", cErr)
			}
		}()
	}
	t = NewTable(spec, opts...)
	for records.Next() {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if err = t.Append(records.Value()); err != nil {
			return nil, err
		}
	}
	if err = records.Err(); err != nil {
		return nil, ErrDataset.Wrap(err)
	}
	return t, nil
}

// Append 解析一条记录追加到末尾
func (t *Table) Append(record any) error {
	row, err := Resolve(record, t.spec, t.options.normalizer)
	if err != nil {
		return err
	}
	return t.push(row)
}

// AppendRow 追加已转换好的一行
func (t *Table) AppendRow(cells ...string) error {
	if len(cells) != len(t.headers) {
		return ErrDataset.Wrap(fmt.Errorf("%w: got %d cells, want %d", ErrInvalidDimensions, len(cells), len(t.headers)))
	}
	row := make([]string, len(cells))
	copy(row, cells)
	return t.push(row)
}

func (t *Table) push(row []string) error {
	if len(t.rows) >= t.options.maxRows {
		return ErrMaximumLimit
	}
	t.rows = append(t.rows, row)
	return nil
}

func (t *Table) Title() string {
	return t.options.title
}

func (t *Table) Headers() []string {
	headers := make([]string, len(t.headers))
	copy(headers, t.headers)
	return headers
}

// Rows 数据行，返回的切片不要修改
func (t *Table) Rows() [][]string {
	return t.rows
}

// Len 数据行数
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Spec() Spec {
	return t.spec
}

func (t *Table) Layouts() []tablib.ColumnLayout {
	return t.spec.Layouts()
}
