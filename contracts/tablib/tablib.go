package tablib

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"
)

// Tabular 可以被序列化的二维表
type Tabular interface {
	// Title 表名，导出 excel 时作为 sheet 名
	Title() string
	// Headers 表头
	Headers() []string
	// Rows 数据行，每行长度与表头一致
	Rows() [][]string
}

// ColumnLayout 列展示属性，导出 excel 时生效
type ColumnLayout struct {
	Width float64         //列宽度
	Style *excelize.Style //列样式
}

// Layouter 提供列展示属性的表
type Layouter interface {
	Layouts() []ColumnLayout
}

type FileStorage interface {
	PutStream(ctx context.Context, filename string, rs io.Reader) error
	Url(fileKey string) string
}

// Exporter 导出接口
type Exporter interface {
	// Export 导出到本地文件，返回本地文件路径
	Export(ctx context.Context) (string, error)
	// ExportTo 导出到io.Writer
	ExportTo(ctx context.Context, at io.Writer) (int64, error)
	// ExportToStorage 导出到文件存储，返回下载地址
	ExportToStorage(ctx context.Context, fileStorage FileStorage) (string, error)
}
