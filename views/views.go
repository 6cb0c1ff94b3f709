package views

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opdss/tablib/dataset"
	"github.com/opdss/tablib/export"
	"github.com/opdss/tablib/format"
	"github.com/opdss/tablib/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExportRequest 一次导出
type ExportRequest struct {
	Name       string               //模型名，用于日志和指标
	DB         *gorm.DB             //Definition 无数据源时使用
	Source     dataset.RecordSource //记录来源
	Headers    dataset.Headers      //nil 时自动取数据源的列
	Definition *dataset.Definition  //设置后忽略 Headers
	Format     string
	Filename   string //不含后缀，支持 strftime 格式
	Encoding   string
	Normalizer *dataset.Normalizer //不要设置 charset，转码在编码时完成
	Options    []dataset.Option
	Now        func() time.Time //文件名格式化使用的时间
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Export 生成数据集并作为附件写入响应，不支持的格式返回 404
//
// 先编码到内存再写响应，编码失败时返回 500 而不是半个文件。
func Export(c *gin.Context, req ExportRequest) {
	log := req.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if req.Format == "" {
		req.Format = DefaultFormat
	}
	if _, ok := format.Lookup(req.Format); !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if req.Encoding == "" {
		req.Encoding = format.DefaultCharset
	}
	start := time.Now()
	tab, body, exporter, err := build(c, req)
	rows := 0
	if tab != nil {
		rows = tab.Len()
	}
	req.Metrics.RecordExport(req.Name, req.Format, rows, len(body), time.Since(start), err)
	if err != nil {
		log.Error("export failed",
			zap.String("model", req.Name),
			zap.String("format", req.Format),
			zap.Error(err))
		_ = c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	log.Debug("export",
		zap.String("model", req.Name),
		zap.String("format", req.Format),
		zap.Int("rows", rows),
		zap.Int("bytes", len(body)))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exporter.Filename()))
	c.Data(http.StatusOK, exporter.ContentType(), body)
}

func build(c *gin.Context, req ExportRequest) (*dataset.Table, []byte, *export.Exporter, error) {
	ctx := c.Request.Context()
	n := req.Normalizer
	if n == nil {
		n = dataset.DefaultNormalizer
	}
	opts := append([]dataset.Option{dataset.WithNormalizer(n)}, req.Options...)

	var (
		tab *dataset.Table
		err error
	)
	switch {
	case req.Definition != nil && req.Source == nil:
		tab, err = req.Definition.Build(ctx, req.DB, opts...)
	case req.Definition != nil:
		tab, err = req.Definition.BuildFrom(ctx, req.Source, opts...)
	case req.Source != nil:
		tab, err = dataset.Simple(ctx, req.Source, req.Headers, opts...)
	default:
		err = dataset.ErrConfig.New("%s: no records to export", req.Name)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	exporter, err := export.New(tab, req.Format,
		export.WithFilename(req.Filename),
		export.WithEncoding(req.Encoding),
		export.WithNow(req.Now))
	if err != nil {
		return tab, nil, nil, err
	}
	body, err := exporter.Bytes(ctx)
	if err != nil {
		return tab, nil, nil, err
	}
	return tab, body, exporter, nil
}
