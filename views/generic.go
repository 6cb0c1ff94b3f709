package views

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opdss/tablib/dataset"
	"github.com/opdss/tablib/filter"
	"github.com/opdss/tablib/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultFormat 通用导出的默认格式
const DefaultFormat = "xls"

// Filters 允许过滤的字段路径到查询操作的映射，为空时不允许任何过滤
type Filters map[string][]string

// Settings 通用导出配置
type Settings struct {
	Models        map[string]Filters //允许导出的模型
	Encoding      string
	DefaultFormat string
	Filename      string
	Normalizer    []dataset.NormalizerOption
}

type Option func(h *Handler)

// WithLogger 设置日志
func WithLogger(log *zap.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// Handler 通用导出接口，只导出配置了的模型
type Handler struct {
	db       *gorm.DB
	registry *dataset.Registry
	settings Settings
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func New(db *gorm.DB, settings Settings, registry *dataset.Registry, opts ...Option) *Handler {
	if settings.DefaultFormat == "" {
		settings.DefaultFormat = DefaultFormat
	}
	h := &Handler{
		db:       db,
		registry: registry,
		settings: settings,
		log:      zap.NewNop(),
	}
	for i := range opts {
		opts[i](h)
	}
	return h
}

// GenericExport 通用导出 gin 处理函数
func GenericExport(db *gorm.DB, settings Settings, registry *dataset.Registry, opts ...Option) gin.HandlerFunc {
	return New(db, settings, registry, opts...).Handle
}

// Mount 注册 /export/:model/ 和 /export/:model/:format/
func (h *Handler) Mount(r gin.IRouter) {
	g := r.Group("/export")
	g.GET("/:model/", h.Handle)
	g.GET("/:model/:format/", h.Handle)
}

// Handle 按模型名导出，查询参数作为过滤条件
func (h *Handler) Handle(c *gin.Context) {
	name := c.Param("model")
	allowed, ok := h.settings.Models[name]
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	m, ok := h.registry.Get(name)
	if !ok {
		h.log.Error("model is configured but not registered", zap.String("model", name))
		c.String(http.StatusInternalServerError, "Model %s is in TABLIB_MODELS but could not be loaded", name)
		c.Abort()
		return
	}

	filters := filter.FromQuery(c.Request.URL.Query())
	for _, f := range filters {
		lookups, ok := allowed[f.Path]
		if !ok {
			c.String(http.StatusBadRequest, "Filtering on %s is not allowed", f.Path)
			c.Abort()
			return
		}
		if !contains(lookups, f.Lookup) {
			c.String(http.StatusBadRequest, "%s may only be filtered using %s", f.Key, strings.Join(lookups, " "))
			c.Abort()
			return
		}
	}
	tx, err := filter.Apply(m.Query(h.db.WithContext(c.Request.Context())), m, filters...)
	if err != nil {
		c.String(http.StatusBadRequest, "%s", err.Error())
		c.Abort()
		return
	}

	formatName := c.Param("format")
	if formatName == "" {
		formatName = h.settings.DefaultFormat
	}
	Export(c, ExportRequest{
		Name:       name,
		Source:     dataset.Query(tx),
		Format:     formatName,
		Filename:   h.settings.Filename,
		Encoding:   h.settings.Encoding,
		Normalizer: h.normalizer(),
		Logger:     h.log,
		Metrics:    h.metrics,
	})
}

func (h *Handler) normalizer() *dataset.Normalizer {
	return dataset.NewNormalizer(h.settings.Normalizer...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
