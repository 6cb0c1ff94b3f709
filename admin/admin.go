package admin

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opdss/tablib/dataset"
	"github.com/opdss/tablib/filter"
	"github.com/opdss/tablib/format"
	"github.com/opdss/tablib/metrics"
	"github.com/opdss/tablib/views"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrAdmin         = errs.Class("admin")
	ErrInvalidFormat = errs.Class("invalid export format")
)

// DefaultExportFilename 默认导出文件名
const DefaultExportFilename = "export"

// ModelAdmin 一个模型的后台导出配置
type ModelAdmin struct {
	Name                string //路由中的模型名，默认为表名
	Model               *dataset.Model
	Formats             []string            //允许的导出格式
	Headers             dataset.Headers     //nil 时导出所有列
	Definition          *dataset.Definition //设置后忽略 Headers
	ExportFilename      string              //strftime 格式，默认 export
	DisableAdminActions bool                //不生成按格式导出的批量操作
	ExportEncoding      string              //默认 utf-8
	VerboseNamePlural   string              //批量操作导出的文件名，默认表名
	ListFilter          []string            //允许过滤的字段
	SearchFields        []string            //q 参数搜索的字段，^ 开头匹配，= 精确匹配
	Ordering            []string            //默认排序，- 开头为倒序
	Actions             []Action            //自定义批量操作，同名覆盖生成的导出操作
}

type Option func(s *Site)

// WithLogger 设置日志
func WithLogger(log *zap.Logger) Option {
	return func(s *Site) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Site) {
		s.metrics = m
	}
}

// WithNormalizerOptions 导出取值转换的语言、日期格式等
func WithNormalizerOptions(opts ...dataset.NormalizerOption) Option {
	return func(s *Site) {
		s.normalizer = append(s.normalizer, opts...)
	}
}

// WithClock 导出文件名使用的时间
func WithClock(now func() time.Time) Option {
	return func(s *Site) {
		if now != nil {
			s.now = now
		}
	}
}

// Site 后台导出站点
type Site struct {
	db         *gorm.DB
	log        *zap.Logger
	metrics    *metrics.Metrics
	normalizer []dataset.NormalizerOption
	now        func() time.Time

	mu     sync.RWMutex
	admins map[string]*ModelAdmin
}

func NewSite(db *gorm.DB, opts ...Option) *Site {
	s := &Site{
		db:     db,
		log:    zap.NewNop(),
		now:    time.Now,
		admins: make(map[string]*ModelAdmin),
	}
	for i := range opts {
		opts[i](s)
	}
	return s
}

// Register 注册模型，格式、过滤、搜索和排序字段在此时校验
func (s *Site) Register(ma ModelAdmin) error {
	if ma.Model == nil {
		return ErrAdmin.New("%s: model is required", ma.Name)
	}
	if ma.Name == "" {
		ma.Name = ma.Model.Table()
	}
	for _, f := range ma.Formats {
		if _, ok := format.Lookup(f); !ok {
			return ErrInvalidFormat.New("%s is not a valid export format, please choose from the following options: %s",
				f, strings.Join(format.Names(), ", "))
		}
	}
	for _, path := range ma.ListFilter {
		if err := filter.Validate(ma.Model, path, nil); err != nil {
			return ErrAdmin.Wrap(err)
		}
	}
	if err := filter.ValidateSearch(ma.Model, ma.SearchFields); err != nil {
		return ErrAdmin.Wrap(err)
	}
	for _, o := range ma.Ordering {
		if !ma.Model.HasAttribute(strings.TrimPrefix(o, "-")) {
			return ErrAdmin.New("%s: cannot order by %q", ma.Name, o)
		}
	}
	for _, a := range ma.Actions {
		if a.Name == "" || a.Func == nil {
			return ErrAdmin.New("%s: action needs a name and a function", ma.Name)
		}
	}
	if ma.ExportFilename == "" {
		ma.ExportFilename = DefaultExportFilename
	}
	if ma.ExportEncoding == "" {
		ma.ExportEncoding = format.DefaultCharset
	}
	if ma.VerboseNamePlural == "" {
		ma.VerboseNamePlural = ma.Model.Table()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[ma.Name]; ok {
		return ErrAdmin.New("%s is already registered", ma.Name)
	}
	s.admins[ma.Name] = &ma
	return nil
}

// Admin 获取已注册的模型配置
func (s *Site) Admin(name string) (*ModelAdmin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ma, ok := s.admins[name]
	return ma, ok
}

// Names 已注册的模型名
func (s *Site) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.admins))
	for name := range s.admins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mount 注册后台路由
//
//	GET  /:model/tablib-export/          可用的导出地址
//	GET  /:model/tablib-export/:format/  导出当前筛选结果
//	GET  /:model/actions/                批量操作列表
//	POST /:model/actions/                执行批量操作
func (s *Site) Mount(r gin.IRouter) {
	g := r.Group("/:model", s.model)
	g.GET("/tablib-export/", s.exportURLs)
	g.GET("/tablib-export/:format/", s.export)
	g.GET("/actions/", s.listActions)
	g.POST("/actions/", s.runAction)
}

const adminKey = "tablib.admin"

// model 中间件，未注册的模型返回 404
func (s *Site) model(c *gin.Context) {
	ma, ok := s.Admin(c.Param("model"))
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.Set(adminKey, ma)
	c.Next()
}

func modelAdmin(c *gin.Context) *ModelAdmin {
	return c.MustGet(adminKey).(*ModelAdmin)
}

type exportURL struct {
	Format string `json:"format"`
	URL    string `json:"url"`
}

func (s *Site) exportURLs(c *gin.Context) {
	ma := modelAdmin(c)
	base := c.Request.URL.Path
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	urls := make([]exportURL, 0, len(ma.Formats))
	for _, f := range ma.Formats {
		u := base + f + "/"
		if q := c.Request.URL.RawQuery; q != "" {
			u += "?" + q
		}
		urls = append(urls, exportURL{Format: f, URL: u})
	}
	c.JSON(http.StatusOK, gin.H{"model": ma.Name, "urls": urls})
}

func (s *Site) export(c *gin.Context) {
	ma := modelAdmin(c)
	f := c.Param("format")
	if !contains(ma.Formats, f) {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	tx, err := s.changelist(c, ma)
	if err != nil {
		c.String(http.StatusBadRequest, "%s", err.Error())
		c.Abort()
		return
	}
	s.respond(c, ma, tx, f, ma.ExportFilename)
}

func (s *Site) respond(c *gin.Context, ma *ModelAdmin, tx *gorm.DB, f, filename string) {
	views.Export(c, views.ExportRequest{
		Name:       ma.Name,
		DB:         s.db,
		Source:     dataset.Query(tx),
		Headers:    ma.Headers,
		Definition: ma.Definition,
		Format:     f,
		Filename:   filename,
		Encoding:   ma.ExportEncoding,
		Normalizer: dataset.NewNormalizer(s.normalizer...),
		Now:        s.now,
		Logger:     s.log,
		Metrics:    s.metrics,
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
