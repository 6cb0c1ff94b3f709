package admin

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opdss/tablib/filter"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 列表页的非过滤参数
const (
	SearchVar   = "q"
	OrderVar    = "o"
	PageVar     = "p"
	AllVar      = "all"
	ErrorVar    = "e"
	PreserveVar = "_changelist_filters"
)

var ignoredVars = []string{SearchVar, OrderVar, PageVar, AllVar, ErrorVar, PreserveVar}

// changelist 当前列表页的查询：过滤、搜索、排序
func (s *Site) changelist(c *gin.Context, ma *ModelAdmin) (*gorm.DB, error) {
	m := ma.Model
	tx := m.Query(s.db.WithContext(c.Request.Context()))
	query := c.Request.URL.Query()

	filters := filter.FromQuery(query, ignoredVars...)
	for _, f := range filters {
		if !contains(ma.ListFilter, f.Path) {
			return nil, ErrAdmin.New("Filtering on %s is not allowed", f.Path)
		}
	}
	tx, err := filter.Apply(tx, m, filters...)
	if err != nil {
		return nil, err
	}

	if q := query.Get(SearchVar); q != "" && len(ma.SearchFields) > 0 {
		expr, err := filter.Search(tx, m, ma.SearchFields, q)
		if err != nil {
			return nil, err
		}
		if expr != nil {
			tx = tx.Where(expr)
		}
	}

	ordering := ma.Ordering
	if o := query.Get(OrderVar); o != "" {
		ordering = strings.Split(o, ",")
	}
	columns, err := orderBy(ma, ordering)
	if err != nil {
		return nil, err
	}
	if len(columns) > 0 {
		tx = tx.Order(clause.OrderBy{Columns: columns})
	}
	return tx, nil
}

// orderBy 排序列，未包含主键时追加主键倒序保证结果稳定
func orderBy(ma *ModelAdmin, ordering []string) ([]clause.OrderByColumn, error) {
	m := ma.Model
	pk := m.PrimaryKey()
	columns := make([]clause.OrderByColumn, 0, len(ordering)+1)
	hasPK := false
	for _, o := range ordering {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		desc := strings.HasPrefix(o, "-")
		name := strings.TrimPrefix(o, "-")
		if !m.HasAttribute(name) {
			return nil, ErrAdmin.New("Cannot order by %s", name)
		}
		if f := m.Field(name); f != nil {
			name = f.DBName
		}
		if name == pk {
			hasPK = true
		}
		columns = append(columns, clause.OrderByColumn{
			Column: clause.Column{Table: m.Table(), Name: name},
			Desc:   desc,
		})
	}
	if !hasPK && pk != "" {
		columns = append(columns, clause.OrderByColumn{
			Column: clause.Column{Table: m.Table(), Name: pk},
			Desc:   true,
		})
	}
	return columns, nil
}
