package filter

import (
	"strings"

	"github.com/opdss/tablib/dataset"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// searchLookup 搜索字段前缀：^ 开头匹配，= 精确匹配（忽略大小写），默认包含
func searchLookup(field string) (path, lookup string) {
	switch {
	case strings.HasPrefix(field, "^"):
		return field[1:], "istartswith"
	case strings.HasPrefix(field, "="):
		return field[1:], "iexact"
	case strings.HasPrefix(field, "@"):
		return field[1:], "icontains"
	}
	return field, "icontains"
}

// Search 每个词至少匹配一个搜索字段，多个词之间为且
func Search(db *gorm.DB, m *dataset.Model, fields []string, term string) (clause.Expression, error) {
	words := strings.Fields(term)
	if len(words) == 0 || len(fields) == 0 {
		return nil, nil
	}
	and := make([]clause.Expression, 0, len(words))
	for _, word := range words {
		or := make([]clause.Expression, 0, len(fields))
		for _, field := range fields {
			path, lookup := searchLookup(field)
			expr, err := Condition(db, m, Filter{Key: field, Path: path, Lookup: lookup, Value: word})
			if err != nil {
				return nil, err
			}
			or = append(or, expr)
		}
		and = append(and, clause.Or(or...))
	}
	return clause.And(and...), nil
}

// ValidateSearch 校验搜索字段
func ValidateSearch(m *dataset.Model, fields []string) error {
	for _, field := range fields {
		path, lookup := searchLookup(field)
		if err := Validate(m, path, []string{lookup}); err != nil {
			return err
		}
	}
	return nil
}
