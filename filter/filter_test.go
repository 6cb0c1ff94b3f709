package filter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/opdss/tablib/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

type Simple struct {
	ID       uint
	Title    string
	Rank     int
	Relateds []Related
}

type Related struct {
	ID       uint
	Name     string
	SimpleID uint
	Simple   Simple
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	require.NoError(t, db.AutoMigrate(&Simple{}, &Related{}))
	for i, title := range []string{"Alpha", "beta", "gamma_1", "100%"} {
		s := Simple{Title: title, Rank: i + 1}
		require.NoError(t, db.Create(&s).Error)
		require.NoError(t, db.Create(&Related{Name: "r-" + title, SimpleID: s.ID}).Error)
	}
	return db
}

func TestSplit(t *testing.T) {
	tests := []struct {
		key, path, lookup string
	}{
		{"title", "title", "exact"},
		{"title__iexact", "title", "iexact"},
		{"simple__title", "simple__title", "exact"},
		{"simple__title__in", "simple__title", "in"},
		{"simple__title__bogus", "simple__title__bogus", "exact"},
	}
	for _, tt := range tests {
		path, lookup := Split(tt.key)
		assert.Equal(t, tt.path, path, tt.key)
		assert.Equal(t, tt.lookup, lookup, tt.key)
	}
}

func TestFromQuery(t *testing.T) {
	filters := FromQuery(map[string][]string{
		"b__gt": {"1", "2"},
		"a":     {"x"},
		"o":     {"id"},
	}, "o")
	require.Len(t, filters, 2)
	assert.Equal(t, Filter{Key: "a", Path: "a", Lookup: "exact", Value: "x"}, filters[0])
	assert.Equal(t, Filter{Key: "b__gt", Path: "b", Lookup: "gt", Value: "2"}, filters[1])
}

func titles(t *testing.T, db *gorm.DB, filters ...Filter) []string {
	t.Helper()
	m, err := dataset.ParseModel(&Simple{})
	require.NoError(t, err)
	tx, err := Apply(db.Model(&Simple{}), m, filters...)
	require.NoError(t, err)
	var res []string
	require.NoError(t, tx.Order("id").Pluck("title", &res).Error)
	return res
}

func TestApplyLookups(t *testing.T) {
	db := newTestDB(t)

	assert.Equal(t, []string{"beta"}, titles(t, db, Parse("title", "beta")))
	assert.Equal(t, []string{"Alpha"}, titles(t, db, Parse("title__iexact", "ALPHA")))
	assert.Equal(t, []string{"gamma_1"}, titles(t, db, Parse("title__icontains", "a_")))
	assert.Equal(t, []string{"100%"}, titles(t, db, Parse("title__endswith", "%")))
	assert.Equal(t, []string{"beta"}, titles(t, db, Parse("title__istartswith", "BE")))
	assert.Equal(t, []string{"gamma_1", "100%"}, titles(t, db, Parse("rank__gt", "2")))
	assert.Equal(t, []string{"Alpha", "beta"}, titles(t, db, Parse("rank__lte", "2")))
	assert.Equal(t, []string{"Alpha", "gamma_1"}, titles(t, db, Parse("rank__in", "1,3")))
	assert.Equal(t, []string{"beta", "gamma_1"}, titles(t, db, Parse("rank__range", "2,3")))
	assert.Equal(t, []string{"Alpha", "beta", "gamma_1", "100%"}, titles(t, db, Parse("title__isnull", "false")))
	assert.Empty(t, titles(t, db, Parse("title__isnull", "true")))
}

func TestApplyRelations(t *testing.T) {
	db := newTestDB(t)

	//has many
	assert.Equal(t, []string{"beta"}, titles(t, db, Parse("relateds__name", "r-beta")))

	//belongs to
	m, err := dataset.ParseModel(&Related{})
	require.NoError(t, err)
	tx, err := Apply(db.Model(&Related{}), m, Parse("simple__title__iexact", "GAMMA_1"))
	require.NoError(t, err)
	var names []string
	require.NoError(t, tx.Pluck("name", &names).Error)
	assert.Equal(t, []string{"r-gamma_1"}, names)
}

func TestApplyErrors(t *testing.T) {
	db := newTestDB(t)
	m, err := dataset.ParseModel(&Simple{})
	require.NoError(t, err)

	_, err = Apply(db.Model(&Simple{}), m, Parse("nope", "x"))
	assert.True(t, ErrFilter.Has(err))

	_, err = Apply(db.Model(&Simple{}), m, Parse("rank", "abc"))
	assert.True(t, ErrFilter.Has(err))

	_, err = Apply(db.Model(&Simple{}), m, Parse("rank__range", "1"))
	assert.True(t, ErrFilter.Has(err))

	_, err = Apply(db.Model(&Simple{}), m, Filter{Path: "rank", Lookup: "regex"})
	assert.True(t, ErrFilter.Has(err))
}

func TestTableModel(t *testing.T) {
	db := newTestDB(t)
	m, err := dataset.TableModel(db.Statement.Context, db, "simples")
	require.NoError(t, err)

	tx, err := Apply(db.Table("simples"), m, Parse("title__contains", "et"))
	require.NoError(t, err)
	var res []string
	require.NoError(t, tx.Pluck("title", &res).Error)
	assert.Equal(t, []string{"beta"}, res)

	_, err = Apply(db.Table("simples"), m, Parse("simple__title", "x"))
	assert.True(t, ErrFilter.Has(err))

	assert.Equal(t, schema.Int, m.DataType("rank"))
	assert.Equal(t, schema.String, m.DataType("title"))
	_, err = Apply(db.Table("simples"), m, Parse("rank__gte", "abc"))
	assert.True(t, ErrFilter.Has(err))
}

func TestTableModelRelations(t *testing.T) {
	db := newTestDB(t)
	ctx := db.Statement.Context
	simples, err := dataset.TableModel(ctx, db, "simples")
	require.NoError(t, err)
	relateds, err := dataset.TableModel(ctx, db, "relateds")
	require.NoError(t, err)
	require.NoError(t, relateds.Relate("simple", simples, "", ""))

	rel, ok := relateds.Relation("simple")
	require.True(t, ok)
	assert.Equal(t, "simple_id", rel.Column)
	assert.Equal(t, "id", rel.References)

	tx, err := Apply(db.Table("relateds"), relateds, Parse("simple__title__iexact", "BETA"))
	require.NoError(t, err)
	var names []string
	require.NoError(t, tx.Pluck("name", &names).Error)
	assert.Equal(t, []string{"r-beta"}, names)

	tx, err = Apply(db.Table("relateds"), relateds, Parse("simple__rank__gte", "3"))
	require.NoError(t, err)
	names = nil
	require.NoError(t, tx.Order("id").Pluck("name", &names).Error)
	assert.Equal(t, []string{"r-gamma_1", "r-100%"}, names)

	assert.NoError(t, Validate(relateds, "simple__title", []string{"exact"}))
	assert.True(t, ErrFilter.Has(Validate(relateds, "simple__missing", nil)))
	assert.True(t, ErrFilter.Has(Validate(relateds, "other__title", nil)))

	assert.True(t, dataset.ErrConfig.Has(relateds.Relate("simple", simples, "", "")))
	assert.True(t, dataset.ErrConfig.Has(relateds.Relate("owner", simples, "", "")))
	assert.True(t, dataset.ErrConfig.Has(simples.Relate("x", relateds, "id", "nope")))
}

func TestValidate(t *testing.T) {
	m, err := dataset.ParseModel(&Related{})
	require.NoError(t, err)

	assert.NoError(t, Validate(m, "simple__title", []string{"exact", "iexact"}))
	assert.NoError(t, Validate(m, "name", nil))
	assert.True(t, ErrFilter.Has(Validate(m, "simple__missing", nil)))
	assert.True(t, ErrFilter.Has(Validate(m, "missing__title", nil)))
	assert.True(t, ErrFilter.Has(Validate(m, "name", []string{"regex"})))
}

func TestSearch(t *testing.T) {
	db := newTestDB(t)
	m, err := dataset.ParseModel(&Simple{})
	require.NoError(t, err)

	expr, err := Search(db, m, []string{"title", "=relateds__name"}, "r-beta")
	require.NoError(t, err)
	var res []string
	require.NoError(t, db.Model(&Simple{}).Where(expr).Pluck("title", &res).Error)
	assert.Equal(t, []string{"beta"}, res)

	expr, err = Search(db, m, []string{"^title"}, "al")
	require.NoError(t, err)
	res = nil
	require.NoError(t, db.Model(&Simple{}).Where(expr).Pluck("title", &res).Error)
	assert.Equal(t, []string{"Alpha"}, res)

	expr, err = Search(db, m, []string{"title"}, "  ")
	require.NoError(t, err)
	assert.Nil(t, expr)

	assert.NoError(t, ValidateSearch(m, []string{"^title", "=relateds__name"}))
	assert.Error(t, ValidateSearch(m, []string{"nope"}))
}
