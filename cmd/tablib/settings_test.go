package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/opdss/tablib/admin"
	"github.com/opdss/tablib/views"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testConfig = `
tablib:
  encoding: utf-8
  language: zh
  models:
    - name: shop.simple
    - name: shop.rank
      table: simple
      filters:
        rank: [exact, gte]
  admin:
    - model: shop.simple
      formats: [csv, json]
      list-filter: [title]
  schedules:
    - name: nightly
      spec: "0 2 * * *"
      model: shop.rank
      format: csv
      filters:
        rank__gte: "2"
`

type simple struct {
	ID    uint
	Title string
	Rank  int
}

func (simple) TableName() string {
	return "simple"
}

type related struct {
	ID       uint
	Name     string
	SimpleID uint
}

func (related) TableName() string {
	return "related"
}

func loadTestSettings(t *testing.T, config string) Settings {
	t.Helper()
	vip := viper.New()
	vip.SetConfigType("yaml")
	require.NoError(t, vip.ReadConfig(strings.NewReader(config)))
	s, err := LoadSettings(vip)
	require.NoError(t, err)
	return s
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
	require.NoError(t, db.AutoMigrate(&simple{}, &related{}))
	return db
}

func TestLoadSettings(t *testing.T) {
	s := loadTestSettings(t, testConfig)
	assert.Equal(t, "utf-8", s.Encoding)
	assert.Equal(t, "%m/%d/%Y", s.ShortDateFormat)
	assert.Equal(t, "xls", s.DefaultFormat)
	require.Len(t, s.Models, 2)
	assert.Equal(t, "shop.rank", s.Models[1].Name)
	assert.Equal(t, []string{"exact", "gte"}, s.Models[1].Filters["rank"])
	require.Len(t, s.Admin, 1)
	assert.Equal(t, []string{"csv", "json"}, s.Admin[0].Formats)
	require.Len(t, s.Schedules, 1)
	assert.Equal(t, "0 2 * * *", s.Schedules[0].Spec)
	assert.Equal(t, "2", s.Schedules[0].Filters["rank__gte"])

	views := s.Views()
	assert.Len(t, views.Models, 2)
	assert.Nil(t, views.Models["shop.simple"])
	assert.Equal(t, []string{"exact", "gte"}, views.Models["shop.rank"]["rank"])
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	s := loadTestSettings(t, testConfig)
	registry, err := s.Registry(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop.rank", "shop.simple"}, registry.Names())
	m, ok := registry.Get("shop.simple")
	require.True(t, ok)
	assert.Equal(t, "simple", m.Table())

	site := admin.NewSite(db)
	require.NoError(t, s.RegisterAdmins(site, registry))
	assert.Equal(t, []string{"shop.simple"}, site.Names())

	for name, config := range map[string]string{
		"missing table":  "tablib:\n  models:\n    - name: shop.nothing\n",
		"bad column":     "tablib:\n  models:\n    - {name: shop.simple, filters: {nothing: [exact]}}\n",
		"bad lookup":     "tablib:\n  models:\n    - {name: shop.simple, filters: {rank: [near]}}\n",
		"no name":        "tablib:\n  models:\n    - {table: simple}\n",
		"duplicate name": "tablib:\n  models:\n    - {name: shop.simple}\n    - {name: shop.simple}\n",
	} {
		_, err := loadTestSettings(t, config).Registry(ctx, db)
		assert.Error(t, err, name)
	}

	s.Admin = append(s.Admin, AdminSettings{Model: "shop.other"})
	assert.True(t, ErrSettings.Has(s.RegisterAdmins(admin.NewSite(db), registry)))
}

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters([]string{"rank__gte=2", "title=a=b"})
	require.NoError(t, err)
	require.Len(t, filters, 2)
	assert.Equal(t, "rank", filters[0].Path)
	assert.Equal(t, "gte", filters[0].Lookup)
	assert.Equal(t, "a=b", filters[1].Value)

	_, err = parseFilters([]string{"rank"})
	assert.True(t, ErrSettings.Has(err))
	_, err = parseFilters([]string{"=1"})
	assert.Error(t, err)
}

func TestDefaultSettings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, yaml.NewEncoder(&buf).Encode(yaml.MapSlice{defaultSettings()}))

	s := loadTestSettings(t, buf.String())
	assert.Equal(t, "utf-8", s.Encoding)
	assert.Equal(t, "en", s.Language)
	assert.Equal(t, "xls", s.DefaultFormat)
	assert.Empty(t, s.Models)
}

const relationConfig = `
tablib:
  default-format: csv
  models:
    - name: shop.simple
    - name: shop.related
      relations:
        - {name: simple, model: shop.simple}
      filters:
        simple__title: [exact, iexact]
        simple__rank: [gte]
`

func TestRegistryRelations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	for i, title := range []string{"foo", "bar"} {
		s := simple{Title: title, Rank: i + 1}
		require.NoError(t, db.Create(&s).Error)
		require.NoError(t, db.Create(&related{Name: "r-" + title, SimpleID: s.ID}).Error)
	}

	s := loadTestSettings(t, relationConfig)
	registry, err := s.Registry(ctx, db)
	require.NoError(t, err)
	m, ok := registry.Get("shop.related")
	require.True(t, ok)
	rel, ok := m.Relation("simple")
	require.True(t, ok)
	assert.Equal(t, "simple_id", rel.Column)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	views.New(db, s.Views(), registry).Mount(r)
	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		return rec
	}

	rec := get("/export/shop.related/?simple__title__iexact=BAR")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "id,name,simple_id\r\n2,r-bar,2\r\n", rec.Body.String())

	rec = get("/export/shop.related/?simple__rank__gte=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for name, config := range map[string]string{
		"unknown model":  "tablib:\n  models:\n    - {name: shop.related, relations: [{name: simple, model: shop.nothing}]}\n",
		"missing column": "tablib:\n  models:\n    - {name: shop.simple}\n    - {name: shop.related, relations: [{name: owner, model: shop.simple}]}\n",
		"no relation":    "tablib:\n  models:\n    - {name: shop.related, filters: {simple__title: [exact]}}\n",
	} {
		_, err := loadTestSettings(t, config).Registry(ctx, db)
		assert.True(t, ErrSettings.Has(err), name)
	}
}
