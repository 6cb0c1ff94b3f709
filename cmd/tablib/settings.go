package main

import (
	"context"
	"strings"

	"github.com/opdss/tablib/admin"
	"github.com/opdss/tablib/dataset"
	"github.com/opdss/tablib/filter"
	"github.com/opdss/tablib/format"
	"github.com/opdss/tablib/schedule"
	"github.com/opdss/tablib/views"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"gorm.io/gorm"
)

// SettingsKey 配置文件中导出相关的键
const SettingsKey = "tablib"

var ErrSettings = errs.Class("settings")

// RelationSettings 数据表之间的关联，用于 simple__title 这样的过滤路径
type RelationSettings struct {
	Name       string `mapstructure:"name"`
	Model      string `mapstructure:"model"`      //关联的模型名，必须在 models 中
	Column     string `mapstructure:"column"`     //默认 <name>_id
	References string `mapstructure:"references"` //默认关联表主键
}

// ModelSettings 允许通用导出的数据表及可过滤字段
type ModelSettings struct {
	Name      string              `mapstructure:"name"`  //如 app.simple
	Table     string              `mapstructure:"table"` //默认取 name 最后一段
	Relations []RelationSettings  `mapstructure:"relations"`
	Filters   map[string][]string `mapstructure:"filters"`
}

// AdminSettings 后台导出的模型配置
type AdminSettings struct {
	Model               string   `mapstructure:"model"`
	Formats             []string `mapstructure:"formats"`
	Filename            string   `mapstructure:"filename"`
	Encoding            string   `mapstructure:"encoding"`
	VerboseNamePlural   string   `mapstructure:"verbose-name-plural"`
	DisableAdminActions bool     `mapstructure:"disable-admin-actions"`
	Headers             []string `mapstructure:"headers"`
	ListFilter          []string `mapstructure:"list-filter"`
	SearchFields        []string `mapstructure:"search-fields"`
	Ordering            []string `mapstructure:"ordering"`
}

// Settings tablib 键的内容
type Settings struct {
	Encoding        string          `mapstructure:"encoding"`
	Language        string          `mapstructure:"language"`
	ShortDateFormat string          `mapstructure:"short-date-format"`
	DefaultFormat   string          `mapstructure:"default-format"`
	Filename        string          `mapstructure:"filename"`
	Models          []ModelSettings `mapstructure:"models"`
	Admin           []AdminSettings `mapstructure:"admin"`
	Schedules       []schedule.Job  `mapstructure:"schedules"`
}

// LoadSettings 读取 tablib 键
func LoadSettings(vip *viper.Viper) (Settings, error) {
	s := Settings{
		Encoding:        format.DefaultCharset,
		ShortDateFormat: dataset.DefaultShortDateFormat,
		DefaultFormat:   views.DefaultFormat,
	}
	if err := vip.UnmarshalKey(SettingsKey, &s); err != nil {
		return s, ErrSettings.Wrap(err)
	}
	return s, nil
}

// NormalizerOptions 取值转换的语言和日期格式
func (s Settings) NormalizerOptions() []dataset.NormalizerOption {
	opts := []dataset.NormalizerOption{dataset.WithShortDateFormat(s.ShortDateFormat)}
	if s.Language != "" {
		opts = append(opts, dataset.WithLanguage(s.Language))
	}
	return opts
}

// Registry 按配置的数据表创建模型注册表，再声明关联，最后校验过滤字段
func (s Settings) Registry(ctx context.Context, db *gorm.DB) (*dataset.Registry, error) {
	registry := dataset.NewRegistry()
	for _, ms := range s.Models {
		name := ms.Name
		if name == "" {
			return nil, ErrSettings.New("model name is required")
		}
		if _, ok := registry.Get(name); ok {
			return nil, ErrSettings.New("model %s is configured twice", name)
		}
		table := ms.Table
		if table == "" {
			table = name[strings.LastIndex(name, ".")+1:]
		}
		m, err := dataset.TableModel(ctx, db, table)
		if err != nil {
			return nil, ErrSettings.New("model %s: %v", name, err)
		}
		registry.Register(name, m)
	}

	for _, ms := range s.Models {
		m, _ := registry.Get(ms.Name)
		for _, rs := range ms.Relations {
			related, ok := registry.Get(rs.Model)
			if !ok {
				return nil, ErrSettings.New("model %s: relation %s: model %s is not in %s.models", ms.Name, rs.Name, rs.Model, SettingsKey)
			}
			if err := m.Relate(rs.Name, related, rs.Column, rs.References); err != nil {
				return nil, ErrSettings.New("model %s: %v", ms.Name, err)
			}
		}
	}

	for _, ms := range s.Models {
		m, _ := registry.Get(ms.Name)
		for path, lookups := range ms.Filters {
			if err := filter.Validate(m, path, lookups); err != nil {
				return nil, ErrSettings.New("model %s: %v", ms.Name, err)
			}
		}
	}
	return registry, nil
}

// Views 通用导出配置
func (s Settings) Views() views.Settings {
	models := make(map[string]views.Filters, len(s.Models))
	for _, ms := range s.Models {
		models[ms.Name] = ms.Filters
	}
	return views.Settings{
		Models:        models,
		Encoding:      s.Encoding,
		DefaultFormat: s.DefaultFormat,
		Filename:      s.Filename,
		Normalizer:    s.NormalizerOptions(),
	}
}

// RegisterAdmins 注册后台导出的模型，模型必须在 models 中
func (s Settings) RegisterAdmins(site *admin.Site, registry *dataset.Registry) error {
	for _, as := range s.Admin {
		m, ok := registry.Get(as.Model)
		if !ok {
			return ErrSettings.New("admin %s: model is not in %s.models", as.Model, SettingsKey)
		}
		ma := admin.ModelAdmin{
			Name:                as.Model,
			Model:               m,
			Formats:             as.Formats,
			ExportFilename:      as.Filename,
			ExportEncoding:      as.Encoding,
			VerboseNamePlural:   as.VerboseNamePlural,
			DisableAdminActions: as.DisableAdminActions,
			ListFilter:          as.ListFilter,
			SearchFields:        as.SearchFields,
			Ordering:            as.Ordering,
		}
		if len(ma.Formats) == 0 {
			ma.Formats = []string{s.DefaultFormat}
		}
		if ma.ExportEncoding == "" {
			ma.ExportEncoding = s.Encoding
		}
		if len(as.Headers) > 0 {
			ma.Headers = dataset.HeaderList(as.Headers)
		}
		if err := site.Register(ma); err != nil {
			return err
		}
	}
	return nil
}
