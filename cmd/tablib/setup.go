package main

import (
	"os"
	"path/filepath"

	"github.com/opdss/tablib/dataset"
	"github.com/opdss/tablib/format"
	"github.com/opdss/tablib/process"
	"github.com/opdss/tablib/views"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

var setupOverwrite bool

// defaultSettings 初始配置中的 tablib 键
func defaultSettings() yaml.MapItem {
	return yaml.MapItem{Key: SettingsKey, Value: yaml.MapSlice{
		{Key: "encoding", Value: format.DefaultCharset},
		{Key: "language", Value: "en"},
		{Key: "short-date-format", Value: dataset.DefaultShortDateFormat},
		{Key: "default-format", Value: views.DefaultFormat},
		{Key: "models", Value: []interface{}{}},
		{Key: "admin", Value: []interface{}{}},
		{Key: "schedules", Value: []interface{}{}},
	}}
}

func cmdSetup(cmd *cobra.Command, args []string) error {
	path := process.ConfigFile(cmd)
	if path == "" {
		path = filepath.Join(os.ExpandEnv(confDir), process.DefaultCfgFilename)
	}
	if _, err := os.Stat(path); err == nil && !setupOverwrite {
		return ErrSettings.New("%s already exists, use --overwrite to replace it", path)
	}
	if err := process.SaveConfig(cmd, path, nil, defaultSettings()); err != nil {
		return err
	}
	zap.L().Info("configuration written", zap.String("Location", path))
	return nil
}
