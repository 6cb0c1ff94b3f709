package main

import (
	"github.com/opdss/tablib/cfgstruct"
	"github.com/opdss/tablib/db"
	"github.com/opdss/tablib/logger"
	"github.com/opdss/tablib/process"
	"github.com/opdss/tablib/redis"
	"github.com/opdss/tablib/server/http"
	"github.com/opdss/tablib/storage"
	"github.com/spf13/cobra"
)

// Config 命令行和配置文件共用的配置，tablib 键单独读取
type Config struct {
	Log      logger.Config  `help:"日志"`
	Database db.MsConfig    `help:"数据库"`
	Server   http.Config    `help:"http 服务"`
	Storage  storage.Config `help:"导出文件存储"`
	Redis    redis.Config   `help:"redis"`
}

var (
	confDir string
	runCfg  Config

	rootCmd = &cobra.Command{
		Use:   "tablib",
		Short: "Export database tables to xls, csv, html, json and yaml",
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the admin and generic export http server",
		RunE:  cmdServe,
	}
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export a registered model or a table once",
		RunE:  cmdExport,
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Write a default configuration file into the config dir",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}
)

func init() {
	defaultConfDir := cfgstruct.DefaultConfigDir("tablib")
	rootCmd.PersistentFlags().StringVar(&confDir, "config-dir", defaultConfDir, "main directory for tablib configuration")

	for _, cmd := range []*cobra.Command{serveCmd, exportCmd, setupCmd} {
		rootCmd.AddCommand(cmd)
		process.Bind(cmd, &runCfg, cfgstruct.ConfDir(defaultConfDir))
	}
	exportCmd.Flags().StringVar(&exportCfg.Model, "model", "", "registered model name or table name")
	exportCmd.Flags().StringVar(&exportCfg.Format, "format", "csv", "export format")
	exportCmd.Flags().StringVar(&exportCfg.Out, "out", "", "output file, - for stdout, empty for the configured storage")
	exportCmd.Flags().StringArrayVar(&exportCfg.Filters, "filter", nil, "filter as key=value, repeatable")
	exportCmd.Flags().BoolVar(&exportCfg.Zip, "zip", false, "pack the export into a zip archive")
	setupCmd.Flags().BoolVar(&setupOverwrite, "overwrite", false, "overwrite an existing configuration file")
}

func main() {
	process.Exec(rootCmd, logger.Factory(&runCfg.Log), SettingsKey)
}
