package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/opdss/tablib/dataset"
	"github.com/opdss/tablib/export"
	"github.com/opdss/tablib/filter"
	"github.com/opdss/tablib/process"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type exportConfig struct {
	Model   string
	Format  string
	Out     string
	Filters []string
	Zip     bool
}

var exportCfg exportConfig

func cmdExport(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()
	if exportCfg.Model == "" {
		return ErrSettings.New("--model is required")
	}

	vip, err := process.Viper(cmd)
	if err != nil {
		return err
	}
	settings, err := LoadSettings(vip)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, log, runCfg, settings)
	if err != nil {
		return err
	}
	defer a.Close()

	reader := a.db.Slave().WithContext(ctx)
	m, ok := a.registry.Get(exportCfg.Model)
	if !ok {
		if m, err = dataset.TableModel(ctx, reader, exportCfg.Model); err != nil {
			return err
		}
	}
	filters, err := parseFilters(exportCfg.Filters)
	if err != nil {
		return err
	}
	tx, err := filter.Apply(m.Query(reader), m, filters...)
	if err != nil {
		return err
	}
	n := dataset.NewNormalizer(settings.NormalizerOptions()...)
	tab, err := dataset.Simple(ctx, dataset.Query(tx), nil,
		dataset.WithNormalizer(n),
		dataset.WithTitle(m.Table()))
	if err != nil {
		return err
	}

	filename := settings.Filename
	if filename == "" {
		filename = m.Table()
	}
	opts := []export.Option{export.WithFilename(filename), export.WithEncoding(settings.Encoding)}
	if exportCfg.Zip {
		opts = append(opts, export.WithZip())
	}
	e, err := export.New(tab, exportCfg.Format, opts...)
	if err != nil {
		return err
	}

	switch exportCfg.Out {
	case "-":
		_, err = e.ExportTo(ctx, os.Stdout)
		return err
	case "":
		if a.storage == nil {
			return ErrSettings.New("no storage configured, use --out")
		}
		u, err := e.ExportToStorage(ctx, a.storage)
		if err != nil {
			return err
		}
		log.Info("exported", zap.String("model", exportCfg.Model), zap.Int("rows", tab.Len()), zap.String("url", u))
		fmt.Println(u)
		return nil
	}

	f, err := os.Create(exportCfg.Out)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
	}()
	size, err := e.ExportTo(ctx, f)
	if err != nil {
		return err
	}
	log.Info("exported",
		zap.String("model", exportCfg.Model),
		zap.Int("rows", tab.Len()),
		zap.Int64("bytes", size),
		zap.String("file", exportCfg.Out))
	return nil
}

// parseFilters key=value 形式的过滤条件
func parseFilters(list []string) ([]filter.Filter, error) {
	filters := make([]filter.Filter, 0, len(list))
	for _, kv := range list {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, ErrSettings.New("invalid filter %q, expected key=value", kv)
		}
		filters = append(filters, filter.Parse(k, v))
	}
	return filters, nil
}
