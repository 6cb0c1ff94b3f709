package main

import (
	"net/url"

	"github.com/opdss/tablib/admin"
	"github.com/opdss/tablib/process"
	"github.com/opdss/tablib/schedule"
	"github.com/opdss/tablib/server/http"
	"github.com/opdss/tablib/storage"
	"github.com/opdss/tablib/views"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func cmdServe(cmd *cobra.Command, args []string) error {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

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

	reader := a.db.Slave()
	engine := http.NewEngine(log, runCfg.Server, a.metrics)
	views.New(reader, settings.Views(), a.registry,
		views.WithLogger(log),
		views.WithMetrics(a.metrics)).Mount(engine)

	site := admin.NewSite(reader,
		admin.WithLogger(log),
		admin.WithMetrics(a.metrics),
		admin.WithNormalizerOptions(settings.NormalizerOptions()...))
	if err := settings.RegisterAdmins(site, a.registry); err != nil {
		return err
	}
	site.Mount(engine.Group("/admin"))

	if local, ok := a.storage.(*storage.LocalStorage); ok {
		if u, err := url.Parse(runCfg.Storage.Local.Endpoint); err == nil && u.Path != "" && u.Path != "/" {
			engine.Static(u.Path, local.Root())
		}
	}

	if len(settings.Schedules) > 0 {
		if a.storage == nil {
			return ErrSettings.New("schedules need a storage driver")
		}
		scheduler := schedule.New(a.storage,
			schedule.ModelBuilder(reader, a.registry, settings.NormalizerOptions()...),
			schedule.WithLogger(log),
			schedule.WithMetrics(a.metrics),
			schedule.WithLockers(a.lockers(runCfg.Redis.Prefix)))
		for _, job := range settings.Schedules {
			if job.Encoding == "" {
				job.Encoding = settings.Encoding
			}
			if _, ok := a.registry.Get(job.Model); !ok {
				return ErrSettings.New("schedule %s: model %s is not in %s.models", job.Name, job.Model, SettingsKey)
			}
			if err := scheduler.Add(job); err != nil {
				return err
			}
		}
		scheduler.Start(ctx)
		defer func() {
			if err := scheduler.Stop(ctx); err != nil {
				log.Warn("scheduler stop", zap.Error(err))
			}
		}()
		log.Info("scheduler started", zap.Strings("jobs", scheduler.Jobs()))
	}

	log.Info("models registered",
		zap.Strings("models", a.registry.Names()),
		zap.Strings("admin", site.Names()))
	return http.NewServer(engine, log, runCfg.Server).Start(ctx)
}
