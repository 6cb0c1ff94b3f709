package main

import (
	"context"
	"log"

	"github.com/opdss/tablib/contracts/locker"
	contract "github.com/opdss/tablib/contracts/storage"
	"github.com/opdss/tablib/dataset"
	"github.com/opdss/tablib/db"
	"github.com/opdss/tablib/metrics"
	"github.com/opdss/tablib/redis"
	"github.com/opdss/tablib/schedule"
	"github.com/opdss/tablib/storage"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app 命令共用的依赖
type app struct {
	log      *zap.Logger
	settings Settings
	db       *db.MsDb
	registry *dataset.Registry
	metrics  *metrics.Metrics
	storage  contract.FileSystem //未配置存储时为 nil
	redis    *goredis.Client     //未启用时为 nil
}

func newApp(ctx context.Context, logger *zap.Logger, conf Config, settings Settings) (_ *app, err error) {
	a := &app{
		log:      logger,
		settings: settings,
		metrics:  metrics.New(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	if a.db, err = db.NewMsDB(logger, conf.Database); err != nil {
		return nil, err
	}
	if a.registry, err = settings.Registry(ctx, a.db.Slave()); err != nil {
		return nil, err
	}
	if conf.Storage.Driver != "" {
		if a.storage, err = storage.New(conf.Storage); err != nil {
			return nil, err
		}
	}
	if conf.Redis.Enabled {
		if a.redis, err = redis.NewRedis(ctx, conf.Redis); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// lockers 启用 redis 时多实例互斥，否则只在进程内互斥
func (a *app) lockers(prefix string) schedule.LockerFunc {
	if a.redis == nil {
		return schedule.MemoryLockers()
	}
	newLocker := redis.LockerFactory(a.redis, prefix)
	return func(key string) locker.Locker {
		return newLocker(key)
	}
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Println("redis close err:", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Println("db close err:", err)
		}
	}
}
