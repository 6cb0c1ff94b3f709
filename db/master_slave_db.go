package db

import (
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MsConfig 主从配置，从库 Dsn 为空或与主库相同时读写都走主库
type MsConfig struct {
	Master  Config        `help:"主库"`
	Slave   Config        `help:"从库,导出查询走从库"`
	Plugins []gorm.Plugin `help:"插件" internal:"true"`
}

type MsDb struct {
	master *gorm.DB
	slave  *gorm.DB
}

func NewMsDB(logger *zap.Logger, conf MsConfig) (_ *MsDb, err error) {
	ms := &MsDb{}
	if ms.master, err = NewDB(logger, conf.Master); err != nil {
		return nil, err
	}
	ms.slave = ms.master
	if conf.Slave.Dsn != "" && (conf.Slave.Dsn != conf.Master.Dsn || conf.Slave.Driver != conf.Master.Driver) {
		if ms.slave, err = NewDB(logger, conf.Slave); err != nil {
			_ = Close(ms.master)
			return nil, err
		}
	}
	for _, p := range conf.Plugins {
		if err = ms.master.Use(p); err != nil {
			return nil, ErrDB.Wrap(err)
		}
		if ms.slave != ms.master {
			if err = ms.slave.Use(p); err != nil {
				return nil, ErrDB.Wrap(err)
			}
		}
	}
	return ms, nil
}

func (mdb *MsDb) Master() *gorm.DB {
	return mdb.master
}

// Slave 导出只读查询使用
func (mdb *MsDb) Slave() *gorm.DB {
	return mdb.slave
}

func (mdb *MsDb) Close() error {
	err := Close(mdb.master)
	if mdb.slave != mdb.master {
		if serr := Close(mdb.slave); err == nil {
			err = serr
		}
	}
	return err
}
