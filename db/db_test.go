package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{Mysql, Postgresql, Sqlite3} {
		conf := Config{Driver: driver, Dsn: "x"}
		dial, err := conf.Dialector()
		require.NoError(t, err, driver)
		assert.NotNil(t, dial)
	}
	conf := Config{Driver: "oracle"}
	_, err := conf.Dialector()
	assert.True(t, ErrDB.Has(err))
}

func TestNewMsDB(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dir := t.TempDir()
	ms, err := NewMsDB(zap.New(core), MsConfig{
		Master: Config{Driver: Sqlite3, Dsn: filepath.Join(dir, "master.db"), LogLevel: "info"},
	})
	require.NoError(t, err)
	defer func() { _ = ms.Close() }()
	assert.Same(t, ms.Master(), ms.Slave())

	var n int
	require.NoError(t, ms.Slave().Raw("SELECT 1").Scan(&n).Error)
	assert.Equal(t, 1, n)
	assert.NotZero(t, logs.FilterMessage("sql").Len())

	ms2, err := NewMsDB(nil, MsConfig{
		Master: Config{Driver: Sqlite3, Dsn: filepath.Join(dir, "master.db")},
		Slave:  Config{Driver: Sqlite3, Dsn: filepath.Join(dir, "slave.db")},
	})
	require.NoError(t, err)
	defer func() { _ = ms2.Close() }()
	assert.NotSame(t, ms2.Master(), ms2.Slave())
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, parseLevel(""))
	assert.Equal(t, logger.Warn, parseLevel("WARN"))
	assert.Equal(t, logger.Discard, getLogInterface(nil, "info"))
}
