package dataset

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type simpleRecord struct {
	ID     uint
	Field1 string
}

func (simpleRecord) TableName() string {
	return "simples"
}

type Status struct {
	ID     uint
	Name   string
	State  int
	Active bool
}

func (s *Status) GetStateDisplay() string {
	switch s.State {
	case 1:
		return "open"
	case 2:
		return "closed"
	}
	return "unknown"
}

func (s *Status) Label() string {
	return "#" + s.Name
}

func newTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	require.NoError(t, db.AutoMigrate(models...))
	return db
}

func seedSimple(t *testing.T, db *gorm.DB, values ...string) {
	t.Helper()
	for _, v := range values {
		require.NoError(t, db.Create(&simpleRecord{Field1: v}).Error)
	}
}
