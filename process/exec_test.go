package process

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opdss/tablib/cfgstruct"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

type testConfig struct {
	Database struct {
		Driver string `help:"驱动" default:"sqlite3"`
		Dsn    string `help:"连接" default:"$ROOT/sqlite.db"`
	}
	Formats []string `help:"格式" default:"csv,xls"`
	Token   string   `help:"密钥" default:"" hidden:"true"`
}

func newCommand(t *testing.T, dir string) (*cobra.Command, *testConfig) {
	t.Helper()
	var conf testConfig
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config-dir", dir, "配置目录")
	cfgstruct.Bind(cmd.Flags(), &conf, cfgstruct.ConfDir(dir))
	return cmd, &conf
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cmd, _ := newCommand(t, dir)
	path := filepath.Join(dir, DefaultCfgFilename)
	require.NoError(t, SaveConfig(cmd, path, map[string]interface{}{"database.driver": "mysql"},
		yaml.MapItem{Key: "tablib", Value: yaml.MapSlice{{Key: "default-format", Value: "csv"}}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "database:\n  driver: mysql\n  dsn: "+dir+"/sqlite.db\nformats:\n- csv\n- xls\ntablib:\n  default-format: csv\n", string(data))

	cmd2, conf := newCommand(t, dir)
	assert.Equal(t, path, ConfigFile(cmd2))
	vip, err := Viper(cmd2)
	require.NoError(t, err)
	assert.Equal(t, "csv", vip.GetString("tablib.default-format"))

	broken, missing := decodeConfigs(cmd2, vip, []interface{}{conf})
	assert.Empty(t, broken)
	assert.Equal(t, "mysql", conf.Database.Driver)
	_, ok := missing["tablib.default-format"]
	assert.True(t, ok)
}

func TestViperEnv(t *testing.T) {
	t.Setenv("TABLIB_DATABASE_DRIVER", "postgres")
	cmd, _ := newCommand(t, t.TempDir())
	vip, err := Viper(cmd)
	require.NoError(t, err)
	assert.Equal(t, "postgres", vip.GetString("database.driver"))
}

func TestCtx(t *testing.T) {
	cmd := &cobra.Command{Use: "ctx"}
	ctx, cancel := Ctx(cmd)
	ctx2, _ := Ctx(cmd)
	assert.Equal(t, ctx, ctx2)
	cancel()
	<-ctx.Done()
}
