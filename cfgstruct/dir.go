package cfgstruct

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultConfigDir 默认配置目录，优先 $XDG_CONFIG_HOME 或系统的用户配置目录
func DefaultConfigDir(name string) string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, name)
	}
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("AppData"); dir != "" {
			return filepath.Join(dir, name)
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, name)
	}
	return filepath.Join(".", name)
}
