package process

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
	"gopkg.in/yaml.v2"
)

func init() {
	cobra.MousetrapHelpText = "This is a command line tool.\n\n" +
		"This needs to be run from a Command Prompt.\n"

	// Figure out the executable name.
	exe, err := os.Executable()
	if err == nil {
		cobra.MousetrapHelpText += fmt.Sprintf(
			"Try running \"%s help\" for more information\n", exe)
	}
}

// fileExists checks whether file exists, handle error correctly if it doesn't.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		log.Fatalf("failed to check for file existence: %v", err)
	}
	return true
}

// SaveConfig 把命令的参数写成 yaml 配置文件，overrides 覆盖参数当前值
//
// 隐藏参数和 config-dir 不写入；嵌套的 . 展开为 yaml 层级。
func SaveConfig(cmd *cobra.Command, outfile string, overrides map[string]interface{}, extra ...yaml.MapItem) error {
	flags := make(map[string]interface{})
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "config-dir" || f.Name == "help" {
			return
		}
		flags[f.Name] = flagValue(f)
	})
	for k, v := range overrides {
		flags[k] = v
	}

	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var root yaml.MapSlice
	for _, k := range keys {
		root = setNested(root, strings.Split(k, "."), flags[k])
	}
	root = append(root, extra...)

	data, err := yaml.Marshal(root)
	if err != nil {
		return errs.Wrap(err)
	}
	if err := os.MkdirAll(filepath.Dir(outfile), 0o755); err != nil {
		return errs.Wrap(err)
	}
	return atomicWriteFile(outfile, data, 0o600)
}

func flagValue(f *pflag.Flag) interface{} {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		return sv.GetSlice()
	}
	return f.Value.String()
}

func setNested(m yaml.MapSlice, path []string, value interface{}) yaml.MapSlice {
	for i := range m {
		if m[i].Key != path[0] {
			continue
		}
		if len(path) == 1 {
			m[i].Value = value
			return m
		}
		child, _ := m[i].Value.(yaml.MapSlice)
		m[i].Value = setNested(child, path[1:], value)
		return m
	}
	if len(path) == 1 {
		return append(m, yaml.MapItem{Key: path[0], Value: value})
	}
	return append(m, yaml.MapItem{Key: path[0], Value: setNested(nil, path[1:], value)})
}

// atomicWriteFile is a helper to atomically write the data to the outfile.
func atomicWriteFile(outfile string, data []byte, mode os.FileMode) (err error) {
	fh, err := os.CreateTemp(filepath.Dir(outfile), filepath.Base(outfile))
	if err != nil {
		return errs.Wrap(err)
	}
	needsClose, needsRemove := true, true

	defer func() {
		if needsClose {
			err = errs.Combine(err, errs.Wrap(fh.Close()))
		}
		if needsRemove {
			err = errs.Combine(err, errs.Wrap(os.Remove(fh.Name())))
		}
	}()

	if _, err := fh.Write(data); err != nil {
		return errs.Wrap(err)
	}
	if err := fh.Chmod(mode); err != nil {
		return errs.Wrap(err)
	}

	needsClose = false
	if err := fh.Close(); err != nil {
		return errs.Wrap(err)
	}

	if err := os.Rename(fh.Name(), outfile); err != nil {
		return errs.Wrap(err)
	}
	needsRemove = false

	return nil
}
