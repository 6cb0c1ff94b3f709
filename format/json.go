package format

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/opdss/tablib/contracts/tablib"
	"gopkg.in/yaml.v2"
)

// encodeJson 输出对象数组，对象的键顺序与表头一致
func encodeJson(w io.Writer, t tablib.Tabular) error {
	bw := bufio.NewWriter(w)
	headers := make([][]byte, len(t.Headers()))
	for i, h := range t.Headers() {
		b, err := json.Marshal(h)
		if err != nil {
			return err
		}
		headers[i] = b
	}
	_ = bw.WriteByte('[')
	for i, values := range t.Rows() {
		if i > 0 {
			_ = bw.WriteByte(',')
		}
		_ = bw.WriteByte('{')
		for j := range headers {
			if j > 0 {
				_ = bw.WriteByte(',')
			}
			_, _ = bw.Write(headers[j])
			_ = bw.WriteByte(':')
			b, err := json.Marshal(values[j])
			if err != nil {
				return err
			}
			_, _ = bw.Write(b)
		}
		_ = bw.WriteByte('}')
	}
	_ = bw.WriteByte(']')
	return bw.Flush()
}

// encodeYaml 输出映射列表，键顺序与表头一致
func encodeYaml(w io.Writer, t tablib.Tabular) error {
	rows := t.Rows()
	items := make([]yaml.MapSlice, len(rows))
	headers := t.Headers()
	for i, values := range rows {
		item := make(yaml.MapSlice, len(headers))
		for j, h := range headers {
			item[j] = yaml.MapItem{Key: h, Value: values[j]}
		}
		items[i] = item
	}
	b, err := yaml.Marshal(items)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
