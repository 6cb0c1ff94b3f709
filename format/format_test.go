package format

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v2"
)

type testTable struct {
	title   string
	headers []string
	rows    [][]string
}

func (t testTable) Title() string {
	return t.title
}

func (t testTable) Headers() []string {
	return t.headers
}

func (t testTable) Rows() [][]string {
	return t.rows
}

var sample = testTable{
	title:   "simple",
	headers: []string{"id", "field1", "field2"},
	rows: [][]string{
		{"1", "foo", "bar"},
		{"2", "café", "a,b"},
	},
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"xls", "xlsx", "csv", "tsv", "html", "md", "json", "yaml"} {
		f, ok := Lookup(name)
		assert.True(t, ok, name)
		assert.Equal(t, name, f.Name)
	}
	_, ok := Lookup("pdf")
	assert.False(t, ok)
	assert.Equal(t, []string{"csv", "html", "json", "md", "tsv", "xls", "xlsx", "yaml"}, Names())
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/vnd.ms-excel; charset=utf-8", ContentType("xls", ""))
	assert.Equal(t, "text/csv; charset=latin-1", ContentType("csv", "latin-1"))
	assert.Equal(t, "application/octet-stream; charset=utf-8", ContentType("pdf", "utf-8"))
	assert.Equal(t, DefaultMimeType, MimeType("pdf"))
}

func TestCharset(t *testing.T) {
	_, err := Charset("iso-8859-1")
	require.NoError(t, err)
	_, err = Charset("no-such-charset")
	assert.True(t, ErrFormat.Has(err))
}

func TestEncodeCsv(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, "csv", sample, ""))
	assert.Equal(t, "id,field1,field2\r\n1,foo,bar\r\n2,café,\"a,b\"\r\n", buf.String())
}

func TestEncodeCsvCharset(t *testing.T) {
	var buf bytes.Buffer
	tab := testTable{headers: []string{"name"}, rows: [][]string{{"café 中"}}}
	require.NoError(t, Encode(&buf, "csv", tab, "iso-8859-1"))
	assert.Equal(t, []byte("name\r\ncaf\xe9 &#20013;\r\n"), buf.Bytes())
}

func TestEncodeTsv(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, "tsv", sample, "utf-8"))
	assert.Equal(t, "id\tfield1\tfield2\r\n1\tfoo\tbar\r\n2\tcafé\ta,b\r\n", buf.String())
}

func TestEncodeJson(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, "json", sample, ""))
	assert.Equal(t, `[{"id":"1","field1":"foo","field2":"bar"},{"id":"2","field1":"café","field2":"a,b"}]`, buf.String())

	var out []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Len(t, out, 2)

	buf.Reset()
	require.NoError(t, Encode(&buf, "json", testTable{headers: []string{"id"}}, ""))
	assert.Equal(t, "[]", buf.String())
}

func TestEncodeYaml(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, "yaml", sample, ""))
	var out []yaml.MapSlice
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "id", out[0][0].Key)
	assert.Equal(t, "field1", out[0][1].Key)
	assert.Equal(t, "field2", out[0][2].Key)
	assert.Equal(t, "bar", out[0][2].Value)
}

func TestEncodeHtml(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, "html", sample, ""))
	s := buf.String()
	assert.Contains(t, s, "<table")
	assert.Contains(t, s, "field1")
	assert.Contains(t, s, "café")
	assert.NotContains(t, s, "FIELD1")
}

func TestEncodeMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, "md", sample, ""))
	assert.Contains(t, buf.String(), "| id | field1 | field2 |")
}

func TestEncodeXlsx(t *testing.T) {
	for _, name := range []string{"xls", "xlsx"} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, name, sample, ""))
		fp, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		rows, err := fp.GetRows("simple")
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"id", "field1", "field2"},
			{"1", "foo", "bar"},
			{"2", "café", "a,b"},
		}, rows)
		_ = fp.Close()
	}
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "", sheetName(""))
	assert.Equal(t, "ab", sheetName("a/b"))
	assert.Len(t, []rune(sheetName("abcdefghijklmnopqrstuvwxyz0123456789")), 31)
}

func TestEncodeUnsupported(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, "pdf", sample, "")
	assert.True(t, ErrFormat.Has(err))
}
