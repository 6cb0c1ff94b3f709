package format

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/opdss/tablib/contracts/tablib"
)

func encodeHtml(w io.Writer, t tablib.Tabular) error {
	_, err := io.WriteString(w, newPrettyTable(t).RenderHTML())
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func encodeMarkdown(w io.Writer, t tablib.Tabular) error {
	_, err := io.WriteString(w, newPrettyTable(t).RenderMarkdown())
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func newPrettyTable(t tablib.Tabular) table.Writer {
	tw := table.NewWriter()
	//表头保持原样，不转大写
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault
	if title := t.Title(); title != "" {
		tw.SetTitle(title)
	}
	header := make(table.Row, 0, len(t.Headers()))
	for _, h := range t.Headers() {
		header = append(header, h)
	}
	tw.AppendHeader(header)
	for _, values := range t.Rows() {
		row := make(table.Row, len(values))
		for i := range values {
			row[i] = values[i]
		}
		tw.AppendRow(row)
	}
	return tw
}
