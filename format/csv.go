package format

import (
	"encoding/csv"
	"io"

	"github.com/opdss/tablib/contracts/tablib"
)

func encodeCsv(w io.Writer, t tablib.Tabular) error {
	return writeDelimited(w, t, ',')
}

func encodeTsv(w io.Writer, t tablib.Tabular) error {
	return writeDelimited(w, t, '\t')
}

func writeDelimited(w io.Writer, t tablib.Tabular, comma rune) error {
	fw := csv.NewWriter(w)
	fw.Comma = comma
	fw.UseCRLF = true
	if err := fw.Write(t.Headers()); err != nil {
		return err
	}
	for _, row := range t.Rows() {
		if err := fw.Write(row); err != nil {
			return err
		}
	}
	fw.Flush()
	return fw.Error()
}
