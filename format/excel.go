package format

import (
	"io"
	"log"
	"strings"

	"github.com/opdss/tablib/contracts/tablib"
	"github.com/xuri/excelize/v2"
)

// DefaultSheetName 默认操作表
const DefaultSheetName = "Sheet1"

// excel sheet 名最长 31 个字符
const maxSheetNameLen = 31

var sheetNameReplacer = strings.NewReplacer(":", "", "\\", "", "/", "", "?", "", "*", "", "[", "", "]", "")

func encodeXlsx(w io.Writer, t tablib.Tabular) (err error) {
	fp := excelize.NewFile()
	defer func() {
		if cErr := fp.Close(); cErr != nil {
			log.Println("excel encode close err:", cErr)
		}
	}()
	sheet := DefaultSheetName
	if name := sheetName(t.Title()); name != "" && name != sheet {
		if err = fp.SetSheetName(sheet, name); err != nil {
			return err
		}
		sheet = name
	}
	//设置列相关属性
	if lt, ok := t.(tablib.Layouter); ok {
		if err = setColStyle(fp, sheet, lt.Layouts()); err != nil {
			return err
		}
	}
	sw, err := fp.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	//设置导出表头
	row := 1
	if err = sw.SetRow("A1", toAny(t.Headers())); err != nil {
		return err
	}
	for _, values := range t.Rows() {
		row++
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err = sw.SetRow(cell, toAny(values)); err != nil {
			return err
		}
	}
	if err = sw.Flush(); err != nil {
		return err
	}
	_, err = fp.WriteTo(w)
	return err
}

// setColStyle 设置列宽度及样式
func setColStyle(fp *excelize.File, sheet string, layouts []tablib.ColumnLayout) error {
	for i, l := range layouts {
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if l.Width > 0 {
			if err = fp.SetColWidth(sheet, colName, colName, l.Width); err != nil {
				return err
			}
		}
		if l.Style != nil {
			styleId, err := fp.NewStyle(l.Style)
			if err != nil {
				return err
			}
			if err = fp.SetColStyle(sheet, colName, styleId); err != nil {
				return err
			}
		}
	}
	return nil
}

func sheetName(title string) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(title))
	if r := []rune(name); len(r) > maxSheetNameLen {
		name = string(r[:maxSheetNameLen])
	}
	return name
}

func toAny(values []string) []any {
	res := make([]any, len(values))
	for i := range values {
		res[i] = values[i]
	}
	return res
}
