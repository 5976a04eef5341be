package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

// DefaultSheetName - лист Excel по умолчанию
const DefaultSheetName = "Sheet1"

// excelColumnWidth - ширина колонок в листе
const excelColumnWidth = 15

// writeCSV - заголовок и строки, NULL - пустое поле
func writeCSV(res *schema.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(res.Columns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// writeExcel - один лист, заголовок в стиле таблиц Excel
func writeExcel(res *schema.Result, sheet string) ([]byte, error) {
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()

	if sheet != DefaultSheetName {
		if err := f.SetSheetName(DefaultSheetName, sheet); err != nil {
			return nil, fmt.Errorf("failed to rename sheet: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]any, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	if len(res.Columns) > 0 {
		last, _ := excelize.ColumnNumberToName(len(res.Columns))
		if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
		if err := f.SetColWidth(sheet, "A", last, excelColumnWidth); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, row := range res.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		copy(values, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// writeJSON - массив объектов, ключи в порядке колонок результата
func writeJSON(res *schema.Result) ([]byte, error) {
	keys := make([][]byte, len(res.Columns))
	for i, c := range res.Columns {
		k, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode column %q: %w", c, err)
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for r, row := range res.Rows {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  {")
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			var v any
			if i < len(row) {
				v = row[i]
			}
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode row %d: %w", r+1, err)
			}
			buf.Write(k)
			buf.WriteString(": ")
			buf.Write(encoded)
		}
		buf.WriteByte('}')
	}
	if len(res.Rows) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}
