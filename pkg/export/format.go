package export

import (
	"fmt"
	"strings"
)

// Format - формат выгрузки
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatJSON  Format = "json"
)

// Formats возвращает поддерживаемые форматы
func Formats() []Format {
	return []Format{FormatCSV, FormatExcel, FormatJSON}
}

// ParseFormat разбирает тег формата ("xlsx" - синоним excel)
func ParseFormat(tag string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", tag)
	}
}

// Extension - расширение файла без точки
func (f Format) Extension() string {
	switch f {
	case FormatExcel:
		return "xlsx"
	default:
		return string(f)
	}
}

// MimeType - MIME тип несжатого файла
func (f Format) MimeType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
