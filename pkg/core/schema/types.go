package schema

import (
	"fmt"
	"strings"
)

// numericVocabulary - словарь подстрок объявленного типа, по которым колонка считается числовой.
// Сравнение регистронезависимое: "int(11)", "BIGINT UNSIGNED", "decimal(10,2)" - числовые.
var numericVocabulary = []string{
	"INT", "REAL", "NUMERIC", "DECIMAL", "FLOAT", "DOUBLE", "SERIAL", "BIGINT",
}

// IsNumericType проверяет является ли объявленный тип колонки числовым.
// Всё, что не совпало со словарем, считается текстом.
func IsNumericType(declared string) bool {
	upper := strings.ToUpper(declared)
	for _, token := range numericVocabulary {
		if strings.Contains(upper, token) {
			return true
		}
	}
	return false
}

// Column - метаданные колонки: имя и объявленный тип в нотации СУБД
// (например "INTEGER" в SQLite или "int(11)" в MySQL).
type Column struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// IsNumeric проверяет является ли колонка числовой
func (c Column) IsNumeric() bool {
	return IsNumericType(c.Type)
}

// String - "name (TYPE)"
func (c Column) String() string {
	if c.Type == "" {
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Type)
}

// Table - метаданные таблицы.
//
// RowCount актуален на момент запроса и не кешируется. RowCount и Columns
// согласованы только в пределах одного вызова TableMetadata.
type Table struct {
	Name     string   `json:"name"`
	RowCount int64    `json:"rows"`
	Columns  []Column `json:"columns"`
}

// ColumnByName ищет колонку по точному имени
func (t Table) ColumnByName(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnNames возвращает имена колонок в порядке объявления
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Summary - краткая сводка для отображения
type Summary struct {
	Rows    int64 `json:"rows"`
	Columns int   `json:"columns"`
}

// Summary возвращает количество строк и колонок
func (t Table) Summary() Summary {
	return Summary{Rows: t.RowCount, Columns: len(t.Columns)}
}

// Result - материализованный результат запроса.
// Значения в Rows уже нормализованы адаптером: []byte -> string, NULL -> nil.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Len возвращает количество строк результата
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Empty проверяет что результат пустой
func (r *Result) Empty() bool {
	return r.Len() == 0
}

// Column возвращает значения одной колонки по имени
func (r *Result) Column(name string) ([]any, bool) {
	if r == nil {
		return nil, false
	}
	idx := -1
	for i, c := range r.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	values := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		if idx < len(row) {
			values[i] = row[idx]
		}
	}
	return values, true
}
