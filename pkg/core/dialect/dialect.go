// Package dialect содержит правила квотирования идентификаторов и значений
// для поддерживаемых СУБД.
//
// Функции чистые и не имеют состояния. Неизвестный диалект - ошибка
// программиста: вызывающий код обязан проверить Dialect.Valid() заранее.
//
// Известное ограничение: закрывающие "]" и "`" внутри идентификаторов
// не экранируются.
package dialect

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

// Dialect - тег диалекта SQL
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	MSSQL    Dialect = "mssql"
)

// All возвращает все известные диалекты
func All() []Dialect {
	return []Dialect{SQLite, MySQL, Postgres, MSSQL}
}

// Valid проверяет что диалект известен
func (d Dialect) Valid() bool {
	switch d {
	case SQLite, MySQL, Postgres, MSSQL:
		return true
	default:
		return false
	}
}

// Parse разбирает тег диалекта с учетом синонимов ("sqlite3", "postgresql", "sqlserver")
func Parse(tag string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mssql", "sqlserver":
		return MSSQL, nil
	default:
		return "", fmt.Errorf("unknown dialect: %q", tag)
	}
}

// ExplainPrefix возвращает префикс dry-run проверки запроса.
// Для MS SQL пустая строка: там используется SET SHOWPLAN_ALL на сессии.
func (d Dialect) ExplainPrefix() string {
	switch d {
	case SQLite:
		return "EXPLAIN QUERY PLAN "
	case MySQL, Postgres:
		return "EXPLAIN "
	default:
		return ""
	}
}

// QuoteIdentifier экранирует имя таблицы или колонки:
//
//	SQLite:     [name]
//	MySQL:      `name`
//	PostgreSQL: "name"
//	MS SQL:     [name]
func QuoteIdentifier(d Dialect, name string) string {
	switch d {
	case SQLite, MSSQL:
		return "[" + name + "]"
	case MySQL:
		return "`" + name + "`"
	case Postgres:
		return `"` + name + `"`
	default:
		panic(fmt.Sprintf("dialect: unknown dialect %q", string(d)))
	}
}

// QuoteLiteral рендерит значение для подстановки в SQL.
//
// Для числовых колонок (см. schema.IsNumericType) число выводится без кавычек.
// Все остальные значения - строковый литерал в одинарных кавычках, внутренние
// одинарные кавычки удваиваются. NULL всегда выводится как NULL.
//
// Текстовое значение для числовой колонки выводится без кавычек только если
// оно разбирается как число; иначе оно уходит строковым литералом.
func QuoteLiteral(d Dialect, value schema.Value, columnType string) string {
	if !d.Valid() {
		panic(fmt.Sprintf("dialect: unknown dialect %q", string(d)))
	}

	if value.IsNull() {
		return "NULL"
	}

	if schema.IsNumericType(columnType) {
		resolved, err := schema.Resolve(value, schema.Column{Type: columnType})
		if err == nil {
			return resolved.String()
		}
	}

	return QuoteString(value.String())
}

// QuoteString оборачивает строку в одинарные кавычки с удвоением внутренних кавычек
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// EscapeLike экранирует % внутри значения LIKE как %%.
// Применяется до квотирования и независимо от него.
func EscapeLike(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

// Paginate возвращает ограничение выборки для конца запроса или "".
//
//	SQLite/MySQL/PostgreSQL: LIMIT n [OFFSET m]
//	MS SQL: [ORDER BY (SELECT NULL)] OFFSET m ROWS FETCH NEXT n ROWS ONLY
//
// В MS SQL OFFSET/FETCH требует ORDER BY, поэтому без ordered добавляется
// пустая сортировка. limit <= 0 - без ограничения, OFFSET только при offset > 0.
func Paginate(d Dialect, limit, offset int, ordered bool) string {
	if limit <= 0 {
		return ""
	}
	if offset < 0 {
		offset = 0
	}

	if d == MSSQL {
		clause := fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
		if !ordered {
			clause = "ORDER BY (SELECT NULL) " + clause
		}
		return clause
	}

	clause := fmt.Sprintf("LIMIT %d", limit)
	if offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", offset)
	}
	return clause
}

// LimitRaw ограничивает произвольный SELECT n строками.
// Для MS SQL запрос оборачивается в SELECT TOP, для остальных дописывается LIMIT.
// Завершающая ';' отбрасывается.
func LimitRaw(d Dialect, query string, n int) string {
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	if d == MSSQL {
		return fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS limited", n, query)
	}
	return fmt.Sprintf("%s LIMIT %d", query, n)
}
