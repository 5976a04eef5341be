package base

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

// DateTimeLayout - формат времени в результатах
const DateTimeLayout = "2006-01-02 15:04:05"

// ValueHook - драйверное преобразование значения до NormalizeValue.
// ok=false - значение не тронуто.
type ValueHook func(col *sql.ColumnType, v any) (out any, ok bool)

// ScanResult материализует все строки. Значения приводятся к
// nil / int64 / float64 / string / bool (см. NormalizeValue).
func ScanResult(rows *sql.Rows, hook ValueHook) (*schema.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var types []*sql.ColumnType
	if hook != nil {
		if types, err = rows.ColumnTypes(); err != nil {
			return nil, fmt.Errorf("failed to get column types: %w", err)
		}
	}

	res := &schema.Result{Columns: columns, Rows: [][]any{}}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make([]any, len(columns))
		for i, v := range values {
			if hook != nil {
				if out, ok := hook(types[i], v); ok {
					row[i] = out
					continue
				}
			}
			row[i] = NormalizeValue(v)
		}
		res.Rows = append(res.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// NormalizeValue приводит значение драйвера к простому типу для экспорта.
//
// []byte становится строкой (MySQL отдает так все текстовые и DECIMAL
// значения), время форматируется DateTimeLayout, [16]byte UUID -
// каноническая строка.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case [16]byte:
		return uuid.UUID(val).String()
	case string, bool, int64, float64:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return float64(val)
	case time.Time:
		return val.Format(DateTimeLayout)
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if f, err := val.Float64Value(); err == nil && f.Valid {
			return f.Float64
		}
		return fmt.Sprintf("%v", val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
