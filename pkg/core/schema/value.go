package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind - тег типизированного значения фильтра
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
)

// String - строковое представление тега
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Value - типизированное скалярное значение {Integer, Float, Text, Null}.
// Тип фиксируется один раз при создании условия фильтра, компилятор
// SQL дальше не угадывает тип по содержимому.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Null возвращает NULL значение
func Null() Value { return Value{kind: KindNull} }

// Int возвращает целочисленное значение
func Int(v int64) Value { return Value{kind: KindInteger, i: v} }

// Float возвращает значение с плавающей точкой
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Text возвращает текстовое значение
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Kind возвращает тег значения
func (v Value) Kind() Kind { return v.kind }

// IsNull проверяет NULL
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 возвращает целое (0 для нецелых значений)
func (v Value) Int64() int64 { return v.i }

// Float64 возвращает float (0 для остальных)
func (v Value) Float64() float64 { return v.f }

// String - строковое преобразование значения без кавычек.
// NULL превращается в "NULL".
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindText:
		return v.s
	default:
		return "NULL"
	}
}

// FromAny конвертирует то, что вернул виджет UI (или YAML), в Value.
// Поддерживаются nil, целые, float, string, []byte и fmt.Stringer.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		return Int(int64(v)), nil
	case uint8:
		return Int(int64(v)), nil
	case uint16:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case string:
		return Text(v), nil
	case []byte:
		return Text(string(v)), nil
	case fmt.Stringer:
		return Text(v.String()), nil
	default:
		return Value{}, fmt.Errorf("unsupported filter value type %T", raw)
	}
}

// Resolve приводит значение к объявленному типу колонки.
//
// Для числовой колонки текст разбирается как целое или float; текст, который
// не является числом, даёт ошибку. Для текстовой колонки числа переводятся в Text.
// NULL остается NULL.
func Resolve(v Value, col Column) (Value, error) {
	if v.IsNull() {
		return v, nil
	}

	if !col.IsNumeric() {
		if v.kind == KindText {
			return v, nil
		}
		return Text(v.String()), nil
	}

	if v.kind == KindFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return Value{}, fmt.Errorf("value %v is not a finite number (column %s)", v.f, col)
	}
	if v.kind != KindText {
		return v, nil
	}

	s := strings.TrimSpace(v.s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Float(f), nil
	}
	return Value{}, fmt.Errorf("value %q is not numeric (column %s)", v.s, col)
}
