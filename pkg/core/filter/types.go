package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

var (
	// ErrNoColumns - не выбрано ни одной колонки и не выбран режим "все колонки"
	ErrNoColumns = errors.New("no columns selected")

	// ErrNoTable - не указана таблица
	ErrNoTable = errors.New("no table selected")

	// ErrValueRequired - оператор требует значение, а пришел NULL
	ErrValueRequired = errors.New("operator requires a value")
)

// Operator - оператор условия визуального фильтра
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not equals"
	OpGreater        Operator = "greater than"
	OpLess           Operator = "less than"
	OpGreaterOrEqual Operator = "greater or equal"
	OpLessOrEqual    Operator = "less or equal"
	OpContains       Operator = "contains"
	OpStartsWith     Operator = "starts with"
	OpEndsWith       Operator = "ends with"
	OpIsNull         Operator = "is null"
	OpIsNotNull      Operator = "is not null"
)

// Operators возвращает все операторы в порядке отображения
func Operators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals,
		OpGreater, OpLess, OpGreaterOrEqual, OpLessOrEqual,
		OpContains, OpStartsWith, OpEndsWith,
		OpIsNull, OpIsNotNull,
	}
}

// ParseOperator разбирает оператор, принимая также короткие формы (eq, ne, gt, ...)
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equals", "eq", "=":
		return OpEquals, nil
	case "not equals", "ne", "!=", "<>":
		return OpNotEquals, nil
	case "greater than", "gt", ">":
		return OpGreater, nil
	case "less than", "lt", "<":
		return OpLess, nil
	case "greater or equal", "gte", ">=", "≥":
		return OpGreaterOrEqual, nil
	case "less or equal", "lte", "<=", "≤":
		return OpLessOrEqual, nil
	case "contains":
		return OpContains, nil
	case "starts with", "starts_with":
		return OpStartsWith, nil
	case "ends with", "ends_with":
		return OpEndsWith, nil
	case "is null", "is_null":
		return OpIsNull, nil
	case "is not null", "is_not_null":
		return OpIsNotNull, nil
	default:
		return "", fmt.Errorf("unsupported operator: %q", s)
	}
}

// Nullary проверяет что оператор не требует значения
func (op Operator) Nullary() bool {
	return op == OpIsNull || op == OpIsNotNull
}

// IsLike проверяет что оператор транслируется в LIKE
func (op Operator) IsLike() bool {
	return op == OpContains || op == OpStartsWith || op == OpEndsWith
}

// Logic - связка условия с предыдущим
type Logic string

const (
	And Logic = "AND"
	Or  Logic = "OR"
)

// ParseLogic разбирает AND/OR; пустая строка означает AND
func ParseLogic(s string) (Logic, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AND":
		return And, nil
	case "OR":
		return Or, nil
	default:
		return "", fmt.Errorf("unsupported logic: %q", s)
	}
}

// Condition - одно условие визуального фильтра.
//
// Logic относится к условию, которое следует за предыдущим; для первого
// условия в наборе Logic игнорируется.
type Condition struct {
	Column   schema.Column
	Operator Operator
	Value    schema.Value
	Logic    Logic
}

// NewCondition создает условие и один раз приводит значение к типу колонки.
// Короткие формы оператора (gt, >=, starts_with) сохраняются в каноническом виде.
// Для nullary операторов значение игнорируется.
func NewCondition(col schema.Column, op Operator, raw any, logic Logic) (Condition, error) {
	if col.Name == "" {
		return Condition{}, fmt.Errorf("condition column is empty")
	}
	op, err := ParseOperator(string(op))
	if err != nil {
		return Condition{}, err
	}
	if logic == "" {
		logic = And
	}
	if logic != And && logic != Or {
		return Condition{}, fmt.Errorf("unsupported logic: %q", logic)
	}

	cond := Condition{Column: col, Operator: op, Logic: logic, Value: schema.Null()}
	if op.Nullary() {
		return cond, nil
	}

	value, err := schema.FromAny(raw)
	if err != nil {
		return Condition{}, fmt.Errorf("column %s: %w", col.Name, err)
	}
	if value.IsNull() {
		return Condition{}, fmt.Errorf("column %s, operator %q: %w", col.Name, op, ErrValueRequired)
	}

	// LIKE всегда сравнивает текст, приводить к числу не нужно
	if !op.IsLike() {
		value, err = schema.Resolve(value, col)
		if err != nil {
			return Condition{}, err
		}
	}

	cond.Value = value
	return cond, nil
}

// FilterSet - упорядоченный набор условий. Порядок задает цепочку слева
// направо, скобки компилятор не расставляет.
type FilterSet []Condition

// Direction - направление сортировки
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Sort - параметры сортировки. Column == "" означает что колонка не выбрана.
type Sort struct {
	Column    string
	Direction Direction
}

// QuerySpec - полное неизменяемое описание одного извлечения.
//
// После генерации SQL спецификация не меняется: для другого запроса
// создается новая QuerySpec.
type QuerySpec struct {
	Table      string
	AllColumns bool
	Columns    []string // порядок выбора пользователя
	Filters    FilterSet
	Sort       *Sort // nil - сортировка выключена
	Limit      int   // <= 0 - ограничение выключено
}
