package filter

import (
	"fmt"

	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

// ConditionInput - условие в том виде, в котором его присылает форма или job-файл
type ConditionInput struct {
	Column   string `yaml:"column" json:"column"`
	Operator string `yaml:"operator" json:"operator"`
	Value    any    `yaml:"value,omitempty" json:"value,omitempty"`
	Logic    string `yaml:"logic,omitempty" json:"logic,omitempty"`
}

// Request - сырой запрос визуального фильтра (имена колонок и операторы строками)
type Request struct {
	AllColumns bool             `yaml:"all_columns,omitempty" json:"all_columns,omitempty"`
	Columns    []string         `yaml:"columns,omitempty" json:"columns,omitempty"`
	Conditions []ConditionInput `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	SortColumn string           `yaml:"sort_column,omitempty" json:"sort_column,omitempty"`
	SortDesc   bool             `yaml:"sort_desc,omitempty" json:"sort_desc,omitempty"`
	Limit      int              `yaml:"limit,omitempty" json:"limit,omitempty"`
}

// Resolve проверяет запрос по метаданным таблицы и строит QuerySpec.
//
// AllColumns дает SELECT *, иначе нужен хотя бы один элемент Columns.
// Тип колонки для условия берется из метаданных, поэтому квотирование
// значений зависит от реальной схемы.
func (r Request) Resolve(table schema.Table) (QuerySpec, error) {
	if !r.AllColumns && len(r.Columns) == 0 {
		return QuerySpec{}, ErrNoColumns
	}

	spec := QuerySpec{
		Table:      table.Name,
		AllColumns: r.AllColumns,
		Limit:      r.Limit,
	}

	for _, name := range r.Columns {
		if _, ok := table.ColumnByName(name); !ok {
			return QuerySpec{}, fmt.Errorf("unknown column %q in table %s", name, table.Name)
		}
		spec.Columns = append(spec.Columns, name)
	}

	for i, in := range r.Conditions {
		col, ok := table.ColumnByName(in.Column)
		if !ok {
			return QuerySpec{}, fmt.Errorf("condition %d: unknown column %q in table %s", i+1, in.Column, table.Name)
		}
		op, err := ParseOperator(in.Operator)
		if err != nil {
			return QuerySpec{}, fmt.Errorf("condition %d: %w", i+1, err)
		}
		logic, err := ParseLogic(in.Logic)
		if err != nil {
			return QuerySpec{}, fmt.Errorf("condition %d: %w", i+1, err)
		}
		cond, err := NewCondition(col, op, in.Value, logic)
		if err != nil {
			return QuerySpec{}, fmt.Errorf("condition %d: %w", i+1, err)
		}
		spec.Filters = append(spec.Filters, cond)
	}

	if r.SortColumn != "" {
		if _, ok := table.ColumnByName(r.SortColumn); !ok {
			return QuerySpec{}, fmt.Errorf("unknown sort column %q in table %s", r.SortColumn, table.Name)
		}
		direction := Asc
		if r.SortDesc {
			direction = Desc
		}
		spec.Sort = &Sort{Column: r.SortColumn, Direction: direction}
	}

	return spec, nil
}
