package filter

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tablegrab/pkg/core/dialect"
)

// Compiler конвертирует QuerySpec в SQL для конкретного диалекта
type Compiler struct {
	dialect dialect.Dialect
}

// NewCompiler создает компилятор визуального фильтра
func NewCompiler(d dialect.Dialect) *Compiler {
	return &Compiler{dialect: d}
}

// Compile - короткая форма NewCompiler(d).Compile(spec)
func Compile(d dialect.Dialect, spec QuerySpec) (string, error) {
	return NewCompiler(d).Compile(spec)
}

// Compile строит SELECT по спецификации:
//
//	SELECT <* | колонки в порядке выбора> FROM <таблица>
//	[WHERE c1 <op> v1 <logic2> c2 <op> v2 ...]
//	[ORDER BY <колонка> ASC|DESC]
//	[LIMIT n] (MS SQL: OFFSET 0 ROWS FETCH NEXT n ROWS ONLY)
//
// Если колонки не выбраны, SQL не генерируется (ErrNoColumns).
func (c *Compiler) Compile(spec QuerySpec) (string, error) {
	if !c.dialect.Valid() {
		return "", fmt.Errorf("unknown dialect: %q", string(c.dialect))
	}
	if spec.Table == "" {
		return "", ErrNoTable
	}
	if !spec.AllColumns && len(spec.Columns) == 0 {
		return "", ErrNoColumns
	}

	var parts []string
	parts = append(parts, "SELECT "+c.selectList(spec))
	parts = append(parts, "FROM "+dialect.QuoteIdentifier(c.dialect, spec.Table))

	// WHERE clause
	if len(spec.Filters) > 0 {
		where, err := c.whereClause(spec.Filters)
		if err != nil {
			return "", fmt.Errorf("failed to generate WHERE clause: %w", err)
		}
		parts = append(parts, "WHERE "+where)
	}

	// ORDER BY clause
	ordered := spec.Sort != nil && spec.Sort.Column != ""
	if ordered {
		direction := Asc
		if strings.EqualFold(string(spec.Sort.Direction), string(Desc)) {
			direction = Desc
		}
		parts = append(parts, fmt.Sprintf("ORDER BY %s %s",
			dialect.QuoteIdentifier(c.dialect, spec.Sort.Column), direction))
	}

	// LIMIT clause (OFFSET/FETCH для MS SQL)
	if limit := dialect.Paginate(c.dialect, spec.Limit, 0, ordered); limit != "" {
		parts = append(parts, limit)
	}

	return strings.Join(parts, " "), nil
}

func (c *Compiler) selectList(spec QuerySpec) string {
	if spec.AllColumns {
		return "*"
	}
	quoted := make([]string, len(spec.Columns))
	for i, name := range spec.Columns {
		quoted[i] = dialect.QuoteIdentifier(c.dialect, name)
	}
	return strings.Join(quoted, ", ")
}

// whereClause склеивает условия слева направо. Logic первого условия не выводится.
func (c *Compiler) whereClause(filters FilterSet) (string, error) {
	var b strings.Builder
	for i, cond := range filters {
		rendered, err := c.condition(cond)
		if err != nil {
			return "", err
		}
		if i > 0 {
			logic := cond.Logic
			if logic == "" {
				logic = And
			}
			b.WriteString(" ")
			b.WriteString(string(logic))
			b.WriteString(" ")
		}
		b.WriteString(rendered)
	}
	return b.String(), nil
}

// condition рендерит одно условие
func (c *Compiler) condition(cond Condition) (string, error) {
	column := dialect.QuoteIdentifier(c.dialect, cond.Column.Name)
	value := func() string {
		return dialect.QuoteLiteral(c.dialect, cond.Value, cond.Column.Type)
	}

	if !cond.Operator.Nullary() && cond.Value.IsNull() {
		return "", fmt.Errorf("column %s, operator %q: %w", cond.Column.Name, cond.Operator, ErrValueRequired)
	}

	switch cond.Operator {
	case OpEquals:
		return fmt.Sprintf("%s = %s", column, value()), nil
	case OpNotEquals:
		return fmt.Sprintf("%s != %s", column, value()), nil
	case OpGreater:
		return fmt.Sprintf("%s > %s", column, value()), nil
	case OpLess:
		return fmt.Sprintf("%s < %s", column, value()), nil
	case OpGreaterOrEqual:
		return fmt.Sprintf("%s >= %s", column, value()), nil
	case OpLessOrEqual:
		return fmt.Sprintf("%s <= %s", column, value()), nil
	case OpContains:
		return fmt.Sprintf("%s LIKE %s", column, likePattern("%", cond, "%")), nil
	case OpStartsWith:
		return fmt.Sprintf("%s LIKE %s", column, likePattern("", cond, "%")), nil
	case OpEndsWith:
		return fmt.Sprintf("%s LIKE %s", column, likePattern("%", cond, "")), nil
	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", column), nil
	case OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", column), nil
	default:
		return "", fmt.Errorf("unsupported operator: %q", cond.Operator)
	}
}

// likePattern - шаблон LIKE всегда строковый литерал, даже для числовой колонки
func likePattern(prefix string, cond Condition, suffix string) string {
	return dialect.QuoteString(prefix + dialect.EscapeLike(cond.Value.String()) + suffix)
}
