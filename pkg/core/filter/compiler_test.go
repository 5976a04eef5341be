package filter

import (
	"errors"
	"testing"

	"github.com/ruslano69/tablegrab/pkg/core/dialect"
	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

var (
	ageCol  = schema.Column{Name: "age", Type: "INTEGER"}
	cityCol = schema.Column{Name: "city", Type: "TEXT"}
	nameCol = schema.Column{Name: "name", Type: "varchar(64)"}
)

func mustCondition(t *testing.T, col schema.Column, op Operator, raw any, logic Logic) Condition {
	t.Helper()
	cond, err := NewCondition(col, op, raw, logic)
	if err != nil {
		t.Fatalf("NewCondition failed: %v", err)
	}
	return cond
}

func TestCompile_ChainedFilters(t *testing.T) {
	spec := QuerySpec{
		Table:      "people",
		AllColumns: true,
		Filters: FilterSet{
			mustCondition(t, ageCol, OpGreater, 30, And),
			mustCondition(t, cityCol, OpEquals, "Rome", Or),
		},
	}

	tests := []struct {
		dialect dialect.Dialect
		want    string
	}{
		{dialect.SQLite, "SELECT * FROM [people] WHERE [age] > 30 OR [city] = 'Rome'"},
		{dialect.MySQL, "SELECT * FROM `people` WHERE `age` > 30 OR `city` = 'Rome'"},
		{dialect.Postgres, `SELECT * FROM "people" WHERE "age" > 30 OR "city" = 'Rome'`},
		{dialect.MSSQL, "SELECT * FROM [people] WHERE [age] > 30 OR [city] = 'Rome'"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			got, err := Compile(tt.dialect, spec)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compile() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestCompile_NoParentheses(t *testing.T) {
	spec := QuerySpec{
		Table:      "people",
		AllColumns: true,
		Filters: FilterSet{
			mustCondition(t, ageCol, OpGreater, 30, Or), // logic первого условия не выводится
			mustCondition(t, cityCol, OpEquals, "Rome", Or),
			mustCondition(t, nameCol, OpIsNotNull, nil, And),
		},
	}

	got, err := Compile(dialect.SQLite, spec)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := "SELECT * FROM [people] WHERE [age] > 30 OR [city] = 'Rome' AND [name] IS NOT NULL"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCompile_ColumnsSortLimit(t *testing.T) {
	spec := QuerySpec{
		Table:   "people",
		Columns: []string{"name", "age"},
		Sort:    &Sort{Column: "age", Direction: Desc},
		Limit:   10,
	}

	got, err := Compile(dialect.MySQL, spec)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := "SELECT `name`, `age` FROM `people` ORDER BY `age` DESC LIMIT 10"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	// Сортировка без направления - ASC, Limit 0 - без LIMIT
	spec.Sort = &Sort{Column: "name"}
	spec.Limit = 0
	got, err = Compile(dialect.SQLite, spec)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want = "SELECT [name], [age] FROM [people] ORDER BY [name] ASC"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCompile_MSSQLPagination(t *testing.T) {
	spec := QuerySpec{Table: "people", AllColumns: true, Limit: 10}

	got, err := Compile(dialect.MSSQL, spec)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := "SELECT * FROM [people] ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	spec.Sort = &Sort{Column: "age", Direction: Desc}
	got, err = Compile(dialect.MSSQL, spec)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want = "SELECT * FROM [people] ORDER BY [age] DESC OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCompile_NoFiltersNoWhere(t *testing.T) {
	got, err := Compile(dialect.SQLite, QuerySpec{Table: "people", AllColumns: true})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if got != "SELECT * FROM [people]" {
		t.Errorf("unexpected SQL %s", got)
	}
}

func TestCompile_NoColumns(t *testing.T) {
	_, err := Compile(dialect.SQLite, QuerySpec{Table: "people"})
	if !errors.Is(err, ErrNoColumns) {
		t.Errorf("expected ErrNoColumns, got %v", err)
	}

	_, err = Compile(dialect.SQLite, QuerySpec{AllColumns: true})
	if !errors.Is(err, ErrNoTable) {
		t.Errorf("expected ErrNoTable, got %v", err)
	}
}

func TestCompile_Operators(t *testing.T) {
	tests := []struct {
		name string
		cond func(t *testing.T) Condition
		want string
	}{
		{"quote doubling", func(t *testing.T) Condition {
			return mustCondition(t, nameCol, OpEquals, "O'Brien", And)
		}, "[name] = 'O''Brien'"},
		{"not equals", func(t *testing.T) Condition {
			return mustCondition(t, ageCol, OpNotEquals, "18", And)
		}, "[age] != 18"},
		{"less or equal", func(t *testing.T) Condition {
			return mustCondition(t, ageCol, OpLessOrEqual, 2.5, And)
		}, "[age] <= 2.5"},
		{"number on text column", func(t *testing.T) Condition {
			return mustCondition(t, cityCol, OpGreaterOrEqual, 7, And)
		}, "[city] >= '7'"},
		{"contains", func(t *testing.T) Condition {
			return mustCondition(t, nameCol, OpContains, "50%", And)
		}, "[name] LIKE '%50%%%'"},
		{"starts with", func(t *testing.T) Condition {
			return mustCondition(t, nameCol, OpStartsWith, "O'B", And)
		}, "[name] LIKE 'O''B%'"},
		{"ends with on numeric column", func(t *testing.T) Condition {
			return mustCondition(t, ageCol, OpEndsWith, 5, And)
		}, "[age] LIKE '%5'"},
		{"is null", func(t *testing.T) Condition {
			return mustCondition(t, cityCol, OpIsNull, "ignored", And)
		}, "[city] IS NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := QuerySpec{Table: "t", AllColumns: true, Filters: FilterSet{tt.cond(t)}}
			got, err := Compile(dialect.SQLite, spec)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			want := "SELECT * FROM [t] WHERE " + tt.want
			if got != want {
				t.Errorf("got %s, want %s", got, want)
			}
		})
	}
}

func TestNewCondition_Errors(t *testing.T) {
	if _, err := NewCondition(ageCol, OpEquals, nil, And); !errors.Is(err, ErrValueRequired) {
		t.Errorf("expected ErrValueRequired, got %v", err)
	}
	if _, err := NewCondition(ageCol, OpEquals, "1 OR 1=1", And); err == nil {
		t.Error("expected error for non-numeric value on numeric column")
	}
	if _, err := NewCondition(ageCol, Operator("between"), 1, And); err == nil {
		t.Error("expected error for unsupported operator")
	}
	if _, err := NewCondition(ageCol, OpEquals, 1, Logic("XOR")); err == nil {
		t.Error("expected error for unsupported logic")
	}
}

func TestRequest_Resolve(t *testing.T) {
	table := schema.Table{
		Name:    "people",
		Columns: []schema.Column{ageCol, cityCol, nameCol},
	}

	req := Request{
		AllColumns: true,
		Conditions: []ConditionInput{
			{Column: "age", Operator: ">", Value: "30"},
			{Column: "city", Operator: "equals", Value: "Rome", Logic: "or"},
		},
		SortColumn: "name",
		Limit:      5,
	}

	spec, err := req.Resolve(table)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got, err := Compile(dialect.SQLite, spec)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := "SELECT * FROM [people] WHERE [age] > 30 OR [city] = 'Rome' ORDER BY [name] ASC LIMIT 5"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	if _, err := (Request{Columns: []string{"missing"}}).Resolve(table); err == nil {
		t.Error("expected error for unknown column")
	}
	if _, err := (Request{AllColumns: true, SortColumn: "missing"}).Resolve(table); err == nil {
		t.Error("expected error for unknown sort column")
	}
}

func TestRequest_Resolve_NoColumns(t *testing.T) {
	table := schema.Table{Name: "people", Columns: []schema.Column{ageCol, cityCol}}

	req := Request{Conditions: []ConditionInput{{Column: "age", Operator: "gt", Value: 1}}}
	if _, err := req.Resolve(table); !errors.Is(err, ErrNoColumns) {
		t.Errorf("expected ErrNoColumns, got %v", err)
	}

	req.AllColumns = true
	if _, err := req.Resolve(table); err != nil {
		t.Errorf("Resolve with all columns failed: %v", err)
	}
}

func TestCompile_OperatorAliases(t *testing.T) {
	tests := []struct {
		col  schema.Column
		op   Operator
		raw  any
		want string
	}{
		{ageCol, Operator("gt"), 30, "[age] > 30"},
		{ageCol, Operator(">="), "18", "[age] >= 18"},
		{ageCol, Operator("<>"), 5, "[age] != 5"},
		{nameCol, Operator("starts_with"), "Jo", "[name] LIKE 'Jo%'"},
		{cityCol, Operator("IS_NOT_NULL"), nil, "[city] IS NOT NULL"},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			cond := mustCondition(t, tt.col, tt.op, tt.raw, And)
			spec := QuerySpec{Table: "t", AllColumns: true, Filters: FilterSet{cond}}
			got, err := Compile(dialect.SQLite, spec)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if want := "SELECT * FROM [t] WHERE " + tt.want; got != want {
				t.Errorf("got %s, want %s", got, want)
			}
		})
	}
}
