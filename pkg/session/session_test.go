package session

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	_ "github.com/ruslano69/tablegrab/pkg/adapters/mysql"
	_ "github.com/ruslano69/tablegrab/pkg/adapters/sqlite"
	"github.com/ruslano69/tablegrab/pkg/audit"
	"github.com/ruslano69/tablegrab/pkg/core/filter"
	"github.com/ruslano69/tablegrab/pkg/export"
	"github.com/ruslano69/tablegrab/pkg/retry"
)

// createTestDB создает users (150 строк) и orders в временной директории
func createTestDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, age INTEGER, updated_at TEXT);
		CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, total REAL);
		CREATE TABLE OrderItems (id INTEGER PRIMARY KEY, order_id INTEGER);
	`)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	for i := 1; i <= 150; i++ {
		_, err = tx.Exec("INSERT INTO users (id, name, age, updated_at) VALUES (?, ?, ?, '2026-01-01')",
			i, fmt.Sprintf("user%03d", i), 18+i%50)
		require.NoError(t, err)
	}
	_, err = tx.Exec("INSERT INTO orders (id, user_id, total) VALUES (1, 1, 9.5), (2, 2, 20)")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	return path
}

func openTestSession(t *testing.T, opts Options) *Session {
	t.Helper()

	s, err := Open(context.Background(), adapters.Config{Type: "sqlite", Path: createTestDB(t)}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Disconnect(context.Background()) })
	return s
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAll, false},
		{"ALL", ModeAll, false},
		{"range", ModeRange, false},
		{"row_range", ModeRange, false},
		{"custom", ModeCustom, false},
		{"visual", ModeVisual, false},
		{"everything", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestClampRange(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		rowCount              int64
		wantLimit, wantOffset int
	}{
		{"default small table", 0, 0, 5, 5, 0},
		{"default large table", 0, 0, 5000, 1000, 0},
		{"limit above row count", 10, 3, 5, 5, 3},
		{"offset past end", 3, 10, 5, 3, 4},
		{"negative values", -1, -5, 20, 20, 0},
		{"empty table", 0, 0, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := clampRange(tt.limit, tt.offset, tt.rowCount)
			require.Equal(t, tt.wantLimit, limit)
			require.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestMatchTables(t *testing.T) {
	tables := []string{"OrderItems", "orders", "users"}

	require.Equal(t, []string{"OrderItems", "orders"}, matchTables(tables, "ORDER"))
	require.Equal(t, []string{"users"}, matchTables(tables, " Ser "))
	require.Equal(t, tables, matchTables(tables, ""))
	require.Empty(t, matchTables(tables, "missing"))
}

func TestSession_TablesAndSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, Options{})

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"OrderItems", "orders", "users"}, tables)

	found, err := s.SearchTables(ctx, "order")
	require.NoError(t, err)
	require.Equal(t, []string{"OrderItems", "orders"}, found)
}

func TestSession_MetadataAndSample(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, Options{})

	meta, err := s.Metadata(ctx, "users")
	require.NoError(t, err)
	require.Equal(t, int64(150), meta.RowCount)
	require.Equal(t, []string{"id", "name", "age", "updated_at"}, meta.ColumnNames())

	sample, err := s.Sample(ctx, "users", 0)
	require.NoError(t, err)
	require.Equal(t, DefaultSampleRows, sample.Len())

	sample, err = s.Sample(ctx, "orders", 10)
	require.NoError(t, err)
	require.Equal(t, 2, sample.Len())
}

func TestSession_SQLFor(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, Options{})

	tests := []struct {
		name      string
		ext       Extraction
		wantSQL   string
		wantScope export.Scope
	}{
		{
			name:    "all",
			ext:     Extraction{Mode: ModeAll, Table: "users"},
			wantSQL: "SELECT * FROM [users]",
		},
		{
			name:      "range",
			ext:       Extraction{Mode: ModeRange, Table: "users", Limit: 10, Offset: 20},
			wantSQL:   "SELECT * FROM [users] LIMIT 10 OFFSET 20",
			wantScope: export.Scope{Range: true, Offset: 20},
		},
		{
			name:      "range clamped",
			ext:       Extraction{Mode: ModeRange, Table: "orders", Limit: 50, Offset: 7},
			wantSQL:   "SELECT * FROM [orders] LIMIT 2 OFFSET 1",
			wantScope: export.Scope{Range: true, Offset: 1},
		},
		{
			name:      "custom as is",
			ext:       Extraction{Mode: ModeCustom, Table: "users", SQL: "SELECT name FROM users"},
			wantSQL:   "SELECT name FROM users",
			wantScope: export.Scope{Filtered: true},
		},
		{
			name: "visual",
			ext: Extraction{Mode: ModeVisual, Table: "users", Filter: filter.Request{
				Columns:    []string{"name", "age"},
				Conditions: []filter.ConditionInput{{Column: "age", Operator: ">", Value: "60"}},
				SortColumn: "name",
				Limit:      5,
			}},
			wantSQL:   "SELECT [name], [age] FROM [users] WHERE [age] > 60 ORDER BY [name] ASC LIMIT 5",
			wantScope: export.Scope{Filtered: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, scope, err := s.SQLFor(ctx, tt.ext)
			require.NoError(t, err)
			require.Equal(t, tt.wantSQL, query)
			require.Equal(t, tt.wantScope, scope)
		})
	}
}

func TestSession_SQLFor_Errors(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, Options{})

	_, _, err := s.SQLFor(ctx, Extraction{Mode: ModeCustom, Table: "users", SQL: "  "})
	require.Equal(t, adapters.KindQuery, adapters.KindOf(err))

	_, _, err = s.SQLFor(ctx, Extraction{Mode: ModeVisual, Table: "users", Filter: filter.Request{
		Columns: []string{"email"},
	}})
	require.Equal(t, adapters.KindQuery, adapters.KindOf(err))
	require.Contains(t, err.Error(), `unknown column "email"`)

	_, _, err = s.SQLFor(ctx, Extraction{Mode: ModeVisual, Table: "users", Filter: filter.Request{
		Conditions: []filter.ConditionInput{{Column: "age", Operator: "gt", Value: 30}},
	}})
	require.Equal(t, adapters.KindQuery, adapters.KindOf(err))
	require.Contains(t, err.Error(), filter.ErrNoColumns.Error())

	_, _, err = s.SQLFor(ctx, Extraction{Mode: ModeRange, Table: "missing"})
	require.Error(t, err)

	_, _, err = s.SQLFor(ctx, Extraction{Mode: "pivot", Table: "users"})
	require.Equal(t, adapters.KindQuery, adapters.KindOf(err))
}

func TestSession_Extract(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, Options{})

	res, scope, err := s.Extract(ctx, Extraction{Mode: ModeAll, Table: "users"})
	require.NoError(t, err)
	require.Equal(t, 150, res.Len())
	require.Equal(t, export.Scope{}, scope)

	res, _, err = s.Extract(ctx, Extraction{Mode: ModeRange, Table: "users", Limit: 3, Offset: 10})
	require.NoError(t, err)
	require.Equal(t, 3, res.Len())
	require.Equal(t, int64(11), res.Rows[0][0])

	res, _, err = s.Extract(ctx, Extraction{Mode: ModeCustom, Table: "users", SQL: "SELECT name FROM users WHERE id = 7"})
	require.NoError(t, err)
	require.Equal(t, [][]any{{"user007"}}, res.Rows)
}

func TestSession_Extract_RejectsCustomSQL(t *testing.T) {
	ctx := context.Background()

	mem := audit.NewMemoryAppender(0)
	s := openTestSession(t, Options{ID: "s-1", Audit: audit.NewLogger(audit.SyncConfig(), mem)})

	tests := []struct {
		sql  string
		want string
	}{
		{"DELETE FROM users", "Query must start with SELECT"},
		{"SELECT updated_at FROM users", "'UPDATE' operations are not allowed"},
		{"SELECT nope FROM users", "Query error: "},
	}

	for _, tt := range tests {
		res, _, err := s.Extract(ctx, Extraction{Mode: ModeCustom, Table: "users", SQL: tt.sql})
		require.Nil(t, res, tt.sql)
		require.Equal(t, adapters.KindQuery, adapters.KindOf(err), tt.sql)
		require.Contains(t, adapters.Message(err), tt.want, tt.sql)
	}

	for _, e := range mem.Entries() {
		require.Equal(t, "s-1", e.SessionID)
		require.NotEqual(t, audit.OpQuery, e.Operation, "rejected query must not be executed")
	}
	require.NotEmpty(t, mem.Failures())
}

func TestSession_ValidateCustom(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, Options{})

	v := s.ValidateCustom(ctx, "SELECT id, name FROM users WHERE age > 20;")
	require.True(t, v.OK)
	require.Equal(t, "Query is valid", v.Message)
	require.NoError(t, v.SampleErr)
	require.Equal(t, ValidationSampleRows, v.Sample.Len())

	v = s.ValidateCustom(ctx, "SELECT * FROM missing")
	require.False(t, v.OK)
	require.True(t, strings.HasPrefix(v.Message, "Query error: "), v.Message)
	require.Nil(t, v.Sample)

	v = s.ValidateCustom(ctx, "drop table users")
	require.False(t, v.OK)
	require.Equal(t, "Query must start with SELECT", v.Message)
}

func TestSession_Preview(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, Options{})

	tests := []struct {
		name string
		ext  Extraction
		want int
	}{
		{"all", Extraction{Mode: ModeAll, Table: "users"}, PreviewRows},
		{"range below cap", Extraction{Mode: ModeRange, Table: "users", Limit: 30, Offset: 100}, 30},
		{"range above cap", Extraction{Mode: ModeRange, Table: "users", Limit: 140}, PreviewRows},
		{"range tail", Extraction{Mode: ModeRange, Table: "users", Limit: 100, Offset: 120}, 30},
		{"custom", Extraction{Mode: ModeCustom, Table: "users", SQL: "SELECT * FROM users"}, PreviewRows},
		{"visual", Extraction{Mode: ModeVisual, Table: "users", Filter: filter.Request{AllColumns: true, Limit: 500}}, PreviewRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Preview(ctx, tt.ext)
			require.NoError(t, err)
			require.Equal(t, tt.want, res.Len())
		})
	}

	_, err := s.Preview(ctx, Extraction{Mode: ModeCustom, Table: "users", SQL: "UPDATE users SET age = 1"})
	require.Equal(t, adapters.KindQuery, adapters.KindOf(err))
}

func TestSession_Download(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, Options{})
	exp := export.New(export.Options{})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	name, payload, err := s.Download(ctx, Extraction{Mode: ModeRange, Table: "users", Limit: 2, Offset: 1}, exp, export.FormatCSV, now)
	require.NoError(t, err)
	require.Equal(t, "users_rows_2to3_20261019_120000.csv", name)
	require.Equal(t, 2, payload.Rows)
	require.Equal(t, "id,name,age,updated_at\n2,user002,20,2026-01-01\n3,user003,21,2026-01-01\n", string(payload.Data))

	name, _, err = s.Download(ctx, Extraction{Mode: ModeCustom, Table: "orders", SQL: "SELECT * FROM orders"}, exp, export.FormatJSON, now)
	require.NoError(t, err)
	require.Equal(t, "orders_filtered_20261019_120000.json", name)

	name, _, err = s.Download(ctx, Extraction{Mode: ModeAll, Table: "orders"}, exp, export.FormatExcel, now)
	require.NoError(t, err)
	require.Equal(t, "orders_20261019_120000.xlsx", name)

	_, _, err = s.Download(ctx, Extraction{Mode: ModeCustom, Table: "orders", SQL: "TRUNCATE orders"}, exp, export.FormatCSV, now)
	require.Error(t, err)
}

func TestSession_IDGenerated(t *testing.T) {
	s := openTestSession(t, Options{})
	require.Len(t, s.ID(), 36)

	other := openTestSession(t, Options{})
	require.NotEqual(t, s.ID(), other.ID())
}

func TestAdoptUpload(t *testing.T) {
	ctx := context.Background()
	src, err := os.ReadFile(createTestDB(t))
	require.NoError(t, err)

	dir := t.TempDir()
	mem := audit.NewMemoryAppender(0)
	opts := Options{Audit: audit.NewLogger(audit.SyncConfig(), mem)}

	cfg, err := AdoptUpload(ctx, "../../uploads/shop.db", bytes.NewReader(src), dir, opts)
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Type)
	require.Equal(t, filepath.Join(dir, "temp_shop.db"), cfg.Path)

	last := mem.Last()
	require.Equal(t, audit.OpUpload, last.Operation)
	require.Equal(t, int64(len(src)), last.Metadata["bytes"])

	s, err := Open(ctx, cfg, Options{})
	require.NoError(t, err)
	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	require.Contains(t, tables, "users")

	_, err = AdoptUpload(ctx, "..", bytes.NewReader(src), dir, opts)
	require.Equal(t, adapters.KindConfiguration, adapters.KindOf(err))
	require.True(t, mem.Last().Failed())
}

func countOps(entries []*audit.Entry, op audit.Operation) int {
	n := 0
	for _, e := range entries {
		if e.Operation == op {
			n++
		}
	}
	return n
}

func TestOpen_RetriesOnlyConnectivity(t *testing.T) {
	ctx := context.Background()
	policy := retry.Config{Enabled: true, MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffStrategy: retry.BackoffConstant}

	mem := audit.NewMemoryAppender(0)
	_, err := Open(ctx, adapters.Config{Type: "sqlite", Path: filepath.Join(t.TempDir(), "absent.db")}, Options{
		Audit: audit.NewLogger(audit.SyncConfig(), mem),
		Retry: policy,
	})
	require.Equal(t, adapters.KindConfiguration, adapters.KindOf(err))
	require.Equal(t, 1, countOps(mem.Entries(), audit.OpConnect))

	// порт 1 на loopback закрыт: TCP проба отказывает сразу
	mem.Reset()
	_, err = Open(ctx, adapters.Config{
		Type: "mysql", Host: "127.0.0.1", Port: 1, Database: "shop", User: "reader",
		Timeout: time.Second,
	}, Options{
		Audit: audit.NewLogger(audit.SyncConfig(), mem),
		Retry: policy,
	})
	require.Equal(t, adapters.KindConnectivity, adapters.KindOf(err))
	require.Equal(t, 3, countOps(mem.Entries(), audit.OpConnect))
}

func TestOpen_InvalidConfig(t *testing.T) {
	mem := audit.NewMemoryAppender(0)
	_, err := Open(context.Background(), adapters.Config{Type: "oracle"}, Options{
		ID:    "s-9",
		Audit: audit.NewLogger(audit.SyncConfig(), mem),
	})
	require.Equal(t, adapters.KindConfiguration, adapters.KindOf(err))
	require.Equal(t, "s-9", mem.Last().SessionID)
	require.True(t, mem.Last().Failed())
}
