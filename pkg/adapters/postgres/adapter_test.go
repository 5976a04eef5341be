package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/audit"
)

func testConfig() adapters.Config {
	return adapters.Config{Type: "postgres", Host: "pg.local", Database: "crm", User: "analyst", Password: "p@ss word"}
}

func newMockAdapter(t *testing.T, cfg adapters.Config, setup func(mock sqlmock.Sqlmock)) (*Adapter, *audit.MemoryAppender) {
	t.Helper()

	mem := audit.NewMemoryAppender(0)
	a := New(cfg, adapters.Options{Audit: audit.NewLogger(audit.SyncConfig(), mem)})
	a.probe = func(context.Context, string) error { return nil }

	a.SetOpener(func(ctx context.Context) (*sql.DB, error) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock.New: %v", err)
		}
		setup(mock)
		mock.ExpectClose()
		t.Cleanup(func() {
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
		return db, nil
	})
	return a, mem
}

func TestConnString(t *testing.T) {
	a := New(testConfig(), adapters.DefaultOptions())

	full := a.ConnString(false)
	for _, want := range []string{"postgres://analyst:", "@pg.local:5432/crm", "sslmode=disable", "connect_timeout=10", "search_path=public"} {
		if !strings.Contains(full, want) {
			t.Errorf("ConnString %q should contain %q", full, want)
		}
	}
	if strings.Contains(full, "p@ss word") {
		t.Errorf("password must be URL-escaped: %q", full)
	}

	redacted := a.ConnString(true)
	if !strings.Contains(redacted, "analyst:%2A%2A%2A@") && !strings.Contains(redacted, "analyst:***@") {
		t.Errorf("redacted ConnString should hide the password: %q", redacted)
	}

	cfg := testConfig()
	cfg.SSL = true
	cfg.Port = 6432
	cfg.Schema = "sales"
	got := New(cfg, adapters.DefaultOptions()).ConnString(true)
	for _, want := range []string{"pg.local:6432", "sslmode=require", "search_path=sales"} {
		if !strings.Contains(got, want) {
			t.Errorf("ConnString %q should contain %q", got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want adapters.Kind
		ok   bool
	}{
		{"bad password", &pgconn.PgError{Code: "28P01", Message: "password authentication failed for user \"analyst\""}, adapters.KindAuthentication, true},
		{"no pg_hba entry", &pgconn.PgError{Code: "28000", Message: "no pg_hba.conf entry"}, adapters.KindAuthentication, true},
		{"permission denied", &pgconn.PgError{Code: "42501", Message: "permission denied for table orders"}, adapters.KindAuthentication, true},
		{"unknown database", &pgconn.PgError{Code: "3D000", Message: "database \"crm\" does not exist"}, adapters.KindSchema, true},
		{"unknown table", &pgconn.PgError{Code: "42P01", Message: "relation \"ghost\" does not exist"}, adapters.KindSchema, true},
		{"unknown column", &pgconn.PgError{Code: "42703", Message: "column \"nope\" does not exist"}, adapters.KindSchema, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, adapters.KindConnectivity, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, adapters.KindConnectivity, true},
		{"syntax error", &pgconn.PgError{Code: "42601", Message: "syntax error at or near \"SELEC\""}, "", false},
		{"wrapped", fmt.Errorf("query: %w", &pgconn.PgError{Code: "42P01"}), adapters.KindSchema, true},
		{"tls refused", errors.New("server refused TLS connection"), adapters.KindProtocol, true},
		{"plain", errors.New("boom"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := classify(tt.err)
			if kind != tt.want || ok != tt.ok {
				t.Errorf("classify() = (%q, %v), want (%q, %v)", kind, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestConnect_Authentication(t *testing.T) {
	a, mem := newMockAdapter(t, testConfig(), func(mock sqlmock.Sqlmock) {
		mock.ExpectQuery("SELECT 1").
			WillReturnError(&pgconn.PgError{Severity: "FATAL", Code: "28P01", Message: "password authentication failed for user \"analyst\""})
	})

	err := a.Connect(context.Background())
	if adapters.KindOf(err) != adapters.KindAuthentication {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if !strings.Contains(adapters.Message(err), "password authentication failed") {
		t.Errorf("driver message should be preserved: %q", adapters.Message(err))
	}
	if a.Connected() {
		t.Error("Connected() must be false after failed Connect")
	}
	if f := mem.Failures(); len(f) != 1 || f[0].Kind != string(adapters.KindAuthentication) {
		t.Errorf("expected one authentication audit failure, got %+v", f)
	}
}

func TestListTables_UsesSchema(t *testing.T) {
	cfg := testConfig()
	cfg.Schema = "sales"
	a, _ := newMockAdapter(t, cfg, func(mock sqlmock.Sqlmock) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
			WithArgs("sales").
			WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("deals").AddRow("leads"))
	})

	tables, err := a.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	if strings.Join(tables, ",") != "deals,leads" {
		t.Errorf("unexpected tables: %v", tables)
	}
}

func TestTableMetadata(t *testing.T) {
	a, _ := newMockAdapter(t, testConfig(), func(mock sqlmock.Sqlmock) {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "public"."orders"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
			WithArgs("public", "orders").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
				AddRow("id", "integer").
				AddRow("amount", "numeric"))
		mock.ExpectRollback()
	})

	meta, err := a.TableMetadata(context.Background(), "orders")
	if err != nil {
		t.Fatalf("TableMetadata failed: %v", err)
	}
	if meta.RowCount != 3 || len(meta.Columns) != 2 || meta.Columns[1].Type != "numeric" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestExplain_Error(t *testing.T) {
	a, _ := newMockAdapter(t, testConfig(), func(mock sqlmock.Sqlmock) {
		mock.ExpectQuery(regexp.QuoteMeta(`EXPLAIN SELECT * FROM "ghost"`)).
			WillReturnError(&pgconn.PgError{Code: "42P01", Message: "relation \"ghost\" does not exist"})
	})

	err := a.Explain(context.Background(), `SELECT * FROM "ghost"`)
	if adapters.KindOf(err) != adapters.KindSchema {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestFactoryRegistration(t *testing.T) {
	for _, synonym := range []string{"postgres", "postgresql", "pg"} {
		if !adapters.IsRegistered(synonym) {
			t.Errorf("postgres connector should be registered under %q", synonym)
		}
	}
}
