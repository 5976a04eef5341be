package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/audit"
	"github.com/ruslano69/tablegrab/pkg/config"
)

func writeJob(t *testing.T, body string) *config.File {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "shop.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`
		CREATE TABLE orders (id INTEGER PRIMARY KEY, customer TEXT, total REAL);
		INSERT INTO orders VALUES (1, 'alice', 10.5), (2, 'bob', 20), (3, 'carol', 7.25);
	`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body = strings.ReplaceAll(body, "$DB", dbPath)
	body = strings.ReplaceAll(body, "$OUT", filepath.Join(dir, "out"))
	jobPath := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(jobPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write job: %v", err)
	}

	job, err := config.Load(jobPath)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	return job
}

func testDeps(a audit.Logger) runDeps {
	return runDeps{
		log:   zerolog.Nop(),
		audit: a,
		now:   func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) },
	}
}

func TestRun_RangeToCSV(t *testing.T) {
	job := writeJob(t, `
connection:
  type: sqlite
  path: $DB
query:
  table: orders
  mode: range
  limit: 2
  offset: 1
export:
  format: csv
  output_dir: $OUT
`)

	path, err := run(context.Background(), job, testDeps(audit.NewNullLogger()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got, want := filepath.Base(path), "orders_rows_2to3_20261019_093000.csv"; got != want {
		t.Errorf("file name = %q, want %q", got, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	want := "id,customer,total\n2,bob,20\n3,carol,7.25\n"
	if string(data) != want {
		t.Errorf("export = %q, want %q", data, want)
	}
}

func TestRun_CompressedJSON(t *testing.T) {
	job := writeJob(t, `
connection:
  type: sqlite
  path: $DB
query:
  table: orders
  mode: custom
  sql: SELECT customer FROM orders WHERE total > 8
export:
  format: json
  output_dir: $OUT
  compress: true
`)

	path, err := run(context.Background(), job, testDeps(audit.NewNullLogger()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasSuffix(path, "orders_filtered_20261019_093000.json.zst") {
		t.Errorf("unexpected path %s", path)
	}
}

func TestRun_RejectedQuery(t *testing.T) {
	job := writeJob(t, `
connection:
  type: sqlite
  path: $DB
query:
  table: orders
  mode: custom
  sql: SELECT * FROM orders; DROP TABLE orders
export:
  output_dir: $OUT
`)

	mem := audit.NewMemoryAppender(0)
	_, err := run(context.Background(), job, testDeps(audit.NewLogger(audit.SyncConfig(), mem)))
	if err == nil {
		t.Fatal("expected rejection")
	}
	if kind := adapters.KindOf(err); kind != adapters.KindQuery {
		t.Errorf("kind = %s, want %s", kind, adapters.KindQuery)
	}
	if msg := adapters.Message(err); msg != "'DROP' operations are not allowed" {
		t.Errorf("message = %q", msg)
	}

	var connect, validate *audit.Entry
	for _, e := range mem.Entries() {
		switch e.Operation {
		case audit.OpConnect:
			connect = e
		case audit.OpValidate:
			validate = e
		}
	}
	if connect == nil || validate == nil {
		t.Fatalf("expected connect and validate entries, got %d entries", len(mem.Entries()))
	}
	if validate.Status != audit.StatusFailure {
		t.Errorf("validate status = %s", validate.Status)
	}
	if validate.SessionID == "" || validate.SessionID != connect.SessionID {
		t.Errorf("validate session %q, connect session %q", validate.SessionID, connect.SessionID)
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	job := writeJob(t, `
connection:
  type: sqlite
  path: $DB.missing
query:
  table: orders
export:
  output_dir: $OUT
`)

	_, err := run(context.Background(), job, testDeps(audit.NewNullLogger()))
	if kind := adapters.KindOf(err); kind != adapters.KindConfiguration {
		t.Fatalf("kind = %s, want %s (err %v)", kind, adapters.KindConfiguration, err)
	}
}

func TestNewAuditLogger(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	disabled, err := newAuditLogger(ctx, config.AuditConfig{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("disabled: %v", err)
	}
	if _, ok := disabled.(*audit.NullLogger); !ok {
		t.Errorf("disabled audit = %T, want *audit.NullLogger", disabled)
	}

	logger, err := newAuditLogger(ctx, config.AuditConfig{
		Enabled:  true,
		Level:    "full",
		File:     filepath.Join(dir, "audit.log"),
		Database: filepath.Join(dir, "audit.db"),
		Console:  true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("enabled: %v", err)
	}

	entry := audit.NewEntry(audit.OpConnect, audit.StatusSuccess).WithResource("shop.db")
	if err := logger.Log(ctx, entry); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	if !strings.Contains(string(data), `"operation":"connect"`) {
		t.Errorf("audit file missing entry: %s", data)
	}

	if _, err := newAuditLogger(ctx, config.AuditConfig{Enabled: true, Level: "verbose"}, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown level")
	}
}
