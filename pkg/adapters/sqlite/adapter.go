package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/adapters/base"
	"github.com/ruslano69/tablegrab/pkg/core/dialect"
	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

const driverSqlite = "sqlite"

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Connector
var _ adapters.Connector = (*Adapter)(nil)

// Регистрация коннектора в глобальной фабрике
func init() {
	adapters.Register(dialect.SQLite, driverSqlite, func(cfg adapters.Config, opts adapters.Options) adapters.Connector {
		return New(cfg, opts)
	})
}

// Adapter - коннектор к файлу SQLite
type Adapter struct {
	*base.Helper
	path string
}

// New создает коннектор. Файл не открывается до первого вызова.
func New(cfg adapters.Config, opts adapters.Options) *Adapter {
	a := &Adapter{path: cfg.Path}
	a.Helper = base.NewHelper(dialect.SQLite, cfg, opts, a.open, classify)
	return a
}

// open открывает файл на один вызов. Несуществующий файл не создается:
// драйвер создал бы пустую базу, поэтому файл проверяется до sql.Open.
func (a *Adapter) open(ctx context.Context) (*sql.DB, error) {
	if err := checkFile(a.path); err != nil {
		return nil, err
	}
	db, err := sql.Open(driverSqlite, a.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// checkFile - файл существует и это не директория
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &adapters.Error{
				Kind:    adapters.KindConfiguration,
				Dialect: string(dialect.SQLite),
				Op:      "connect",
				Msg:     fmt.Sprintf("database file not found: %s", path),
				Err:     adapters.ErrFileNotFound,
			}
		}
		return err
	}
	if info.IsDir() {
		return &adapters.Error{
			Kind:    adapters.KindConfiguration,
			Dialect: string(dialect.SQLite),
			Op:      "connect",
			Msg:     fmt.Sprintf("%s is a directory, not a database file", path),
		}
	}
	return nil
}

// Connect проверяет файл и читает sqlite_master. Сетевой пробы нет.
func (a *Adapter) Connect(ctx context.Context) error {
	return a.Helper.Connect(ctx, func(context.Context) error {
		return checkFile(a.path)
	}, "SELECT COUNT(*) FROM sqlite_master")
}

// ListTables возвращает таблицы из sqlite_master по имени
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	return a.Helper.ListTables(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type='table'
		ORDER BY name
	`)
}

// TableMetadata - COUNT(*) и PRAGMA table_info в одной транзакции
func (a *Adapter) TableMetadata(ctx context.Context, table string) (schema.Table, error) {
	countQuery := "SELECT COUNT(*) FROM " + dialect.QuoteIdentifier(dialect.SQLite, table)
	return a.Helper.TableMetadata(ctx, table, countQuery, nil, readColumns)
}

func readColumns(ctx context.Context, q base.Querier, table string) ([]schema.Column, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", dialect.QuoteIdentifier(dialect.SQLite, table)))
	if err != nil {
		return nil, fmt.Errorf("failed to get table info: %w", err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns = append(columns, schema.Column{Name: name, Type: colType})
	}
	return columns, rows.Err()
}

// Explain - EXPLAIN QUERY PLAN без чтения плана
func (a *Adapter) Explain(ctx context.Context, query string) error {
	return a.Helper.Explain(ctx, dialect.SQLite.ExplainPrefix(), query)
}

// Version возвращает версию SQLite
func (a *Adapter) Version(ctx context.Context) (string, error) {
	var version string
	err := a.WithDB(ctx, "version", func(db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version)
	})
	if err != nil {
		return "", a.Fail("version", err, adapters.KindQuery)
	}
	return "SQLite " + version, nil
}
