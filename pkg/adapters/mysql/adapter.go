package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/adapters/base"
	"github.com/ruslano69/tablegrab/pkg/core/dialect"
	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

const (
	driverMySQL = "mysql"

	// DefaultPort - порт MySQL по умолчанию
	DefaultPort = 3306
)

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Connector
var _ adapters.Connector = (*Adapter)(nil)

// Регистрация коннектора в глобальной фабрике
func init() {
	adapters.Register(dialect.MySQL, driverMySQL, func(cfg adapters.Config, opts adapters.Options) adapters.Connector {
		return New(cfg, opts)
	})
}

// Adapter - коннектор к MySQL / MariaDB
type Adapter struct {
	*base.Helper
	cfg   adapters.Config
	probe func(ctx context.Context, addr string) error
}

// New создает коннектор. Сеть не трогается до первого вызова.
func New(cfg adapters.Config, opts adapters.Options) *Adapter {
	a := &Adapter{cfg: cfg, probe: base.DialTCP}
	a.Helper = base.NewHelper(dialect.MySQL, cfg, opts, a.open, classify)
	return a
}

// DriverConfig строит конфигурацию go-sql-driver из дескриптора
func (a *Adapter) DriverConfig() *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = a.cfg.User
	mc.Passwd = a.cfg.Password
	mc.Net = "tcp"
	mc.Addr = a.cfg.Address(DefaultPort)
	mc.DBName = a.cfg.Database
	mc.Timeout = a.cfg.TimeoutOrDefault()

	if a.cfg.SSL {
		mc.TLSConfig = "true"
	}

	switch a.cfg.AuthPlugin {
	case "mysql_native_password":
		mc.AllowNativePasswords = true
	case "mysql_clear_password":
		mc.AllowCleartextPasswords = true
	}
	return mc
}

// DSN - строка подключения без пароля, для логов
func (a *Adapter) DSN() string {
	mc := a.DriverConfig()
	if mc.Passwd != "" {
		mc.Passwd = "***"
	}
	return mc.FormatDSN()
}

func (a *Adapter) open(ctx context.Context) (*sql.DB, error) {
	connector, err := mysql.NewConnector(a.DriverConfig())
	if err != nil {
		return nil, fmt.Errorf("invalid connection settings: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// Connect: TCP проба хоста, затем SELECT 1 с учетными данными
func (a *Adapter) Connect(ctx context.Context) error {
	return a.Helper.Connect(ctx, func(ctx context.Context) error {
		return a.probe(ctx, a.cfg.Address(DefaultPort))
	}, "SELECT 1")
}

// ListTables - базовые таблицы текущей базы по имени
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	return a.Helper.ListTables(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, a.cfg.Database)
}

// TableMetadata - COUNT(*) и колонки в read-only транзакции REPEATABLE READ
func (a *Adapter) TableMetadata(ctx context.Context, table string) (schema.Table, error) {
	countQuery := "SELECT COUNT(*) FROM " + dialect.QuoteIdentifier(dialect.MySQL, table)
	txOpts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return a.Helper.TableMetadata(ctx, table, countQuery, txOpts, a.readColumns)
}

func (a *Adapter) readColumns(ctx context.Context, q base.Querier, table string) ([]schema.Column, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT column_name, column_type
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`, a.cfg.Database, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// Explain - EXPLAIN без чтения плана
func (a *Adapter) Explain(ctx context.Context, query string) error {
	return a.Helper.Explain(ctx, dialect.MySQL.ExplainPrefix(), query)
}

// Version возвращает версию сервера
func (a *Adapter) Version(ctx context.Context) (string, error) {
	var version string
	err := a.WithDB(ctx, "version", func(db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version)
	})
	if err != nil {
		return "", a.Fail("version", err, adapters.KindQuery)
	}
	return "MySQL " + version, nil
}
