package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/adapters/base"
	"github.com/ruslano69/tablegrab/pkg/core/dialect"
	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

const (
	driverSQLServer = "sqlserver"

	// DefaultPort - порт SQL Server по умолчанию
	DefaultPort = 1433

	// DefaultSchema - схема, если в дескрипторе не задана
	DefaultSchema = "dbo"
)

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Connector
var _ adapters.Connector = (*Adapter)(nil)

// Регистрация коннектора в глобальной фабрике
func init() {
	adapters.Register(dialect.MSSQL, driverSQLServer, func(cfg adapters.Config, opts adapters.Options) adapters.Connector {
		return New(cfg, opts)
	})
}

// Adapter - коннектор к Microsoft SQL Server
type Adapter struct {
	*base.Helper
	cfg    adapters.Config
	schema string
	probe  func(ctx context.Context, addr string) error
}

// New создает коннектор. Сеть не трогается до первого вызова.
func New(cfg adapters.Config, opts adapters.Options) *Adapter {
	a := &Adapter{cfg: cfg, schema: cfg.Schema, probe: base.DialTCP}
	if a.schema == "" {
		a.schema = DefaultSchema
	}
	a.Helper = base.NewHelper(dialect.MSSQL, cfg, opts, a.open, classify)
	a.SetValueHook(convertValue)
	return a
}

// ConnString строит sqlserver:// URL. redact заменяет пароль на ***.
func (a *Adapter) ConnString(redact bool) string {
	u := url.URL{
		Scheme: "sqlserver",
		Host:   a.cfg.Address(DefaultPort),
	}
	switch {
	case a.cfg.Password == "":
		u.User = url.User(a.cfg.User)
	case redact:
		u.User = url.UserPassword(a.cfg.User, "***")
	default:
		u.User = url.UserPassword(a.cfg.User, a.cfg.Password)
	}

	timeout := strconv.Itoa(int(a.cfg.TimeoutOrDefault().Seconds()))
	q := url.Values{}
	q.Set("database", a.cfg.Database)
	q.Set("connection timeout", timeout)
	q.Set("dial timeout", timeout)
	q.Set("app name", "tablegrab")
	if a.cfg.SSL {
		q.Set("encrypt", "true")
	} else {
		q.Set("encrypt", "disable")
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func (a *Adapter) open(ctx context.Context) (*sql.DB, error) {
	connector, err := mssql.NewConnector(a.ConnString(false))
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

// ListTables - базовые таблицы схемы по имени
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	return a.Helper.ListTables(ctx, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`, a.schema)
}

// TableMetadata - COUNT_BIG(*) и колонки. SQL Server не поддерживает
// read-only транзакции в database/sql, поэтому только REPEATABLE READ.
func (a *Adapter) TableMetadata(ctx context.Context, table string) (schema.Table, error) {
	countQuery := fmt.Sprintf("SELECT COUNT_BIG(*) FROM %s.%s",
		dialect.QuoteIdentifier(dialect.MSSQL, a.schema),
		dialect.QuoteIdentifier(dialect.MSSQL, table))
	txOpts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	return a.Helper.TableMetadata(ctx, table, countQuery, txOpts, a.readColumns)
}

func (a *Adapter) readColumns(ctx context.Context, q base.Querier, table string) ([]schema.Column, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION
	`, a.schema, table)
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

// Explain - SET SHOWPLAN_ALL ON на одном подключении, затем сам запрос.
// Пока режим включен, сервер компилирует запрос и возвращает план.
func (a *Adapter) Explain(ctx context.Context, query string) error {
	return a.ExplainWith(ctx, query, func(db *sql.DB) error {
		conn, err := db.Conn(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if _, err := conn.ExecContext(ctx, "SET SHOWPLAN_ALL ON"); err != nil {
			return err
		}
		defer conn.ExecContext(context.Background(), "SET SHOWPLAN_ALL OFF")

		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		return rows.Close()
	})
}

// Version возвращает версию сервера
func (a *Adapter) Version(ctx context.Context) (string, error) {
	var version string
	err := a.WithDB(ctx, "version", func(db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))").Scan(&version)
	})
	if err != nil {
		return "", a.Fail("version", err, adapters.KindQuery)
	}
	return "SQL Server " + version, nil
}
