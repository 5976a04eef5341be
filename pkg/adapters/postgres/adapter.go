package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/adapters/base"
	"github.com/ruslano69/tablegrab/pkg/core/dialect"
	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

const (
	driverPgx = "pgx"

	// DefaultPort - порт PostgreSQL по умолчанию
	DefaultPort = 5432

	// DefaultSchema - схема, если в дескрипторе не задана
	DefaultSchema = "public"
)

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Connector
var _ adapters.Connector = (*Adapter)(nil)

// Регистрация коннектора в глобальной фабрике
func init() {
	adapters.Register(dialect.Postgres, driverPgx, func(cfg adapters.Config, opts adapters.Options) adapters.Connector {
		return New(cfg, opts)
	})
}

// Adapter - коннектор к PostgreSQL через pgx (database/sql обертка)
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
	a.Helper = base.NewHelper(dialect.Postgres, cfg, opts, a.open, classify)
	return a
}

// ConnString строит URL подключения. redact заменяет пароль на ***.
func (a *Adapter) ConnString(redact bool) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   a.cfg.Address(DefaultPort),
		Path:   "/" + a.cfg.Database,
	}
	switch {
	case a.cfg.Password == "":
		u.User = url.User(a.cfg.User)
	case redact:
		u.User = url.UserPassword(a.cfg.User, "***")
	default:
		u.User = url.UserPassword(a.cfg.User, a.cfg.Password)
	}

	q := url.Values{}
	if a.cfg.SSL {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "disable")
	}
	q.Set("connect_timeout", strconv.Itoa(int(a.cfg.TimeoutOrDefault().Seconds())))
	q.Set("search_path", a.schema)
	u.RawQuery = q.Encode()

	return u.String()
}

func (a *Adapter) open(ctx context.Context) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(a.ConnString(false))
	if err != nil {
		return nil, fmt.Errorf("invalid connection settings: %w", err)
	}
	connCfg.ConnectTimeout = a.cfg.TimeoutOrDefault()
	return stdlib.OpenDB(*connCfg), nil
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
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, a.schema)
}

// TableMetadata - COUNT(*) и колонки в read-only транзакции REPEATABLE READ
func (a *Adapter) TableMetadata(ctx context.Context, table string) (schema.Table, error) {
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s",
		dialect.QuoteIdentifier(dialect.Postgres, a.schema),
		dialect.QuoteIdentifier(dialect.Postgres, table))
	txOpts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return a.Helper.TableMetadata(ctx, table, countQuery, txOpts, a.readColumns)
}

func (a *Adapter) readColumns(ctx context.Context, q base.Querier, table string) ([]schema.Column, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
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

// Explain - EXPLAIN без ANALYZE, запрос не выполняется
func (a *Adapter) Explain(ctx context.Context, query string) error {
	return a.Helper.Explain(ctx, dialect.Postgres.ExplainPrefix(), query)
}

// Version возвращает версию сервера
func (a *Adapter) Version(ctx context.Context) (string, error) {
	var version string
	err := a.WithDB(ctx, "version", func(db *sql.DB) error {
		return db.QueryRowContext(ctx, "SHOW server_version").Scan(&version)
	})
	if err != nil {
		return "", a.Fail("version", err, adapters.KindQuery)
	}
	return "PostgreSQL " + version, nil
}
