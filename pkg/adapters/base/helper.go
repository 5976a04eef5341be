package base

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/audit"
	"github.com/ruslano69/tablegrab/pkg/core/dialect"
	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

// Opener открывает новый *sql.DB на один вызов
type Opener func(ctx context.Context) (*sql.DB, error)

// Querier - общее между *sql.DB и *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ColumnsReader читает колонки таблицы из каталога СУБД
type ColumnsReader func(ctx context.Context, q Querier, table string) ([]schema.Column, error)

// Helper - общая часть коннекторов: подключение на вызов, классификация
// ошибок, лог, аудит и метрики каждой операции.
type Helper struct {
	dialect   dialect.Dialect
	cfg       adapters.Config
	opts      adapters.Options
	log       zerolog.Logger
	open      Opener
	classify  adapters.Classifier
	hook      ValueHook
	connected atomic.Bool
}

// NewHelper создает helper для конкретного диалекта
func NewHelper(d dialect.Dialect, cfg adapters.Config, opts adapters.Options, open Opener, classify adapters.Classifier) *Helper {
	if opts.Audit == nil {
		opts.Audit = audit.NewNullLogger()
	}
	return &Helper{
		dialect:  d,
		cfg:      cfg,
		opts:     opts,
		log:      opts.Logger.With().Str("dialect", string(d)).Logger(),
		open:     open,
		classify: classify,
	}
}

// SetOpener подменяет способ открытия подключения (тесты с sqlmock)
func (h *Helper) SetOpener(open Opener) {
	h.open = open
}

// SetValueHook задает драйверное преобразование значений Execute
func (h *Helper) SetValueHook(hook ValueHook) {
	h.hook = hook
}

// Dialect возвращает диалект
func (h *Helper) Dialect() dialect.Dialect {
	return h.dialect
}

// Config возвращает дескриптор
func (h *Helper) Config() adapters.Config {
	return h.cfg
}

// Connected - последний Connect прошел успешно и Disconnect еще не вызывался.
// Только информативно: Execute от этого флага не зависит.
func (h *Helper) Connected() bool {
	return h.connected.Load()
}

// Fail классифицирует ошибку операции
func (h *Helper) Fail(op string, err error, fallback adapters.Kind) error {
	return adapters.Classify(h.dialect, op, err, h.classify, fallback)
}

// WithDB открывает подключение, вызывает fn и закрывает подключение.
// Ошибка открытия - KindConfiguration (неверный DSN), если драйвер не сказал иное.
func (h *Helper) WithDB(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	db, err := h.open(ctx)
	if err != nil {
		return h.Fail(op, err, adapters.KindConfiguration)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)
	return fn(db)
}

// Connect: preflight (TCP проба или проверка файла), затем round-trip запрос.
// Вся проверка ограничена таймаутом дескриптора.
func (h *Helper) Connect(ctx context.Context, preflight func(ctx context.Context) error, roundTrip string) error {
	started := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, h.cfg.TimeoutOrDefault())
	defer cancel()

	err := func() error {
		if preflight != nil {
			if err := preflight(callCtx); err != nil {
				return h.Fail("connect", err, adapters.KindConnectivity)
			}
		}

		err := h.WithDB(callCtx, "connect", func(db *sql.DB) error {
			var one any
			return db.QueryRowContext(callCtx, roundTrip).Scan(&one)
		})
		return h.Fail("connect", err, adapters.KindConnectivity)
	}()

	h.connected.Store(err == nil)
	h.Observe(ctx, audit.OpConnect, h.cfg.Resource(), "", started, 0, err)
	return err
}

// Disconnect идемпотентен: держать нечего, только сбрасывается флаг
func (h *Helper) Disconnect(ctx context.Context) error {
	if h.connected.Swap(false) {
		h.Observe(ctx, audit.OpDisconnect, h.cfg.Resource(), "", time.Now(), 0, nil)
	}
	return nil
}

// ListTables выполняет запрос каталога, возвращающий одну колонку имен.
// Порядок - тот, что вернул каталог (ORDER BY в запросе).
func (h *Helper) ListTables(ctx context.Context, query string, args ...any) ([]string, error) {
	started := time.Now()

	var tables []string
	err := h.WithDB(ctx, "list tables", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("failed to scan table name: %w", err)
			}
			tables = append(tables, name)
		}
		return rows.Err()
	})
	err = h.Fail("list tables", err, adapters.KindQuery)

	h.Observe(ctx, audit.OpListTables, h.cfg.Resource(), "", started, len(tables), err)
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = []string{}
	}
	return tables, nil
}

// TableMetadata читает COUNT(*) и колонки в одной read-only транзакции.
// Если СУБД не дает открыть транзакцию, оба запроса идут отдельно (best-effort).
func (h *Helper) TableMetadata(ctx context.Context, table, countQuery string, txOpts *sql.TxOptions, columns ColumnsReader) (schema.Table, error) {
	started := time.Now()
	meta := schema.Table{Name: table}

	err := h.WithDB(ctx, "metadata", func(db *sql.DB) error {
		var q Querier = db
		tx, txErr := db.BeginTx(ctx, txOpts)
		if txErr == nil {
			defer tx.Rollback()
			q = tx
		} else {
			h.log.Debug().Err(txErr).Str("table", table).Msg("metadata snapshot unavailable, reading without transaction")
		}

		if err := q.QueryRowContext(ctx, countQuery).Scan(&meta.RowCount); err != nil {
			return err
		}

		cols, err := columns(ctx, q, table)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return &adapters.Error{
				Kind:    adapters.KindSchema,
				Dialect: string(h.dialect),
				Op:      "metadata",
				Msg:     fmt.Sprintf("table %s has no columns or does not exist", table),
			}
		}
		meta.Columns = cols
		return nil
	})
	err = h.Fail("metadata", err, adapters.KindQuery)

	h.Observe(ctx, audit.OpMetadata, table, "", started, len(meta.Columns), err)
	if err != nil {
		return schema.Table{}, err
	}
	return meta, nil
}

// Execute выполняет запрос как есть и материализует все строки
func (h *Helper) Execute(ctx context.Context, query string) (*schema.Result, error) {
	started := time.Now()

	var res *schema.Result
	err := h.WithDB(ctx, "execute", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		res, err = ScanResult(rows, h.hook)
		return err
	})
	err = h.Fail("execute", err, adapters.KindQuery)

	h.Observe(ctx, audit.OpQuery, "", query, started, res.Len(), err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Explain выполняет prefix+query; строки плана не читаются
func (h *Helper) Explain(ctx context.Context, prefix, query string) error {
	return h.ExplainWith(ctx, query, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, prefix+query)
		if err != nil {
			return err
		}
		return rows.Close()
	})
}

// ExplainWith - dry-run с собственной процедурой (MS SQL SHOWPLAN)
func (h *Helper) ExplainWith(ctx context.Context, query string, fn func(db *sql.DB) error) error {
	started := time.Now()
	err := h.Fail("explain", h.WithDB(ctx, "explain", fn), adapters.KindQuery)
	h.Observe(ctx, audit.OpValidate, "", query, started, 0, err)
	return err
}

// Observe пишет лог, запись аудита и метрики одной операции
func (h *Helper) Observe(ctx context.Context, op audit.Operation, resource, query string, started time.Time, rows int, err error) {
	elapsed := time.Since(started)

	h.opts.Metrics.Observe(string(h.dialect), string(op), started, err)
	if err == nil && op == audit.OpQuery {
		h.opts.Metrics.AddRows(string(h.dialect), rows)
	}

	entry := audit.NewEntry(op, audit.StatusSuccess).
		WithDialect(string(h.dialect)).
		WithResource(resource).
		WithQuery(query).
		WithRowsReturned(int64(rows)).
		WithDuration(elapsed).
		WithError(err)
	if logErr := h.opts.Audit.Log(ctx, entry); logErr != nil {
		h.log.Warn().Err(logErr).Msg("failed to write audit entry")
	}

	if err != nil {
		h.log.Warn().
			Str("op", string(op)).
			Str("resource", resource).
			Str("kind", string(adapters.KindOf(err))).
			Dur("duration", elapsed).
			Msg(adapters.Message(err))
		return
	}

	h.log.Debug().
		Str("op", string(op)).
		Str("resource", resource).
		Int("rows", rows).
		Dur("duration", elapsed).
		Msg("ok")
}

// DialTCP - проба доступности хоста до рукопожатия сетевой СУБД
func DialTCP(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
