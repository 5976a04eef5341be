// Package session - явный контекст работы с одной базой.
//
// Session принадлежит вызывающему коду и передается в каждый вызов:
// активный коннектор, валидатор, лог и аудит живут в нем, а не в
// глобальном состоянии процесса. Несколько сессий работают независимо.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/audit"
	"github.com/ruslano69/tablegrab/pkg/core/dialect"
	"github.com/ruslano69/tablegrab/pkg/core/schema"
	"github.com/ruslano69/tablegrab/pkg/metrics"
	"github.com/ruslano69/tablegrab/pkg/retry"
	"github.com/ruslano69/tablegrab/pkg/security"
)

// DefaultSampleRows - размер выборки Sample по умолчанию
const DefaultSampleRows = 5

// Options - зависимости сессии. Нулевое значение допустимо.
type Options struct {
	// ID - идентификатор сессии в аудите; пусто - новый uuid
	ID string

	Logger    zerolog.Logger
	Audit     audit.Logger
	Validator *security.SQLValidator
	Metrics   *metrics.Collector

	// Retry - повторы Connect при ошибках KindConnectivity
	Retry retry.Config
}

// Session - контекст работы с одной базой
type Session struct {
	id        string
	conn      adapters.Connector
	log       zerolog.Logger
	audit     audit.Logger
	validator *security.SQLValidator
}

// New оборачивает готовый коннектор
func New(conn adapters.Connector, opts Options) *Session {
	return newSession(conn, opts.withDefaults())
}

func newSession(conn adapters.Connector, opts Options) *Session {
	return &Session{
		id:        opts.ID,
		conn:      conn,
		log:       opts.Logger.With().Str("session", opts.ID).Logger(),
		audit:     opts.Audit,
		validator: opts.Validator,
	}
}

// Open создает коннектор через глобальную фабрику и подключается.
// Записи аудита коннектора помечаются ID сессии. Недоступный хост
// проверяется повторно, если включен opts.Retry; ошибки учетных
// данных и конфигурации не повторяются.
func Open(ctx context.Context, cfg adapters.Config, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	conn, err := adapters.NewWithoutConnect(cfg, adapters.Options{
		Logger:  opts.Logger,
		Audit:   opts.Audit,
		Metrics: opts.Metrics,
	})
	if err != nil {
		opts.Audit.LogFailure(ctx, audit.OpConnect, err)
		return nil, err
	}

	policy := opts.Retry
	if policy.Enabled {
		policy = policy.WithDefaults()
	}
	policy.Retryable = func(err error) bool {
		return adapters.KindOf(err) == adapters.KindConnectivity
	}
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		opts.Logger.Warn().
			Int("attempt", attempt).
			Dur("delay", delay).
			Str("resource", cfg.Resource()).
			Msg(adapters.Message(err))
	}

	retryer, err := retry.NewRetryer(policy)
	if err != nil {
		return nil, &adapters.Error{Kind: adapters.KindConfiguration, Op: "connect", Msg: err.Error(), Err: err}
	}
	if err := retryer.Do(ctx, conn.Connect); err != nil {
		return nil, err
	}
	return newSession(conn, opts), nil
}

func (o Options) withDefaults() Options {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Audit == nil {
		o.Audit = audit.NewNullLogger()
	}
	o.Audit = &taggedLogger{Logger: o.Audit, sessionID: o.ID}
	if o.Validator == nil {
		o.Validator = security.NewSQLValidator(security.Options{
			Logger: o.Logger,
			Audit:  o.Audit,
		})
	}
	return o
}

// ID возвращает идентификатор сессии
func (s *Session) ID() string {
	return s.id
}

// Connector возвращает активный коннектор
func (s *Session) Connector() adapters.Connector {
	return s.conn
}

// Dialect возвращает диалект активного коннектора
func (s *Session) Dialect() dialect.Dialect {
	return s.conn.Dialect()
}

// Connect повторно проверяет подключение
func (s *Session) Connect(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

// Disconnect идемпотентен
func (s *Session) Disconnect(ctx context.Context) error {
	return s.conn.Disconnect(ctx)
}

// Tables возвращает все таблицы базы
func (s *Session) Tables(ctx context.Context) ([]string, error) {
	return s.conn.ListTables(ctx)
}

// SearchTables - таблицы, в имени которых есть term без учета регистра.
// Порядок каталога сохраняется, пустой term возвращает все таблицы.
func (s *Session) SearchTables(ctx context.Context, term string) ([]string, error) {
	tables, err := s.conn.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	return matchTables(tables, term), nil
}

func matchTables(tables []string, term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return tables
	}

	found := []string{}
	for _, t := range tables {
		if strings.Contains(strings.ToLower(t), term) {
			found = append(found, t)
		}
	}
	return found
}

// Metadata возвращает количество строк и колонки таблицы
func (s *Session) Metadata(ctx context.Context, table string) (schema.Table, error) {
	return s.conn.TableMetadata(ctx, table)
}

// Sample возвращает первые n строк таблицы (n <= 0 - DefaultSampleRows)
func (s *Session) Sample(ctx context.Context, table string, n int) (*schema.Result, error) {
	if n <= 0 {
		n = DefaultSampleRows
	}
	return s.conn.Execute(ctx, selectAll(s.Dialect(), table, n, 0))
}

// selectAll - SELECT * FROM <table> с необязательной пагинацией
func selectAll(d dialect.Dialect, table string, limit, offset int) string {
	query := "SELECT * FROM " + dialect.QuoteIdentifier(d, table)
	if page := dialect.Paginate(d, limit, offset, false); page != "" {
		query += " " + page
	}
	return query
}

// taggedLogger проставляет ID сессии во все записи аудита
type taggedLogger struct {
	audit.Logger
	sessionID string
}

func (l *taggedLogger) Log(ctx context.Context, entry *audit.Entry) error {
	if entry != nil && entry.SessionID == "" {
		entry.WithSessionID(l.sessionID)
	}
	return l.Logger.Log(ctx, entry)
}

func (l *taggedLogger) LogFailure(ctx context.Context, op audit.Operation, err error) *audit.Entry {
	entry := audit.NewEntry(op, audit.StatusFailure).WithError(err)
	_ = l.Log(ctx, entry)
	return entry
}
