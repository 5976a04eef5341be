package adapters

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ruslano69/tablegrab/pkg/audit"
	"github.com/ruslano69/tablegrab/pkg/core/dialect"
	"github.com/ruslano69/tablegrab/pkg/core/schema"
	"github.com/ruslano69/tablegrab/pkg/metrics"
)

// DefaultTimeout - таймаут подключения, если в Config он не задан
const DefaultTimeout = 10 * time.Second

// Config - дескриптор подключения. После создания коннектора не меняется.
type Config struct {
	// Type - тип СУБД: "sqlite", "mysql", "postgres", "mssql"
	Type string `yaml:"type" validate:"required"`

	// Path - путь к файлу БД (только SQLite)
	Path string `yaml:"path,omitempty" validate:"required_if=Type sqlite"`

	// Host/Port/Database/User/Password - сетевые СУБД
	Host     string `yaml:"host,omitempty" validate:"required_unless=Type sqlite"`
	Port     int    `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Database string `yaml:"database,omitempty" validate:"required_unless=Type sqlite"`
	User     string `yaml:"user,omitempty" validate:"required_unless=Type sqlite"`
	Password string `yaml:"password,omitempty"`

	// Schema - схема по умолчанию (PostgreSQL/MS SQL), для остальных игнорируется
	Schema string `yaml:"schema,omitempty"`

	// Timeout - таймаут подключения и пробы доступности хоста
	Timeout time.Duration `yaml:"timeout,omitempty" validate:"min=0"`

	// SSL - шифрование соединения
	SSL bool `yaml:"ssl,omitempty"`

	// AuthPlugin - механизм аутентификации MySQL.
	// Пусто - по умолчанию драйвера.
	AuthPlugin string `yaml:"auth_plugin,omitempty" validate:"omitempty,oneof=mysql_native_password caching_sha2_password mysql_clear_password"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет поля дескриптора до любого ввода-вывода.
// Ошибка всегда KindConfiguration.
func (c Config) Validate() error {
	normalized := c
	if c.Type != "" {
		d, err := dialect.Parse(c.Type)
		if err != nil {
			return &Error{Kind: KindConfiguration, Op: "validate", Msg: fmt.Sprintf("unknown database type: %s", c.Type), Err: ErrUnknownDialect}
		}
		normalized.Type = string(d)
	}

	if err := configValidator.Struct(normalized); err != nil {
		return &Error{
			Kind:    KindConfiguration,
			Dialect: normalized.Type,
			Op:      "validate",
			Msg:     describeValidation(err),
			Err:     err,
		}
	}
	return nil
}

// describeValidation превращает ошибки validator в читаемое сообщение
func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s is out of range: %v", fe.Field(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

// TimeoutOrDefault возвращает Timeout или DefaultTimeout
func (c Config) TimeoutOrDefault() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Address - host:port для сетевых СУБД; порт по умолчанию берется у диалекта
func (c Config) Address(defaultPort int) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Redacted - копия без пароля, для логов
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "***"
	}
	return c
}

// Resource - человекочитаемое имя источника для логов и аудита
func (c Config) Resource() string {
	if c.Path != "" {
		return c.Path
	}
	if c.Database != "" {
		return c.Host + "/" + c.Database
	}
	return c.Host
}

// Connector - единый контракт для всех диалектов.
//
// Каждый вызов, который читает данные, открывает собственное подключение и
// закрывает его перед возвратом. Ошибка всегда *Error с категорией;
// копия ошибки уходит в audit.Logger из Options.
type Connector interface {
	// ========== Lifecycle ==========

	// Connect проверяет доступность и учетные данные (round-trip запрос).
	// Для сетевых СУБД сначала выполняется TCP проба хоста.
	Connect(ctx context.Context) error

	// Disconnect идемпотентен; безопасен без успешного Connect
	Disconnect(ctx context.Context) error

	// ========== Schema ==========

	// ListTables возвращает имена таблиц по возрастанию
	ListTables(ctx context.Context) ([]string, error)

	// TableMetadata возвращает количество строк и колонки таблицы
	TableMetadata(ctx context.Context, table string) (schema.Table, error)

	// ========== Query ==========

	// Execute выполняет SQL как есть и материализует все строки.
	// LIMIT не добавляется.
	Execute(ctx context.Context, query string) (*schema.Result, error)

	// Explain выполняет dry-run запроса через план выполнения, строки не читаются
	Explain(ctx context.Context, query string) error

	// ========== Metadata ==========

	// Dialect возвращает диалект коннектора
	Dialect() dialect.Dialect
}

// Options - зависимости коннектора. Нулевое значение допустимо.
type Options struct {
	Logger  zerolog.Logger
	Audit   audit.Logger
	Metrics *metrics.Collector
}

// DefaultOptions - тихий логгер и пустой аудит
func DefaultOptions() Options {
	return Options{
		Logger: zerolog.Nop(),
		Audit:  audit.NewNullLogger(),
	}
}

// withDefaults заполняет пустые поля Options
func (o Options) withDefaults() Options {
	if o.Audit == nil {
		o.Audit = audit.NewNullLogger()
	}
	return o
}
