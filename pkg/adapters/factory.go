package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/ruslano69/tablegrab/pkg/audit"
	"github.com/ruslano69/tablegrab/pkg/core/dialect"
)

// ConnectorConstructor - функция-конструктор коннектора.
// Возвращает коннектор, еще не проверивший подключение.
type ConnectorConstructor func(cfg Config, opts Options) Connector

type registration struct {
	driverName  string
	constructor ConnectorConstructor
}

// Factory - реестр коннекторов по типу СУБД
type Factory struct {
	registry map[dialect.Dialect]registration
	mu       sync.RWMutex
}

// NewFactory создает пустую фабрику коннекторов
func NewFactory() *Factory {
	return &Factory{
		registry: make(map[dialect.Dialect]registration),
	}
}

// Register регистрирует конструктор для типа СУБД.
// driverName - имя database/sql драйвера; по нему Available проверяет,
// что клиентская библиотека действительно слинкована.
//
// Пример:
//
//	factory.Register(dialect.SQLite, "sqlite", func(cfg adapters.Config, opts adapters.Options) adapters.Connector {
//	    return sqlite.New(cfg, opts)
//	})
func (f *Factory) Register(d dialect.Dialect, driverName string, constructor ConnectorConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[d] = registration{driverName: driverName, constructor: constructor}
}

// Unregister удаляет конструктор
func (f *Factory) Unregister(d dialect.Dialect) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registry, d)
}

// IsRegistered проверяет, зарегистрирован ли коннектор для типа СУБД (с учетом синонимов)
func (f *Factory) IsRegistered(dbType string) bool {
	_, ok := f.lookup(dbType)
	return ok
}

// GetRegisteredTypes возвращает зарегистрированные типы по алфавиту
func (f *Factory) GetRegisteredTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.registry))
	for d := range f.registry {
		types = append(types, string(d))
	}
	sort.Strings(types)
	return types
}

// Available возвращает типы, для которых драйвер присутствует в database/sql.
// Отсутствие библиотеки сужает выбор, но не ломает запуск.
func (f *Factory) Available() []string {
	drivers := sql.Drivers()

	f.mu.RLock()
	defer f.mu.RUnlock()

	var types []string
	for d, reg := range f.registry {
		if slices.Contains(drivers, reg.driverName) {
			types = append(types, string(d))
		}
	}
	sort.Strings(types)
	return types
}

func (f *Factory) lookup(dbType string) (registration, bool) {
	d, err := dialect.Parse(dbType)
	if err != nil {
		return registration{}, false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	reg, ok := f.registry[d]
	return reg, ok
}

// CreateWithoutConnect проверяет дескриптор и создает коннектор БЕЗ проверки подключения
func (f *Factory) CreateWithoutConnect(cfg Config, opts Options) (Connector, error) {
	reg, ok := f.lookup(cfg.Type)
	if !ok {
		return nil, &Error{
			Kind: KindConfiguration,
			Op:   "create",
			Msg: fmt.Sprintf("unknown database type: %s (available types: %v)",
				cfg.Type, f.GetRegisteredTypes()),
			Err: ErrUnknownDialect,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d, _ := dialect.Parse(cfg.Type)
	cfg.Type = string(d)

	return reg.constructor(cfg, opts.withDefaults()), nil
}

// Create создает коннектор и вызывает Connect.
// Ошибка Connect возвращается как есть (*Error с категорией).
func (f *Factory) Create(ctx context.Context, cfg Config, opts Options) (Connector, error) {
	connector, err := f.CreateWithoutConnect(cfg, opts)
	if err != nil {
		opts.withDefaults().Audit.LogFailure(ctx, audit.OpConnect, err)
		return nil, err
	}

	if err := connector.Connect(ctx); err != nil {
		return nil, err
	}
	return connector, nil
}

// ========== Global Factory ==========

var globalFactory = NewFactory()

// Register регистрирует коннектор в глобальной фабрике.
// Вызывается из init() пакетов диалектов; после старта реестр не меняется.
//
// Пример (в pkg/adapters/mysql/adapter.go):
//
//	func init() {
//	    adapters.Register(dialect.MySQL, "mysql", func(cfg adapters.Config, opts adapters.Options) adapters.Connector {
//	        return New(cfg, opts)
//	    })
//	}
func Register(d dialect.Dialect, driverName string, constructor ConnectorConstructor) {
	globalFactory.Register(d, driverName, constructor)
}

// IsRegistered проверяет регистрацию в глобальной фабрике
func IsRegistered(dbType string) bool {
	return globalFactory.IsRegistered(dbType)
}

// GetRegisteredTypes возвращает типы из глобальной фабрики
func GetRegisteredTypes() []string {
	return globalFactory.GetRegisteredTypes()
}

// Available возвращает доступные типы глобальной фабрики
func Available() []string {
	return globalFactory.Available()
}

// New создает и проверяет коннектор через глобальную фабрику.
// Основной способ создания коннекторов в приложении.
//
// Пример:
//
//	conn, err := adapters.New(ctx, adapters.Config{
//	    Type: "sqlite",
//	    Path: "app.db",
//	}, adapters.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Disconnect(ctx)
func New(ctx context.Context, cfg Config, opts Options) (Connector, error) {
	return globalFactory.Create(ctx, cfg, opts)
}

// NewWithoutConnect создает коннектор без проверки подключения через глобальную фабрику
func NewWithoutConnect(cfg Config, opts Options) (Connector, error) {
	return globalFactory.CreateWithoutConnect(cfg, opts)
}
