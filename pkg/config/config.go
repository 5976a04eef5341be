// Package config - job-файл tablegrab в YAML: подключение, выборка, выгрузка.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/core/filter"
	"github.com/ruslano69/tablegrab/pkg/retry"
)

// File - содержимое job-файла
type File struct {
	Connection ConnectionConfig `yaml:"connection"`
	Query      QueryConfig      `yaml:"query"`
	Export     ExportConfig     `yaml:"export"`
	Audit      AuditConfig      `yaml:"audit,omitempty"`
	Log        LogConfig        `yaml:"log,omitempty"`
}

// ConnectionConfig - параметры подключения
type ConnectionConfig struct {
	Type       string        `yaml:"type"`                  // sqlite, mysql, postgres, mssql
	Path       string        `yaml:"path,omitempty"`        // Файл SQLite
	Host       string        `yaml:"host,omitempty"`        // Для сетевых СУБД
	Port       int           `yaml:"port,omitempty"`        // Порт (по умолчанию у диалекта)
	Database   string        `yaml:"database,omitempty"`    // Имя базы
	User       string        `yaml:"user,omitempty"`        // Пользователь
	Password   string        `yaml:"password,omitempty"`    // Пароль
	Schema     string        `yaml:"schema,omitempty"`      // Схема PostgreSQL / MS SQL
	Timeout    time.Duration `yaml:"timeout,omitempty"`     // Например "5s"
	SSL        bool          `yaml:"ssl,omitempty"`         // Шифрование
	AuthPlugin string        `yaml:"auth_plugin,omitempty"` // MySQL: mysql_native_password и т.д.

	// Retry - повторы проверки подключения, если хост недоступен
	Retry retry.Config `yaml:"retry,omitempty"`
}

// QueryConfig - что выгружать
type QueryConfig struct {
	Table  string          `yaml:"table" validate:"required"`
	Mode   string          `yaml:"mode" validate:"omitempty,oneof=all range custom visual"`
	SQL    string          `yaml:"sql,omitempty" validate:"required_if=Mode custom"`
	Limit  int             `yaml:"limit,omitempty" validate:"min=0"`  // range
	Offset int             `yaml:"offset,omitempty" validate:"min=0"` // range
	Filter *filter.Request `yaml:"filter,omitempty" validate:"required_if=Mode visual"`
}

// ExportConfig - формат и место выгрузки
type ExportConfig struct {
	Format        string `yaml:"format" validate:"omitempty,oneof=csv excel xlsx json"`
	OutputDir     string `yaml:"output_dir,omitempty"`
	SheetName     string `yaml:"sheet_name,omitempty"`
	Compress      bool   `yaml:"compress,omitempty"`       // zstd
	CompressLevel int    `yaml:"compress_level,omitempty"` // 1-22, по умолчанию 3
}

// AuditConfig - журнал операций
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Level     string `yaml:"level,omitempty" validate:"omitempty,oneof=minimal standard full"`
	File      string `yaml:"file,omitempty"`        // JSON lines
	MaxSizeMB int    `yaml:"max_size_mb,omitempty"` // Ротация файла
	Database  string `yaml:"database,omitempty"`    // SQLite файл журнала
	Console   bool   `yaml:"console,omitempty"`     // В лог приложения
}

// LogConfig - лог приложения
type LogConfig struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=console json"`
}

var fileValidator = validator.New(validator.WithRequiredStructEnabled())

// Load читает и проверяет job-файл, заполняет значения по умолчанию
func Load(filename string) (*File, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	f.applyDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Save записывает job-файл
func Save(filename string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (f *File) applyDefaults() {
	if f.Query.Mode == "" {
		f.Query.Mode = "all"
	}
	if f.Export.Format == "" {
		f.Export.Format = "csv"
	}
	if f.Export.OutputDir == "" {
		f.Export.OutputDir = "."
	}
	if f.Export.Compress && f.Export.CompressLevel == 0 {
		f.Export.CompressLevel = 3
	}
	if f.Audit.Level == "" {
		f.Audit.Level = "standard"
	}
	if f.Log.Level == "" {
		f.Log.Level = "info"
	}
	if f.Log.Format == "" {
		f.Log.Format = "console"
	}
}

// Validate проверяет выборку и выгрузку, затем дескриптор подключения.
// Ошибка дескриптора - *adapters.Error с KindConfiguration.
func (f *File) Validate() error {
	if err := fileValidator.Struct(f); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if f.Connection.Retry.Enabled {
		policy := f.Connection.Retry.WithDefaults()
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("invalid config: connection.retry: %w", err)
		}
	}
	return f.Connection.ToAdapterConfig().Validate()
}

// ToAdapterConfig - дескриптор для фабрики коннекторов
func (c ConnectionConfig) ToAdapterConfig() adapters.Config {
	return adapters.Config{
		Type:       c.Type,
		Path:       c.Path,
		Host:       c.Host,
		Port:       c.Port,
		Database:   c.Database,
		User:       c.User,
		Password:   c.Password,
		Schema:     c.Schema,
		Timeout:    c.Timeout,
		SSL:        c.SSL,
		AuthPlugin: c.AuthPlugin,
	}
}

// Sample - пример job-файла для типа СУБД
func Sample(dbType string) *File {
	f := &File{
		Connection: ConnectionConfig{Type: dbType, Timeout: adapters.DefaultTimeout},
		Query:      QueryConfig{Table: "orders", Mode: "range", Limit: 1000},
		Export:     ExportConfig{Format: "csv", OutputDir: "exports"},
		Audit:      AuditConfig{Enabled: true, Level: "standard", File: "audit.log", MaxSizeMB: 100},
		Log:        LogConfig{Level: "info", Format: "console"},
	}

	switch dbType {
	case "sqlite", "sqlite3":
		f.Connection.Path = "database.db"
	case "mysql", "mariadb":
		f.Connection.Host = "localhost"
		f.Connection.Port = 3306
		f.Connection.Database = "mydb"
		f.Connection.User = "reader"
		f.Connection.AuthPlugin = "caching_sha2_password"
	case "postgres", "postgresql":
		f.Connection.Host = "localhost"
		f.Connection.Port = 5432
		f.Connection.Database = "mydb"
		f.Connection.User = "postgres"
		f.Connection.Schema = "public"
	case "mssql", "sqlserver":
		f.Connection.Host = "localhost"
		f.Connection.Port = 1433
		f.Connection.Database = "mydb"
		f.Connection.User = "sa"
		f.Connection.Schema = "dbo"
	}
	return f
}
