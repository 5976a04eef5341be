package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Level - уровень детализации записи
type Level int

const (
	// LevelMinimal - без метаданных, текста SQL и сессии
	LevelMinimal Level = iota

	// LevelStandard - без текста SQL
	LevelStandard

	// LevelFull - включая текст SQL
	LevelFull
)

// String - строковое представление уровня
func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelStandard:
		return "standard"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// ParseLevel разбирает уровень из конфигурации; пустая строка - standard
func ParseLevel(s string) (Level, error) {
	switch s {
	case "minimal":
		return LevelMinimal, nil
	case "", "standard":
		return LevelStandard, nil
	case "full":
		return LevelFull, nil
	default:
		return LevelStandard, fmt.Errorf("unknown audit level: %q", s)
	}
}

// Operation - тип операции коннектора
type Operation string

const (
	OpConnect    Operation = "connect"
	OpDisconnect Operation = "disconnect"
	OpListTables Operation = "list_tables"
	OpMetadata   Operation = "metadata"
	OpQuery      Operation = "query"
	OpValidate   Operation = "validate"
	OpExport     Operation = "export"
	OpUpload     Operation = "upload"
)

// Status - статус выполнения операции
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// kinded - ошибка, знающая свою категорию (adapters.Error).
// Интерфейс объявлен здесь, чтобы audit не импортировал adapters.
type kinded interface {
	ErrorKind() string
}

// Entry - запись в audit логе
type Entry struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	Operation    Operation              `json:"operation"`
	Status       Status                 `json:"status"`
	Kind         string                 `json:"kind,omitempty"`
	Dialect      string                 `json:"dialect,omitempty"`
	User         string                 `json:"user,omitempty"`
	Resource     string                 `json:"resource,omitempty"`
	Query        string                 `json:"query,omitempty"`
	RowsReturned int64                  `json:"rows_returned,omitempty"`
	Duration     time.Duration          `json:"duration,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	SessionID    string                 `json:"session_id,omitempty"`
}

// NewEntry - создать новую audit запись
func NewEntry(operation Operation, status Status) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Operation: operation,
		Status:    status,
	}
}

// WithDialect - установить диалект
func (e *Entry) WithDialect(dialect string) *Entry {
	e.Dialect = dialect
	return e
}

// WithUser - установить пользователя
func (e *Entry) WithUser(user string) *Entry {
	e.User = user
	return e
}

// WithResource - установить ресурс (таблица, файл, хост)
func (e *Entry) WithResource(resource string) *Entry {
	e.Resource = resource
	return e
}

// WithQuery - установить текст SQL
func (e *Entry) WithQuery(query string) *Entry {
	e.Query = query
	return e
}

// WithRowsReturned - установить количество строк
func (e *Entry) WithRowsReturned(count int64) *Entry {
	e.RowsReturned = count
	return e
}

// WithDuration - установить длительность
func (e *Entry) WithDuration(duration time.Duration) *Entry {
	e.Duration = duration
	return e
}

// WithError устанавливает ошибку и ее категорию, если ошибка ее знает
func (e *Entry) WithError(err error) *Entry {
	if err == nil {
		return e
	}
	e.ErrorMessage = err.Error()
	e.Status = StatusFailure

	var k kinded
	if errors.As(err, &k) {
		e.Kind = k.ErrorKind()
	}
	return e
}

// WithMetadata - добавить метаданные
func (e *Entry) WithMetadata(key string, value interface{}) *Entry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithSessionID - установить ID сессии
func (e *Entry) WithSessionID(sessionID string) *Entry {
	e.SessionID = sessionID
	return e
}

// Failed - операция завершилась ошибкой
func (e *Entry) Failed() bool {
	return e.Status == StatusFailure
}

// ToJSON - преобразовать в JSON
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// String - строковое представление
func (e *Entry) String() string {
	s := fmt.Sprintf("[%s] %s %s %s (resource=%s, rows=%d, duration=%v)",
		e.Timestamp.Format(time.RFC3339),
		e.Dialect,
		e.Operation,
		e.Status,
		e.Resource,
		e.RowsReturned,
		e.Duration,
	)
	if e.ErrorMessage != "" {
		s += fmt.Sprintf(" %s: %s", e.Kind, e.ErrorMessage)
	}
	return s
}

// Clone - создать копию записи
func (e *Entry) Clone() *Entry {
	clone := *e
	if e.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// FilterByLevel - копия записи без полей, не положенных уровню
func (e *Entry) FilterByLevel(level Level) *Entry {
	filtered := e.Clone()

	switch level {
	case LevelMinimal:
		filtered.Metadata = nil
		filtered.Query = ""
		filtered.SessionID = ""
	case LevelStandard:
		filtered.Query = ""
	case LevelFull:
	}

	return filtered
}
