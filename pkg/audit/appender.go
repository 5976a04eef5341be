package audit

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Appender - интерфейс для записи audit логов
type Appender interface {
	// Append - записать audit entry
	Append(ctx context.Context, entry *Entry) error

	// Close - закрыть appender
	Close() error
}

// MultiAppender - запись в несколько appenders
type MultiAppender struct {
	appenders []Appender
}

// NewMultiAppender - создать multi appender
func NewMultiAppender(appenders ...Appender) *MultiAppender {
	return &MultiAppender{appenders: appenders}
}

// Append - записать во все appenders, даже если один из них упал
func (ma *MultiAppender) Append(ctx context.Context, entry *Entry) error {
	var firstErr error
	for _, appender := range ma.appenders {
		if err := appender.Append(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close - закрыть все appenders
func (ma *MultiAppender) Close() error {
	var firstErr error
	for _, appender := range ma.appenders {
		if err := appender.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Add - добавить appender
func (ma *MultiAppender) Add(appender Appender) {
	ma.appenders = append(ma.appenders, appender)
}

// MemoryAppender хранит записи в памяти. Используется сессией для
// отображения последних ошибок и в тестах.
type MemoryAppender struct {
	mu      sync.Mutex
	entries []*Entry
	limit   int
}

// NewMemoryAppender создает appender; limit <= 0 - без ограничения,
// иначе хранятся только последние limit записей.
func NewMemoryAppender(limit int) *MemoryAppender {
	return &MemoryAppender{limit: limit}
}

// Append - сохранить копию записи
func (ma *MemoryAppender) Append(ctx context.Context, entry *Entry) error {
	ma.mu.Lock()
	defer ma.mu.Unlock()

	ma.entries = append(ma.entries, entry.Clone())
	if ma.limit > 0 && len(ma.entries) > ma.limit {
		ma.entries = ma.entries[len(ma.entries)-ma.limit:]
	}
	return nil
}

// Entries - копия всех сохраненных записей
func (ma *MemoryAppender) Entries() []*Entry {
	ma.mu.Lock()
	defer ma.mu.Unlock()

	out := make([]*Entry, len(ma.entries))
	copy(out, ma.entries)
	return out
}

// Failures - только записи со статусом failure
func (ma *MemoryAppender) Failures() []*Entry {
	ma.mu.Lock()
	defer ma.mu.Unlock()

	var out []*Entry
	for _, e := range ma.entries {
		if e.Failed() {
			out = append(out, e)
		}
	}
	return out
}

// Last - последняя запись или nil
func (ma *MemoryAppender) Last() *Entry {
	ma.mu.Lock()
	defer ma.mu.Unlock()

	if len(ma.entries) == 0 {
		return nil
	}
	return ma.entries[len(ma.entries)-1]
}

// Reset - очистить записи
func (ma *MemoryAppender) Reset() {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.entries = nil
}

// Close - no-op
func (ma *MemoryAppender) Close() error {
	return nil
}

// ZerologAppender пишет записи в структурированный лог
type ZerologAppender struct {
	logger zerolog.Logger
	level  Level
}

// NewZerologAppender - создать appender поверх zerolog
func NewZerologAppender(logger zerolog.Logger, level Level) *ZerologAppender {
	return &ZerologAppender{logger: logger, level: level}
}

// Append - failure пишется с уровнем warn, success - info
func (za *ZerologAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(za.level)

	event := za.logger.Info()
	if filtered.Failed() {
		event = za.logger.Warn().
			Str("kind", filtered.Kind).
			Str("error", filtered.ErrorMessage)
	}

	event = event.
		Str("audit_id", filtered.ID).
		Str("operation", string(filtered.Operation)).
		Str("status", string(filtered.Status)).
		Str("dialect", filtered.Dialect).
		Str("resource", filtered.Resource).
		Int64("rows", filtered.RowsReturned).
		Dur("duration", filtered.Duration)

	if filtered.SessionID != "" {
		event = event.Str("session_id", filtered.SessionID)
	}
	if filtered.Query != "" {
		event = event.Str("query", filtered.Query)
	}
	if len(filtered.Metadata) > 0 {
		event = event.Fields(filtered.Metadata)
	}

	event.Msg("audit")
	return nil
}

// Close - no-op
func (za *ZerologAppender) Close() error {
	return nil
}

// NullAppender - пустой appender
type NullAppender struct{}

// NewNullAppender - создать null appender
func NewNullAppender() *NullAppender {
	return &NullAppender{}
}

// Append - ничего не делает
func (na *NullAppender) Append(ctx context.Context, entry *Entry) error {
	return nil
}

// Close - ничего не делает
func (na *NullAppender) Close() error {
	return nil
}
