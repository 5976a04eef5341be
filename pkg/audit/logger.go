package audit

import (
	"context"
	"fmt"
	"sync"
)

// Logger - основной интерфейс для аудита.
//
// Аудит - побочный канал: ошибки операций коннектора возвращаются вызывающему,
// а их копия с категорией попадает сюда.
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
	LogOperation(ctx context.Context, operation Operation, status Status) *Entry
	LogSuccess(ctx context.Context, operation Operation) *Entry
	LogFailure(ctx context.Context, operation Operation, err error) *Entry
	Flush() error
	Close() error
}

// AuditLogger - логгер аудита с набором appenders
type AuditLogger struct {
	appenders []Appender
	config    LoggerConfig

	entries chan *Entry
	done    chan struct{}
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// LoggerConfig - конфигурация логгера
type LoggerConfig struct {
	// AsyncMode - запись в appenders из отдельной горутины
	AsyncMode bool

	// BufferSize - размер буфера для асинхронного режима
	BufferSize int

	// DefaultUser - пользователь по умолчанию (если не указан в entry)
	DefaultUser string

	// SessionID - ID сессии, проставляется во все записи без своего ID
	SessionID string

	// OnError - callback при ошибке записи
	OnError func(error)
}

// NewLogger - создать новый audit logger
func NewLogger(config LoggerConfig, appenders ...Appender) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}

	logger := &AuditLogger{
		appenders: appenders,
		config:    config,
		done:      make(chan struct{}),
	}

	if config.AsyncMode {
		logger.entries = make(chan *Entry, config.BufferSize)
		logger.wg.Add(1)
		go logger.processEntries()
	}

	return logger
}

// Log - записать audit entry
func (l *AuditLogger) Log(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry is nil")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return fmt.Errorf("audit logger is closed")
	}

	if entry.User == "" {
		entry.User = l.config.DefaultUser
	}
	if entry.SessionID == "" {
		entry.SessionID = l.config.SessionID
	}

	if l.config.AsyncMode {
		select {
		case l.entries <- entry:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			// буфер переполнен, пишем синхронно
		}
	}

	return l.writeEntry(ctx, entry)
}

// LogOperation - создать и записать entry для операции
func (l *AuditLogger) LogOperation(ctx context.Context, operation Operation, status Status) *Entry {
	entry := NewEntry(operation, status)
	if err := l.Log(ctx, entry); err != nil {
		l.handleError(err)
	}
	return entry
}

// LogSuccess - записать успешную операцию
func (l *AuditLogger) LogSuccess(ctx context.Context, operation Operation) *Entry {
	return l.LogOperation(ctx, operation, StatusSuccess)
}

// LogFailure - записать неудачную операцию
func (l *AuditLogger) LogFailure(ctx context.Context, operation Operation, err error) *Entry {
	entry := NewEntry(operation, StatusFailure).WithError(err)
	if logErr := l.Log(ctx, entry); logErr != nil {
		l.handleError(logErr)
	}
	return entry
}

// writeEntry - записать entry во все appenders
func (l *AuditLogger) writeEntry(ctx context.Context, entry *Entry) error {
	var firstError error
	for _, appender := range l.appenders {
		if err := appender.Append(ctx, entry); err != nil {
			if firstError == nil {
				firstError = err
			}
			l.handleError(fmt.Errorf("appender failed: %w", err))
		}
	}
	return firstError
}

// processEntries - обработка entries в асинхронном режиме
func (l *AuditLogger) processEntries() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.entries:
			l.writeEntry(context.Background(), entry)
		case <-l.done:
			for {
				select {
				case entry := <-l.entries:
					l.writeEntry(context.Background(), entry)
				default:
					return
				}
			}
		}
	}
}

// Flush - сбросить буферы всех appenders
func (l *AuditLogger) Flush() error {
	var firstError error
	for _, appender := range l.appenders {
		if flusher, ok := appender.(interface{ Flush() error }); ok {
			if err := flusher.Flush(); err != nil {
				if firstError == nil {
					firstError = err
				}
				l.handleError(fmt.Errorf("flush failed: %w", err))
			}
		}
	}
	return firstError
}

// Close - дождаться записи очереди и закрыть appenders. Повторный вызов - no-op.
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()

	l.Flush()

	var firstError error
	for _, appender := range l.appenders {
		if err := appender.Close(); err != nil {
			if firstError == nil {
				firstError = err
			}
			l.handleError(fmt.Errorf("close failed: %w", err))
		}
	}
	return firstError
}

// handleError - обработка ошибки
func (l *AuditLogger) handleError(err error) {
	if l.config.OnError != nil {
		l.config.OnError(err)
	}
}

// SyncConfig - конфигурация для синхронного режима
func SyncConfig() LoggerConfig {
	return LoggerConfig{AsyncMode: false}
}

// NullLogger - пустой logger
type NullLogger struct{}

// NewNullLogger - создать null logger
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (nl *NullLogger) Log(ctx context.Context, entry *Entry) error { return nil }

func (nl *NullLogger) LogOperation(ctx context.Context, operation Operation, status Status) *Entry {
	return NewEntry(operation, status)
}

func (nl *NullLogger) LogSuccess(ctx context.Context, operation Operation) *Entry {
	return NewEntry(operation, StatusSuccess)
}

func (nl *NullLogger) LogFailure(ctx context.Context, operation Operation, err error) *Entry {
	return NewEntry(operation, StatusFailure).WithError(err)
}

func (nl *NullLogger) Flush() error { return nil }

func (nl *NullLogger) Close() error { return nil }
