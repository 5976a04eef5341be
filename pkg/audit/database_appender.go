package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DatabaseAppender - журнал аудита в SQL таблице.
//
// Используется с отдельной базой (обычно SQLite файл рядом с выгрузками),
// а не с базой, из которой идет извлечение: коннектор только читает.
type DatabaseAppender struct {
	db         *sql.DB
	tableName  string
	level      Level
	insertStmt *sql.Stmt
}

// DatabaseAppenderConfig - конфигурация database appender
type DatabaseAppenderConfig struct {
	DB              *sql.DB
	TableName       string // по умолчанию audit_log
	Level           Level
	AutoCreateTable bool
}

// NewDatabaseAppender - создать database appender
func NewDatabaseAppender(ctx context.Context, config DatabaseAppenderConfig) (*DatabaseAppender, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if config.TableName == "" {
		config.TableName = "audit_log"
	}

	da := &DatabaseAppender{
		db:        config.DB,
		tableName: config.TableName,
		level:     config.Level,
	}

	if config.AutoCreateTable {
		if err := da.createTable(ctx); err != nil {
			return nil, fmt.Errorf("failed to create audit table: %w", err)
		}
	}

	stmt, err := da.db.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			id, timestamp, operation, status, kind, dialect, user_name, resource,
			query, rows_returned, duration_ms, error_message, metadata, session_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, da.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	da.insertStmt = stmt

	return da, nil
}

func (da *DatabaseAppender) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			timestamp VARCHAR(40) NOT NULL,
			operation VARCHAR(32) NOT NULL,
			status VARCHAR(16) NOT NULL,
			kind VARCHAR(32),
			dialect VARCHAR(16),
			user_name VARCHAR(255),
			resource VARCHAR(255),
			query TEXT,
			rows_returned BIGINT DEFAULT 0,
			duration_ms BIGINT DEFAULT 0,
			error_message TEXT,
			metadata TEXT,
			session_id VARCHAR(64)
		)`, da.tableName)

	if _, err := da.db.ExecContext(ctx, query); err != nil {
		return err
	}

	for _, column := range []string{"timestamp", "operation", "status"} {
		index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
			da.tableName, column, da.tableName, column)
		if _, err := da.db.ExecContext(ctx, index); err != nil {
			return err
		}
	}
	return nil
}

// Append - записать entry в таблицу
func (da *DatabaseAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(da.level)

	metadata := ""
	if len(filtered.Metadata) > 0 {
		encoded, err := json.Marshal(filtered.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = string(encoded)
	}

	_, err := da.insertStmt.ExecContext(ctx,
		filtered.ID,
		filtered.Timestamp.UTC().Format(time.RFC3339Nano),
		string(filtered.Operation),
		string(filtered.Status),
		filtered.Kind,
		filtered.Dialect,
		filtered.User,
		filtered.Resource,
		filtered.Query,
		filtered.RowsReturned,
		filtered.Duration.Milliseconds(),
		filtered.ErrorMessage,
		metadata,
		filtered.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Close - закрыть prepared statement. *sql.DB закрывает владелец.
func (da *DatabaseAppender) Close() error {
	if da.insertStmt != nil {
		return da.insertStmt.Close()
	}
	return nil
}

// QueryFilter - фильтр для запроса audit entries
type QueryFilter struct {
	Operation Operation
	Status    Status
	Kind      string
	SessionID string
	Since     time.Time
	Limit     int
}

func (f QueryFilter) where() (string, []any) {
	var clauses []string
	var args []any

	if f.Operation != "" {
		clauses = append(clauses, "operation = ?")
		args = append(args, string(f.Operation))
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Query - последние записи журнала, новые первыми
func (da *DatabaseAppender) Query(ctx context.Context, filter QueryFilter) ([]*Entry, error) {
	where, args := filter.where()
	query := fmt.Sprintf(`SELECT id, timestamp, operation, status, kind, dialect, user_name,
		resource, query, rows_returned, duration_ms, error_message, metadata, session_id
		FROM %s%s ORDER BY timestamp DESC`, da.tableName, where)
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := da.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry                    Entry
			timestamp, op, status    string
			kind, dialect, user      sql.NullString
			resource, text, errorMsg sql.NullString
			metadata, session        sql.NullString
			durationMs               int64
		)

		if err := rows.Scan(&entry.ID, &timestamp, &op, &status, &kind, &dialect, &user,
			&resource, &text, &entry.RowsReturned, &durationMs, &errorMsg, &metadata, &session); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entry.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		entry.Operation = Operation(op)
		entry.Status = Status(status)
		entry.Kind = kind.String
		entry.Dialect = dialect.String
		entry.User = user.String
		entry.Resource = resource.String
		entry.Query = text.String
		entry.ErrorMessage = errorMsg.String
		entry.SessionID = session.String
		entry.Duration = time.Duration(durationMs) * time.Millisecond
		if metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of %s: %w", entry.ID, err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

// Count - количество записей по фильтру (Limit игнорируется)
func (da *DatabaseAppender) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	where, args := filter.where()

	var count int64
	err := da.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s%s", da.tableName, where), args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}
