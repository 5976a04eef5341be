package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/core/dialect"
	"github.com/ruslano69/tablegrab/pkg/core/filter"
	"github.com/ruslano69/tablegrab/pkg/core/schema"
	"github.com/ruslano69/tablegrab/pkg/export"
	"github.com/ruslano69/tablegrab/pkg/security"
)

// Mode - способ извлечения данных из таблицы
type Mode string

const (
	ModeAll    Mode = "all"
	ModeRange  Mode = "range"
	ModeCustom Mode = "custom"
	ModeVisual Mode = "visual"
)

// Ограничения выборок
const (
	// DefaultRangeRows - размер диапазона, если Limit не задан
	DefaultRangeRows = 1000

	// PreviewRows - максимум строк в предпросмотре
	PreviewRows = 100

	// ValidationSampleRows - строки-образец после успешной проверки SQL
	ValidationSampleRows = 3
)

// ParseMode разбирает режим. Пустая строка - ModeAll.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ModeAll, nil
	case "range", "row_range", "rows":
		return ModeRange, nil
	case "custom", "sql":
		return ModeCustom, nil
	case "visual", "filter":
		return ModeVisual, nil
	default:
		return "", fmt.Errorf("unknown extraction mode: %q", s)
	}
}

// Extraction - что извлекать из таблицы
type Extraction struct {
	Mode  Mode
	Table string

	// Limit/Offset - только ModeRange. Limit == 0 - min(DefaultRangeRows, rowCount).
	Limit  int
	Offset int

	// SQL - только ModeCustom, выполняется как есть после проверки
	SQL string

	// Filter - только ModeVisual
	Filter filter.Request
}

// Validation - вердикт проверки SQL и образец строк
type Validation struct {
	security.Result

	// Sample - до ValidationSampleRows строк, только для принятого запроса
	Sample *schema.Result

	// SampleErr - образец не получен; на вердикт не влияет
	SampleErr error
}

// ValidateCustom проверяет произвольный SQL и, если он принят, читает образец
func (s *Session) ValidateCustom(ctx context.Context, query string) Validation {
	v := Validation{Result: s.validator.Validate(ctx, s.conn, query)}
	if !v.OK {
		return v
	}

	v.Sample, v.SampleErr = s.conn.Execute(ctx, dialect.LimitRaw(s.Dialect(), query, ValidationSampleRows))
	if v.SampleErr != nil {
		s.log.Debug().Err(v.SampleErr).Msg("validation sample unavailable")
	}
	return v
}

// SQLFor строит запрос извлечения и описание среза для имени файла.
// ModeRange и ModeVisual читают метаданные таблицы.
func (s *Session) SQLFor(ctx context.Context, ext Extraction) (string, export.Scope, error) {
	d := s.Dialect()

	switch ext.Mode {
	case ModeAll, "":
		return selectAll(d, ext.Table, 0, 0), export.Scope{}, nil

	case ModeRange:
		meta, err := s.conn.TableMetadata(ctx, ext.Table)
		if err != nil {
			return "", export.Scope{}, err
		}
		limit, offset := clampRange(ext.Limit, ext.Offset, meta.RowCount)
		return selectAll(d, ext.Table, limit, offset), export.Scope{Range: true, Offset: offset}, nil

	case ModeCustom:
		if strings.TrimSpace(ext.SQL) == "" {
			return "", export.Scope{}, s.reject("custom query is empty")
		}
		return ext.SQL, export.Scope{Filtered: true}, nil

	case ModeVisual:
		query, err := s.compileVisual(ctx, ext.Table, ext.Filter)
		if err != nil {
			return "", export.Scope{}, err
		}
		return query, export.Scope{Filtered: true}, nil

	default:
		return "", export.Scope{}, s.reject(fmt.Sprintf("unknown extraction mode: %q", ext.Mode))
	}
}

// clampRange повторяет ограничения формы диапазона:
// limit в [1, rowCount], offset в [0, rowCount-1]. Пустая таблица - limit 1, offset 0.
func clampRange(limit, offset int, rowCount int64) (int, int) {
	rows := int(rowCount)
	if limit <= 0 {
		limit = min(DefaultRangeRows, rows)
	}
	limit = max(1, min(limit, rows))
	offset = max(0, min(offset, rows-1))
	return limit, offset
}

func (s *Session) compileVisual(ctx context.Context, table string, req filter.Request) (string, error) {
	meta, err := s.conn.TableMetadata(ctx, table)
	if err != nil {
		return "", err
	}

	spec, err := req.Resolve(meta)
	if err != nil {
		return "", s.reject(err.Error())
	}
	query, err := filter.Compile(s.Dialect(), spec)
	if err != nil {
		return "", s.reject(err.Error())
	}
	return query, nil
}

// Extract выполняет извлечение. Произвольный SQL сначала проходит валидатор;
// отклоненный запрос не выполняется.
func (s *Session) Extract(ctx context.Context, ext Extraction) (*schema.Result, export.Scope, error) {
	query, scope, err := s.SQLFor(ctx, ext)
	if err != nil {
		return nil, scope, err
	}

	if ext.Mode == ModeCustom {
		if res := s.validator.Validate(ctx, s.conn, query); !res.OK {
			return nil, scope, s.reject(res.Message)
		}
	}

	started := time.Now()
	res, err := s.conn.Execute(ctx, query)
	if err != nil {
		return nil, scope, err
	}

	s.log.Info().
		Str("table", ext.Table).
		Str("mode", string(ext.Mode)).
		Int("rows", res.Len()).
		Dur("duration", time.Since(started)).
		Msg("extracted")
	return res, scope, nil
}

// Preview - не больше PreviewRows строк извлечения
func (s *Session) Preview(ctx context.Context, ext Extraction) (*schema.Result, error) {
	d := s.Dialect()

	var query string
	switch ext.Mode {
	case ModeCustom:
		if res := s.validator.Validate(ctx, s.conn, ext.SQL); !res.OK {
			return nil, s.reject(res.Message)
		}
		query = dialect.LimitRaw(d, ext.SQL, PreviewRows)

	case ModeRange:
		meta, err := s.conn.TableMetadata(ctx, ext.Table)
		if err != nil {
			return nil, err
		}
		limit, offset := clampRange(ext.Limit, ext.Offset, meta.RowCount)
		query = selectAll(d, ext.Table, min(limit, PreviewRows), offset)

	case ModeVisual:
		req := ext.Filter
		if req.Limit <= 0 || req.Limit > PreviewRows {
			req.Limit = PreviewRows
		}
		var err error
		if query, err = s.compileVisual(ctx, ext.Table, req); err != nil {
			return nil, err
		}

	default:
		query = selectAll(d, ext.Table, PreviewRows, 0)
	}

	return s.conn.Execute(ctx, query)
}

// Download извлекает данные, сериализует их и возвращает имя файла
// <table><suffix>_<YYYYMMDD_HHMMSS>.<ext>
func (s *Session) Download(ctx context.Context, ext Extraction, exp *export.Exporter, format export.Format, now time.Time) (string, *export.Payload, error) {
	res, scope, err := s.Extract(ctx, ext)
	if err != nil {
		return "", nil, err
	}

	payload, err := exp.Export(ctx, res, format)
	if err != nil {
		return "", nil, err
	}
	return export.FileName(ext.Table, scope, payload, now), payload, nil
}

// reject - отказ до обращения к СУБД
func (s *Session) reject(msg string) error {
	return &adapters.Error{
		Kind:    adapters.KindQuery,
		Dialect: string(s.Dialect()),
		Op:      "extract",
		Msg:     msg,
	}
}
