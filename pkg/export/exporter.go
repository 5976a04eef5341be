package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/tablegrab/pkg/audit"
	"github.com/ruslano69/tablegrab/pkg/core/schema"
)

// ErrNoResult - нечего выгружать
var ErrNoResult = errors.New("no result to export")

// Payload - готовый к записи файл
type Payload struct {
	Format     Format
	Data       []byte
	Rows       int
	Compressed bool

	// Checksum - xxh3 по Data (после сжатия, если оно было)
	Checksum string
}

// Extension - расширение с учетом сжатия
func (p *Payload) Extension() string {
	if p.Compressed {
		return p.Format.Extension() + ".zst"
	}
	return p.Format.Extension()
}

// MimeType - MIME тип с учетом сжатия
func (p *Payload) MimeType() string {
	if p.Compressed {
		return "application/zstd"
	}
	return p.Format.MimeType()
}

// Options - настройки выгрузки. Нулевое значение допустимо.
type Options struct {
	// SheetName - имя листа Excel, по умолчанию Sheet1
	SheetName string

	// CompressLevel > 0 включает zstd
	CompressLevel int

	Logger zerolog.Logger
	Audit  audit.Logger
}

// Exporter превращает результат запроса в байты выбранного формата
type Exporter struct {
	opts Options
}

// New создает exporter
func New(opts Options) *Exporter {
	if opts.Audit == nil {
		opts.Audit = audit.NewNullLogger()
	}
	return &Exporter{opts: opts}
}

// Export сериализует res. Вызывается только после успешного Execute.
func (e *Exporter) Export(ctx context.Context, res *schema.Result, format Format) (*Payload, error) {
	started := time.Now()

	payload, err := e.export(res, format)

	entry := audit.NewEntry(audit.OpExport, audit.StatusSuccess).
		WithResource(string(format)).
		WithDuration(time.Since(started)).
		WithError(err)
	if payload != nil {
		entry = entry.WithRowsReturned(int64(payload.Rows)).
			WithMetadata("bytes", len(payload.Data)).
			WithMetadata("checksum", payload.Checksum)
	}
	if logErr := e.opts.Audit.Log(ctx, entry); logErr != nil {
		e.opts.Logger.Warn().Err(logErr).Msg("failed to write audit entry")
	}

	if err != nil {
		e.opts.Logger.Warn().Err(err).Str("format", string(format)).Msg("export failed")
		return nil, err
	}

	e.opts.Logger.Debug().
		Str("format", string(format)).
		Int("rows", payload.Rows).
		Int("bytes", len(payload.Data)).
		Bool("compressed", payload.Compressed).
		Msg("exported")
	return payload, nil
}

func (e *Exporter) export(res *schema.Result, format Format) (*Payload, error) {
	if res == nil {
		return nil, ErrNoResult
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = writeCSV(res)
	case FormatExcel:
		data, err = writeExcel(res, e.opts.SheetName)
	case FormatJSON:
		data, err = writeJSON(res)
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
	if err != nil {
		return nil, err
	}

	p := &Payload{Format: format, Rows: res.Len()}
	if e.opts.CompressLevel > 0 {
		if data, err = Compress(data, e.opts.CompressLevel); err != nil {
			return nil, err
		}
		p.Compressed = true
	}
	p.Data = data
	p.Checksum = Checksum(data)
	return p, nil
}
