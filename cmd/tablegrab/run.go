package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/tablegrab/pkg/audit"
	"github.com/ruslano69/tablegrab/pkg/config"
	"github.com/ruslano69/tablegrab/pkg/export"
	"github.com/ruslano69/tablegrab/pkg/metrics"
	"github.com/ruslano69/tablegrab/pkg/security"
	"github.com/ruslano69/tablegrab/pkg/session"
)

type runDeps struct {
	log     zerolog.Logger
	audit   audit.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// run выполняет одну выгрузку и возвращает путь записанного файла
func run(ctx context.Context, job *config.File, deps runDeps) (string, error) {
	mode, err := session.ParseMode(job.Query.Mode)
	if err != nil {
		return "", err
	}
	format, err := export.ParseFormat(job.Export.Format)
	if err != nil {
		return "", err
	}

	s, err := session.Open(ctx, job.Connection.ToAdapterConfig(), session.Options{
		Logger:  deps.log,
		Audit:   deps.audit,
		Metrics: deps.metrics,
		Retry:   job.Connection.Retry,
	})
	if err != nil {
		return "", err
	}
	defer s.Disconnect(ctx)

	ext := session.Extraction{
		Mode:   mode,
		Table:  job.Query.Table,
		Limit:  job.Query.Limit,
		Offset: job.Query.Offset,
		SQL:    job.Query.SQL,
	}
	if job.Query.Filter != nil {
		ext.Filter = *job.Query.Filter
	}

	level := 0
	if job.Export.Compress {
		level = job.Export.CompressLevel
	}
	exp := export.New(export.Options{
		SheetName:     job.Export.SheetName,
		CompressLevel: level,
		Logger:        deps.log,
		Audit:         deps.audit,
	})

	name, payload, err := s.Download(ctx, ext, exp, format, deps.now())
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(job.Export.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(job.Export.OutputDir, name)
	if err := os.WriteFile(path, payload.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	deps.log.Info().
		Str("session", s.ID()).
		Str("file", path).
		Int("rows", payload.Rows).
		Str("mime", payload.MimeType()).
		Str("checksum", payload.Checksum).
		Msg("export written")
	return path, nil
}

// newAuditLogger собирает appenders из конфигурации. Выключенный аудит - NullLogger.
func newAuditLogger(ctx context.Context, cfg config.AuditConfig, log zerolog.Logger) (audit.Logger, error) {
	if !cfg.Enabled {
		return audit.NewNullLogger(), nil
	}

	level, err := audit.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var appenders []audit.Appender
	if cfg.File != "" {
		fa, err := audit.NewFileAppender(audit.FileAppenderConfig{
			FilePath:   cfg.File,
			MaxSize:    int64(cfg.MaxSizeMB),
			Level:      level,
			FormatJSON: true,
		})
		if err != nil {
			return nil, err
		}
		appenders = append(appenders, fa)
	}

	if cfg.Database != "" {
		db, err := sql.Open("sqlite", cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		da, err := audit.NewDatabaseAppender(ctx, audit.DatabaseAppenderConfig{
			DB:              db,
			Level:           level,
			AutoCreateTable: true,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		appenders = append(appenders, da)
	}

	if cfg.Console {
		appenders = append(appenders, audit.NewZerologAppender(log.With().Str("component", "audit").Logger(), level))
	}

	return audit.NewLogger(audit.LoggerConfig{
		DefaultUser: security.CurrentUser(),
		OnError: func(err error) {
			log.Warn().Err(err).Msg("audit write failed")
		},
	}, appenders...), nil
}
