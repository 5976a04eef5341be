// tablegrab - выгрузка таблицы или запроса из SQLite, MySQL, PostgreSQL и MS SQL
// в CSV, Excel или JSON по описанию из job-файла.
//
// Usage:
//
//	tablegrab <job.yaml>
//	tablegrab init <sqlite|mysql|postgres|mssql>
//
// init пишет пример job-файла в job.yaml текущей директории.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	_ "github.com/ruslano69/tablegrab/pkg/adapters/all"
	"github.com/ruslano69/tablegrab/pkg/config"
	"github.com/ruslano69/tablegrab/pkg/metrics"
)

func main() {
	if len(os.Args) == 3 && os.Args[1] == "init" {
		createJobTemplate(os.Args[2])
		return
	}
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: tablegrab <job.yaml>")
		fmt.Fprintln(os.Stderr, "       tablegrab init <sqlite|mysql|postgres|mssql>")
		os.Exit(2)
	}

	job, err := config.Load(os.Args[1])
	if err != nil {
		fatal(err)
	}

	log := newLogger(job.Log)
	log.Info().Strs("dialects", adapters.Available()).Msg("available dialects")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditLog, err := newAuditLogger(ctx, job.Audit, log)
	if err != nil {
		fatal(err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	path, err := run(ctx, job, runDeps{
		log:     log,
		audit:   auditLog,
		metrics: collector,
		now:     time.Now,
	})
	logMetrics(log, reg)
	if closeErr := auditLog.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("failed to close audit log")
	}
	if err != nil {
		fatal(err)
	}

	fmt.Println(path)
}

// newLogger - console или json лог в stderr
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// logMetrics выводит счетчики операций на уровне debug
func logMetrics(log zerolog.Logger, reg prometheus.Gatherer) {
	families, err := reg.Gather()
	if err != nil {
		log.Debug().Err(err).Msg("failed to gather metrics")
		return
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			ev := log.Debug().Str("metric", mf.GetName())
			for _, lp := range m.GetLabel() {
				ev = ev.Str(lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				ev = ev.Float64("value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				ev = ev.Uint64("count", m.GetHistogram().GetSampleCount()).
					Float64("sum_seconds", m.GetHistogram().GetSampleSum())
			}
			ev.Msg("metric")
		}
	}
}

func createJobTemplate(dbType string) {
	if err := config.Save("job.yaml", config.Sample(dbType)); err != nil {
		fatal(err)
	}
	fmt.Printf("✓ Created sample %s job: job.yaml\n", dbType)
	fmt.Println("Edit the file with your database settings and run:")
	fmt.Println("  tablegrab job.yaml")
}

func fatal(err error) {
	if kind := adapters.KindOf(err); kind != adapters.KindUnknown {
		fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", kind, adapters.Message(err))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
