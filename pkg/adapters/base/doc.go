// Package base предоставляет общую часть коннекторов всех диалектов.
//
// Helper реализует политику "подключение на вызов": каждая операция
// открывает *sql.DB через Opener диалекта, выполняет работу и закрывает
// его. Каждая операция проходит через Observe: zerolog, audit.Logger,
// Prometheus метрики.
//
// Диалект поставляет только свое:
//   - Opener (DSN и драйвер)
//   - Classifier (коды ошибок СУБД → adapters.Kind)
//   - запросы каталога (таблицы, колонки) и префикс EXPLAIN
//
// ScanResult и NormalizeValue приводят значения драйверов к
// nil/int64/float64/string/bool для экспорта.
package base
