// Package export сериализует результат запроса в выгружаемый файл.
//
// Форматы: csv, excel (xlsx), json. Полезная нагрузка может быть сжата
// zstd; контрольная сумма xxh3 считается по итоговым байтам.
//
// Использование:
//
//	exp := export.New(export.Options{})
//	payload, err := exp.Export(ctx, result, export.FormatCSV)
//	name := export.FileName("orders", export.Scope{Filtered: true}, payload, time.Now())
package export
