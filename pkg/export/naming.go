package export

import (
	"fmt"
	"time"
)

// TimestampLayout - метка времени в имени файла
const TimestampLayout = "20060102_150405"

// Scope описывает, какой срез таблицы выгружен
type Scope struct {
	// Range - выгружен диапазон строк начиная с Offset (0-based)
	Range  bool
	Offset int

	// Filtered - произвольный SQL или визуальный фильтр
	Filtered bool
}

// Suffix - "_rows_<from>to<to>" для диапазона, "_filtered" для фильтра, иначе ""
func (s Scope) Suffix(rows int) string {
	switch {
	case s.Range:
		return fmt.Sprintf("_rows_%dto%d", s.Offset+1, s.Offset+rows)
	case s.Filtered:
		return "_filtered"
	default:
		return ""
	}
}

// FileName - <table><suffix>_<YYYYMMDD_HHMMSS>.<ext>
func FileName(table string, scope Scope, p *Payload, now time.Time) string {
	return fmt.Sprintf("%s%s_%s.%s", table, scope.Suffix(p.Rows), now.Format(TimestampLayout), p.Extension())
}
