package mssql

import (
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
)

// convertValue - типы SQL Server, которые драйвер отдает как []byte
func convertValue(col *sql.ColumnType, v any) (any, bool) {
	data, isBytes := v.([]byte)
	if !isBytes || col == nil {
		return nil, false
	}

	switch strings.ToUpper(col.DatabaseTypeName()) {
	case "TIMESTAMP", "ROWVERSION":
		return rowVersionHex(data), true
	case "UNIQUEIDENTIFIER":
		var id mssql.UniqueIdentifier
		if err := id.Scan(data); err != nil {
			return nil, false
		}
		return id.String(), true
	case "BINARY", "VARBINARY", "IMAGE":
		return "0x" + strings.ToUpper(hex.EncodeToString(data)), true
	}
	return nil, false
}

// rowVersionHex - 8-байтовый rowversion (big-endian) в hex без ведущих нулей.
// Нулевое значение - "00", длина не 8 - "00", пустой срез - "".
//
//	00 00 00 00 18 7F 86 3C -> 187F863C
func rowVersionHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) != 8 {
		return "00"
	}

	value := binary.BigEndian.Uint64(data)
	if value == 0 {
		return "00"
	}

	const hexChars = "0123456789ABCDEF"
	var buf [16]byte
	pos := len(buf)
	for value > 0 {
		pos--
		buf[pos] = hexChars[value&0x0F]
		value >>= 4
	}
	return string(buf[pos:])
}
