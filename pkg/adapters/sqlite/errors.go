package sqlite

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ruslano69/tablegrab/pkg/adapters"
)

// classify - коды SQLite и тексты "no such ..." в категории
func classify(err error) (adapters.Kind, bool) {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_CORRUPT:
			return adapters.KindConfiguration, true
		case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM:
			return adapters.KindAuthentication, true
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such table"),
		strings.Contains(msg, "no such column"):
		return adapters.KindSchema, true
	case strings.Contains(msg, "file is not a database"):
		return adapters.KindConfiguration, true
	}
	return "", false
}
