package mysql

import (
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/ruslano69/tablegrab/pkg/adapters"
)

// Коды ошибок сервера MySQL
const (
	errDBAccessDenied     = 1044
	errAccessDenied       = 1045
	errBadDB              = 1049
	errBadTable           = 1051
	errBadField           = 1054
	errTableAccessDenied  = 1142
	errNoSuchTable        = 1146
	errNotSupportedAuth   = 1251
	errAccessDeniedNoPass = 1698
)

// classify - номера MySQLError и ошибки рукопожатия драйвера
func classify(err error) (adapters.Kind, bool) {
	var merr *mysql.MySQLError
	if errors.As(err, &merr) {
		switch merr.Number {
		case errDBAccessDenied, errAccessDenied, errAccessDeniedNoPass, errTableAccessDenied:
			return adapters.KindAuthentication, true
		case errBadDB, errBadTable, errBadField, errNoSuchTable:
			return adapters.KindSchema, true
		case errNotSupportedAuth:
			return adapters.KindProtocol, true
		}
		return "", false
	}

	switch {
	case errors.Is(err, mysql.ErrOldPassword),
		errors.Is(err, mysql.ErrCleartextPassword),
		errors.Is(err, mysql.ErrNativePassword),
		errors.Is(err, mysql.ErrUnknownPlugin),
		errors.Is(err, mysql.ErrMalformPkt),
		errors.Is(err, mysql.ErrNoTLS):
		return adapters.KindProtocol, true
	case errors.Is(err, mysql.ErrInvalidConn), errors.Is(err, driver.ErrBadConn):
		return adapters.KindConnectivity, true
	}
	return "", false
}
