package mssql

import (
	"errors"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/ruslano69/tablegrab/pkg/adapters"
)

// Номера ошибок SQL Server
const (
	errInvalidColumn    = 207
	errInvalidObject    = 208
	errPermissionDenied = 229
	errColumnPermission = 230
	errCannotOpenDB     = 4060
	errLoginFailed      = 18456
	errPasswordExpired  = 18488
)

// classify - номера mssql.Error и тексты ошибок рукопожатия TDS
func classify(err error) (adapters.Kind, bool) {
	if number, ok := errorNumber(err); ok {
		switch number {
		case errLoginFailed, errPasswordExpired, errPermissionDenied, errColumnPermission:
			return adapters.KindAuthentication, true
		case errCannotOpenDB, errInvalidObject, errInvalidColumn:
			return adapters.KindSchema, true
		}
		return "", false
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "tls handshake"),
		strings.Contains(msg, "encryption"),
		strings.Contains(msg, "prelogin"),
		strings.Contains(msg, "unexpected packet"):
		return adapters.KindProtocol, true
	case strings.Contains(msg, "login error"):
		return adapters.KindAuthentication, true
	}
	return "", false
}

func errorNumber(err error) (int32, bool) {
	var serr mssql.Error
	if errors.As(err, &serr) {
		return serr.Number, true
	}
	var perr *mssql.Error
	if errors.As(err, &perr) && perr != nil {
		return perr.Number, true
	}
	return 0, false
}
