package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ruslano69/tablegrab/pkg/adapters"
)

// classify - SQLSTATE классы PostgreSQL в категории
func classify(err error) (adapters.Kind, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "28"), pgErr.Code == "42501":
			return adapters.KindAuthentication, true
		case pgErr.Code == "3D000", pgErr.Code == "3F000",
			pgErr.Code == "42P01", pgErr.Code == "42703":
			return adapters.KindSchema, true
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return adapters.KindConnectivity, true
		case pgErr.Code == "0A000":
			return adapters.KindProtocol, true
		}
		return "", false
	}

	var parseErr *pgconn.ParseConfigError
	if errors.As(err, &parseErr) {
		return adapters.KindConfiguration, true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "server refused tls"),
		strings.Contains(msg, "tls error"),
		strings.Contains(msg, "unsupported authentication"):
		return adapters.KindProtocol, true
	}
	return "", false
}
