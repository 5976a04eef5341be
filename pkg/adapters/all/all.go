// Package all регистрирует все встроенные коннекторы в фабрике adapters.
//
//	import _ "github.com/ruslano69/tablegrab/pkg/adapters/all"
package all

import (
	_ "github.com/ruslano69/tablegrab/pkg/adapters/mssql"
	_ "github.com/ruslano69/tablegrab/pkg/adapters/mysql"
	_ "github.com/ruslano69/tablegrab/pkg/adapters/postgres"
	_ "github.com/ruslano69/tablegrab/pkg/adapters/sqlite"
)
