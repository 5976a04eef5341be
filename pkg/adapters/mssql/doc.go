// Package mssql - коннектор к Microsoft SQL Server (go-mssqldb).
//
// Особенности:
//   - перед рукопожатием TDS выполняется TCP проба хоста
//   - схема по умолчанию dbo, задается Config.Schema
//   - Explain включает SET SHOWPLAN_ALL на выделенном подключении:
//     сервер возвращает план и не выполняет запрос
//   - TIMESTAMP/ROWVERSION отдаются компактной hex строкой,
//     UNIQUEIDENTIFIER - канонической строкой GUID
//
// Использование:
//
//	import (
//	    "github.com/ruslano69/tablegrab/pkg/adapters"
//	    _ "github.com/ruslano69/tablegrab/pkg/adapters/mssql"
//	)
//
//	conn, err := adapters.New(ctx, adapters.Config{
//	    Type:     "mssql",
//	    Host:     "sql01",
//	    Database: "Sales",
//	    User:     "reader",
//	    Password: "...",
//	}, adapters.DefaultOptions())
package mssql
