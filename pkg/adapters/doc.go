/*
Package adapters предоставляет единый контракт коннектора к реляционным СУБД.

# Архитектура

	┌─────────────────────────────────────────┐
	│  session / cmd                          │
	│  - filter.QuerySpec → SQL               │
	│  - security.Validate(raw SQL)           │
	└─────────────────┬───────────────────────┘
	                  │
	┌─────────────────▼───────────────────────┐
	│  Connector interface                    │  ← pkg/adapters/adapter.go
	│    Connect / Disconnect                 │
	│    ListTables / TableMetadata           │
	│    Execute / Explain                    │
	└─────────────────┬───────────────────────┘
	                  │
	   ┌──────────┬───┴──────┬──────────┐
	┌──▼────┐ ┌───▼───┐ ┌────▼─────┐ ┌──▼────┐
	│SQLite │ │ MySQL │ │PostgreSQL│ │MS SQL │
	└───────┘ └───────┘ └──────────┘ └───────┘

# Подключение на вызов

Коннектор не держит открытого подключения. Каждый вызов, который читает
данные, открывает *sql.DB, выполняет работу и закрывает его. Connect только
проверяет доступность, Disconnect идемпотентен и не влияет на последующие
Execute.

# Ошибки

Все ошибки - *Error с категорией Kind:

	configuration   неверный дескриптор, неизвестный тип, нет файла
	connectivity    хост недоступен (TCP проба до логина)
	authentication  учетные данные отклонены
	schema          база, таблица или колонка не существует
	protocol        несовместимый механизм аутентификации
	query           ошибка SQL при выполнении

Повторов нет. Копия каждой ошибки уходит в audit.Logger из Options.

# Регистрация

Пакеты диалектов регистрируются в init():

	import (
	    "github.com/ruslano69/tablegrab/pkg/adapters"
	    _ "github.com/ruslano69/tablegrab/pkg/adapters/all"
	)

	conn, err := adapters.New(ctx, adapters.Config{Type: "sqlite", Path: "app.db"}, adapters.DefaultOptions())

adapters.Available() возвращает только типы, драйвер которых слинкован.
*/
package adapters
