package adapters

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/ruslano69/tablegrab/pkg/core/dialect"
)

// Kind - категория ошибки коннектора
type Kind string

const (
	// KindConfiguration - неверные поля дескриптора, неизвестный тип, нет файла
	KindConfiguration Kind = "configuration"

	// KindConnectivity - хост или порт недоступен
	KindConnectivity Kind = "connectivity"

	// KindAuthentication - учетные данные отклонены или не хватает прав
	KindAuthentication Kind = "authentication"

	// KindSchema - база, таблица или колонка не существует
	KindSchema Kind = "schema"

	// KindProtocol - несовместимый механизм аутентификации клиента и сервера
	KindProtocol Kind = "protocol"

	// KindQuery - отказ валидатора или ошибка выполнения SQL
	KindQuery Kind = "query"

	// KindUnknown - не удалось классифицировать
	KindUnknown Kind = "unknown"
)

var (
	// ErrUnknownDialect - тип СУБД не зарегистрирован
	ErrUnknownDialect = errors.New("unknown database type")

	// ErrFileNotFound - файл SQLite не существует
	ErrFileNotFound = errors.New("database file not found")

	// ErrNotConnected зарезервирована: коннекторы с подключением на вызов
	// ее не возвращают
	ErrNotConnected = errors.New("connector is not connected")
)

// Error - классифицированная ошибка коннектора.
// Msg - сообщение СУБД или валидатора без изменений.
type Error struct {
	Kind    Kind
	Dialect string
	Op      string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	prefix := e.Op
	if e.Dialect != "" {
		prefix = e.Dialect + " " + e.Op
	}

	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s error: %s", prefix, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind - категория строкой, используется audit без импорта adapters
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

// Is позволяет сравнивать по категории: errors.Is(err, &Error{Kind: KindSchema})
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind != "" && t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// KindOf возвращает категорию ошибки; для nil - пустую строку
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message возвращает сообщение СУБД без префиксов
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}

// Classifier отображает ошибку драйвера в категорию.
// ok == false - драйвер ошибку не распознал.
type Classifier func(err error) (kind Kind, ok bool)

// Classify строит *Error. Сначала спрашивается драйверный классификатор,
// затем общие правила (сеть, таймауты, файлы); fallback - категория по умолчанию.
func Classify(d dialect.Dialect, op string, err error, classify Classifier, fallback Kind) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	kind, ok := Kind(""), false
	if classify != nil {
		kind, ok = classify(err)
	}
	if !ok {
		kind, ok = classifyCommon(err)
	}
	if !ok {
		kind = fallback
	}

	return &Error{Kind: kind, Dialect: string(d), Op: op, Msg: err.Error(), Err: err}
}

func classifyCommon(err error) (Kind, bool) {
	var netErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &netErr), errors.As(err, &dnsErr):
		return KindConnectivity, true
	case errors.Is(err, context.DeadlineExceeded):
		return KindConnectivity, true
	case errors.Is(err, os.ErrNotExist), errors.Is(err, ErrFileNotFound):
		return KindConfiguration, true
	}
	return "", false
}
