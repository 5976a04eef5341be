package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/audit"
)

// Сообщения вердикта
const (
	MsgValid         = "Query is valid"
	MsgMustBeSelect  = "Query must start with SELECT"
	msgErrorPrefix   = "Query error: "
	msgForbiddenTmpl = "'%s' operations are not allowed"
)

// ProhibitedKeywords - запрещенные слова в порядке проверки.
//
// Поиск идет по подстроке в запросе в нижнем регистре, без токенизации:
// SELECT updated_at FROM t тоже отклоняется (совпадение "update").
var ProhibitedKeywords = []string{"insert", "update", "delete", "drop", "create", "alter", "truncate"}

// Result - вердикт проверки. Промежуточных состояний нет.
type Result struct {
	OK      bool
	Message string
}

// DryRunner выполняет запрос через план выполнения, не читая строк.
// adapters.Connector удовлетворяет этому интерфейсу.
type DryRunner interface {
	Explain(ctx context.Context, query string) error
}

// Options - зависимости валидатора. Нулевое значение допустимо.
type Options struct {
	Logger zerolog.Logger
	Audit  audit.Logger

	// Strict дополнительно запрещает несколько команд через ';'
	// и SQL комментарии (-- и /* */)
	Strict bool
}

// SQLValidator проверяет произвольный SQL перед выполнением.
//
// Это дополнительная защита, а не граница безопасности: SELECT с
// пользовательскими функциями, меняющими данные, проверку пройдет.
type SQLValidator struct {
	log    zerolog.Logger
	audit  audit.Logger
	strict bool
}

// NewSQLValidator создает валидатор
func NewSQLValidator(opts Options) *SQLValidator {
	if opts.Audit == nil {
		opts.Audit = audit.NewNullLogger()
	}
	return &SQLValidator{
		log:    opts.Logger,
		audit:  opts.Audit,
		strict: opts.Strict,
	}
}

// Validate проверяет запрос:
//  1. после trim и lower запрос начинается с "select"
//  2. нет ни одного слова из ProhibitedKeywords (подстрока)
//  3. в строгом режиме - одна команда и нет комментариев
//  4. dry-run через runner.Explain; ошибка СУБД попадает в Message как есть
//
// Любая паника внутри превращается в отказ, наружу не выходит.
func (v *SQLValidator) Validate(ctx context.Context, runner DryRunner, raw string) (res Result) {
	started := time.Now()
	audited := false
	defer func() {
		if r := recover(); r != nil {
			res = Result{Message: fmt.Sprintf("%s%v", msgErrorPrefix, r)}
			audited = false
		}
		if !res.OK && !audited {
			v.report(ctx, raw, started, res)
		}
	}()

	normalized := strings.ToLower(strings.TrimSpace(raw))

	if !strings.HasPrefix(normalized, "select") {
		return Result{Message: MsgMustBeSelect}
	}

	if kw := findProhibited(normalized); kw != "" {
		return Result{Message: fmt.Sprintf(msgForbiddenTmpl, strings.ToUpper(kw))}
	}

	if v.strict {
		if msg := checkStrict(raw); msg != "" {
			return Result{Message: msg}
		}
	}

	if runner == nil {
		return Result{Message: msgErrorPrefix + "no connector"}
	}
	audited = true
	if err := runner.Explain(ctx, raw); err != nil {
		return Result{Message: msgErrorPrefix + adapters.Message(err)}
	}

	return Result{OK: true, Message: MsgValid}
}

// IsStrict возвращает режим валидатора
func (v *SQLValidator) IsStrict() bool {
	return v.strict
}

// findProhibited возвращает первое найденное запрещенное слово или ""
func findProhibited(normalized string) string {
	for _, kw := range ProhibitedKeywords {
		if strings.Contains(normalized, kw) {
			return kw
		}
	}
	return ""
}

// checkStrict - одна команда (';' только в конце) и нет комментариев
func checkStrict(raw string) string {
	trimmed := strings.TrimSpace(raw)
	switch n := strings.Count(trimmed, ";"); {
	case n > 1:
		return "multiple statements are not allowed"
	case n == 1 && !strings.HasSuffix(trimmed, ";"):
		return "semicolon allowed only at the end of query"
	}

	if strings.Contains(raw, "--") {
		return "SQL comments (--) are not allowed"
	}
	if strings.Contains(raw, "/*") || strings.Contains(raw, "*/") {
		return "SQL comments (/* */) are not allowed"
	}
	return ""
}

// report пишет отказ в аудит и лог. Ошибки dry-run записывает сам коннектор.
func (v *SQLValidator) report(ctx context.Context, raw string, started time.Time, res Result) {
	entry := audit.NewEntry(audit.OpValidate, audit.StatusFailure).
		WithQuery(raw).
		WithDuration(time.Since(started)).
		WithError(&adapters.Error{Kind: adapters.KindQuery, Op: "validate", Msg: res.Message})
	if err := v.audit.Log(ctx, entry); err != nil {
		v.log.Warn().Err(err).Msg("failed to write audit entry")
	}
	v.log.Debug().Str("verdict", res.Message).Msg("query rejected")
}
