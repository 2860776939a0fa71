package apperr

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибку уровня сервиса. HTTP слой мапит Kind в статус
// код напрямую — текст сообщения никогда не анализируется.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindInsufficientStorage
	KindNotImplemented
	KindUnavailable
)

// FieldError — ошибка валидации конкретного поля запроса.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error — типизированная ошибка сервиса.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func InsufficientStorage(code, message string) *Error {
	return New(KindInsufficientStorage, code, message)
}

func NotImplemented(code, message string) *Error {
	return New(KindNotImplemented, code, message)
}

func Unavailable(code, message string) *Error {
	return New(KindUnavailable, code, message)
}

// WithFields прикрепляет field-level ошибки валидации.
func (e *Error) WithFields(fields ...FieldError) *Error {
	e.Fields = append(e.Fields, fields...)
	return e
}

// As извлекает *Error из цепочки ошибок.
func As(err error) (*Error, bool) {
	var typed *Error
	ok := errors.As(err, &typed)
	return typed, ok
}

// KindOf возвращает Kind ошибки (KindInternal для нетипизированных).
func KindOf(err error) Kind {
	if typed, ok := As(err); ok {
		return typed.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
