package pkg

import (
	"errors"
	"net/http"
)

// Kind 错误分类，handler 层据此映射 HTTP 状态码
type Kind uint8

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInvalidArgument
	KindInvalidOperation
	KindConflict
	KindPaymentIncomplete
	KindInvalidState
	KindPersistence
)

var kindNames = map[Kind]string{
	KindInternal:          "internal",
	KindUnauthenticated:   "unauthenticated",
	KindForbidden:         "forbidden",
	KindNotFound:          "not found",
	KindInvalidArgument:   "invalid argument",
	KindInvalidOperation:  "invalid operation",
	KindConflict:          "conflict",
	KindPaymentIncomplete: "payment incomplete",
	KindInvalidState:      "invalid state",
	KindPersistence:       "persistence error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error carries a Kind plus a caller-facing message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare sentinels below by kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrInvalidOperation  = &Error{Kind: KindInvalidOperation}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrPaymentIncomplete = &Error{Kind: KindPaymentIncomplete}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrPersistence       = &Error{Kind: KindPersistence}
)

func NewError(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func WrapError(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf 未分类的错误统一视为 internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument, KindInvalidOperation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindPaymentIncomplete:
		return http.StatusPaymentRequired
	case KindInvalidState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage 只返回 Msg，cause 仅用于日志
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.String()
}
