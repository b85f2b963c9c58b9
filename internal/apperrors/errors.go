package apperrors

import (
	"errors"
	"net/http"
)

// Kind 错误类别，封闭集合
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindDuplicateCode
	KindNotFound
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicateCode:
		return "duplicate_code"
	case KindNotFound:
		return "not_found"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// HTTPStatus 返回该类别对应的响应状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindDuplicateCode:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error 业务错误
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation 输入校验失败
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// DuplicateCode 短码已存在
func DuplicateCode(cause error) *Error {
	return &Error{Kind: KindDuplicateCode, Message: "Code already exists", Cause: cause}
}

// NotFound 链接不存在
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Store 存储层故障，Message 不对外暴露
func Store(op string, cause error) *Error {
	return &Error{Kind: KindStore, Message: op, Cause: cause}
}

// KindOf 返回 err 链上第一个 *Error 的类别
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool    { return KindOf(err) == KindValidation }
func IsDuplicateCode(err error) bool { return KindOf(err) == KindDuplicateCode }
func IsNotFound(err error) bool      { return KindOf(err) == KindNotFound }

// MessageOf 返回面向客户端的错误信息，不包含底层原因
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
