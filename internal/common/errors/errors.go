// Package errors 业务错误码。AppError 按 Code 判等，
// WithMessage、WithError 派生的错误仍可用 errors.Is 匹配原始哨兵
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError 携带对外错误码与消息，Err 仅用于日志
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// WithMessage 替换对外消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{Code: e.Code, Message: message, Err: e.Err}
}

// WithError 附加底层错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Err: err}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 解出链上的 AppError，非业务错误包装为 ErrUnknown
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// IsRetryable 调用方应重跑整笔事务
func IsRetryable(err error) bool {
	return stderrors.Is(err, ErrConcurrencyConflict)
}
