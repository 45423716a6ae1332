package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 存储层找不到记录
	ErrNotFound = errors.New("记录不存在")
	// ErrBudgetNotFound 预算不存在
	ErrBudgetNotFound = fmt.Errorf("预算%w", ErrNotFound)
	// ErrExpenseNotFound 支出记录不存在（或不属于该预算）
	ErrExpenseNotFound = fmt.Errorf("支出%w", ErrNotFound)
	// ErrPermission 预算存在但不属于当前用户
	ErrPermission = errors.New("无权操作该预算")
)

// ValidationError 输入或业务规则校验失败
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidationError 创建校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsValidationError 判断 err 链中是否有 ValidationError
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
