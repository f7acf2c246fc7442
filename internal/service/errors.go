package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ServiceError 业务层错误，handler 据此决定 HTTP 状态码
type ServiceError struct {
	Type       string
	Message    string
	StatusCode int
	Cause      error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

func NewValidationError(message string, cause error) *ServiceError {
	return &ServiceError{Type: "VALIDATION_ERROR", Message: message, StatusCode: http.StatusBadRequest, Cause: cause}
}

func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{Type: "NOT_FOUND", Message: message, StatusCode: http.StatusNotFound}
}

func NewForbiddenError(message string) *ServiceError {
	return &ServiceError{Type: "FORBIDDEN", Message: message, StatusCode: http.StatusForbidden}
}

func NewConflictError(message string) *ServiceError {
	return &ServiceError{Type: "CONFLICT", Message: message, StatusCode: http.StatusConflict}
}

func NewInternalError(message string, cause error) *ServiceError {
	return &ServiceError{Type: "INTERNAL_ERROR", Message: message, StatusCode: http.StatusInternalServerError, Cause: cause}
}

// StatusCode 非 ServiceError 一律按 500 处理
func StatusCode(err error) int {
	var se *ServiceError
	if errors.As(err, &se) && se.StatusCode > 0 {
		return se.StatusCode
	}
	return http.StatusInternalServerError
}

// PublicMessage 返回可展示给调用方的信息，内部错误不暴露细节
func PublicMessage(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		if se.StatusCode >= http.StatusInternalServerError {
			return "internal error"
		}
		return se.Message
	}
	return "internal error"
}

// 副作用类型
const (
	SideEffectPoints       = "points"
	SideEffectNotification = "notification"
)

// SideEffectFailure 主操作成功后的附带操作失败，只记录不回滚
type SideEffectFailure struct {
	Kind    string `json:"kind"`
	IssueID string `json:"issueId,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Error   string `json:"error"`
}

var validate = validator.New()

// validateStruct 校验输入，失败时合并字段错误
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError("invalid input", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return NewValidationError(strings.Join(parts, "; "), err)
}
