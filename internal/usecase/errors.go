package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ecorder/internal/logging"

	"go.uber.org/zap"
)

type ErrorCode string

const (
	CodeNotFound               ErrorCode = "NOT_FOUND"
	CodeValidation             ErrorCode = "VALIDATION_ERROR"
	CodeInsufficientStock      ErrorCode = "INSUFFICIENT_STOCK"
	CodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	CodeDuplicateResource      ErrorCode = "DUPLICATE_RESOURCE"
	CodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	CodeForbidden              ErrorCode = "FORBIDDEN"
	CodeInternal               ErrorCode = "INTERNAL"
)

// handlerはこれをそのままJSONにする
type HTTPError struct {
	Status  int
	Code    ErrorCode
	Message string
	Details map[string]interface{}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// statusからcodeを決める
func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusConflict:
		return CodeDuplicateResource
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	default:
		return CodeInternal
	}
}

func errNotFound(what string) error {
	return &HTTPError{Status: http.StatusNotFound, Code: CodeNotFound, Message: what + " not found"}
}

func errValidation(msg string) error {
	return &HTTPError{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func errDuplicate(msg string) error {
	return &HTTPError{Status: http.StatusConflict, Code: CodeDuplicateResource, Message: msg}
}

func errUnauthorized() error {
	return &HTTPError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "unauthorized"}
}

func errInsufficientStock(productID, available, requested int64) error {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Code:    CodeInsufficientStock,
		Message: fmt.Sprintf("Not enough stock. Available: %d, Requested: %d", available, requested),
		Details: map[string]interface{}{
			"product_id": productID,
			"available":  available,
			"requested":  requested,
		},
	}
}

func errInvalidTransition(msg string) error {
	return &HTTPError{Status: http.StatusConflict, Code: CodeInvalidStateTransition, Message: msg}
}

// 想定外のエラー。原因はログにだけ残し、クライアントには中身を出さない
func internalError(ctx context.Context, op string, err error) error {
	logging.FromContext(ctx).Error(op+" failed", zap.Error(err))
	return &HTTPError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error"}
}

// WithinTxの戻り値用。HTTPErrorならそのまま、それ以外（commit失敗など）はinternal
func txError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := AsHTTPError(err); ok {
		return he
	}
	return internalError(ctx, op, err)
}
