package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// エラーコード（レスポンスのcodeに入る）
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeDuplicatePayment  = "DUPLICATE_PAYMENT"
	CodeAlreadyPaid       = "ALREADY_PAID"
	CodeProvider          = "PROVIDER_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidTransition = "INVALID_TRANSITION"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
	// ログ用の原因。レスポンスには出さない
	Err error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

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

// 同じエラーか（テストで使う）
func IsCode(err error, code string) bool {
	he, ok := AsHTTPError(err)
	return ok && he.Code == code
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeInvalidTransition
	case http.StatusBadGateway:
		return CodeProvider
	}
	return CodeInternal
}

func ErrValidation(message string) error {
	return &HTTPError{Status: http.StatusBadRequest, Code: CodeValidation, Message: message}
}

func ErrNotFound(what string) error {
	return &HTTPError{Status: http.StatusNotFound, Code: CodeNotFound, Message: what + " not found"}
}

// 商品名を入れる
func ErrInsufficientStock(productName string) error {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Code:    CodeInsufficientStock,
		Message: "insufficient stock for " + productName,
	}
}

func ErrDuplicatePayment() error {
	return &HTTPError{Status: http.StatusBadRequest, Code: CodeDuplicatePayment, Message: "payment already exists for this order"}
}

func ErrAlreadyPaid() error {
	return &HTTPError{Status: http.StatusBadRequest, Code: CodeAlreadyPaid, Message: "order already paid"}
}

func ErrProvider(provider string, cause error) error {
	return &HTTPError{Status: http.StatusBadGateway, Code: CodeProvider, Message: provider + " payment creation failed", Err: cause}
}

func ErrInvalidTransition(from, to string) error {
	return &HTTPError{
		Status:  http.StatusConflict,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot change status from %s to %s", from, to),
	}
}

func ErrUnauthorized() error {
	return &HTTPError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "unauthorized"}
}

func ErrForbidden() error {
	return &HTTPError{Status: http.StatusForbidden, Code: CodeForbidden, Message: "forbidden"}
}

func ErrInternal(cause error) error {
	return &HTTPError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "db error", Err: cause}
}
