package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"ecshop/internal/domain/model"
)

const (
	// 1注文あたりの行数上限
	MaxCartLines = 100
	// 1行あたりの数量上限
	MaxQuantity = 999
)

// 入力が不正
var ErrInvalidInput = errors.New("invalid input")

var (
	postalCodeRe = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z \-]{1,18}[0-9A-Za-z]$`)
	codeRe       = regexp.MustCompile(`^[0-9A-Za-z\-_]{1,64}$`)
)

// どの項目がダメだったか
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

func invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// 行数と数量の上限。在庫・価格はusecase側
func ValidateCartQuantities(quantities []int64) error {
	if len(quantities) > MaxCartLines {
		return invalid("cartItems", fmt.Sprintf("must have at most %d lines", MaxCartLines))
	}
	for _, q := range quantities {
		if q > MaxQuantity {
			return invalid("quantity", fmt.Sprintf("must be <= %d", MaxQuantity))
		}
	}
	return nil
}

// 空のときはusecaseの必須チェックに任せる
func ValidateShippingAddress(a model.ShippingAddress) error {
	if err := maxLen("street", a.Street, 255); err != nil {
		return err
	}
	if err := maxLen("city", a.City, 255); err != nil {
		return err
	}
	if err := maxLen("state", a.State, 100); err != nil {
		return err
	}
	if err := maxLen("country", a.Country, 100); err != nil {
		return err
	}
	pc := strings.TrimSpace(a.PostalCode)
	if pc != "" && !postalCodeRe.MatchString(pc) {
		return invalid("postal_code", "has invalid format")
	}
	return nil
}

// クーポン・ギフトカードのコード。空はOK
func ValidateCode(field, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	if !codeRe.MatchString(code) {
		return invalid(field, "has invalid format")
	}
	return nil
}

func maxLen(field, v string, n int) error {
	if utf8.RuneCountInString(strings.TrimSpace(v)) > n {
		return invalid(field, fmt.Sprintf("must be at most %d characters", n))
	}
	return nil
}
