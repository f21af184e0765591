package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反（注文番号の衝突など）
	ErrDuplicateKey = errors.New("duplicate key")
)
