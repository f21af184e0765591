package model

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidProductRef = errors.New("invalid product reference")

type productRefKind int

const (
	productRefByID productRefKind = iota + 1
	productRefBySlug
)

// 商品の指定方法（IDかslugのどちらか）
// APIの入口で一度だけ解釈して、以降はこの型で扱う
type ProductRef struct {
	kind productRefKind
	id   int64
	slug string
}

func ProductRefByID(id int64) ProductRef {
	return ProductRef{kind: productRefByID, id: id}
}

// slugは小文字に正規化する
func ProductRefBySlug(slug string) ProductRef {
	return ProductRef{kind: productRefBySlug, slug: strings.ToLower(strings.TrimSpace(slug))}
}

// 数字だけならID、それ以外はslug
func ParseProductRef(raw string) (ProductRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ProductRef{}, ErrInvalidProductRef
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id <= 0 {
			return ProductRef{}, ErrInvalidProductRef
		}
		return ProductRefByID(id), nil
	}
	return ProductRefBySlug(s), nil
}

func (r ProductRef) IsZero() bool { return r.kind == 0 }
func (r ProductRef) IsID() bool   { return r.kind == productRefByID }
func (r ProductRef) IsSlug() bool { return r.kind == productRefBySlug }
func (r ProductRef) ID() int64    { return r.id }
func (r ProductRef) Slug() string { return r.slug }

func (r ProductRef) String() string {
	if r.IsID() {
		return strconv.FormatInt(r.id, 10)
	}
	return r.slug
}

// 商品がこの指定に当てはまるか
func (r ProductRef) Matches(p Product) bool {
	switch r.kind {
	case productRefByID:
		return p.ID == r.id
	case productRefBySlug:
		return strings.ToLower(p.Slug) == r.slug
	}
	return false
}
