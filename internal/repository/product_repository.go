package repository

import (
	"context"

	"ecshop/internal/domain/model"
)

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	// slugは小文字で比較する
	FindBySlug(ctx context.Context, slug string) (model.Product, error)
	// まとめて1回で引く。見つからないものは結果に含まれない
	FindByRefs(ctx context.Context, refs []model.ProductRef) ([]model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
}
