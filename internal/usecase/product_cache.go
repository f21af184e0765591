package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"ecshop/internal/cache"
	"ecshop/internal/domain/model"
)

// 商品詳細のキャッシュ。キーはidで持ち、slugはidへの対応だけ持つ
type ProductCache struct {
	c   cache.Cache
	ttl time.Duration
	log *slog.Logger
}

func NewProductCache(c cache.Cache, ttl time.Duration, log *slog.Logger) *ProductCache {
	return &ProductCache{c: c, ttl: ttl, log: log}
}

func productIDKey(id int64) string { return "product:id:" + strconv.FormatInt(id, 10) }

func productSlugKey(slug string) string { return "product:slug:" + slug }

func (pc *ProductCache) Get(ctx context.Context, ref model.ProductRef) (model.Product, bool) {
	id := ref.ID()
	if ref.IsSlug() {
		raw, err := pc.c.Get(ctx, productSlugKey(ref.Slug()))
		if err != nil {
			return model.Product{}, false
		}
		id, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return model.Product{}, false
		}
	}

	raw, err := pc.c.Get(ctx, productIDKey(id))
	if err != nil {
		return model.Product{}, false
	}
	var p model.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Product{}, false
	}
	return p, true
}

// 失敗してもログだけ
func (pc *ProductCache) Set(ctx context.Context, p model.Product) {
	raw, err := json.Marshal(p)
	if err != nil {
		pc.log.Warn("product cache marshal failed", "product_id", p.ID, "err", err)
		return
	}
	if err := pc.c.Set(ctx, productIDKey(p.ID), raw, pc.ttl); err != nil {
		pc.log.Warn("product cache set failed", "product_id", p.ID, "err", err)
		return
	}
	if p.Slug != "" {
		_ = pc.c.Set(ctx, productSlugKey(p.Slug), []byte(strconv.FormatInt(p.ID, 10)), pc.ttl)
	}
}

// 在庫や商品を書き換えたら呼ぶ
func (pc *ProductCache) Invalidate(ctx context.Context, productIDs ...int64) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, productIDKey(id))
	}
	if err := pc.c.Delete(ctx, keys...); err != nil {
		pc.log.Warn("product cache invalidate failed", "product_ids", productIDs, "err", err)
	}
}
