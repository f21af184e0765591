package repository

import (
	"context"
	"time"

	"ecshop/internal/domain/model"
)

type CouponRepository interface {
	// codeは大文字で渡す
	FindByCode(ctx context.Context, code string) (model.Coupon, error)
	Create(ctx context.Context, c model.Coupon) (model.Coupon, error)
	// 有効・期限内・上限未満のときだけ usage_count を+1
	IncrementUsageIfAvailable(ctx context.Context, couponID int64, now time.Time) (bool, error)
}
