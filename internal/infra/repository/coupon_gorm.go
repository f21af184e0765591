package repository

import (
	"context"
	"strings"
	"time"

	"ecshop/internal/domain/model"

	"gorm.io/gorm"
)

type CouponGormRepository struct {
	db *gorm.DB
}

func NewCouponGormRepository(db *gorm.DB) *CouponGormRepository {
	return &CouponGormRepository{db: db}
}

func (r *CouponGormRepository) FindByCode(ctx context.Context, code string) (model.Coupon, error) {
	var c model.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(code)).
		First(&c).Error
	if err != nil {
		return model.Coupon{}, mapErr(err)
	}
	return c, nil
}

func (r *CouponGormRepository) Create(ctx context.Context, c model.Coupon) (model.Coupon, error) {
	c.Code = strings.ToUpper(c.Code)
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return model.Coupon{}, mapErr(err)
	}
	return c, nil
}

// 読んでから書くと同時利用で上限を超えるので、条件付きUPDATE1本で行う
func (r *CouponGormRepository) IncrementUsageIfAvailable(ctx context.Context, couponID int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("id = ? AND is_active = ? AND expiry_date > ?", couponID, true, now).
		Where("usage_limit IS NULL OR usage_count < usage_limit").
		Update("usage_count", gorm.Expr("usage_count + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
