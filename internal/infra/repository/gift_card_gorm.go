package repository

import (
	"context"
	"strings"
	"time"

	"ecshop/internal/domain/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type GiftCardGormRepository struct {
	db *gorm.DB
}

func NewGiftCardGormRepository(db *gorm.DB) *GiftCardGormRepository {
	return &GiftCardGormRepository{db: db}
}

func (r *GiftCardGormRepository) FindByCode(ctx context.Context, code string) (model.GiftCard, error) {
	var g model.GiftCard
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(code)).
		First(&g).Error
	if err != nil {
		return model.GiftCard{}, mapErr(err)
	}
	return g, nil
}

func (r *GiftCardGormRepository) Create(ctx context.Context, g model.GiftCard) (model.GiftCard, error) {
	g.Code = strings.ToUpper(g.Code)
	if err := r.db.WithContext(ctx).Create(&g).Error; err != nil {
		return model.GiftCard{}, mapErr(err)
	}
	return g, nil
}

// 残高 >= amount のときだけ減算
func (r *GiftCardGormRepository) DebitIfEnough(ctx context.Context, giftCardID int64, amount decimal.Decimal, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.GiftCard{}).
		Where("id = ? AND is_active = ? AND current_balance >= ?", giftCardID, true, amount).
		Where("expiry_date IS NULL OR expiry_date > ?", now).
		Update("current_balance", gorm.Expr("current_balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GiftCardGormRepository) CreateUsage(ctx context.Context, u model.GiftCardUsage) error {
	return r.db.WithContext(ctx).Create(&u).Error
}

func (r *GiftCardGormRepository) ListUsages(ctx context.Context, giftCardID int64) ([]model.GiftCardUsage, error) {
	var list []model.GiftCardUsage
	err := r.db.WithContext(ctx).
		Where("gift_card_id = ?", giftCardID).
		Order("id asc").
		Find(&list).Error
	if err != nil {
		return []model.GiftCardUsage{}, err
	}
	return list, nil
}
