package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code          string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	DiscountType  DiscountType    `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount_value"`
	MinPurchase   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"min_purchase"`
	ExpiryDate    time.Time       `gorm:"not null" json:"expiry_date"`

	//nilなら無制限
	UsageLimit *int64 `json:"usage_limit,omitempty"`
	UsageCount int64  `gorm:"not null;default:0" json:"usage_count"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 有効期限・上限を見て使えるか（読み取りのみ）
func (c Coupon) IsUsable(now time.Time) bool {
	if !c.IsActive || !now.Before(c.ExpiryDate) {
		return false
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false
	}
	return true
}
