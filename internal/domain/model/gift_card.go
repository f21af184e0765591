package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type GiftCard struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code           string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	InitialBalance decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"initial_balance"`
	CurrentBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;check:current_balance >= 0" json:"current_balance"`

	//nilなら期限なし
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	PurchasedBy *int64     `json:"purchased_by,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (g GiftCard) IsUsable(now time.Time) bool {
	if !g.IsActive || !g.CurrentBalance.IsPositive() {
		return false
	}
	return g.ExpiryDate == nil || now.Before(*g.ExpiryDate)
}

// 利用履歴（追記のみ）
type GiftCardUsage struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	GiftCardID int64           `gorm:"not null;index" json:"gift_card_id"`
	UserID     int64           `gorm:"not null;index" json:"user_id"`
	OrderID    int64           `gorm:"not null;index" json:"order_id"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	UsedAt     time.Time       `gorm:"not null" json:"used_at"`
}
