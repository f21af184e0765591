package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// 許可する遷移（前進のみ）
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, to := range orderTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// キャンセル可能か
func (s OrderStatus) IsCancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

type Order struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//ORD-から始まる注文番号
	OrderNumber string `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`

	UserID int64 `gorm:"not null;index" json:"user_id"`

	ItemsSubtotal decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"items_subtotal"`
	DiscountTotal decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount_total"`
	ShippingFee   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_fee"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`

	CouponCode    string `gorm:"type:varchar(64)" json:"coupon_code,omitempty"`
	GiftCardCode  string `gorm:"type:varchar(64)" json:"gift_card_code,omitempty"`
	PaymentMethod string `gorm:"type:varchar(20);not null" json:"payment_method"`

	Status OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	IsPaid bool        `gorm:"not null;default:false" json:"is_paid"`

	//在庫を減らしたか（二重減算防止）
	StockDecremented bool `gorm:"not null;default:false" json:"stock_decremented"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`

	PlacedAt    time.Time  `gorm:"not null" json:"placed_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
